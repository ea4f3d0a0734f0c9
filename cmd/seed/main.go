// seed inserts a demo user with a few notes into the configured store.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/infrastructure"
	"github.com/caarlos0/env/v11"
)

const seedEmail = "seed@test.local"

var notes = []string{
	"buy milk",
	"call the dentist about Thursday",
	"read chapter 4 before the book club",
	"renew passport (expires in June)",
	"ideas: weekend hike, try the new ramen place",
}

type seedConfig struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"notes.db"`
}

func main() {
	ctx := context.Background()

	var cfg seedConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := infrastructure.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	// Reuse the user on re-runs; notes are only added the first time.
	user, err := store.Users.FindByEmail(ctx, seedEmail)
	created := false
	if errors.Is(err, domain.ErrUserNotFound) {
		user, err = store.Users.Create(ctx, &domain.User{
			Name:        "Seed User",
			DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
			Email:       seedEmail,
		})
		created = true
	}
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}

	inserted := 0
	if created {
		for _, content := range notes {
			if _, err := store.Notes.Create(ctx, &domain.Note{OwnerID: user.ID, Content: content}); err != nil {
				log.Fatalf("insert note %q: %v", content, err)
			}
			inserted++
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Store:         %s\n", cfg.StoreDriver)
	fmt.Printf("  User:          %s\n", seedEmail)
	fmt.Printf("  User ID:       %s\n", user.ID)
	fmt.Printf("  Notes created: %d\n", inserted)
	fmt.Println()
	fmt.Println("How to test (ENV=local logs the OTP instead of emailing it; use COOKIE_SECURE=false over plain http):")
	fmt.Println()
	fmt.Println("  Step 1 - request a code:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/auth/signin \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\"}'\n", seedEmail)
	fmt.Println()
	fmt.Println("  Step 2 - copy the code from the server log, then:")
	fmt.Println()
	fmt.Printf("    curl -s -c cookies.txt -X POST http://localhost:8080/auth/verify-otp \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\",\"otp\":\"CODE\"}'\n", seedEmail)
	fmt.Println()
	fmt.Println("  Step 3 - list the notes:")
	fmt.Println()
	fmt.Println("    curl -s -b cookies.txt http://localhost:8080/notes")
}
