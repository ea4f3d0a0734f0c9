// Package infrastructure selects and opens the configured store.
package infrastructure

import (
	"context"
	"fmt"

	"github.com/ErlanBelekov/notes-api/internal/health"
	"github.com/ErlanBelekov/notes-api/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/notes-api/internal/infrastructure/sqlite"
	"github.com/ErlanBelekov/notes-api/internal/repository"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store bundles the repositories of one backend with a ping target for
// readiness checks. Schema migrations have been applied by the time Open
// returns.
type Store struct {
	Users repository.UserRepository
	Notes repository.NoteRepository
	DB    health.Pinger

	close func()
}

func Open(ctx context.Context, driver, databaseURL, sqlitePath string) (*Store, error) {
	switch driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Store{
			Users: postgres.NewUserRepository(pool),
			Notes: postgres.NewNoteRepository(pool),
			DB:    pool,
			close: pool.Close,
		}, nil

	case DriverSQLite:
		db, err := sqlite.Open(ctx, sqlitePath)
		if err != nil {
			return nil, err
		}
		return &Store{
			Users: db.Users(),
			Notes: db.Notes(),
			DB:    db,
			close: func() { _ = db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func (s *Store) Close() {
	s.close()
}
