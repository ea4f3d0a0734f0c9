package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeMin   = 100000
	codeRange = 900000 // codes fall in [100000, 999999]

	defaultOTPTTL         = 5 * time.Minute
	defaultOTPMaxAttempts = 5
)

type challengeStore interface {
	SetChallenge(ctx context.Context, userID string, c domain.Challenge) error
	ConsumeChallenge(ctx context.Context, userID, codeHash string) error
	IncrementChallengeAttempts(ctx context.Context, userID, codeHash string) (int, error)
}

// OTPEngine issues and redeems six-digit one-time codes. A user holds at
// most one challenge; issuing a new one replaces the previous code.
type OTPEngine struct {
	store       challengeStore
	ttl         time.Duration
	maxAttempts int
	hashCost    int
	now         func() time.Time
	rand        io.Reader
}

func NewOTPEngine(store challengeStore, ttl time.Duration, maxAttempts int) *OTPEngine {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultOTPMaxAttempts
	}
	return &OTPEngine{
		store:       store,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		hashCost:    bcrypt.DefaultCost,
		now:         time.Now,
		rand:        rand.Reader,
	}
}

// WithClock returns a copy of the engine that reads time from now.
func (e *OTPEngine) WithClock(now func() time.Time) *OTPEngine {
	cp := *e
	cp.now = now
	return &cp
}

func (e *OTPEngine) TTL() time.Duration { return e.ttl }

// NewChallenge generates a code and the challenge that redeems it without
// persisting anything. Sign-up stores the challenge along with the new user.
func (e *OTPEngine) NewChallenge() (string, domain.Challenge, error) {
	n, err := rand.Int(e.rand, big.NewInt(codeRange))
	if err != nil {
		return "", domain.Challenge{}, fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+codeMin)

	hash, err := bcrypt.GenerateFromPassword([]byte(code), e.hashCost)
	if err != nil {
		return "", domain.Challenge{}, fmt.Errorf("hash otp: %w", err)
	}

	return code, domain.Challenge{
		CodeHash:  string(hash),
		ExpiresAt: e.now().Add(e.ttl),
	}, nil
}

// Issue replaces the user's outstanding challenge and returns the new code
// for out-of-band delivery.
func (e *OTPEngine) Issue(ctx context.Context, userID string) (string, error) {
	code, c, err := e.NewChallenge()
	if err != nil {
		return "", err
	}
	if err := e.store.SetChallenge(ctx, userID, c); err != nil {
		return "", fmt.Errorf("store challenge: %w", err)
	}
	return code, nil
}

// Verify redeems code against u's challenge. A successful verification
// consumes the challenge, so the same code never verifies twice.
//
// Failures: ErrInvalidCode when there is no challenge or the code differs,
// ErrCodeExpired at or after the expiry, ErrTooManyAttempts once the attempt
// budget is spent (the challenge is then discarded).
func (e *OTPEngine) Verify(ctx context.Context, u *domain.User, code string) error {
	c := u.Challenge
	if c == nil {
		return domain.ErrInvalidCode
	}
	if c.Attempts >= e.maxAttempts {
		return domain.ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
		return e.recordFailure(ctx, u.ID, c.CodeHash)
	}

	if c.Expired(e.now()) {
		return domain.ErrCodeExpired
	}

	if err := e.store.ConsumeChallenge(ctx, u.ID, c.CodeHash); err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			return err
		}
		return fmt.Errorf("consume challenge: %w", err)
	}
	return nil
}

func (e *OTPEngine) recordFailure(ctx context.Context, userID, codeHash string) error {
	attempts, err := e.store.IncrementChallengeAttempts(ctx, userID, codeHash)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCode) {
			return err
		}
		return fmt.Errorf("record failed attempt: %w", err)
	}
	if attempts < e.maxAttempts {
		return domain.ErrInvalidCode
	}

	if err := e.store.ConsumeChallenge(ctx, userID, codeHash); err != nil && !errors.Is(err, domain.ErrInvalidCode) {
		return fmt.Errorf("discard challenge: %w", err)
	}
	return domain.ErrTooManyAttempts
}
