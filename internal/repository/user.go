package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
)

type UserRepository interface {
	// Create inserts u together with its initial challenge. Returns
	// domain.ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// SetChallenge replaces any outstanding challenge and resets its attempt counter.
	SetChallenge(ctx context.Context, userID string, c domain.Challenge) error
	// ConsumeChallenge clears the challenge only while codeHash is still the
	// stored one. Returns domain.ErrInvalidCode if it was superseded or already used.
	ConsumeChallenge(ctx context.Context, userID, codeHash string) error
	// IncrementChallengeAttempts bumps the failed attempt counter of the
	// challenge identified by codeHash and returns the new count.
	IncrementChallengeAttempts(ctx context.Context, userID, codeHash string) (int, error)
	ClearChallenge(ctx context.Context, userID string) error
	SweepExpiredChallenges(ctx context.Context, now time.Time) (int64, error)

	SetRefreshTokenHash(ctx context.Context, userID, hash string) error
	// RotateRefreshTokenHash swaps oldHash for newHash atomically. Returns
	// domain.ErrRefreshTokenReused when oldHash is no longer on record.
	RotateRefreshTokenHash(ctx context.Context, userID, oldHash, newHash string) error
	// ClearRefreshTokenHash ends the session if hash is still the current one.
	ClearRefreshTokenHash(ctx context.Context, userID, hash string) error
}
