package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCode        = errors.New("invalid otp")
	ErrCodeExpired        = errors.New("otp expired")
	ErrTooManyAttempts    = errors.New("too many otp attempts")
	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token is expired")
	ErrRefreshTokenReused = errors.New("refresh token expired or reused")
	ErrUnauthorized       = errors.New("unauthorized")
)

// DateLayout is the wire and storage format of a date of birth.
const DateLayout = "2006-01-02"

type User struct {
	ID          string
	Name        string
	DateOfBirth time.Time
	Email       string

	// Challenge is nil when no OTP is outstanding.
	Challenge *Challenge

	// RefreshTokenHash is the SHA-256 digest of the only refresh token that
	// is currently accepted for this user. nil means no session.
	RefreshTokenHash *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Challenge is an outstanding one-time code. Only the bcrypt hash of the
// code is kept.
type Challenge struct {
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
}

// Expired reports whether the challenge can no longer be redeemed at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Profile is the part of a User that is safe to hand to clients.
type Profile struct {
	ID          string
	Name        string
	Email       string
	DateOfBirth time.Time
}

func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		DateOfBirth: u.DateOfBirth,
	}
}

// NormalizeEmail is the form under which emails are stored and looked up.
// Matching is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
