package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Claims is the payload of both token kinds. Email is only set on access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ"`
}

// Pair is what a successful authentication hands back to the client.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer mints and parses HS256 tokens. Access and refresh tokens are signed
// with different keys so one can never be replayed as the other.
type Issuer struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(accessKey, refreshKey []byte, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) IssueAccessToken(userID, email string) (string, error) {
	signed, err := i.sign(i.accessKey, i.accessTTL, Claims{Email: email, TokenType: typeAccess}, userID)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) IssueRefreshToken(userID string) (string, error) {
	signed, err := i.sign(i.refreshKey, i.refreshTTL, Claims{TokenType: typeRefresh}, userID)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) IssuePair(userID, email string) (Pair, error) {
	access, err := i.IssueAccessToken(userID, email)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.IssueRefreshToken(userID)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// ParseAccessToken returns the claims of a valid access token, or
// domain.ErrTokenExpired / domain.ErrTokenInvalid.
func (i *Issuer) ParseAccessToken(raw string) (*Claims, error) {
	return i.parse(raw, i.accessKey, typeAccess)
}

// ParseRefreshToken is ParseAccessToken for refresh tokens.
func (i *Issuer) ParseRefreshToken(raw string) (*Claims, error) {
	return i.parse(raw, i.refreshKey, typeRefresh)
}

func (i *Issuer) sign(key []byte, ttl time.Duration, claims Claims, userID string) (string, error) {
	now := i.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func (i *Issuer) parse(raw string, key []byte, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	if !token.Valid || claims.TokenType != wantType || claims.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// Hash is the digest under which a refresh token is stored.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
