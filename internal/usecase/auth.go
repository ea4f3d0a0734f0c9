package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/email"
	"github.com/ErlanBelekov/notes-api/internal/metrics"
	"github.com/ErlanBelekov/notes-api/internal/repository"
	"github.com/ErlanBelekov/notes-api/internal/token"
)

// AuthUsecase drives the passwordless flow: a user asks for a code (sign-up,
// sign-in or resend), proves possession of it (verify) and from then on
// holds an access/refresh pair. Only one refresh token per user is live.
type AuthUsecase struct {
	users  repository.UserRepository
	otp    *OTPEngine
	tokens *token.Issuer
	email  email.Sender
}

func NewAuthUsecase(users repository.UserRepository, otp *OTPEngine, tokens *token.Issuer, sender email.Sender) *AuthUsecase {
	return &AuthUsecase{
		users:  users,
		otp:    otp,
		tokens: tokens,
		email:  sender,
	}
}

type SignUpInput struct {
	Name        string
	DateOfBirth time.Time
	Email       string
}

// VerifyResult is returned once a code has been redeemed.
type VerifyResult struct {
	User   *domain.User
	Tokens token.Pair
}

// SignUp registers a new user with a fresh challenge attached and emails the
// code. The challenge is not rolled back if the email cannot be delivered.
func (u *AuthUsecase) SignUp(ctx context.Context, input SignUpInput) (*domain.User, error) {
	addr := domain.NormalizeEmail(input.Email)

	_, err := u.users.FindByEmail(ctx, addr)
	if err == nil {
		return nil, domain.ErrEmailTaken
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	code, challenge, err := u.otp.NewChallenge()
	if err != nil {
		return nil, err
	}

	user, err := u.users.Create(ctx, &domain.User{
		Name:        input.Name,
		DateOfBirth: input.DateOfBirth,
		Email:       addr,
		Challenge:   &challenge,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	metrics.OTPIssuedTotal.WithLabelValues("signup").Inc()

	if err := u.sendCode(ctx, user.Email, code); err != nil {
		return nil, err
	}
	return user, nil
}

// SignIn issues a new challenge for an existing user, replacing any prior one.
func (u *AuthUsecase) SignIn(ctx context.Context, emailAddr string) error {
	return u.issue(ctx, emailAddr, "signin")
}

// ResendOTP is SignIn without the intent: the user just wants another code.
func (u *AuthUsecase) ResendOTP(ctx context.Context, emailAddr string) error {
	return u.issue(ctx, emailAddr, "resend")
}

func (u *AuthUsecase) issue(ctx context.Context, emailAddr, reason string) error {
	user, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("find user: %w", err)
	}

	code, err := u.otp.Issue(ctx, user.ID)
	if err != nil {
		return err
	}
	metrics.OTPIssuedTotal.WithLabelValues(reason).Inc()

	return u.sendCode(ctx, user.Email, code)
}

func (u *AuthUsecase) sendCode(ctx context.Context, to, code string) error {
	if err := u.email.Send(ctx, email.OTPMessage(to, code, u.otp.TTL())); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// VerifyOTP redeems code and starts a session. The new refresh token
// supersedes any earlier one.
func (u *AuthUsecase) VerifyOTP(ctx context.Context, emailAddr, code string) (*VerifyResult, error) {
	user, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	err = u.otp.Verify(ctx, user, code)
	metrics.OTPVerificationsTotal.WithLabelValues(verifyOutcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	user.Challenge = nil

	pair, err := u.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{User: user, Tokens: pair}, nil
}

func verifyOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidCode):
		return "invalid"
	case errors.Is(err, domain.ErrCodeExpired):
		return "expired"
	case errors.Is(err, domain.ErrTooManyAttempts):
		return "locked"
	default:
		return "error"
	}
}

func (u *AuthUsecase) startSession(ctx context.Context, user *domain.User) (token.Pair, error) {
	pair, err := u.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return token.Pair{}, err
	}
	hash := token.Hash(pair.RefreshToken)
	if err := u.users.SetRefreshTokenHash(ctx, user.ID, hash); err != nil {
		return token.Pair{}, fmt.Errorf("store refresh token: %w", err)
	}
	user.RefreshTokenHash = &hash
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// be the one on record; it stops working as soon as the exchange succeeds.
func (u *AuthUsecase) Refresh(ctx context.Context, rawRefresh string) (token.Pair, error) {
	pair, err := u.refresh(ctx, rawRefresh)
	switch {
	case err == nil:
		metrics.TokenRefreshesTotal.WithLabelValues("success").Inc()
	case errors.Is(err, domain.ErrRefreshTokenReused):
		metrics.TokenRefreshesTotal.WithLabelValues("reused").Inc()
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.TokenRefreshesTotal.WithLabelValues("invalid").Inc()
	default:
		metrics.TokenRefreshesTotal.WithLabelValues("error").Inc()
	}
	return pair, err
}

func (u *AuthUsecase) refresh(ctx context.Context, rawRefresh string) (token.Pair, error) {
	if rawRefresh == "" {
		return token.Pair{}, domain.ErrUnauthorized
	}

	claims, err := u.tokens.ParseRefreshToken(rawRefresh)
	if err != nil {
		return token.Pair{}, domain.ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return token.Pair{}, domain.ErrUnauthorized
		}
		return token.Pair{}, fmt.Errorf("find user: %w", err)
	}

	presented := token.Hash(rawRefresh)
	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != presented {
		return token.Pair{}, domain.ErrRefreshTokenReused
	}

	pair, err := u.tokens.IssuePair(user.ID, user.Email)
	if err != nil {
		return token.Pair{}, err
	}

	// Compare-and-swap: of two concurrent exchanges of the same token only one wins.
	if err := u.users.RotateRefreshTokenHash(ctx, user.ID, presented, token.Hash(pair.RefreshToken)); err != nil {
		if errors.Is(err, domain.ErrRefreshTokenReused) {
			return token.Pair{}, err
		}
		return token.Pair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	return pair, nil
}

// SignOut revokes the session behind rawRefresh, if any. Tokens that no
// longer verify have nothing left to revoke.
func (u *AuthUsecase) SignOut(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}
	claims, err := u.tokens.ParseRefreshToken(rawRefresh)
	if err != nil {
		return nil
	}
	if err := u.users.ClearRefreshTokenHash(ctx, claims.Subject, token.Hash(rawRefresh)); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// Authenticate resolves an access token to its user. Any token problem, or a
// user that no longer exists, is reported as domain.ErrUnauthorized.
func (u *AuthUsecase) Authenticate(ctx context.Context, rawAccess string) (*domain.User, error) {
	if rawAccess == "" {
		return nil, domain.ErrUnauthorized
	}

	claims, err := u.tokens.ParseAccessToken(rawAccess)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	user.RefreshTokenHash = nil
	user.Challenge = nil
	return user, nil
}
