package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

var _ repository.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, date_of_birth, email, otp_code_hash, otp_expires_at, otp_attempts,
	refresh_token_hash, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	var codeHash *string
	var expiresAt *time.Time
	if u.Challenge != nil {
		codeHash = &u.Challenge.CodeHash
		expiresAt = &u.Challenge.ExpiresAt
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, date_of_birth, email, otp_code_hash, otp_expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		u.Name, u.DateOfBirth, u.Email, codeHash, expiresAt,
	)

	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrUserNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) SetChallenge(ctx context.Context, userID string, c domain.Challenge) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET otp_code_hash = $2, otp_expires_at = $3, otp_attempts = 0, updated_at = NOW()
		WHERE id = $1`,
		userID, c.CodeHash, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("set challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ConsumeChallenge(ctx context.Context, userID, codeHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET otp_code_hash = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = NOW()
		WHERE id = $1 AND otp_code_hash = $2`,
		userID, codeHash,
	)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidCode
	}
	return nil
}

func (r *UserRepository) IncrementChallengeAttempts(ctx context.Context, userID, codeHash string) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET otp_attempts = otp_attempts + 1, updated_at = NOW()
		WHERE id = $1 AND otp_code_hash = $2
		RETURNING otp_attempts`,
		userID, codeHash,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrInvalidCode
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *UserRepository) ClearChallenge(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET otp_code_hash = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = NOW()
		WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear challenge: %w", err)
	}
	return nil
}

func (r *UserRepository) SweepExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET otp_code_hash = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = NOW()
		WHERE otp_expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, userID, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, hash,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) RotateRefreshTokenHash(ctx context.Context, userID, oldHash, newHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token_hash = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2`,
		userID, oldHash, newHash,
	)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRefreshTokenReused
	}
	return nil
}

func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, userID, hash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_token_hash = NULL, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2`,
		userID, hash,
	)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u         domain.User
		codeHash  *string
		expiresAt *time.Time
		attempts  int
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.DateOfBirth, &u.Email, &codeHash, &expiresAt, &attempts,
		&u.RefreshTokenHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if codeHash != nil && expiresAt != nil {
		u.Challenge = &domain.Challenge{CodeHash: *codeHash, ExpiresAt: *expiresAt, Attempts: attempts}
	}
	return &u, nil
}
