package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/repository"
	"github.com/google/uuid"
)

var _ repository.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	db *sql.DB
}

const userColumns = `id, name, date_of_birth, email, otp_code_hash, otp_expires_at, otp_attempts,
	refresh_token_hash, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	var codeHash sql.NullString
	var expiresAt sql.NullInt64
	if u.Challenge != nil {
		codeHash = sql.NullString{String: u.Challenge.CodeHash, Valid: true}
		expiresAt = sql.NullInt64{Int64: toMillis(u.Challenge.ExpiresAt), Valid: true}
	}
	now := toMillis(time.Now())

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, date_of_birth, email, otp_code_hash, otp_expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+userColumns,
		uuid.NewString(), u.Name, u.DateOfBirth.Format(domain.DateLayout), u.Email,
		codeHash, expiresAt, now, now,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) SetChallenge(ctx context.Context, userID string, c domain.Challenge) error {
	n, err := r.exec(ctx, `
		UPDATE users
		SET otp_code_hash = ?, otp_expires_at = ?, otp_attempts = 0, updated_at = ?
		WHERE id = ?`,
		c.CodeHash, toMillis(c.ExpiresAt), toMillis(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("set challenge: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ConsumeChallenge(ctx context.Context, userID, codeHash string) error {
	n, err := r.exec(ctx, `
		UPDATE users
		SET otp_code_hash = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = ?
		WHERE id = ? AND otp_code_hash = ?`,
		toMillis(time.Now()), userID, codeHash,
	)
	if err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}
	if n == 0 {
		return domain.ErrInvalidCode
	}
	return nil
}

func (r *UserRepository) IncrementChallengeAttempts(ctx context.Context, userID, codeHash string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET otp_attempts = otp_attempts + 1, updated_at = ?
		WHERE id = ? AND otp_code_hash = ?
		RETURNING otp_attempts`,
		toMillis(time.Now()), userID, codeHash,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrInvalidCode
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *UserRepository) ClearChallenge(ctx context.Context, userID string) error {
	_, err := r.exec(ctx, `
		UPDATE users
		SET otp_code_hash = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = ?
		WHERE id = ?`,
		toMillis(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("clear challenge: %w", err)
	}
	return nil
}

func (r *UserRepository) SweepExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.exec(ctx, `
		UPDATE users
		SET otp_code_hash = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = ?
		WHERE otp_expires_at <= ?`,
		toMillis(time.Now()), toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep challenges: %w", err)
	}
	return n, nil
}

func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, userID, hash string) error {
	n, err := r.exec(ctx,
		`UPDATE users SET refresh_token_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(time.Now()), userID,
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) RotateRefreshTokenHash(ctx context.Context, userID, oldHash, newHash string) error {
	n, err := r.exec(ctx, `
		UPDATE users SET refresh_token_hash = ?, updated_at = ?
		WHERE id = ? AND refresh_token_hash = ?`,
		newHash, toMillis(time.Now()), userID, oldHash,
	)
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if n == 0 {
		return domain.ErrRefreshTokenReused
	}
	return nil
}

func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, userID, hash string) error {
	_, err := r.exec(ctx, `
		UPDATE users SET refresh_token_hash = NULL, updated_at = ?
		WHERE id = ? AND refresh_token_hash = ?`,
		toMillis(time.Now()), userID, hash,
	)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                    domain.User
		dob                  string
		codeHash             sql.NullString
		expiresAt            sql.NullInt64
		attempts             int
		refreshHash          sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&u.ID, &u.Name, &dob, &u.Email, &codeHash, &expiresAt, &attempts,
		&refreshHash, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if u.DateOfBirth, err = time.Parse(domain.DateLayout, dob); err != nil {
		return nil, fmt.Errorf("parse date of birth: %w", err)
	}
	if codeHash.Valid && expiresAt.Valid {
		u.Challenge = &domain.Challenge{
			CodeHash:  codeHash.String,
			ExpiresAt: fromMillis(expiresAt.Int64),
			Attempts:  attempts,
		}
	}
	if refreshHash.Valid {
		u.RefreshTokenHash = &refreshHash.String
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}
