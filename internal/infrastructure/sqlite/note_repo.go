package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/repository"
	"github.com/google/uuid"
)

var _ repository.NoteRepository = (*NoteRepository)(nil)

type NoteRepository struct {
	db *sql.DB
}

func (r *NoteRepository) Create(ctx context.Context, n *domain.Note) (*domain.Note, error) {
	now := toMillis(time.Now())
	var (
		note                 domain.Note
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notes (id, owner_id, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, owner_id, content, created_at, updated_at`,
		uuid.NewString(), n.OwnerID, n.Content, now, now,
	).Scan(&note.ID, &note.OwnerID, &note.Content, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	note.CreatedAt = fromMillis(createdAt)
	note.UpdatedAt = fromMillis(updatedAt)
	return &note, nil
}

func (r *NoteRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	// rowid breaks ties between notes created within the same millisecond.
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, content, created_at, updated_at
		FROM notes
		WHERE owner_id = ?
		ORDER BY created_at DESC, rowid DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := []*domain.Note{}
	for rows.Next() {
		var (
			n                    domain.Note
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Content, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.CreatedAt = fromMillis(createdAt)
		n.UpdatedAt = fromMillis(updatedAt)
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

func (r *NoteRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if n == 0 {
		return domain.ErrNoteNotFound
	}
	return nil
}
