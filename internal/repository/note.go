package repository

import (
	"context"

	"github.com/ErlanBelekov/notes-api/internal/domain"
)

type NoteRepository interface {
	Create(ctx context.Context, n *domain.Note) (*domain.Note, error)
	// ListByOwner returns the owner's notes, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Note, error)
	// Delete removes the note only if ownerID owns it; otherwise domain.ErrNoteNotFound.
	Delete(ctx context.Context, id, ownerID string) error
}
