package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/repository"
)

type NoteUsecase struct {
	repo repository.NoteRepository
}

func NewNoteUsecase(repo repository.NoteRepository) *NoteUsecase {
	return &NoteUsecase{repo: repo}
}

func (u *NoteUsecase) CreateNote(ctx context.Context, ownerID, content string) (*domain.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > domain.MaxNoteLength {
		return nil, domain.ErrContentTooLong
	}

	note, err := u.repo.Create(ctx, &domain.Note{
		OwnerID: ownerID,
		Content: content,
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return note, nil
}

func (u *NoteUsecase) ListNotes(ctx context.Context, ownerID string) ([]*domain.Note, error) {
	notes, err := u.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	if notes == nil {
		notes = []*domain.Note{}
	}
	return notes, nil
}

// DeleteNote reports domain.ErrNoteNotFound both for missing notes and for
// notes owned by someone else.
func (u *NoteUsecase) DeleteNote(ctx context.Context, id, ownerID string) error {
	if err := u.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, domain.ErrNoteNotFound) {
			return err
		}
		return fmt.Errorf("delete note: %w", err)
	}
	return nil
}
