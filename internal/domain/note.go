package domain

import (
	"errors"
	"time"
)

var (
	ErrNoteNotFound   = errors.New("note not found")
	ErrEmptyContent   = errors.New("content is required")
	ErrContentTooLong = errors.New("content is too long")
)

// MaxNoteLength is the maximum number of characters a note may hold.
const MaxNoteLength = 10000

type Note struct {
	ID        string
	OwnerID   string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
