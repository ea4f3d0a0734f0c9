package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

type noteUsecaser interface {
	CreateNote(ctx context.Context, ownerID, content string) (*domain.Note, error)
	ListNotes(ctx context.Context, ownerID string) ([]*domain.Note, error)
	DeleteNote(ctx context.Context, id, ownerID string) error
}

type NoteHandler struct {
	noteUsecase noteUsecaser
	logger      *slog.Logger
}

func NewNoteHandler(noteUsecase noteUsecaser, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{noteUsecase: noteUsecase, logger: logger.With("component", "note_handler")}
}

type createNoteRequest struct {
	Content string `json:"content" binding:"required"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newNoteResponse(n *domain.Note) noteResponse {
	return noteResponse{
		ID:        n.ID,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

// POST /notes
func (h *NoteHandler) Create(c *gin.Context) {
	owner := middleware.CurrentUser(c)
	if owner == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	var req createNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindingError(c, err)
		return
	}

	note, err := h.noteUsecase.CreateNote(c.Request.Context(), owner.ID, req.Content)
	if err != nil {
		writeError(c, h.logger, "create note", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Note created successfully",
		"note":    newNoteResponse(note),
	})
}

// GET /notes
// Newest first; only the caller's notes.
func (h *NoteHandler) List(c *gin.Context) {
	owner := middleware.CurrentUser(c)
	if owner == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	notes, err := h.noteUsecase.ListNotes(c.Request.Context(), owner.ID)
	if err != nil {
		writeError(c, h.logger, "list notes", err)
		return
	}

	resp := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		resp = append(resp, newNoteResponse(n))
	}
	c.JSON(http.StatusOK, gin.H{"notes": resp})
}

// DELETE /notes/:id
// A note owned by someone else is reported as not found.
func (h *NoteHandler) Delete(c *gin.Context) {
	owner := middleware.CurrentUser(c)
	if owner == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	if err := h.noteUsecase.DeleteNote(c.Request.Context(), c.Param("id"), owner.ID); err != nil {
		writeError(c, h.logger, "delete note", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Note deleted successfully"})
}
