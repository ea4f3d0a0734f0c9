package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const (
	errInternalServer  = "Internal server error"
	errInvalidBody     = "Invalid request body"
	errInvalidDOB      = "dob must be a date in YYYY-MM-DD format"
	errUserExists      = "User already exists"
	errUserNotFound    = "User not found"
	errNoteNotFound    = "Note not found"
	errInvalidOTP      = "Invalid OTP"
	errOTPExpired      = "OTP has expired"
	errTooManyAttempts = "Too many attempts, request a new OTP"
	errUnauthorized    = "Unauthorized"
	errEmptyContent    = "Note content is required"
	errContentTooLong  = "Note content is too long"
)

// writeError maps a usecase error onto a status and a stable message.
// Anything unrecognised is logged and reported as a 500.
func writeError(c *gin.Context, logger *slog.Logger, op string, err error) {
	status, msg := http.StatusInternalServerError, errInternalServer
	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		status, msg = http.StatusConflict, errUserExists
	case errors.Is(err, domain.ErrUserNotFound):
		status, msg = http.StatusNotFound, errUserNotFound
	case errors.Is(err, domain.ErrNoteNotFound):
		status, msg = http.StatusNotFound, errNoteNotFound
	case errors.Is(err, domain.ErrInvalidCode):
		status, msg = http.StatusBadRequest, errInvalidOTP
	case errors.Is(err, domain.ErrCodeExpired):
		status, msg = http.StatusBadRequest, errOTPExpired
	case errors.Is(err, domain.ErrTooManyAttempts):
		status, msg = http.StatusTooManyRequests, errTooManyAttempts
	case errors.Is(err, domain.ErrEmptyContent):
		status, msg = http.StatusBadRequest, errEmptyContent
	case errors.Is(err, domain.ErrContentTooLong):
		status, msg = http.StatusBadRequest, errContentTooLong
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrRefreshTokenReused):
		status, msg = http.StatusUnauthorized, errUnauthorized
	default:
		logger.ErrorContext(c.Request.Context(), op, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

// writeBindingError turns a gin binding failure into a 400 naming the first
// offending field. Request struct fields are named after their JSON keys.
func writeBindingError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errInvalidBody
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
