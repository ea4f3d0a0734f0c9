package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/transport/http/handler"
	"github.com/ErlanBelekov/notes-api/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type authenticator interface {
	Authenticate(ctx context.Context, rawAccess string) (*domain.User, error)
}

func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	noteHandler *handler.NoteHandler,
	auth authenticator,
	allowedOrigin string,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(middleware.CORS(allowedOrigin))
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	session := middleware.Session(auth, logger)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Notes API"})
	})

	authGroup := r.Group("/auth")
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/signin", authHandler.SignIn)
	authGroup.POST("/verify-otp", authHandler.VerifyOTP)
	authGroup.POST("/resend-otp", authHandler.ResendOTP)
	authGroup.POST("/signout", authHandler.SignOut)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.GET("/me", session, authHandler.Me)

	notes := r.Group("/notes", session)
	notes.POST("", noteHandler.Create)
	notes.GET("", noteHandler.List)
	notes.DELETE("/:id", noteHandler.Delete)

	return r
}
