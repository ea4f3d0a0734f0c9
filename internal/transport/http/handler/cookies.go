package handler

import (
	"net/http"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/token"
	"github.com/ErlanBelekov/notes-api/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

// CookieConfig controls the session cookies. SameSite is always None so the
// cookies reach the API from the allowed browser origin.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (cfg CookieConfig) setSession(c *gin.Context, pair token.Pair) {
	cfg.set(c, middleware.AccessTokenCookie, pair.AccessToken, int(cfg.AccessTTL.Seconds()))
	cfg.set(c, middleware.RefreshTokenCookie, pair.RefreshToken, int(cfg.RefreshTTL.Seconds()))
}

func (cfg CookieConfig) clearSession(c *gin.Context) {
	cfg.set(c, middleware.AccessTokenCookie, "", -1)
	cfg.set(c, middleware.RefreshTokenCookie, "", -1)
}

func (cfg CookieConfig) set(c *gin.Context, name, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}
