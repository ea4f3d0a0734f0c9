package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/token"
	"github.com/ErlanBelekov/notes-api/internal/transport/http/middleware"
	"github.com/ErlanBelekov/notes-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	SignUp(ctx context.Context, input usecase.SignUpInput) (*domain.User, error)
	SignIn(ctx context.Context, email string) error
	ResendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*usecase.VerifyResult, error)
	Refresh(ctx context.Context, rawRefresh string) (token.Pair, error)
	SignOut(ctx context.Context, rawRefresh string) error
}

type AuthHandler struct {
	authUsecase authUsecaser
	cookies     CookieConfig
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		cookies:     cookies,
		logger:      logger.With("component", "auth_handler"),
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	DOB   string `json:"dob"`
}

func newUserResponse(u *domain.User) userResponse {
	p := u.Profile()
	return userResponse{
		ID:    p.ID,
		Name:  p.Name,
		Email: p.Email,
		DOB:   p.DateOfBirth.Format(domain.DateLayout),
	}
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type signUpRequest struct {
	Name  string `json:"name"  binding:"required"`
	DOB   string `json:"dob"   binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp"   binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// POST /auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindingError(c, err)
		return
	}
	dob, err := time.Parse(domain.DateLayout, req.DOB)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidDOB})
		return
	}

	user, err := h.authUsecase.SignUp(c.Request.Context(), usecase.SignUpInput{
		Name:        req.Name,
		DateOfBirth: dob,
		Email:       req.Email,
	})
	if err != nil {
		writeError(c, h.logger, "sign up", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Signup successful, OTP sent",
		"user":    newUserResponse(user),
	})
}

// POST /auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindingError(c, err)
		return
	}
	if err := h.authUsecase.SignIn(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "sign in", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OTP sent for signin"})
}

// POST /auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindingError(c, err)
		return
	}
	if err := h.authUsecase.ResendOTP(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, "resend otp", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "New OTP sent successfully"})
}

// POST /auth/verify-otp
// Sets both session cookies and also returns the tokens in the body.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindingError(c, err)
		return
	}

	res, err := h.authUsecase.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		writeError(c, h.logger, "verify otp", err)
		return
	}

	h.cookies.setSession(c, res.Tokens)
	c.JSON(http.StatusOK, gin.H{
		"message": "OTP verified successfully",
		"user":    newUserResponse(res.User),
		"tokens": tokensResponse{
			AccessToken:  res.Tokens.AccessToken,
			RefreshToken: res.Tokens.RefreshToken,
		},
	})
}

// POST /auth/refresh
// The refresh token comes from the cookie or, failing that, the JSON body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	pair, err := h.authUsecase.Refresh(c.Request.Context(), h.refreshToken(c))
	if err != nil {
		writeError(c, h.logger, "refresh", err)
		return
	}

	h.cookies.setSession(c, pair)
	c.JSON(http.StatusOK, gin.H{
		"message":      "Access token refreshed successfully",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// POST /auth/signout
// Always 200: cookies are cleared even if revocation fails.
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.authUsecase.SignOut(c.Request.Context(), h.refreshToken(c)); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "sign out", "error", err)
	}
	h.cookies.clearSession(c)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out successfully"})
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

func (h *AuthHandler) refreshToken(c *gin.Context) string {
	if v, err := c.Cookie(middleware.RefreshTokenCookie); err == nil && v != "" {
		return v
	}
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	return req.RefreshToken
}
