package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/notes-api/internal/domain"
	"github.com/ErlanBelekov/notes-api/internal/token"
	"github.com/ErlanBelekov/notes-api/internal/transport/http/handler"
	"github.com/ErlanBelekov/notes-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeAuthUsecase implements the unexported authUsecaser interface via method matching.
type fakeAuthUsecase struct {
	signUp    func(ctx context.Context, input usecase.SignUpInput) (*domain.User, error)
	signIn    func(ctx context.Context, email string) error
	resendOTP func(ctx context.Context, email string) error
	verifyOTP func(ctx context.Context, email, code string) (*usecase.VerifyResult, error)
	refresh   func(ctx context.Context, raw string) (token.Pair, error)
	signOut   func(ctx context.Context, raw string) error
}

func (f *fakeAuthUsecase) SignUp(ctx context.Context, input usecase.SignUpInput) (*domain.User, error) {
	return f.signUp(ctx, input)
}

func (f *fakeAuthUsecase) SignIn(ctx context.Context, email string) error {
	return f.signIn(ctx, email)
}

func (f *fakeAuthUsecase) ResendOTP(ctx context.Context, email string) error {
	return f.resendOTP(ctx, email)
}

func (f *fakeAuthUsecase) VerifyOTP(ctx context.Context, email, code string) (*usecase.VerifyResult, error) {
	return f.verifyOTP(ctx, email, code)
}

func (f *fakeAuthUsecase) Refresh(ctx context.Context, raw string) (token.Pair, error) {
	return f.refresh(ctx, raw)
}

func (f *fakeAuthUsecase) SignOut(ctx context.Context, raw string) error {
	return f.signOut(ctx, raw)
}

var testCookies = handler.CookieConfig{Secure: true, AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour}

func newAuthEngine(uc *fakeAuthUsecase) *gin.Engine {
	h := handler.NewAuthHandler(uc, testCookies, discard)

	r := gin.New()
	r.POST("/auth/signup", h.SignUp)
	r.POST("/auth/signin", h.SignIn)
	r.POST("/auth/resend-otp", h.ResendOTP)
	r.POST("/auth/verify-otp", h.VerifyOTP)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/signout", h.SignOut)
	r.GET("/auth/me", func(c *gin.Context) {
		c.Set("user", ann())
		h.Me(c)
	})
	return r
}

func ann() *domain.User {
	return &domain.User{
		ID:          "user-1",
		Name:        "Ann",
		Email:       "ann@x.com",
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func do(r http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func cookieByName(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ---- SignUp ----

func TestSignUp_Success(t *testing.T) {
	var got usecase.SignUpInput
	uc := &fakeAuthUsecase{
		signUp: func(_ context.Context, in usecase.SignUpInput) (*domain.User, error) {
			got = in
			return ann(), nil
		},
	}
	w := do(newAuthEngine(uc), http.MethodPost, "/auth/signup",
		`{"name":"Ann","dob":"1990-01-01","email":"ann@x.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if got.Name != "Ann" || got.Email != "ann@x.com" || got.DateOfBirth.Format(domain.DateLayout) != "1990-01-01" {
		t.Errorf("usecase input = %+v", got)
	}

	body := decode(t, w)
	if body["message"] != "Signup successful, OTP sent" {
		t.Errorf("message = %v", body["message"])
	}
	user, _ := body["user"].(map[string]any)
	if user["id"] != "user-1" || user["dob"] != "1990-01-01" || user["email"] != "ann@x.com" {
		t.Errorf("user = %v", user)
	}
	if _, leaked := user["refreshTokenHash"]; leaked {
		t.Error("refresh token hash leaked into response")
	}
}

func TestSignUp_ValidationErrors_Return400(t *testing.T) {
	uc := &fakeAuthUsecase{
		signUp: func(context.Context, usecase.SignUpInput) (*domain.User, error) {
			t.Fatal("usecase must not be called")
			return nil, nil
		},
	}
	cases := map[string]struct {
		body    string
		wantMsg string
	}{
		"malformed json": {`{bad json}`, "Invalid request body"},
		"missing name":   {`{"dob":"1990-01-01","email":"ann@x.com"}`, "name is required"},
		"missing dob":    {`{"name":"Ann","email":"ann@x.com"}`, "dob is required"},
		"missing email":  {`{"name":"Ann","dob":"1990-01-01"}`, "email is required"},
		"bad email":      {`{"name":"Ann","dob":"1990-01-01","email":"nope"}`, "email must be a valid email"},
		"bad dob":        {`{"name":"Ann","dob":"01/01/1990","email":"ann@x.com"}`, "dob must be a date in YYYY-MM-DD format"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(newAuthEngine(uc), http.MethodPost, "/auth/signup", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if got := decode(t, w)["error"]; got != tc.wantMsg {
				t.Errorf("error = %v, want %q", got, tc.wantMsg)
			}
		})
	}
}

func TestSignUp_EmailTaken_Returns409(t *testing.T) {
	uc := &fakeAuthUsecase{
		signUp: func(context.Context, usecase.SignUpInput) (*domain.User, error) {
			return nil, domain.ErrEmailTaken
		},
	}
	w := do(newAuthEngine(uc), http.MethodPost, "/auth/signup",
		`{"name":"Ann","dob":"1990-01-01","email":"ann@x.com"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestSignUp_InternalError_HidesDetail(t *testing.T) {
	uc := &fakeAuthUsecase{
		signUp: func(context.Context, usecase.SignUpInput) (*domain.User, error) {
			return nil, errors.New("send otp: smtp relay on fire")
		},
	}
	w := do(newAuthEngine(uc), http.MethodPost, "/auth/signup",
		`{"name":"Ann","dob":"1990-01-01","email":"ann@x.com"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "smtp") {
		t.Errorf("internal detail leaked: %s", w.Body.String())
	}
}

// ---- SignIn / Resend ----

func TestSignIn(t *testing.T) {
	cases := map[string]struct {
		body       string
		err        error
		wantStatus int
	}{
		"success":       {`{"email":"ann@x.com"}`, nil, http.StatusOK},
		"unknown user":  {`{"email":"ann@x.com"}`, domain.ErrUserNotFound, http.StatusNotFound},
		"missing email": {`{}`, nil, http.StatusBadRequest},
		"store failure": {`{"email":"ann@x.com"}`, errors.New("db down"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			uc := &fakeAuthUsecase{signIn: func(context.Context, string) error { return tc.err }}
			w := do(newAuthEngine(uc), http.MethodPost, "/auth/signin", tc.body)
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && decode(t, w)["message"] != "OTP sent for signin" {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestResendOTP(t *testing.T) {
	var gotEmail string
	uc := &fakeAuthUsecase{resendOTP: func(_ context.Context, email string) error {
		gotEmail = email
		return nil
	}}
	w := do(newAuthEngine(uc), http.MethodPost, "/auth/resend-otp", `{"email":"ann@x.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotEmail != "ann@x.com" {
		t.Errorf("email = %q", gotEmail)
	}
	if decode(t, w)["message"] != "New OTP sent successfully" {
		t.Errorf("body = %s", w.Body.String())
	}

	uc.resendOTP = func(context.Context, string) error { return domain.ErrUserNotFound }
	if w := do(newAuthEngine(uc), http.MethodPost, "/auth/resend-otp", `{"email":"bob@x.com"}`); w.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", w.Code)
	}
}

// ---- VerifyOTP ----

func TestVerifyOTP_Success_SetsCookies(t *testing.T) {
	uc := &fakeAuthUsecase{
		verifyOTP: func(_ context.Context, email, code string) (*usecase.VerifyResult, error) {
			if email != "ann@x.com" || code != "123456" {
				t.Errorf("verify(%q, %q)", email, code)
			}
			return &usecase.VerifyResult{User: ann(), Tokens: token.Pair{AccessToken: "acc", RefreshToken: "ref"}}, nil
		},
	}
	w := do(newAuthEngine(uc), http.MethodPost, "/auth/verify-otp", `{"email":"ann@x.com","otp":"123456"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	body := decode(t, w)
	tokens, _ := body["tokens"].(map[string]any)
	if tokens["accessToken"] != "acc" || tokens["refreshToken"] != "ref" {
		t.Errorf("tokens = %v", tokens)
	}

	access := cookieByName(w, "accessToken")
	if access == nil || access.Value != "acc" {
		t.Fatalf("accessToken cookie = %+v", access)
	}
	if !access.HttpOnly || !access.Secure || access.SameSite != http.SameSiteNoneMode || access.Path != "/" {
		t.Errorf("accessToken cookie attributes = %+v", access)
	}
	if access.MaxAge != int((15 * time.Minute).Seconds()) {
		t.Errorf("accessToken MaxAge = %d", access.MaxAge)
	}
	refresh := cookieByName(w, "refreshToken")
	if refresh == nil || refresh.Value != "ref" || refresh.MaxAge != int((7*24*time.Hour).Seconds()) {
		t.Errorf("refreshToken cookie = %+v", refresh)
	}
}

func TestVerifyOTP_Failures(t *testing.T) {
	cases := map[string]struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		"wrong code":   {domain.ErrInvalidCode, http.StatusBadRequest, "Invalid OTP"},
		"expired":      {domain.ErrCodeExpired, http.StatusBadRequest, "OTP has expired"},
		"locked":       {domain.ErrTooManyAttempts, http.StatusTooManyRequests, "Too many attempts, request a new OTP"},
		"unknown user": {domain.ErrUserNotFound, http.StatusNotFound, "User not found"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			uc := &fakeAuthUsecase{
				verifyOTP: func(context.Context, string, string) (*usecase.VerifyResult, error) { return nil, tc.err },
			}
			w := do(newAuthEngine(uc), http.MethodPost, "/auth/verify-otp", `{"email":"ann@x.com","otp":"000000"}`)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if got := decode(t, w)["error"]; got != tc.wantMsg {
				t.Errorf("error = %v, want %q", got, tc.wantMsg)
			}
			if cookieByName(w, "accessToken") != nil {
				t.Error("cookie set on failure")
			}
		})
	}
}

func TestVerifyOTP_MissingOTP_Returns400(t *testing.T) {
	uc := &fakeAuthUsecase{}
	w := do(newAuthEngine(uc), http.MethodPost, "/auth/verify-otp", `{"email":"ann@x.com"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ---- Refresh ----

func TestRefresh_CookieTakesPrecedenceOverBody(t *testing.T) {
	var presented string
	uc := &fakeAuthUsecase{refresh: func(_ context.Context, raw string) (token.Pair, error) {
		presented = raw
		return token.Pair{AccessToken: "acc2", RefreshToken: "ref2"}, nil
	}}
	w := do(newAuthEngine(uc), http.MethodPost, "/auth/refresh", `{"refreshToken":"from-body"}`,
		&http.Cookie{Name: "refreshToken", Value: "from-cookie"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if presented != "from-cookie" {
		t.Errorf("presented = %q, want cookie value", presented)
	}
	body := decode(t, w)
	if body["message"] != "Access token refreshed successfully" || body["accessToken"] != "acc2" {
		t.Errorf("body = %v", body)
	}
	if c := cookieByName(w, "refreshToken"); c == nil || c.Value != "ref2" {
		t.Errorf("refreshToken cookie = %+v", c)
	}
}

func TestRefresh_BodyFallback(t *testing.T) {
	var presented string
	uc := &fakeAuthUsecase{refresh: func(_ context.Context, raw string) (token.Pair, error) {
		presented = raw
		return token.Pair{AccessToken: "a", RefreshToken: "r"}, nil
	}}
	w := do(newAuthEngine(uc), http.MethodPost, "/auth/refresh", `{"refreshToken":"from-body"}`)
	if w.Code != http.StatusOK || presented != "from-body" {
		t.Errorf("status = %d, presented = %q", w.Code, presented)
	}
}

func TestRefresh_Failures_Return401(t *testing.T) {
	for _, err := range []error{domain.ErrUnauthorized, domain.ErrRefreshTokenReused} {
		uc := &fakeAuthUsecase{refresh: func(context.Context, string) (token.Pair, error) { return token.Pair{}, err }}
		w := do(newAuthEngine(uc), http.MethodPost, "/auth/refresh", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%v: status = %d, want 401", err, w.Code)
		}
		if got := decode(t, w)["error"]; got != "Unauthorized" {
			t.Errorf("%v: error = %v", err, got)
		}
	}
}

// ---- SignOut ----

func TestSignOut_ClearsCookiesEvenOnFailure(t *testing.T) {
	for _, ucErr := range []error{nil, errors.New("db down")} {
		var presented string
		uc := &fakeAuthUsecase{signOut: func(_ context.Context, raw string) error {
			presented = raw
			return ucErr
		}}
		w := do(newAuthEngine(uc), http.MethodPost, "/auth/signout", "",
			&http.Cookie{Name: "refreshToken", Value: "ref"})

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if presented != "ref" {
			t.Errorf("presented = %q", presented)
		}
		for _, name := range []string{"accessToken", "refreshToken"} {
			c := cookieByName(w, name)
			if c == nil || c.MaxAge >= 0 || c.Value != "" {
				t.Errorf("%s cookie not cleared: %+v", name, c)
			}
		}
		if decode(t, w)["message"] != "Signed out successfully" {
			t.Errorf("body = %s", w.Body.String())
		}
	}
}

// ---- Me ----

func TestMe_ReturnsProfile(t *testing.T) {
	w := do(newAuthEngine(&fakeAuthUsecase{}), http.MethodGet, "/auth/me", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	user, _ := decode(t, w)["user"].(map[string]any)
	want := map[string]any{"id": "user-1", "name": "Ann", "email": "ann@x.com", "dob": "1990-01-01"}
	for k, v := range want {
		if user[k] != v {
			t.Errorf("user[%q] = %v, want %v", k, user[k], v)
		}
	}
	if len(user) != len(want) {
		t.Errorf("user has extra fields: %v", user)
	}
}

func TestMe_WithoutSession_Returns401(t *testing.T) {
	h := handler.NewAuthHandler(&fakeAuthUsecase{}, testCookies, discard)
	r := gin.New()
	r.GET("/auth/me", h.Me)

	if w := do(r, http.MethodGet, "/auth/me", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
