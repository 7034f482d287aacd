// Package http exposes the REST API: authentication, session lifecycle,
// profiles, and the follow ledger.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chirpnet/chirp/internal/domain"
	"github.com/chirpnet/chirp/internal/service"
	"github.com/chirpnet/chirp/internal/token"
	"github.com/chirpnet/chirp/internal/validation"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
	"github.com/chirpnet/chirp/pkg/httputil"
)

// AuthService is the credential surface the handlers call.
type AuthService interface {
	Register(ctx context.Context, input service.RegisterInput) (*service.RegisterResult, error)
	Login(ctx context.Context, user *domain.User) (*domain.TokenPair, error)
	OAuthGoogle(ctx context.Context, code string) (*service.OAuthResult, error)
	Refresh(ctx context.Context, oldToken string, claims *token.Claims) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyEmail(ctx context.Context, user *domain.User) (*domain.TokenPair, error)
	ResendVerifyEmail(ctx context.Context, user *domain.User) error
	ForgotPassword(ctx context.Context, user *domain.User) error
	ResetPassword(ctx context.Context, userID, newPassword string) error
	ChangePassword(ctx context.Context, userID, newPassword string) error
	GetMe(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, upd *domain.ProfileUpdate) (*domain.User, error)
}

// AuthHandler serves the authentication and profile endpoints.
type AuthHandler struct {
	svc               AuthService
	clientRedirectURL string
	logger            *slog.Logger
}

// NewAuthHandler creates the handler. clientRedirectURL is where the OAuth
// callback sends the browser with the minted tokens.
func NewAuthHandler(svc AuthService, clientRedirectURL string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, clientRedirectURL: clientRedirectURL, logger: logger}
}

type messageResponse struct {
	Message string            `json:"message"`
	Tokens  *domain.TokenPair `json:"tokens,omitempty"`
}

type registerResponse struct {
	Message string            `json:"message"`
	User    *domain.User      `json:"user"`
	Tokens  *domain.TokenPair `json:"tokens,omitempty"`
}

// Register handles POST /api/v1/users/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, r, err := requestInput(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	input := service.RegisterInput{
		Name:     bodyString(in, "name"),
		Email:    bodyString(in, "email"),
		Password: bodyString(in, "password"),
	}
	if raw := bodyString(in, "date_of_birth"); raw != "" {
		dob, err := parseDateOfBirth(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.BadRequest("date of birth must be an ISO 8601 date"), h.logger)
			return
		}
		input.DateOfBirth = &dob
	}

	result, err := h.svc.Register(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: registerResponse{
		Message: "registration successful, check your email to verify your account",
		User:    result.User,
		Tokens:  result.Tokens,
	}})
}

// Login handles POST /api/v1/users/login. The validator already resolved
// the account and checked the password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	st := validation.StateFromContext(r.Context())

	pair, err := h.svc.Login(r.Context(), st.User)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pair})
}

// OAuthGoogle handles GET /api/v1/users/oauth/google: the provider callback.
// Tokens travel to the client as redirect query parameters.
func (h *AuthHandler) OAuthGoogle(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.OAuthGoogle(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	target, err := url.Parse(h.clientRedirectURL)
	if err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}

	q := target.Query()
	q.Set("access_token", result.Tokens.AccessToken)
	q.Set("refresh_token", result.Tokens.RefreshToken)
	q.Set("new_user", boolFlag(result.NewUser))
	q.Set("verify", strconv.Itoa(int(result.VerifyStatus)))
	target.RawQuery = q.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// RefreshToken handles POST /api/v1/users/refresh-token. The validator
// verified the token and confirmed the session is live.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	in, r, err := requestInput(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	st := validation.StateFromContext(r.Context())

	pair, err := h.svc.Refresh(r.Context(), bodyString(in, "refresh_token"), st.RefreshClaims)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pair})
}

// Logout handles POST /api/v1/users/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	in, r, err := requestInput(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.svc.Logout(r.Context(), bodyString(in, "refresh_token")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "logout successful"}})
}

// VerifyEmail handles POST /api/v1/users/verify-email. Redeeming a token
// for an already-verified account reports success without mutating anything.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	st := validation.StateFromContext(r.Context())

	if st.User.EmailVerifyToken == "" {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "email already verified"}})
		return
	}

	tokens, err := h.svc.VerifyEmail(r.Context(), st.User)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{
		Message: "email verified",
		Tokens:  tokens,
	}})
}

// ResendVerifyEmail handles POST /api/v1/users/resend-verify-email.
func (h *AuthHandler) ResendVerifyEmail(w http.ResponseWriter, r *http.Request) {
	st := validation.StateFromContext(r.Context())

	user, err := h.svc.GetMe(r.Context(), st.AccessClaims.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if user.IsVerified() {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "email already verified"}})
		return
	}

	if err := h.svc.ResendVerifyEmail(r.Context(), user); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "verification email sent"}})
}

// ForgotPassword handles POST /api/v1/users/forgot-password.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	st := validation.StateFromContext(r.Context())

	if err := h.svc.ForgotPassword(r.Context(), st.User); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{
		Message: "check your email to reset your password",
	}})
}

// VerifyForgotPassword handles POST /api/v1/users/verify-forgot-password.
// The validator did all the work; the endpoint exists so the client can
// check a reset link before showing the new-password form.
func (h *AuthHandler) VerifyForgotPassword(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{
		Message: "forgot password token is valid",
	}})
}

// ResetPassword handles POST /api/v1/users/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	in, r, err := requestInput(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	st := validation.StateFromContext(r.Context())

	if err := h.svc.ResetPassword(r.Context(), st.ForgotPasswordClaims.UserID, bodyString(in, "password")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "password reset successful"}})
}

// ChangePassword handles PUT /api/v1/users/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	in, r, err := requestInput(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	st := validation.StateFromContext(r.Context())

	if err := h.svc.ChangePassword(r.Context(), st.AccessClaims.UserID, bodyString(in, "new_password")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: messageResponse{Message: "password changed"}})
}

// GetMe handles GET /api/v1/users/me.
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	st := validation.StateFromContext(r.Context())

	user, err := h.svc.GetMe(r.Context(), st.AccessClaims.UserID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// GetByUsername handles GET /api/v1/users/{username}. Public.
func (h *AuthHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// UpdateProfile handles PATCH /api/v1/users/me.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	in, r, err := requestInput(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	st := validation.StateFromContext(r.Context())

	upd := &domain.ProfileUpdate{
		Name:          bodyStringPtr(in, "name"),
		Bio:           bodyStringPtr(in, "bio"),
		Location:      bodyStringPtr(in, "location"),
		Website:       bodyStringPtr(in, "website"),
		Username:      bodyStringPtr(in, "username"),
		AvatarURL:     bodyStringPtr(in, "avatar_url"),
		CoverPhotoURL: bodyStringPtr(in, "cover_photo_url"),
	}
	if raw := bodyString(in, "date_of_birth"); raw != "" {
		dob, err := parseDateOfBirth(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.BadRequest("date of birth must be an ISO 8601 date"), h.logger)
			return
		}
		upd.DateOfBirth = &dob
	}

	user, err := h.svc.UpdateProfile(r.Context(), st.AccessClaims.UserID, upd)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// parseDateOfBirth accepts a full RFC 3339 timestamp or a bare date.
func parseDateOfBirth(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func bodyString(in *validation.Input, key string) string {
	if in.Body == nil {
		return ""
	}
	s, _ := in.Body[key].(string)
	return s
}

func bodyStringPtr(in *validation.Input, key string) *string {
	if in.Body == nil {
		return nil
	}
	if s, ok := in.Body[key].(string); ok {
		return &s
	}
	return nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
