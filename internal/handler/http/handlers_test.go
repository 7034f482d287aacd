package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chirpnet/chirp/internal/domain"
	"github.com/chirpnet/chirp/internal/service"
	"github.com/chirpnet/chirp/internal/token"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
	"github.com/chirpnet/chirp/pkg/health"
	pkgmiddleware "github.com/chirpnet/chirp/pkg/middleware"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if user := args.Get(0); user != nil {
		return user.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if user := args.Get(0); user != nil {
		return user.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if user := args.Get(0); user != nil {
		return user.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) UpdateProfile(ctx context.Context, id string, upd *domain.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, id, upd)
	if user := args.Get(0); user != nil {
		return user.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	args := m.Called(ctx, tokenHash)
	if session := args.Get(0); session != nil {
		return session.(*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *mockSessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Register(ctx context.Context, input service.RegisterInput) (*service.RegisterResult, error) {
	args := m.Called(ctx, input)
	if result := args.Get(0); result != nil {
		return result.(*service.RegisterResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	args := m.Called(ctx, user)
	if pair := args.Get(0); pair != nil {
		return pair.(*domain.TokenPair), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) OAuthGoogle(ctx context.Context, code string) (*service.OAuthResult, error) {
	args := m.Called(ctx, code)
	if result := args.Get(0); result != nil {
		return result.(*service.OAuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) Refresh(ctx context.Context, oldToken string, claims *token.Claims) (*domain.TokenPair, error) {
	args := m.Called(ctx, oldToken, claims)
	if pair := args.Get(0); pair != nil {
		return pair.(*domain.TokenPair), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockAuthService) VerifyEmail(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	args := m.Called(ctx, user)
	if pair := args.Get(0); pair != nil {
		return pair.(*domain.TokenPair), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) ResendVerifyEmail(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockAuthService) ForgotPassword(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	return m.Called(ctx, userID, newPassword).Error(0)
}

func (m *mockAuthService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	return m.Called(ctx, userID, newPassword).Error(0)
}

func (m *mockAuthService) GetMe(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if user := args.Get(0); user != nil {
		return user.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if user := args.Get(0); user != nil {
		return user.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) UpdateProfile(ctx context.Context, userID string, upd *domain.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, userID, upd)
	if user := args.Get(0); user != nil {
		return user.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockFollowService struct {
	mock.Mock
}

func (m *mockFollowService) Follow(ctx context.Context, userID, followedUserID string) (bool, error) {
	args := m.Called(ctx, userID, followedUserID)
	return args.Bool(0), args.Error(1)
}

func (m *mockFollowService) Unfollow(ctx context.Context, userID, followedUserID string) (bool, error) {
	args := m.Called(ctx, userID, followedUserID)
	return args.Bool(0), args.Error(1)
}

type routerFixture struct {
	users    *mockUserRepository
	sessions *mockSessionRepository
	auth     *mockAuthService
	follow   *mockFollowService
	codec    *token.Codec
	router   http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	codec, err := token.NewCodec(token.Config{
		Issuer:               "chirp-test",
		AccessSecret:         "access-secret",
		RefreshSecret:        "refresh-secret",
		EmailVerifySecret:    "email-verify-secret",
		ForgotPasswordSecret: "forgot-password-secret",
		AccessTTL:            15 * time.Minute,
		RefreshTTL:           24 * time.Hour,
		EmailVerifyTTL:       24 * time.Hour,
		ForgotPasswordTTL:    24 * time.Hour,
	})
	require.NoError(t, err)

	f := &routerFixture{
		users:    new(mockUserRepository),
		sessions: new(mockSessionRepository),
		auth:     new(mockAuthService),
		follow:   new(mockFollowService),
		codec:    codec,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.router = NewRouter(RouterConfig{
		Auth:       NewAuthHandler(f.auth, "https://app.example.com/oauth/callback", logger),
		Follow:     NewFollowHandler(f.follow, logger),
		Validators: NewValidators(f.users, f.sessions, codec),
		Health:     health.NewHandler(),
		CORS:       pkgmiddleware.DefaultCORSConfig(),
		Logger:     logger,
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, body, accessToken string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func errorField(t *testing.T, rec *httptest.ResponseRecorder, key string) any {
	t.Helper()
	envelope := decodeEnvelope(t, rec)
	errObj, ok := envelope["error"].(map[string]any)
	require.True(t, ok, "response has no error object: %s", rec.Body.String())
	return errObj[key]
}

func TestRegisterEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	f.users.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(nil, apperrors.ErrNotFound)
	f.auth.On("Register", mock.Anything, mock.AnythingOfType("service.RegisterInput")).
		Return(&service.RegisterResult{User: &domain.User{ID: "id-1", Email: "ada@example.com"}}, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/users/register", `{
		"name": "Ada Lovelace",
		"email": "ada@example.com",
		"password": "Sup3r$ecret",
		"confirm_password": "Sup3r$ecret"
	}`, "")

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRegisterEndpointDateOnlyBirthDate(t *testing.T) {
	f := newRouterFixture(t)

	f.users.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(nil, apperrors.ErrNotFound)

	var input service.RegisterInput
	f.auth.On("Register", mock.Anything, mock.AnythingOfType("service.RegisterInput")).
		Run(func(args mock.Arguments) { input = args.Get(1).(service.RegisterInput) }).
		Return(&service.RegisterResult{User: &domain.User{ID: "id-1", Email: "ada@example.com"}}, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/users/register", `{
		"name": "Ada Lovelace",
		"email": "ada@example.com",
		"password": "Sup3r$ecret",
		"confirm_password": "Sup3r$ecret",
		"date_of_birth": "2000-01-01"
	}`, "")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, input.DateOfBirth)
	assert.Equal(t, time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC), input.DateOfBirth.UTC())
}

func TestRegisterEndpointAggregatesFieldErrors(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/users/register", `{
		"name": "Ada Lovelace",
		"email": "not-an-email",
		"password": "weak",
		"confirm_password": "weak"
	}`, "")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "VALIDATION_ERROR", errorField(t, rec, "code"))

	fields, ok := errorField(t, rec, "fields").(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	f.auth.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
}

func TestLoginEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("Sup3r$ecret"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{
		ID:           "id-1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		VerifyStatus: domain.VerifyStatusVerified,
	}

	f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
	f.auth.On("Login", mock.Anything, user).
		Return(&domain.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/users/login", `{
		"email": "ada@example.com",
		"password": "Sup3r$ecret"
	}`, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "access", data["access_token"])
	assert.Equal(t, "refresh", data["refresh_token"])
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	f := newRouterFixture(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("Sup3r$ecret"), bcrypt.MinCost)
	require.NoError(t, err)
	f.users.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(&domain.User{ID: "id-1", PasswordHash: string(hash)}, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/users/login", `{
		"email": "ada@example.com",
		"password": "wrong-password"
	}`, "")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	fields := errorField(t, rec, "fields").(map[string]any)
	assert.Contains(t, fields, "password")
	f.auth.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestGetMeRequiresAccessToken(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/users/me", "", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorField(t, rec, "code"))
}

func TestGetMeRejectsNonBearerAuthorization(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Basic YWRhOmxvdmVsYWNl")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorField(t, rec, "code"))
}

func TestGetMe(t *testing.T) {
	f := newRouterFixture(t)

	access, err := f.codec.Issue("id-1", token.PurposeAccess, domain.VerifyStatusVerified)
	require.NoError(t, err)
	f.auth.On("GetMe", mock.Anything, "id-1").
		Return(&domain.User{ID: "id-1", Username: "adalovelace"}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/users/me", "", access)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "adalovelace", data["username"])
}

func TestRefreshTokenRevoked(t *testing.T) {
	f := newRouterFixture(t)

	refresh, err := f.codec.Issue("id-1", token.PurposeRefresh, domain.VerifyStatusVerified)
	require.NoError(t, err)
	f.sessions.On("GetByTokenHash", mock.Anything, token.Hash(refresh)).
		Return(nil, apperrors.ErrNotFound)

	rec := f.do(t, http.MethodPost, "/api/v1/users/refresh-token",
		`{"refresh_token": "`+refresh+`"}`, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	assert.Equal(t, "SESSION_REVOKED", errorField(t, rec, "code"))
	f.auth.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshToken(t *testing.T) {
	f := newRouterFixture(t)

	refresh, err := f.codec.Issue("id-1", token.PurposeRefresh, domain.VerifyStatusVerified)
	require.NoError(t, err)
	f.sessions.On("GetByTokenHash", mock.Anything, token.Hash(refresh)).
		Return(&domain.Session{ID: "s-1", UserID: "id-1", TokenHash: token.Hash(refresh)}, nil)
	f.auth.On("Refresh", mock.Anything, refresh, mock.AnythingOfType("*token.Claims")).
		Return(&domain.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/users/refresh-token",
		`{"refresh_token": "`+refresh+`"}`, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "new-refresh", data["refresh_token"])
}

func TestFollowRequiresVerifiedAccount(t *testing.T) {
	f := newRouterFixture(t)

	access, err := f.codec.Issue("id-1", token.PurposeAccess, domain.VerifyStatusUnverified)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/users/follow",
		`{"followed_user_id": "b7f9d9a0-0000-4000-8000-000000000002"}`, access)

	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	f.follow.AssertNotCalled(t, "Follow", mock.Anything, mock.Anything, mock.Anything)
}

func TestFollowRejectsSelf(t *testing.T) {
	f := newRouterFixture(t)
	const self = "b7f9d9a0-0000-4000-8000-000000000001"

	access, err := f.codec.Issue(self, token.PurposeAccess, domain.VerifyStatusVerified)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/users/follow",
		`{"followed_user_id": "`+self+`"}`, access)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	fields := errorField(t, rec, "fields").(map[string]any)
	assert.Contains(t, fields, "followed_user_id")
}

func TestFollow(t *testing.T) {
	f := newRouterFixture(t)
	const target = "b7f9d9a0-0000-4000-8000-000000000002"

	access, err := f.codec.Issue("id-1", token.PurposeAccess, domain.VerifyStatusVerified)
	require.NoError(t, err)
	f.users.On("GetByID", mock.Anything, target).
		Return(&domain.User{ID: target}, nil)
	f.follow.On("Follow", mock.Anything, "id-1", target).Return(false, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/users/follow",
		`{"followed_user_id": "`+target+`"}`, access)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "followed", data["message"])
}

func TestUnfollow(t *testing.T) {
	f := newRouterFixture(t)
	const target = "b7f9d9a0-0000-4000-8000-000000000002"

	access, err := f.codec.Issue("id-1", token.PurposeAccess, domain.VerifyStatusVerified)
	require.NoError(t, err)
	f.users.On("GetByID", mock.Anything, target).
		Return(&domain.User{ID: target}, nil)
	f.follow.On("Unfollow", mock.Anything, "id-1", target).Return(true, nil)

	rec := f.do(t, http.MethodDelete, "/api/v1/users/follow/"+target, "", access)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "already unfollowed", data["message"])
}

func TestFollowUnknownTarget(t *testing.T) {
	f := newRouterFixture(t)
	const target = "b7f9d9a0-0000-4000-8000-000000000003"

	access, err := f.codec.Issue("id-1", token.PurposeAccess, domain.VerifyStatusVerified)
	require.NoError(t, err)
	f.users.On("GetByID", mock.Anything, target).
		Return(nil, apperrors.ErrNotFound)

	rec := f.do(t, http.MethodPost, "/api/v1/users/follow",
		`{"followed_user_id": "`+target+`"}`, access)

	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "NOT_FOUND", errorField(t, rec, "code"))
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	f := newRouterFixture(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("Sup3r$ecret"), bcrypt.MinCost)
	require.NoError(t, err)
	access, err := f.codec.Issue("id-1", token.PurposeAccess, domain.VerifyStatusVerified)
	require.NoError(t, err)
	f.users.On("GetByID", mock.Anything, "id-1").
		Return(&domain.User{ID: "id-1", PasswordHash: string(hash)}, nil)

	rec := f.do(t, http.MethodPut, "/api/v1/users/change-password", `{
		"old_password": "not-the-password",
		"new_password": "N3w$ecret!",
		"confirm_new_password": "N3w$ecret!"
	}`, access)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	fields := errorField(t, rec, "fields").(map[string]any)
	assert.Contains(t, fields, "old_password")
	f.auth.AssertNotCalled(t, "ChangePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword(t *testing.T) {
	f := newRouterFixture(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("Sup3r$ecret"), bcrypt.MinCost)
	require.NoError(t, err)
	access, err := f.codec.Issue("id-1", token.PurposeAccess, domain.VerifyStatusVerified)
	require.NoError(t, err)
	f.users.On("GetByID", mock.Anything, "id-1").
		Return(&domain.User{ID: "id-1", PasswordHash: string(hash)}, nil)
	f.auth.On("ChangePassword", mock.Anything, "id-1", "N3w$ecret!").Return(nil)

	rec := f.do(t, http.MethodPut, "/api/v1/users/change-password", `{
		"old_password": "Sup3r$ecret",
		"new_password": "N3w$ecret!",
		"confirm_new_password": "N3w$ecret!"
	}`, access)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f.auth.AssertExpectations(t)
}

func TestGetByUsernamePublic(t *testing.T) {
	f := newRouterFixture(t)

	f.auth.On("GetByUsername", mock.Anything, "adalovelace").
		Return(&domain.User{ID: "id-1", Username: "adalovelace"}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/users/adalovelace", "", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestOAuthGoogleRedirect(t *testing.T) {
	f := newRouterFixture(t)

	f.auth.On("OAuthGoogle", mock.Anything, "auth-code").Return(&service.OAuthResult{
		Tokens:       &domain.TokenPair{AccessToken: "a", RefreshToken: "r"},
		NewUser:      true,
		Name:         "Ada",
		VerifyStatus: domain.VerifyStatusUnverified,
	}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/users/oauth/google?code=auth-code", "", "")

	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	location, err := rec.Result().Location()
	require.NoError(t, err)

	q := location.Query()
	assert.Equal(t, "a", q.Get("access_token"))
	assert.Equal(t, "1", q.Get("new_user"))
	assert.Equal(t, "0", q.Get("verify"))
}

func TestOAuthGoogleMissingCode(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/users/oauth/google", "", "")

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "BAD_REQUEST", errorField(t, rec, "code"))
	f.auth.AssertNotCalled(t, "OAuthGoogle", mock.Anything, mock.Anything)
}

func TestHealthLive(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
