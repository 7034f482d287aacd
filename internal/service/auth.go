// Package service implements the business logic behind the API handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/chirpnet/chirp/internal/domain"
	"github.com/chirpnet/chirp/internal/oauth"
	"github.com/chirpnet/chirp/internal/repository"
	"github.com/chirpnet/chirp/internal/token"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

// bcryptCost is the cost factor for password hashing.
const bcryptCost = 12

// EventPublisher is the outbound event surface the services need. The Kafka
// producer in internal/event satisfies it.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishVerifyEmailRequested(ctx context.Context, user *domain.User) error
	PublishPasswordResetRequested(ctx context.Context, user *domain.User) error
	PublishUserFollowed(ctx context.Context, userID, followedUserID string) error
}

// GoogleProvider is the Google OAuth surface. internal/oauth.GoogleClient
// satisfies it.
type GoogleProvider interface {
	ExchangeCode(ctx context.Context, code string) (*oauth.GoogleTokens, error)
	FetchUser(ctx context.Context, accessToken string) (*oauth.GoogleUser, error)
}

// AuthConfig carries the session-issuance policy flags.
type AuthConfig struct {
	// IssueSessionOnRegister mints a token pair as part of registration.
	IssueSessionOnRegister bool
	// IssueSessionOnVerify mints a token pair when an email is verified.
	IssueSessionOnVerify bool
}

// AuthService implements registration, login, session lifecycle, and
// profile operations.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	profiles repository.ProfileCache
	codec    *token.Codec
	google   GoogleProvider
	producer EventPublisher
	cfg      AuthConfig
	logger   *slog.Logger
}

// NewAuthService creates the credential service.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	profiles repository.ProfileCache,
	codec *token.Codec,
	google GoogleProvider,
	producer EventPublisher,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		profiles: profiles,
		codec:    codec,
		google:   google,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	DateOfBirth *time.Time
}

// RegisterResult is what registration hands back to the API layer. Tokens is
// nil unless session issuance on registration is enabled.
type RegisterResult struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

// Register creates an unverified account with a generated username and a
// pending email-verification token, and announces it for email delivery.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.New().String()
	verifyToken, err := s.codec.Issue(id, token.PurposeEmailVerify, domain.VerifyStatusUnverified)
	if err != nil {
		return nil, fmt.Errorf("issue verify token: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:               id,
		Name:             input.Name,
		Email:            input.Email,
		Username:         generatedUsername(id),
		PasswordHash:     string(hash),
		DateOfBirth:      input.DateOfBirth,
		VerifyStatus:     domain.VerifyStatusUnverified,
		EmailVerifyToken: verifyToken,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	result := &RegisterResult{User: user}
	if s.cfg.IssueSessionOnRegister {
		tokens, err := s.issueSession(ctx, user)
		if err != nil {
			return nil, err
		}
		result.Tokens = tokens
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
	)
	return result, nil
}

// Login mints a token pair for a user whose credentials the validation
// pipeline already checked. Unverified accounts cannot log in.
func (s *AuthService) Login(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	if user.IsBanned() {
		return nil, apperrors.Forbidden("account is banned")
	}
	if !user.IsVerified() {
		return nil, apperrors.Unauthorized("email is not verified")
	}

	tokens, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)
	return tokens, nil
}

// OAuthResult is the outcome of a Google sign-in, consumed by the redirect
// boundary.
type OAuthResult struct {
	Tokens       *domain.TokenPair
	NewUser      bool
	Name         string
	VerifyStatus domain.VerifyStatus
}

// OAuthGoogle signs a user in via a Google authorization code. Unknown
// emails become fresh unverified accounts with a random password; known
// emails get a session without the verified-login gate.
func (s *AuthService) OAuthGoogle(ctx context.Context, code string) (*OAuthResult, error) {
	tokens, err := s.google.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := s.google.FetchUser(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if !profile.VerifiedEmail {
		return nil, apperrors.BadRequest("google account email is not verified")
	}

	user, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if user.IsBanned() {
			return nil, apperrors.Forbidden("account is banned")
		}
		pair, err := s.issueSession(ctx, user)
		if err != nil {
			return nil, err
		}

		s.logger.InfoContext(ctx, "oauth login",
			slog.String("user_id", user.ID),
		)
		return &OAuthResult{Tokens: pair, Name: user.Name, VerifyStatus: user.VerifyStatus}, nil

	case errors.Is(err, apperrors.ErrNotFound):
		reg, err := s.Register(ctx, RegisterInput{
			Name:     profile.Name,
			Email:    profile.Email,
			Password: uuid.New().String() + "#Aa1", // never used; satisfies the policy
		})
		if err != nil {
			return nil, err
		}

		pair, err := s.issueSession(ctx, reg.User)
		if err != nil {
			return nil, err
		}

		s.logger.InfoContext(ctx, "oauth registration",
			slog.String("user_id", reg.User.ID),
		)
		return &OAuthResult{Tokens: pair, NewUser: true, Name: reg.User.Name, VerifyStatus: reg.User.VerifyStatus}, nil

	default:
		return nil, fmt.Errorf("lookup oauth user: %w", err)
	}
}

// Refresh rotates a session: the old session dies first, then a new pair is
// minted with the refresh token keeping the original expiry. The delete is
// the rotation's point of no return: when two requests race on the same
// token, only the one that deletes the row mints a pair, so one rotation
// step never leaves two live tokens. If the insert fails after the delete,
// the session is gone and the user logs in again.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, claims *token.Claims) (*domain.TokenPair, error) {
	if err := s.sessions.DeleteByTokenHash(ctx, token.Hash(oldToken)); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// A concurrent refresh already rotated this token away.
			return nil, apperrors.SessionRevoked("refresh token has been used or revoked")
		}
		return nil, apperrors.Internal(fmt.Errorf("delete rotated session: %w", err))
	}

	access, err := s.codec.Issue(claims.UserID, token.PurposeAccess, claims.VerifyStatus)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	expiresAt := claims.ExpiresAt.Time
	refresh, err := s.codec.IssueWithExpiry(claims.UserID, token.PurposeRefresh, claims.VerifyStatus, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    claims.UserID,
		TokenHash: token.Hash(refresh),
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("store rotated session: %w", err)
	}

	s.logger.InfoContext(ctx, "session rotated",
		slog.String("user_id", claims.UserID),
	)
	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes the session for a refresh token. Revoking an already-gone
// session is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	err := s.sessions.DeleteByTokenHash(ctx, token.Hash(refreshToken))
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// VerifyEmail marks the account verified and clears the pending token. The
// returned pair is nil unless session issuance on verify is enabled. Callers
// short-circuit accounts that are already verified.
func (s *AuthService) VerifyEmail(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	user.VerifyStatus = domain.VerifyStatusVerified
	user.EmailVerifyToken = ""

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("mark user verified: %w", err)
	}
	s.invalidateProfile(ctx, user.Username)

	var tokens *domain.TokenPair
	if s.cfg.IssueSessionOnVerify {
		pair, err := s.issueSession(ctx, user)
		if err != nil {
			return nil, err
		}
		tokens = pair
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("user_id", user.ID),
	)
	return tokens, nil
}

// ResendVerifyEmail mints a fresh verification token and announces it.
func (s *AuthService) ResendVerifyEmail(ctx context.Context, user *domain.User) error {
	verifyToken, err := s.codec.Issue(user.ID, token.PurposeEmailVerify, user.VerifyStatus)
	if err != nil {
		return fmt.Errorf("issue verify token: %w", err)
	}

	user.EmailVerifyToken = verifyToken
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("store verify token: %w", err)
	}

	if err := s.producer.PublishVerifyEmailRequested(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish verify_email_requested event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ForgotPassword persists a reset token on the account and announces it.
// The token reaches the user by email, never in the API response.
func (s *AuthService) ForgotPassword(ctx context.Context, user *domain.User) error {
	resetToken, err := s.codec.Issue(user.ID, token.PurposeForgotPassword, user.VerifyStatus)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	user.ForgotPasswordToken = resetToken
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	if err := s.producer.PublishPasswordResetRequested(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password_reset_requested event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
	)
	return nil
}

// ResetPassword stores a new hash, clears the reset token, and revokes every
// live session for the account.
func (s *AuthService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for password reset: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hash)
	user.ForgotPasswordToken = ""
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.sessions.DeleteByUserID(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after password reset",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset",
		slog.String("user_id", user.ID),
	)
	return nil
}

// ChangePassword stores a new hash for an authenticated user. The
// old-password check happens in the validation pipeline.
func (s *AuthService) ChangePassword(ctx context.Context, userID, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user for password change: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)
	return nil
}

// GetMe returns the authenticated user's own account.
func (s *AuthService) GetMe(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByUsername returns a public profile, served from the cache when warm.
func (s *AuthService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if cached, err := s.profiles.Get(ctx, username); err == nil {
		return cached, nil
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", username)
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	if err := s.profiles.Set(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "failed to cache profile",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
	return user, nil
}

// UpdateProfile applies a partial profile update and drops stale cache
// entries for both the old and (possibly changed) new username.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, upd *domain.ProfileUpdate) (*domain.User, error) {
	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, fmt.Errorf("get user for profile update: %w", err)
	}

	updated, err := s.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return nil, err
	}

	s.invalidateProfile(ctx, current.Username)
	if updated.Username != current.Username {
		s.invalidateProfile(ctx, updated.Username)
	}

	s.logger.InfoContext(ctx, "profile updated",
		slog.String("user_id", userID),
	)
	return updated, nil
}

// issueSession mints a token pair and persists the refresh side as a
// session keyed by the token digest.
func (s *AuthService) issueSession(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, err := s.codec.Issue(user.ID, token.PurposeAccess, user.VerifyStatus)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.codec.Issue(user.ID, token.PurposeRefresh, user.VerifyStatus)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: token.Hash(refresh),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.codec.TTL(token.PurposeRefresh)),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) invalidateProfile(ctx context.Context, username string) {
	if err := s.profiles.Invalidate(ctx, username); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate cached profile",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
}

// generatedUsername builds the placeholder handle new accounts start with.
func generatedUsername(id string) string {
	return "user" + strings.ReplaceAll(id, "-", "")
}
