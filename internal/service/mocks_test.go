package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/chirpnet/chirp/internal/domain"
	"github.com/chirpnet/chirp/internal/oauth"
)

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
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
	args := m.Called(ctx, user)
	return args.Error(0)
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
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	args := m.Called(ctx, tokenHash)
	if session := args.Get(0); session != nil {
		return session.(*domain.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockSessionRepository) DeleteByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockFollowerRepository struct {
	mock.Mock
}

func (m *mockFollowerRepository) Create(ctx context.Context, follower *domain.Follower) error {
	args := m.Called(ctx, follower)
	return args.Error(0)
}

func (m *mockFollowerRepository) Get(ctx context.Context, userID, followedUserID string) (*domain.Follower, error) {
	args := m.Called(ctx, userID, followedUserID)
	if follower := args.Get(0); follower != nil {
		return follower.(*domain.Follower), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFollowerRepository) Delete(ctx context.Context, userID, followedUserID string) error {
	args := m.Called(ctx, userID, followedUserID)
	return args.Error(0)
}

type mockProfileCache struct {
	mock.Mock
}

func (m *mockProfileCache) Get(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if user := args.Get(0); user != nil {
		return user.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProfileCache) Set(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockProfileCache) Invalidate(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishVerifyEmailRequested(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishPasswordResetRequested(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishUserFollowed(ctx context.Context, userID, followedUserID string) error {
	args := m.Called(ctx, userID, followedUserID)
	return args.Error(0)
}

type mockGoogleProvider struct {
	mock.Mock
}

func (m *mockGoogleProvider) ExchangeCode(ctx context.Context, code string) (*oauth.GoogleTokens, error) {
	args := m.Called(ctx, code)
	if tokens := args.Get(0); tokens != nil {
		return tokens.(*oauth.GoogleTokens), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGoogleProvider) FetchUser(ctx context.Context, accessToken string) (*oauth.GoogleUser, error) {
	args := m.Called(ctx, accessToken)
	if user := args.Get(0); user != nil {
		return user.(*oauth.GoogleUser), args.Error(1)
	}
	return nil, args.Error(1)
}
