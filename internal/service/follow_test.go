package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chirpnet/chirp/internal/domain"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

const (
	followerID = "b7f9d9a0-0000-4000-8000-000000000001"
	followedID = "b7f9d9a0-0000-4000-8000-000000000002"
)

func newFollowFixture() (*mockFollowerRepository, *mockEventPublisher, *FollowService) {
	followers := new(mockFollowerRepository)
	producer := new(mockEventPublisher)
	svc := NewFollowService(followers, producer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return followers, producer, svc
}

func TestFollow(t *testing.T) {
	followers, producer, svc := newFollowFixture()
	ctx := context.Background()

	var edge *domain.Follower
	followers.On("Get", ctx, followerID, followedID).Return(nil, apperrors.ErrNotFound)
	followers.On("Create", ctx, mock.AnythingOfType("*domain.Follower")).
		Run(func(args mock.Arguments) { edge = args.Get(1).(*domain.Follower) }).
		Return(nil)
	producer.On("PublishUserFollowed", ctx, followerID, followedID).Return(nil)

	already, err := svc.Follow(ctx, followerID, followedID)
	require.NoError(t, err)
	require.NotNil(t, edge)

	assert.False(t, already)
	assert.Equal(t, followerID, edge.UserID)
	assert.Equal(t, followedID, edge.FollowedUserID)
	producer.AssertExpectations(t)
}

func TestFollowAlreadyFollowing(t *testing.T) {
	followers, producer, svc := newFollowFixture()
	ctx := context.Background()

	followers.On("Get", ctx, followerID, followedID).
		Return(&domain.Follower{UserID: followerID, FollowedUserID: followedID}, nil)

	already, err := svc.Follow(ctx, followerID, followedID)
	require.NoError(t, err)

	assert.True(t, already)
	followers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	producer.AssertNotCalled(t, "PublishUserFollowed", mock.Anything, mock.Anything, mock.Anything)
}

func TestFollowLosesInsertRace(t *testing.T) {
	followers, producer, svc := newFollowFixture()
	ctx := context.Background()

	followers.On("Get", ctx, followerID, followedID).Return(nil, apperrors.ErrNotFound)
	followers.On("Create", ctx, mock.AnythingOfType("*domain.Follower")).
		Return(apperrors.AlreadyExists("follower", "edge", followerID))

	already, err := svc.Follow(ctx, followerID, followedID)
	require.NoError(t, err)

	assert.True(t, already)
	producer.AssertNotCalled(t, "PublishUserFollowed", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnfollow(t *testing.T) {
	followers, _, svc := newFollowFixture()
	ctx := context.Background()

	followers.On("Delete", ctx, followerID, followedID).Return(nil)

	wasAbsent, err := svc.Unfollow(ctx, followerID, followedID)
	require.NoError(t, err)
	assert.False(t, wasAbsent)
}

func TestUnfollowNotFollowing(t *testing.T) {
	followers, _, svc := newFollowFixture()
	ctx := context.Background()

	followers.On("Delete", ctx, followerID, followedID).
		Return(apperrors.NotFound("follower", followerID))

	wasAbsent, err := svc.Unfollow(ctx, followerID, followedID)
	require.NoError(t, err)
	assert.True(t, wasAbsent)
}
