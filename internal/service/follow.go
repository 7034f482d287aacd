package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chirpnet/chirp/internal/domain"
	"github.com/chirpnet/chirp/internal/repository"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

// FollowService maintains the follow ledger.
type FollowService struct {
	followers repository.FollowerRepository
	producer  EventPublisher
	logger    *slog.Logger
}

// NewFollowService creates the follow service.
func NewFollowService(followers repository.FollowerRepository, producer EventPublisher, logger *slog.Logger) *FollowService {
	return &FollowService{followers: followers, producer: producer, logger: logger}
}

// Follow records a follow edge. Following someone twice is not an error;
// the boolean reports whether the edge already existed.
func (s *FollowService) Follow(ctx context.Context, userID, followedUserID string) (bool, error) {
	if _, err := s.followers.Get(ctx, userID, followedUserID); err == nil {
		return true, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return false, fmt.Errorf("check follow edge: %w", err)
	}

	edge := &domain.Follower{
		ID:             uuid.New().String(),
		UserID:         userID,
		FollowedUserID: followedUserID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.followers.Create(ctx, edge); err != nil {
		// A concurrent request won the race; same outcome as already following.
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return true, nil
		}
		return false, fmt.Errorf("create follow edge: %w", err)
	}

	if err := s.producer.PublishUserFollowed(ctx, userID, followedUserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.followed event",
			slog.String("user_id", userID),
			slog.String("followed_user_id", followedUserID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user followed",
		slog.String("user_id", userID),
		slog.String("followed_user_id", followedUserID),
	)
	return false, nil
}

// Unfollow removes a follow edge. Unfollowing someone you do not follow is
// not an error; the boolean reports whether there was no edge to remove.
func (s *FollowService) Unfollow(ctx context.Context, userID, followedUserID string) (bool, error) {
	if err := s.followers.Delete(ctx, userID, followedUserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("delete follow edge: %w", err)
	}

	s.logger.InfoContext(ctx, "user unfollowed",
		slog.String("user_id", userID),
		slog.String("followed_user_id", followedUserID),
	)
	return false, nil
}
