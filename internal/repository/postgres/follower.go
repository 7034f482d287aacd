package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chirpnet/chirp/internal/domain"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

// FollowerRepository implements repository.FollowerRepository on PostgreSQL.
type FollowerRepository struct {
	db DB
}

// NewFollowerRepository creates a PostgreSQL-backed follower repository.
func NewFollowerRepository(db DB) *FollowerRepository {
	return &FollowerRepository{db: db}
}

// Create inserts a follow edge.
func (r *FollowerRepository) Create(ctx context.Context, f *domain.Follower) error {
	query := `
		INSERT INTO followers (id, user_id, followed_user_id, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, f.ID, f.UserID, f.FollowedUserID, f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("follower", "pair", f.UserID+"/"+f.FollowedUserID)
		}
		return fmt.Errorf("insert follower: %w", err)
	}

	return nil
}

// Get retrieves the edge where userID follows followedUserID.
func (r *FollowerRepository) Get(ctx context.Context, userID, followedUserID string) (*domain.Follower, error) {
	query := `
		SELECT id, user_id, followed_user_id, created_at
		FROM followers
		WHERE user_id = $1 AND followed_user_id = $2`

	var f domain.Follower
	err := r.db.QueryRow(ctx, query, userID, followedUserID).Scan(
		&f.ID,
		&f.UserID,
		&f.FollowedUserID,
		&f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan follower: %w", err)
	}

	return &f, nil
}

// Delete removes the edge where userID follows followedUserID.
func (r *FollowerRepository) Delete(ctx context.Context, userID, followedUserID string) error {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM followers WHERE user_id = $1 AND followed_user_id = $2`,
		userID, followedUserID,
	)
	if err != nil {
		return fmt.Errorf("delete follower: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
