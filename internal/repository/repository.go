// Package repository defines the persistence interfaces consumed by the
// service layer. Implementations live in the postgres and redis
// subpackages.
package repository

import (
	"context"
	"time"

	"github.com/chirpnet/chirp/internal/domain"
)

// UserRepository persists user accounts.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// Update writes back every mutable column of the user.
	Update(ctx context.Context, user *domain.User) error

	// UpdateProfile applies the non-nil fields of upd and returns the
	// updated row.
	UpdateProfile(ctx context.Context, id string, upd *domain.ProfileUpdate) (*domain.User, error)
}

// SessionRepository persists refresh-token sessions. Only token digests are
// stored; deleting a row revokes the session.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *domain.Session) error

	// GetByTokenHash retrieves a session by its token digest.
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)

	// DeleteByTokenHash revokes a single session.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUserID revokes every session belonging to the user.
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired removes sessions whose refresh token has lapsed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// FollowerRepository persists the follow graph.
type FollowerRepository interface {
	// Create inserts a follow edge.
	Create(ctx context.Context, follower *domain.Follower) error

	// Get retrieves the edge where userID follows followedUserID.
	Get(ctx context.Context, userID, followedUserID string) (*domain.Follower, error)

	// Delete removes the edge where userID follows followedUserID.
	Delete(ctx context.Context, userID, followedUserID string) error
}

// ProfileCache caches public profile lookups keyed by username.
type ProfileCache interface {
	// Get returns the cached profile, or repository-level not-found.
	Get(ctx context.Context, username string) (*domain.User, error)

	// Set stores the profile under its username.
	Set(ctx context.Context, user *domain.User) error

	// Invalidate drops any cached profile for the username.
	Invalidate(ctx context.Context, username string) error
}
