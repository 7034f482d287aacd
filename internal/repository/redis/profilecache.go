// Package redis implements the profile cache on Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chirpnet/chirp/internal/domain"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

const keyPrefix = "profile:"

// cachedProfile is the stored shape. Secret columns never enter the cache,
// so a cache hit can be returned to any caller.
type cachedProfile struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	Location      string     `json:"location,omitempty"`
	Website       string     `json:"website,omitempty"`
	AvatarURL     string     `json:"avatar_url,omitempty"`
	CoverPhotoURL string     `json:"cover_photo_url,omitempty"`
	VerifyStatus  int        `json:"verify_status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ProfileCache implements repository.ProfileCache using Redis.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache creates a Redis-backed profile cache.
func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{client: client, ttl: ttl}
}

// Get returns the cached profile for a username.
func (c *ProfileCache) Get(ctx context.Context, username string) (*domain.User, error) {
	data, err := c.client.Get(ctx, keyPrefix+username).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("redis get profile: %w", err)
	}

	var p cachedProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	return &domain.User{
		ID:            p.ID,
		Name:          p.Name,
		Email:         p.Email,
		Username:      p.Username,
		DateOfBirth:   p.DateOfBirth,
		Bio:           p.Bio,
		Location:      p.Location,
		Website:       p.Website,
		AvatarURL:     p.AvatarURL,
		CoverPhotoURL: p.CoverPhotoURL,
		VerifyStatus:  domain.VerifyStatus(p.VerifyStatus),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

// Set stores the user's public profile under its username.
func (c *ProfileCache) Set(ctx context.Context, u *domain.User) error {
	data, err := json.Marshal(cachedProfile{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Username:      u.Username,
		DateOfBirth:   u.DateOfBirth,
		Bio:           u.Bio,
		Location:      u.Location,
		Website:       u.Website,
		AvatarURL:     u.AvatarURL,
		CoverPhotoURL: u.CoverPhotoURL,
		VerifyStatus:  int(u.VerifyStatus),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	if err := c.client.Set(ctx, keyPrefix+u.Username, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set profile: %w", err)
	}
	return nil
}

// Invalidate drops the cached profile for a username.
func (c *ProfileCache) Invalidate(ctx context.Context, username string) error {
	if err := c.client.Del(ctx, keyPrefix+username).Err(); err != nil {
		return fmt.Errorf("redis del profile: %w", err)
	}
	return nil
}
