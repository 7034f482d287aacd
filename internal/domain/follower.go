package domain

import "time"

// Follower is one edge in the follow graph: UserID follows FollowedUserID.
type Follower struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	FollowedUserID string    `json:"followed_user_id"`
	CreatedAt      time.Time `json:"created_at"`
}
