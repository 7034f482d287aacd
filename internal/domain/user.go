package domain

import (
	"time"
)

// VerifyStatus tracks whether a user has confirmed their email address.
type VerifyStatus int

const (
	// VerifyStatusUnverified is the state of a freshly registered account.
	VerifyStatusUnverified VerifyStatus = iota
	// VerifyStatusVerified means the email confirmation token was redeemed.
	VerifyStatusVerified
	// VerifyStatusBanned accounts cannot authenticate.
	VerifyStatusBanned
)

// String returns the lowercase name used in logs and JSON.
func (s VerifyStatus) String() string {
	switch s {
	case VerifyStatusUnverified:
		return "unverified"
	case VerifyStatusVerified:
		return "verified"
	case VerifyStatusBanned:
		return "banned"
	default:
		return "unknown"
	}
}

// User is a registered account. Secret material (password hash, pending
// verification tokens) never serializes to JSON.
type User struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name"`
	Email               string       `json:"email"`
	Username            string       `json:"username"`
	PasswordHash        string       `json:"-"`
	DateOfBirth         *time.Time   `json:"date_of_birth,omitempty"`
	Bio                 string       `json:"bio,omitempty"`
	Location            string       `json:"location,omitempty"`
	Website             string       `json:"website,omitempty"`
	AvatarURL           string       `json:"avatar_url,omitempty"`
	CoverPhotoURL       string       `json:"cover_photo_url,omitempty"`
	VerifyStatus        VerifyStatus `json:"verify_status"`
	EmailVerifyToken    string       `json:"-"`
	ForgotPasswordToken string       `json:"-"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// IsVerified reports whether the account may use verified-only features.
func (u *User) IsVerified() bool {
	return u.VerifyStatus == VerifyStatusVerified
}

// IsBanned reports whether the account is locked out.
func (u *User) IsBanned() bool {
	return u.VerifyStatus == VerifyStatusBanned
}

// ProfileUpdate carries the mutable profile fields. Nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	Name          *string    `json:"name,omitempty"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	Bio           *string    `json:"bio,omitempty"`
	Location      *string    `json:"location,omitempty"`
	Website       *string    `json:"website,omitempty"`
	Username      *string    `json:"username,omitempty"`
	AvatarURL     *string    `json:"avatar_url,omitempty"`
	CoverPhotoURL *string    `json:"cover_photo_url,omitempty"`
}

// TokenPair is an access/refresh token pair issued on successful
// authentication.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
