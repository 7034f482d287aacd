// Package token issues and verifies the purpose-keyed JWTs used across the
// authentication flows. Each purpose signs with its own secret, so a token
// minted for one flow can never be replayed into another.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chirpnet/chirp/internal/domain"
)

// ErrTokenInvalid is returned for any token that fails verification:
// bad signature, expired, malformed, or minted for a different purpose.
var ErrTokenInvalid = errors.New("token invalid")

// Purpose names the flow a token belongs to.
type Purpose string

const (
	PurposeAccess         Purpose = "access"
	PurposeRefresh        Purpose = "refresh"
	PurposeEmailVerify    Purpose = "email_verify"
	PurposeForgotPassword Purpose = "forgot_password"
)

// Claims is the payload carried by every token. VerifyStatus is snapshotted
// at issue time so the API can gate verified-only routes without a user
// lookup.
type Claims struct {
	UserID       string              `json:"user_id"`
	TokenType    Purpose             `json:"token_type"`
	VerifyStatus domain.VerifyStatus `json:"verify_status"`
	jwt.RegisteredClaims
}

// Config holds the per-purpose signing secrets and lifetimes.
type Config struct {
	Issuer string

	AccessSecret         string
	RefreshSecret        string
	EmailVerifySecret    string
	ForgotPasswordSecret string

	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	EmailVerifyTTL    time.Duration
	ForgotPasswordTTL time.Duration
}

// Codec signs and verifies purpose-keyed tokens.
type Codec struct {
	cfg Config
}

// NewCodec creates a Codec. Every purpose must have a non-empty secret.
func NewCodec(cfg Config) (*Codec, error) {
	for purpose, secret := range map[Purpose]string{
		PurposeAccess:         cfg.AccessSecret,
		PurposeRefresh:        cfg.RefreshSecret,
		PurposeEmailVerify:    cfg.EmailVerifySecret,
		PurposeForgotPassword: cfg.ForgotPasswordSecret,
	} {
		if secret == "" {
			return nil, fmt.Errorf("missing signing secret for %s tokens", purpose)
		}
	}
	return &Codec{cfg: cfg}, nil
}

// Issue signs a token for the given purpose with that purpose's configured
// lifetime.
func (c *Codec) Issue(userID string, purpose Purpose, status domain.VerifyStatus) (string, error) {
	return c.IssueWithExpiry(userID, purpose, status, time.Now().UTC().Add(c.ttl(purpose)))
}

// IssueWithExpiry signs a token with an explicit expiry. Refresh rotation
// uses this to keep the original session deadline on the replacement token.
func (c *Codec) IssueWithExpiry(userID string, purpose Purpose, status domain.VerifyStatus, expiresAt time.Time) (string, error) {
	secret, err := c.secret(purpose)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := &Claims{
		UserID:       userID,
		TokenType:    purpose,
		VerifyStatus: status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    c.cfg.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// Verify parses the token against the secret for the expected purpose and
// rejects tokens whose embedded purpose does not match. All failures wrap
// ErrTokenInvalid.
func (c *Codec) Verify(tokenString string, purpose Purpose) (*Claims, error) {
	secret, err := c.secret(purpose)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: unexpected claims", ErrTokenInvalid)
	}
	if claims.TokenType != purpose {
		return nil, fmt.Errorf("%w: token purpose mismatch", ErrTokenInvalid)
	}
	return claims, nil
}

// TTL reports the configured lifetime for a purpose.
func (c *Codec) TTL(purpose Purpose) time.Duration {
	return c.ttl(purpose)
}

func (c *Codec) ttl(purpose Purpose) time.Duration {
	switch purpose {
	case PurposeAccess:
		return c.cfg.AccessTTL
	case PurposeRefresh:
		return c.cfg.RefreshTTL
	case PurposeEmailVerify:
		return c.cfg.EmailVerifyTTL
	case PurposeForgotPassword:
		return c.cfg.ForgotPasswordTTL
	default:
		return 0
	}
}

func (c *Codec) secret(purpose Purpose) ([]byte, error) {
	switch purpose {
	case PurposeAccess:
		return []byte(c.cfg.AccessSecret), nil
	case PurposeRefresh:
		return []byte(c.cfg.RefreshSecret), nil
	case PurposeEmailVerify:
		return []byte(c.cfg.EmailVerifySecret), nil
	case PurposeForgotPassword:
		return []byte(c.cfg.ForgotPasswordSecret), nil
	default:
		return nil, fmt.Errorf("unknown token purpose %q", purpose)
	}
}
