package http

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/chirpnet/chirp/internal/repository"
	"github.com/chirpnet/chirp/internal/token"
	"github.com/chirpnet/chirp/internal/validation"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

// Validators builds the per-endpoint validation schemas. Credential rules
// resolve users, sessions, and claims into the request state so handlers
// never touch tokens or passwords themselves.
type Validators struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	codec    *token.Codec
}

// NewValidators creates the schema factory.
func NewValidators(users repository.UserRepository, sessions repository.SessionRepository, codec *token.Codec) *Validators {
	return &Validators{users: users, sessions: sessions, codec: codec}
}

// Login resolves the account by email and checks the password. Both
// failures report the same message so the response does not reveal which
// half was wrong.
func (v *Validators) Login() *validation.Schema {
	const badCredentials = "email or password is incorrect"

	return validation.NewSchema(
		validation.Field("email",
			validation.Required("email is required"),
			validation.Format("email", "email is invalid"),
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				user, err := v.users.GetByEmail(ctx, fv.Value)
				if err != nil {
					if errors.Is(err, apperrors.ErrNotFound) {
						return errors.New(badCredentials)
					}
					return apperrors.Internal(err)
				}
				st.User = user
				return nil
			}),
		),
		validation.Field("password",
			validation.Required("password is required"),
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				if st.User == nil {
					return nil
				}
				if bcrypt.CompareHashAndPassword([]byte(st.User.PasswordHash), []byte(fv.Value)) != nil {
					return errors.New(badCredentials)
				}
				return nil
			}),
		),
	)
}

// Register checks the registration payload, including email uniqueness.
func (v *Validators) Register() *validation.Schema {
	return validation.NewSchema(
		validation.Field("name",
			validation.Required("name is required"),
			validation.Length(1, 100, "name must be between 1 and 100 characters"),
		),
		validation.Field("email",
			validation.Required("email is required"),
			validation.Format("email", "email is invalid"),
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				_, err := v.users.GetByEmail(ctx, fv.Value)
				if err == nil {
					return errors.New("email already exists")
				}
				if !errors.Is(err, apperrors.ErrNotFound) {
					return apperrors.Internal(err)
				}
				return nil
			}),
		),
		validation.Field("password",
			validation.Required("password is required"),
			validation.StrongPassword("password must be 6-50 characters with at least one lowercase letter, one uppercase letter, one digit and one symbol"),
		),
		validation.Field("confirm_password",
			validation.Required("confirm password is required"),
			validation.Match("password", "confirm password does not match password"),
		),
		validation.Field("date_of_birth",
			validation.Format(validation.ISO8601, "date of birth must be an ISO 8601 date"),
		),
	)
}

// AccessToken decodes the bearer token from the Authorization header. All
// failures are structural 401s.
func (v *Validators) AccessToken() *validation.Schema {
	return validation.NewSchema(
		validation.HeaderField("Authorization",
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				if !fv.Present {
					return apperrors.Unauthorized("access token is required")
				}
				return nil
			}),
			validation.Bearer("authorization header must carry a bearer token"),
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				claims, err := v.codec.Verify(fv.Value, token.PurposeAccess)
				if err != nil {
					return apperrors.Unauthorized("access token is invalid")
				}
				st.AccessClaims = claims
				return nil
			}),
		),
	)
}

// OAuthGoogle requires the provider's authorization code on the callback
// query string.
func (v *Validators) OAuthGoogle() *validation.Schema {
	return validation.NewSchema(
		validation.QueryField("code",
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				if !fv.Present || fv.Value == "" {
					return apperrors.BadRequest("authorization code is required")
				}
				return nil
			}),
		),
	)
}

// RefreshToken decodes the refresh token and checks it is still live in the
// session store. A structurally valid token with no session reports
// SESSION_REVOKED, distinguishing rotation and logout from forgery.
func (v *Validators) RefreshToken() *validation.Schema {
	return validation.NewSchema(
		validation.Field("refresh_token",
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				if !fv.Present {
					return apperrors.Unauthorized("refresh token is required")
				}

				claims, err := v.codec.Verify(fv.Value, token.PurposeRefresh)
				if err != nil {
					return apperrors.Unauthorized("refresh token is invalid")
				}

				session, err := v.sessions.GetByTokenHash(ctx, token.Hash(fv.Value))
				if err != nil {
					if errors.Is(err, apperrors.ErrNotFound) {
						return apperrors.SessionRevoked("refresh token has been used or revoked")
					}
					return apperrors.Internal(err)
				}

				st.RefreshClaims = claims
				st.Session = session
				return nil
			}),
		),
	)
}

// EmailVerifyToken decodes the verification token and resolves its account.
// The mismatch check is skipped once the stored token is cleared; the
// handler reports already-verified for that case.
func (v *Validators) EmailVerifyToken() *validation.Schema {
	return validation.NewSchema(
		validation.Field("email_verify_token",
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				if !fv.Present {
					return apperrors.Unauthorized("email verify token is required")
				}

				claims, err := v.codec.Verify(fv.Value, token.PurposeEmailVerify)
				if err != nil {
					return apperrors.Unauthorized("email verify token is invalid")
				}

				user, err := v.users.GetByID(ctx, claims.UserID)
				if err != nil {
					if errors.Is(err, apperrors.ErrNotFound) {
						return apperrors.NotFound("user", claims.UserID)
					}
					return apperrors.Internal(err)
				}
				if user.EmailVerifyToken != "" && user.EmailVerifyToken != fv.Value {
					return apperrors.Unauthorized("email verify token is invalid")
				}

				st.EmailVerifyClaims = claims
				st.User = user
				return nil
			}),
		),
	)
}

// ForgotPassword resolves the account behind the email.
func (v *Validators) ForgotPassword() *validation.Schema {
	return validation.NewSchema(
		validation.Field("email",
			validation.Required("email is required"),
			validation.Format("email", "email is invalid"),
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				user, err := v.users.GetByEmail(ctx, fv.Value)
				if err != nil {
					if errors.Is(err, apperrors.ErrNotFound) {
						return errors.New("no account with this email")
					}
					return apperrors.Internal(err)
				}
				st.User = user
				return nil
			}),
		),
	)
}

// forgotPasswordTokenField verifies a reset token against the one persisted
// on the account. Shared by the verify and reset endpoints.
func (v *Validators) forgotPasswordTokenField() validation.FieldRules {
	return validation.Field("forgot_password_token",
		validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
			if !fv.Present {
				return apperrors.Unauthorized("forgot password token is required")
			}

			claims, err := v.codec.Verify(fv.Value, token.PurposeForgotPassword)
			if err != nil {
				return apperrors.Unauthorized("forgot password token is invalid")
			}

			user, err := v.users.GetByID(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return apperrors.NotFound("user", claims.UserID)
				}
				return apperrors.Internal(err)
			}
			if user.ForgotPasswordToken != fv.Value {
				return apperrors.Unauthorized("forgot password token is invalid")
			}

			st.ForgotPasswordClaims = claims
			st.User = user
			return nil
		}),
	)
}

// VerifyForgotPassword only checks the reset token.
func (v *Validators) VerifyForgotPassword() *validation.Schema {
	return validation.NewSchema(v.forgotPasswordTokenField())
}

// ResetPassword checks the reset token and the replacement password.
func (v *Validators) ResetPassword() *validation.Schema {
	return validation.NewSchema(
		v.forgotPasswordTokenField(),
		validation.Field("password",
			validation.Required("password is required"),
			validation.StrongPassword("password must be 6-50 characters with at least one lowercase letter, one uppercase letter, one digit and one symbol"),
		),
		validation.Field("confirm_password",
			validation.Required("confirm password is required"),
			validation.Match("password", "confirm password does not match password"),
		),
	)
}

// ChangePassword compares the old password against the stored hash as a
// field rule. Runs after the access-token schema; the resolved claims come
// from the request context.
func (v *Validators) ChangePassword() *validation.Schema {
	return validation.NewSchema(
		validation.Field("old_password",
			validation.Required("old password is required"),
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				claims := validation.StateFromContext(ctx).AccessClaims
				if claims == nil {
					return apperrors.Unauthorized("access token is required")
				}

				user, err := v.users.GetByID(ctx, claims.UserID)
				if err != nil {
					if errors.Is(err, apperrors.ErrNotFound) {
						return apperrors.NotFound("user", claims.UserID)
					}
					return apperrors.Internal(err)
				}
				if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(fv.Value)) != nil {
					return errors.New("old password is incorrect")
				}

				st.User = user
				return nil
			}),
		),
		validation.Field("new_password",
			validation.Required("new password is required"),
			validation.StrongPassword("new password must be 6-50 characters with at least one lowercase letter, one uppercase letter, one digit and one symbol"),
		),
		validation.Field("confirm_new_password",
			validation.Required("confirm new password is required"),
			validation.Match("new_password", "confirm new password does not match new password"),
		),
	)
}

// UpdateProfile checks the optional profile fields. Absent fields pass.
func (v *Validators) UpdateProfile() *validation.Schema {
	return validation.NewSchema(
		validation.Field("name",
			validation.Length(1, 100, "name must be between 1 and 100 characters"),
		),
		validation.Field("date_of_birth",
			validation.Format(validation.ISO8601, "date of birth must be an ISO 8601 date"),
		),
		validation.Field("bio",
			validation.Length(0, 200, "bio must be at most 200 characters"),
		),
		validation.Field("location",
			validation.Length(0, 200, "location must be at most 200 characters"),
		),
		validation.Field("website",
			validation.Length(0, 400, "website must be at most 400 characters"),
			validation.Format("url", "website must be a valid URL"),
		),
		validation.Field("username",
			validation.Username("username must be 4-15 word characters and not digits only"),
			validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
				if !fv.Present {
					return nil
				}

				existing, err := v.users.GetByUsername(ctx, fv.Value)
				if err != nil {
					if errors.Is(err, apperrors.ErrNotFound) {
						return nil
					}
					return apperrors.Internal(err)
				}

				claims := validation.StateFromContext(ctx).AccessClaims
				if claims == nil || existing.ID != claims.UserID {
					return errors.New("username already exists")
				}
				return nil
			}),
		),
		validation.Field("avatar_url",
			validation.Length(0, 400, "avatar url must be at most 400 characters"),
		),
		validation.Field("cover_photo_url",
			validation.Length(0, 400, "cover photo url must be at most 400 characters"),
		),
	)
}

// followedUserRules validates a follow target: well-formed uuid, not the
// caller, and an existing account (404 structural when absent).
func (v *Validators) followedUserRules() []validation.Rule {
	return []validation.Rule{
		validation.Required("followed user id is required"),
		validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
			if _, err := uuid.Parse(fv.Value); err != nil {
				return errors.New("followed user id must be a valid uuid")
			}
			return nil
		}),
		validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
			claims := validation.StateFromContext(ctx).AccessClaims
			if claims != nil && claims.UserID == fv.Value {
				return errors.New("you cannot follow yourself")
			}
			return nil
		}),
		validation.Custom(func(ctx context.Context, fv *validation.FieldValue, st *validation.State) error {
			if _, err := v.users.GetByID(ctx, fv.Value); err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return apperrors.NotFound("user", fv.Value)
				}
				return apperrors.Internal(err)
			}
			return nil
		}),
	}
}

// Follow validates the follow body.
func (v *Validators) Follow() *validation.Schema {
	return validation.NewSchema(
		validation.Field("followed_user_id", v.followedUserRules()...),
	)
}

// Unfollow validates the unfollow path parameter.
func (v *Validators) Unfollow() *validation.Schema {
	return validation.NewSchema(
		validation.ParamField("user_id", v.followedUserRules()...),
	)
}
