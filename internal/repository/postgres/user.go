package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chirpnet/chirp/internal/domain"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

const userColumns = `id, name, email, username, password_hash, date_of_birth, bio, location, website, avatar_url, cover_photo_url, verify_status, email_verify_token, forgot_password_token, created_at, updated_at`

// UserRepository implements repository.UserRepository on PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a PostgreSQL-backed user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, name, email, username, password_hash, date_of_birth, bio, location, website, avatar_url, cover_photo_url, verify_status, email_verify_token, forgot_password_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.Username,
		u.PasswordHash,
		u.DateOfBirth,
		u.Bio,
		u.Location,
		u.Website,
		u.AvatarURL,
		u.CoverPhotoURL,
		u.VerifyStatus,
		u.EmailVerifyToken,
		u.ForgotPasswordToken,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, query, email)
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(ctx, query, username)
}

// Update writes back every mutable column.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET name = $1, email = $2, username = $3, password_hash = $4, date_of_birth = $5,
		    bio = $6, location = $7, website = $8, avatar_url = $9, cover_photo_url = $10,
		    verify_status = $11, email_verify_token = $12, forgot_password_token = $13, updated_at = $14
		WHERE id = $15`

	ct, err := r.db.Exec(ctx, query,
		u.Name,
		u.Email,
		u.Username,
		u.PasswordHash,
		u.DateOfBirth,
		u.Bio,
		u.Location,
		u.Website,
		u.AvatarURL,
		u.CoverPhotoURL,
		u.VerifyStatus,
		u.EmailVerifyToken,
		u.ForgotPasswordToken,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}

	return nil
}

// UpdateProfile applies only the fields set on upd and returns the updated
// row in one round trip.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd *domain.ProfileUpdate) (*domain.User, error) {
	sets := make([]string, 0, 9)
	args := make([]any, 0, 10)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.DateOfBirth != nil {
		add("date_of_birth", *upd.DateOfBirth)
	}
	if upd.Bio != nil {
		add("bio", *upd.Bio)
	}
	if upd.Location != nil {
		add("location", *upd.Location)
	}
	if upd.Website != nil {
		add("website", *upd.Website)
	}
	if upd.Username != nil {
		add("username", *upd.Username)
	}
	if upd.AvatarURL != nil {
		add("avatar_url", *upd.AvatarURL)
	}
	if upd.CoverPhotoURL != nil {
		add("cover_photo_url", *upd.CoverPhotoURL)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns,
	)

	u, err := scanUserRow(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) && upd.Username != nil {
			return nil, apperrors.AlreadyExists("user", "username", *upd.Username)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", id)
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	return u, nil
}

func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUserRow(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func scanUserRow(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Username,
		&u.PasswordHash,
		&u.DateOfBirth,
		&u.Bio,
		&u.Location,
		&u.Website,
		&u.AvatarURL,
		&u.CoverPhotoURL,
		&u.VerifyStatus,
		&u.EmailVerifyToken,
		&u.ForgotPasswordToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
