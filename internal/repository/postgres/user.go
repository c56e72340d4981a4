package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/domain"
	"github.com/vidtube/backend/internal/repository"
	"github.com/vidtube/backend/pkg/database"
	apperrors "github.com/vidtube/backend/pkg/errors"
)

const userColumns = `id, user_name, email, full_name, password_hash, avatar, cover_image, COALESCE(refresh_token, ''), created_at, updated_at`

// UserRepository implements repository.UserRepository and
// repository.SessionStore using PostgreSQL.
type UserRepository struct {
	db      database.DBTX
	timeout time.Duration
}

// NewUserRepository creates a new PostgreSQL-backed user repository. Every
// call runs under timeout.
func NewUserRepository(db database.DBTX, timeout time.Duration) *UserRepository {
	return &UserRepository{db: db, timeout: timeout}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (id, user_name, email, full_name, password_hash, avatar, cover_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	ctx, end := database.TraceQuery(ctx, "users.Create", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.UserName,
		u.Email,
		u.FullName,
		u.PasswordHash,
		u.Avatar,
		u.CoverImage,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return apperrors.Conflict(repository.DuplicateUserMessage)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.queryUser(ctx, "users.GetByID", query, id)
}

// FindByUserNameOrEmail looks a user up by either identifier.
func (r *UserRepository) FindByUserNameOrEmail(ctx context.Context, userName, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE (user_name = $1 AND $1 <> '') OR (email = $2 AND $2 <> '')
		ORDER BY created_at
		LIMIT 1`
	return r.queryUser(ctx, "users.FindByUserNameOrEmail", query, userName, email)
}

// UpdateAccount sets the full name and email.
func (r *UserRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (*domain.User, error) {
	query := `UPDATE users SET full_name = $1, email = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + userColumns

	u, err := r.queryUser(ctx, "users.UpdateAccount", query, fullName, email, id)
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, apperrors.Conflict(repository.DuplicateUserMessage)
		}
		return nil, err
	}
	return u, nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	return r.execOne(ctx, "users.UpdatePassword", query, passwordHash, id)
}

// UpdateAvatar sets the avatar URL.
func (r *UserRepository) UpdateAvatar(ctx context.Context, id, url string) (*domain.User, error) {
	query := `UPDATE users SET avatar = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + userColumns
	return r.queryUser(ctx, "users.UpdateAvatar", query, url, id)
}

// UpdateCoverImage sets the cover image URL.
func (r *UserRepository) UpdateCoverImage(ctx context.Context, id, url string) (*domain.User, error) {
	query := `UPDATE users SET cover_image = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + userColumns
	return r.queryUser(ctx, "users.UpdateCoverImage", query, url, id)
}

// SetRefreshToken overwrites the user's refresh token in a single-row update,
// so concurrent logins resolve as last write wins.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID, token string) error {
	query := `UPDATE users SET refresh_token = $1 WHERE id = $2`
	return r.execOne(ctx, "users.SetRefreshToken", query, token, userID)
}

// ClearRefreshToken removes the user's refresh token. Unknown users are
// ignored.
func (r *UserRepository) ClearRefreshToken(ctx context.Context, userID string) (err error) {
	query := `UPDATE users SET refresh_token = NULL WHERE id = $1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	ctx, end := database.TraceQuery(ctx, "users.ClearRefreshToken", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken returns the stored refresh token or "".
func (r *UserRepository) GetRefreshToken(ctx context.Context, userID string) (token string, err error) {
	query := `SELECT COALESCE(refresh_token, '') FROM users WHERE id = $1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	ctx, end := database.TraceQuery(ctx, "users.GetRefreshToken", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("get refresh token: %w", err)
	}
	return token, nil
}

func (r *UserRepository) execOne(ctx context.Context, op, query string, args ...any) (err error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// queryUser runs a statement expected to return a single user row.
func (r *UserRepository) queryUser(ctx context.Context, op, query string, args ...any) (_ *domain.User, err error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.UserName,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.Avatar,
		&u.CoverImage,
		&u.RefreshToken,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}
