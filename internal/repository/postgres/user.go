package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Den-Varenik/social-network/internal/domain"
	apperrors "github.com/Den-Varenik/social-network/pkg/errors"
)

// DB is the subset of pgxpool.Pool the repositories need. Satisfied by both
// *pgxpool.Pool and pgxmock.PgxPoolIface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and populates its assigned id. The users.email
// unique index is the authoritative duplicate guard: a concurrent insert of
// the same email is reported as ErrAlreadyExists here, regardless of any
// earlier existence check.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (email, password_hash, account_type, is_active, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		u.Email,
		u.PasswordHash,
		u.AccountType,
		u.IsActive,
		u.IsVerified,
		u.CreatedAt,
		u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their surrogate id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, account_type, is_active, is_verified, last_login, created_at, updated_at
		FROM users
		WHERE id = $1`

	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by their email address. The lookup is
// case-sensitive, matching how emails are stored.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, account_type, is_active, is_verified, last_login, created_at, updated_at
		FROM users
		WHERE email = $1`

	return r.scanUser(ctx, query, email)
}

// UpdateLastLogin records the time of the user's most recent login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", fmt.Sprintf("%d", id))
	}

	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.AccountType,
		&u.IsActive,
		&u.IsVerified,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
