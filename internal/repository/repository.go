package repository

import (
	"context"
	"time"

	"github.com/Den-Varenik/social-network/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user and assigns its surrogate id. A duplicate
	// email surfaces as errors.ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their surrogate id.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateLastLogin records the time of the user's most recent login.
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
}
