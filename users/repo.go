package users

import (
	"context"
	"fmt"

	apperrors "github.com/jrsteele09/go-identity-service/internal/errors"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = fmt.Errorf("user %w", apperrors.ErrNotFound)
	// ErrConflict is returned when a username is already taken.
	ErrConflict = fmt.Errorf("username already exists: %w", apperrors.ErrConflict)
)

// UserRepo is the user store consumed by the auth and profile services.
// Implementations must be safe for concurrent use.
type UserRepo interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	// Create stores a new user, assigning its ID. It returns ErrConflict when the username is taken.
	Create(ctx context.Context, user *User) (*User, error)
	// Update changes the given fields. It returns ErrNotFound or ErrConflict.
	Update(ctx context.Context, id int64, update UserUpdate) error
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
