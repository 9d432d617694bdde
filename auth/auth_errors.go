package auth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-identity-service/internal/errors"
)

var (
	// ErrUnauthorized is the only failure Login reports, whatever went wrong.
	ErrUnauthorized = apperrors.ErrUnauthorized
	ErrConflict     = fmt.Errorf("user already exists: %w", apperrors.ErrConflict)
	// ErrUserNotFound and ErrPasswordMismatch are kept apart for logging but both are unauthorized to callers.
	ErrUserNotFound     = fmt.Errorf("user not found: %w", apperrors.ErrUnauthorized)
	ErrPasswordMismatch = fmt.Errorf("password mismatch: %w", apperrors.ErrInvalidCredentials)
)
