package errors

import (
	"errors"
	"fmt"
)

// Common error types for the authorization server
var (
	// Repository errors
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrNotConfigured  = errors.New("storage is not configured")
	ErrInvalidRecord  = errors.New("invalid record")
	ErrSessionExpired = errors.New("session expired")

	// Authorization code errors
	ErrCodeAlreadyClaimed = errors.New("authorization code already claimed")
	ErrCodeExpired        = errors.New("authorization code expired")
	ErrCodeNotClaimed     = errors.New("authorization code not claimed")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
