package services

import (
	"errors"
	"fmt"

	"taskhub/backend/internal/repositories"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidCredential = errors.New("invalid code or password")
	ErrAlreadyMember     = errors.New("already a member")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUserNotFound      = fmt.Errorf("user %w", ErrNotFound)

	ErrEmailTaken       = errors.New("email already exists")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrInvalidLogin     = errors.New("invalid email or password")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrAccountSuspended = errors.New("account is disabled")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// fromStore translates repository sentinels that have a service meaning.
func fromStore(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
