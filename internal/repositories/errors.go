package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrCancelled          = errors.New("operation cancelled")
	// ErrDuplicateCode is reported by TaskRepository.Insert when another task
	// already holds the access code. Callers regenerate instead of surfacing it.
	ErrDuplicateCode  = errors.New("access code already in use")
	ErrAlreadyPresent = errors.New("row already present")
	ErrDuplicateKey   = errors.New("duplicate key")
)

// classify maps a driver or gorm error onto the package sentinels while
// keeping the original in the chain.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrAlreadyPresent):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrCancelled, err)
	case isDuplicate(err):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicateKey, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// isDuplicate recognises unique violations from both Postgres and SQLite.
// TranslateError covers the common path; the message check covers drivers
// and wrapped errors that skip translation.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}

func ctxErr(op string, ctxError error) error {
	if ctxError == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCancelled, ctxError)
}
