package accesscode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taskhub/backend/internal/monitoring"
	"taskhub/backend/internal/repositories"
)

const DefaultMaxAttempts = 1000

var ErrCapacityExhausted = errors.New("access code retry bound reached")

type CodeLookup interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// Enforcer hands out codes that no stored task uses. The unique index on
// tasks.access_code stays authoritative; Assign retries when an insert loses
// a race against a concurrent creation.
type Enforcer struct {
	generator   Generator
	lookup      CodeLookup
	maxAttempts int
	logger      *slog.Logger
}

func NewEnforcer(generator Generator, lookup CodeLookup, maxAttempts int, logger *slog.Logger) *Enforcer {
	if generator == nil {
		generator = NewRandomGenerator()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		generator:   generator,
		lookup:      lookup,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Next returns the first generated candidate that is not in the store.
func (e *Enforcer) Next(ctx context.Context) (string, error) {
	attempts := 0
	return e.next(ctx, &attempts)
}

// Assign obtains a free code and passes it to insert. A unique violation
// reported by insert triggers regeneration under the same attempt budget and
// is never returned to the caller.
func (e *Enforcer) Assign(ctx context.Context, insert func(code string) error) (string, error) {
	attempts := 0
	for {
		code, err := e.next(ctx, &attempts)
		if err != nil {
			return "", err
		}

		err = insert(code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repositories.ErrDuplicateCode) {
			return "", err
		}

		monitoring.AccessCodeCollisions.WithLabelValues("insert").Inc()
		e.logger.Warn("access code taken at insert, regenerating",
			slog.Int("attempt", attempts),
		)
	}
}

func (e *Enforcer) next(ctx context.Context, attempts *int) (string, error) {
	for *attempts < e.maxAttempts {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", repositories.ErrCancelled, err)
		}
		*attempts++

		code, err := e.generator.Generate()
		if err != nil {
			return "", fmt.Errorf("generate access code: %w", err)
		}
		monitoring.AccessCodeDraws.Inc()

		exists, err := e.lookup.ExistsByCode(ctx, code)
		if err != nil {
			return "", lookupError(err)
		}
		if !exists {
			return code, nil
		}
		monitoring.AccessCodeCollisions.WithLabelValues("lookup").Inc()
	}

	e.logger.Error("access code space exhausted",
		slog.Int("max_attempts", e.maxAttempts),
	)
	return "", ErrCapacityExhausted
}

func lookupError(err error) error {
	if errors.Is(err, repositories.ErrCancelled) || errors.Is(err, repositories.ErrStorageUnavailable) {
		return fmt.Errorf("check access code: %w", err)
	}
	return fmt.Errorf("check access code: %w: %w", repositories.ErrStorageUnavailable, err)
}
