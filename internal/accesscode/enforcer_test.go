package accesscode_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"taskhub/backend/internal/accesscode"
	"taskhub/backend/internal/logger"
	"taskhub/backend/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequenceGenerator struct {
	codes []string
	calls int
}

func (g *sequenceGenerator) Generate() (string, error) {
	code := g.codes[g.calls%len(g.codes)]
	g.calls++
	return code, nil
}

type mapLookup struct {
	taken map[string]bool
	err   error
	calls int
}

func (l *mapLookup) ExistsByCode(ctx context.Context, code string) (bool, error) {
	l.calls++
	if l.err != nil {
		return false, l.err
	}
	return l.taken[code], nil
}

func TestEnforcer_NextSkipsTakenCodes(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA", "BBBBBB", "CCCCCC"}}
	lookup := &mapLookup{taken: map[string]bool{"AAAAAA": true, "BBBBBB": true}}
	enforcer := accesscode.NewEnforcer(gen, lookup, 10, logger.Discard())

	code, err := enforcer.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CCCCCC", code)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, 3, lookup.calls)
}

func TestEnforcer_CapacityExhausted(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA"}}
	lookup := &mapLookup{taken: map[string]bool{"AAAAAA": true}}
	enforcer := accesscode.NewEnforcer(gen, lookup, 5, logger.Discard())

	_, err := enforcer.Next(context.Background())
	assert.ErrorIs(t, err, accesscode.ErrCapacityExhausted)
	assert.Equal(t, 5, gen.calls)
}

func TestEnforcer_LookupFailureIsStorageUnavailable(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA"}}
	lookup := &mapLookup{err: errors.New("connection refused")}
	enforcer := accesscode.NewEnforcer(gen, lookup, 5, logger.Discard())

	_, err := enforcer.Next(context.Background())
	assert.ErrorIs(t, err, repositories.ErrStorageUnavailable)
	assert.Equal(t, 1, lookup.calls)
}

func TestEnforcer_CancelledContext(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA"}}
	lookup := &mapLookup{}
	enforcer := accesscode.NewEnforcer(gen, lookup, 5, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := enforcer.Next(ctx)
	assert.ErrorIs(t, err, repositories.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, lookup.calls)
}

func TestEnforcer_AssignRetriesOnInsertViolation(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA", "BBBBBB"}}
	lookup := &mapLookup{taken: map[string]bool{}}
	enforcer := accesscode.NewEnforcer(gen, lookup, 10, logger.Discard())

	var inserted []string
	code, err := enforcer.Assign(context.Background(), func(code string) error {
		inserted = append(inserted, code)
		if code == "AAAAAA" {
			return fmt.Errorf("insert task: %w", repositories.ErrDuplicateCode)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", code)
	assert.Equal(t, []string{"AAAAAA", "BBBBBB"}, inserted)
}

func TestEnforcer_AssignSharesAttemptBudget(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA"}}
	lookup := &mapLookup{taken: map[string]bool{}}
	enforcer := accesscode.NewEnforcer(gen, lookup, 3, logger.Discard())

	inserts := 0
	_, err := enforcer.Assign(context.Background(), func(string) error {
		inserts++
		return repositories.ErrDuplicateCode
	})

	assert.ErrorIs(t, err, accesscode.ErrCapacityExhausted)
	assert.Equal(t, 3, inserts)
}

func TestEnforcer_AssignReturnsOtherInsertErrors(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"AAAAAA"}}
	enforcer := accesscode.NewEnforcer(gen, &mapLookup{}, 3, logger.Discard())
	boom := errors.New("disk full")

	_, err := enforcer.Assign(context.Background(), func(string) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, gen.calls)
}

func TestNewEnforcer_Defaults(t *testing.T) {
	lookup := &mapLookup{taken: map[string]bool{}}
	enforcer := accesscode.NewEnforcer(nil, lookup, 0, nil)

	code, err := enforcer.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, accesscode.Valid(code))
}
