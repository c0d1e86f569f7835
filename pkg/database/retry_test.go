package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBusyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked"), true},
		{"database table is locked", errors.New("database table is locked"), true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"SQLITE_LOCKED", errors.New("SQLITE_LOCKED"), true},
		{"error code 5", errors.New("error (5): database busy"), true},
		{"unrelated error", errors.New("connection refused"), false},
		{"constraint violation", errors.New("UNIQUE constraint failed"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isBusyError(tt.err))
		})
	}
}

func TestBusyBackoff(t *testing.T) {
	assert.GreaterOrEqual(t, busyBackoff(0), busyBaseDelay)
	assert.LessOrEqual(t, busyBackoff(0), busyBaseDelay+busyBaseDelay/4)
	assert.Equal(t, busyMaxDelay, busyBackoff(10))
	assert.Equal(t, busyMaxDelay, busyBackoff(80))
}

func TestWithBusyRetry(t *testing.T) {
	t.Run("succeeds on first attempt", func(t *testing.T) {
		attempts := 0
		out, err := withBusyRetry(context.Background(), 5, func() (int, error) {
			attempts++
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, out)
		assert.Equal(t, 1, attempts)
	})

	t.Run("retries on busy error and succeeds", func(t *testing.T) {
		attempts := 0
		_, err := withBusyRetry(context.Background(), 5, func() (struct{}, error) {
			attempts++
			if attempts < 3 {
				return struct{}{}, errors.New("database is locked")
			}
			return struct{}{}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("fails immediately on non-busy error", func(t *testing.T) {
		attempts := 0
		_, err := withBusyRetry(context.Background(), 5, func() (struct{}, error) {
			attempts++
			return struct{}{}, errors.New("connection refused")
		})
		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("exhausts retries on persistent busy error", func(t *testing.T) {
		attempts := 0
		_, err := withBusyRetry(context.Background(), 3, func() (struct{}, error) {
			attempts++
			return struct{}{}, errors.New("database is locked")
		})
		require.Error(t, err)
		assert.Equal(t, 4, attempts)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		attempts := 0
		_, err := withBusyRetry(ctx, 10, func() (struct{}, error) {
			attempts++
			return struct{}{}, errors.New("database is locked")
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, attempts, 10)
	})
}
