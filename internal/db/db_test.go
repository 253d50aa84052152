package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/bidgame/internal/guess"
	"github.com/susu3304/bidgame/internal/guess/guesstest"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("BIDGAME_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BIDGAME_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	database, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.RunMigrations(ctx))

	guesstest.Run(t, func(t *testing.T) guess.Store {
		require.NoError(t, database.Truncate(ctx))
		return database
	})
}

func TestRetrySerializable(t *testing.T) {
	ctx := context.Background()
	conflict := fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})

	calls := 0
	err := retrySerializable(ctx, func() error {
		calls++
		if calls < 3 {
			return conflict
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retrySerializable(ctx, func() error {
		calls++
		return conflict
	})
	assert.ErrorIs(t, err, conflict)
	assert.Equal(t, maxTxAttempts, calls)

	calls = 0
	err = retrySerializable(ctx, func() error {
		calls++
		return guess.ErrAlreadyJoined
	})
	assert.ErrorIs(t, err, guess.ErrAlreadyJoined)
	assert.Equal(t, 1, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = retrySerializable(cancelled, func() error { return conflict })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, isSerializationFailure(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isSerializationFailure(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, isSerializationFailure(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isSerializationFailure(errors.New("boom")))
	assert.False(t, isSerializationFailure(nil))
}
