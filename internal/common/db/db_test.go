package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLiteAndMigrate(t *testing.T) {
	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, Migrate(context.Background(), nil, conn, DialectSQLite))
	// Re-running is a no-op.
	require.NoError(t, Migrate(context.Background(), nil, conn, DialectSQLite))

	var count int
	row := conn.QueryRow(`SELECT COUNT(*) FROM renewal_tokens`)
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)
}

func TestMigrate_UnknownDialect(t *testing.T) {
	err := Migrate(context.Background(), nil, &sql.DB{}, "oracle")
	assert.Error(t, err)
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, Migrate(context.Background(), nil, conn, DialectSQLite))

	insert := `INSERT INTO renewal_tokens (id, token_hash, subject_id, expires_at, created_at, updated_at)
		VALUES (?, ?, 's', 0, 0, 0)`
	_, err = conn.Exec(insert, "a", "hash")
	require.NoError(t, err)
	_, err = conn.Exec(insert, "b", "hash")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.DeadlineExceeded))
	assert.False(t, IsRetryableError(errors.New("plain")))
	assert.True(t, IsRetryableError(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryableError(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryableError(&pgconn.PgError{Code: "23505"}))
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	attempts := 0
	err := RetryWithBackoff(context.Background(), nil, cfg, func() error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	plain := errors.New("syntax")
	err = RetryWithBackoff(context.Background(), nil, cfg, func() error {
		attempts++
		return plain
	})
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, attempts)
}

func TestHandleQueryError(t *testing.T) {
	notFound := errors.New("not found")
	start := time.Now()

	assert.NoError(t, HandleQueryError(nil, notFound, "find renewal token", start))
	assert.Equal(t, notFound, HandleQueryError(sql.ErrNoRows, notFound, "find renewal token", start))

	cause := errors.New("conn reset")
	err := HandleQueryError(cause, notFound, "find renewal token", start)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to find renewal token")
}
