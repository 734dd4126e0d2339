package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlibekovAA/panel-auth/internal/common/config"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

func testConfig(t *testing.T) config.AuthConfig {
	return config.AuthConfig{
		AppEnv:                  config.EnvDevelopment,
		HTTPPort:                "0",
		StoreDriver:             config.StoreDriverSQLite,
		SQLitePath:              filepath.Join(t.TempDir(), "authctl.db"),
		JWTSecret:               "authctl-test-secret-0123456789abcdefgh",
		AccessTokenTTL:          15 * time.Minute,
		RenewalTokenTTLDays:     7,
		RevocationBackend:       config.RevocationBackendMemory,
		RevocationCacheMaxSize:  100,
		StoreTimeout:            3 * time.Second,
		RequestTimeout:          5 * time.Second,
		CleanupInterval:         time.Hour,
		CircuitBreakerThreshold: 5,
		CircuitBreakerReset:     10 * time.Second,
		RateLimitWindow:         time.Minute,
		RateLimitMax:            100,
		LogLevel:                "INFO",
	}
}

func passwordFile(t *testing.T, password string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(path, []byte(password+"\n"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"north", "south"}, splitList(" north, ,south "))
	assert.Nil(t, splitList(""))
}

func TestRun_Commands(t *testing.T) {
	cfg := testConfig(t)
	log := logger.NewWithWriter(io.Discard, "authctl-test", "DEBUG")
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, run(ctx, cfg, log, "migrate", nil, nil, &out))
	require.NoError(t, run(ctx, cfg, log, "migrate", []string{"-status"}, nil, &out))

	err := run(ctx, cfg, log, "create-user",
		[]string{"-email", "root@panel.local", "-name", "Root", "-role", "admin", "-regions", "north,south"},
		passwordFile(t, "secret123"), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "root@panel.local")

	out.Reset()
	require.NoError(t, run(ctx, cfg, log, "cleanup", nil, nil, &out))
	assert.Contains(t, out.String(), "deleted 0 renewal tokens")

	out.Reset()
	require.NoError(t, run(ctx, cfg, log, "revoke-all", []string{"-subject", "nobody"}, nil, &out))
	assert.Contains(t, out.String(), "revoked 0 renewal tokens")

	assert.Error(t, run(ctx, cfg, log, "revoke-all", nil, nil, &out))
	assert.Error(t, run(ctx, cfg, log, "unknown", nil, nil, &out))
}
