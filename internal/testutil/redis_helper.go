// Package testutil provides common testing utilities, fixtures, and helpers
// for use across all test files in the FoodLog client.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/dorsakh/Food-Log-FrontEnd/internal/storage"
	"github.com/dorsakh/Food-Log-FrontEnd/pkg/config"
)

// SetupMiniRedis creates a miniredis instance for testing.
// Returns the miniredis server and a cleanup function.
func SetupMiniRedis(t *testing.T) (*miniredis.Miniredis, func()) {
	t.Helper()

	mr := miniredis.RunT(t)

	cleanup := func() {
		mr.Close()
	}

	return mr, cleanup
}

// NewTestRedisStore creates a RedisStore connected to miniredis for testing.
func NewTestRedisStore(t *testing.T, mr *miniredis.Miniredis) *storage.RedisStore {
	t.Helper()

	cfg := &config.RedisConfig{
		Host:     mr.Host(),
		Port:     mr.Port(),
		Password: "",
		DB:       0,
		PoolSize: 10,
	}

	store, err := storage.NewRedisStore(cfg)
	if err != nil {
		t.Fatalf("Failed to create test Redis store: %v", err)
	}

	return store
}

// NewTestFileStore creates a FileStore rooted in a temp directory.
func NewTestFileStore(t *testing.T) *storage.FileStore {
	t.Helper()

	store, err := storage.NewFileStore(t.TempDir() + "/session.json")
	if err != nil {
		t.Fatalf("Failed to create test file store: %v", err)
	}

	return store
}
