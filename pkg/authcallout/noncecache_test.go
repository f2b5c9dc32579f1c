package authcallout

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestNonceCache(t *testing.T, window time.Duration) *NonceCache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nonces.db")
	cache, err := OpenNonceCache(path, window)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestNonceCacheRejectsReplayWithinWindow(t *testing.T) {
	cache := openTestNonceCache(t, time.Minute)

	require.NoError(t, cache.CheckAndRecord("device-1", "nonce-1"))
	assert.Error(t, cache.CheckAndRecord("device-1", "nonce-1"))
}

func TestNonceCacheAllowsReplayAfterWindowElapses(t *testing.T) {
	cache := openTestNonceCache(t, time.Millisecond)

	require.NoError(t, cache.CheckAndRecord("device-1", "nonce-1"))
	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, cache.CheckAndRecord("device-1", "nonce-1"))
}

func TestNonceCacheDistinguishesDevices(t *testing.T) {
	cache := openTestNonceCache(t, time.Minute)

	require.NoError(t, cache.CheckAndRecord("device-1", "nonce-1"))
	assert.NoError(t, cache.CheckAndRecord("device-2", "nonce-1"))
}
