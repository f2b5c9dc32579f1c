package hostagent

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStatusCache(t *testing.T) *StatusCache {
	t.Helper()
	cache, err := OpenStatusCache(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestStatusCachePutGetRoundTrip(t *testing.T) {
	cache := openTestStatusCache(t)

	report := StatusReport{WorkloadID: "wl-1", Actual: "running", Payload: "ok"}
	require.NoError(t, cache.Put(report))

	got, found, err := cache.Get("wl-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, report, got)
}

func TestStatusCacheGetMissingReturnsNotFound(t *testing.T) {
	cache := openTestStatusCache(t)

	_, found, err := cache.Get("never-seen")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatusCachePutOverwritesPreviousValue(t *testing.T) {
	cache := openTestStatusCache(t)

	require.NoError(t, cache.Put(StatusReport{WorkloadID: "wl-1", Actual: "assigned"}))
	require.NoError(t, cache.Put(StatusReport{WorkloadID: "wl-1", Actual: "running"}))

	got, found, err := cache.Get("wl-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "running", got.Actual)
}
