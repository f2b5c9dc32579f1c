package blobstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestOpenWritesMetadataOnce(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	m, err := ReadMetadata(s.root)
	require.NoError(t, err)
	assert.Equal(t, storeVersion, m.Version)

	// Reopening must not clobber an existing metadata.json.
	require.NoError(t, os.WriteFile(metadataPath(root), []byte(`{"version":99,"features":7}`), 0o644))
	_, err = Open(root)
	require.NoError(t, err)
	m2, err := ReadMetadata(root)
	require.NoError(t, err)
	assert.Equal(t, 99, m2.Version)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	cid, err := s.Put(bytes.NewReader([]byte("hello world")), "owner-1")
	require.NoError(t, err)
	assert.True(t, len(cid) > len(cidPrefix))

	r, err := s.Get(cid)
	require.NoError(t, err)
	defer r.Close()

	data, err := os.ReadFile(filepath.Join(v1DataDir(s.root), cid))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestPutIsContentAddressed(t *testing.T) {
	s := openTestStore(t)

	cid1, err := s.Put(bytes.NewReader([]byte("same bytes")), "owner-1")
	require.NoError(t, err)
	cid2, err := s.Put(bytes.NewReader([]byte("same bytes")), "owner-2")
	require.NoError(t, err)
	assert.Equal(t, cid1, cid2)

	owners, err := s.Owners(cid1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"owner-1", "owner-2"}, owners)
}

func TestPutSameOwnerDoesNotDuplicate(t *testing.T) {
	s := openTestStore(t)

	cid, err := s.Put(bytes.NewReader([]byte("x")), "owner-1")
	require.NoError(t, err)
	_, err = s.Put(bytes.NewReader([]byte("x")), "owner-1")
	require.NoError(t, err)

	owners, err := s.Owners(cid)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner-1"}, owners)
}

func TestVerifyDetectsTamperedBlob(t *testing.T) {
	s := openTestStore(t)

	cid, err := s.Put(bytes.NewReader([]byte("integral")), "owner-1")
	require.NoError(t, err)
	require.NoError(t, s.Verify(cid))

	require.NoError(t, os.WriteFile(filepath.Join(v1DataDir(s.root), cid), []byte("tampered"), 0o644))
	assert.ErrorIs(t, s.Verify(cid), ErrInvalidData)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get("c1doesnotexist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriterAbortCleansUpStagedFile(t *testing.T) {
	s := openTestStore(t)

	w, err := s.NewWriter("owner-1")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	tmpName := w.tmp.Name()

	require.NoError(t, w.Abort())
	_, statErr := os.Stat(tmpName)
	assert.True(t, os.IsNotExist(statErr))
}
