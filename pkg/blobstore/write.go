package blobstore

import (
	"fmt"
	"io"
	"os"
	"time"

	"lukechampine.com/blake3"
)

// Writer stages one blob under a random name in new/, hashing its
// bytes as they're written. Finalize renames the staged file into
// place under its content id and writes/updates its sidecar; Abort (or
// any Finalize failure) removes the staged file, per §5's "a failed
// partial write triggers cleanup of all files created earlier in the
// same operation".
type Writer struct {
	store  *Store
	owner  string
	tmp    *os.File
	hasher *blake3.Hasher
	done   bool
}

// NewWriter stages a new blob write for owner (recorded in the
// finished blob's sidecar owners list).
func (s *Store) NewWriter(owner string) (*Writer, error) {
	tmp, err := os.CreateTemp(newDir(s.root), "blob-*")
	if err != nil {
		return nil, fmt.Errorf("blobstore: staging temp file: %w", err)
	}
	return &Writer{store: s, owner: owner, tmp: tmp, hasher: blake3.New(32, nil)}, nil
}

// Write streams p into the staged file and the running hash.
func (w *Writer) Write(p []byte) (int, error) {
	if _, err := w.hasher.Write(p); err != nil {
		return 0, fmt.Errorf("blobstore: hashing write: %w", err)
	}
	return w.tmp.Write(p)
}

// Finalize closes the staged file, computes its cid, atomically
// renames it into v1_data/, writes its sidecar, and returns the cid.
func (w *Writer) Finalize() (string, error) {
	if err := w.tmp.Close(); err != nil {
		w.cleanup()
		return "", fmt.Errorf("blobstore: closing staged file: %w", err)
	}

	var sum [32]byte
	w.hasher.Sum(sum[:0])
	cid := encodeCID(sum)

	if err := os.Rename(w.tmp.Name(), blobPath(w.store.root, cid)); err != nil {
		w.cleanup()
		return "", fmt.Errorf("blobstore: finalizing blob %s: %w", cid, err)
	}
	w.done = true

	if err := recordOwner(w.store.root, cid, w.owner, time.Now()); err != nil {
		return "", fmt.Errorf("blobstore: recording sidecar for %s: %w", cid, err)
	}
	return cid, nil
}

// Abort discards the staged write without finalizing it.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	return w.cleanup()
}

func (w *Writer) cleanup() error {
	_ = w.tmp.Close()
	return os.Remove(w.tmp.Name())
}

// Put is the one-shot convenience form of NewWriter/Write/Finalize for
// callers that already have the full blob in memory or as a reader.
func (s *Store) Put(r io.Reader, owner string) (string, error) {
	w, err := s.NewWriter(owner)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Abort()
		return "", fmt.Errorf("blobstore: writing blob: %w", err)
	}
	return w.Finalize()
}
