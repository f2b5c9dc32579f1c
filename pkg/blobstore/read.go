package blobstore

import (
	"fmt"
	"io"
	"os"

	"lukechampine.com/blake3"
)

// Get opens cid's blob for reading. Callers that need integrity
// checking should use Verify, since Get itself does not recompute the
// hash.
func (s *Store) Get(cid string) (io.ReadCloser, error) {
	f, err := os.Open(blobPath(s.root, cid))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: opening blob %s: %w", cid, err)
	}
	return f, nil
}

// Verify recomputes cid's blob hash and confirms it still names the
// file it's stored as, returning ErrInvalidData on mismatch and
// ErrNotFound if the blob is absent.
func (s *Store) Verify(cid string) error {
	f, err := s.Get(cid)
	if err != nil {
		return err
	}
	defer f.Close()

	hasher := blake3.New(32, nil)
	if _, err := io.Copy(hasher, f); err != nil {
		return fmt.Errorf("blobstore: hashing blob %s: %w", cid, err)
	}

	var sum [32]byte
	hasher.Sum(sum[:0])
	if encodeCID(sum) != cid {
		return ErrInvalidData
	}
	return nil
}

// Owners returns cid's sidecar owners list.
func (s *Store) Owners(cid string) ([]string, error) {
	sc, err := readSidecar(s.root, cid)
	if err != nil {
		return nil, err
	}
	return sc.Owners, nil
}
