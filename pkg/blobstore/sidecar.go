package blobstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// sidecar is the {cid}.json record kept alongside each blob: when it
// was first created, when it was last touched, and the append-only
// list of owners that have referenced it.
type sidecar struct {
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Owners  []string  `json:"owners"`
}

func sidecarPath(root, cid string) string {
	return filepath.Join(root, "v1_data", cid+".json")
}

func readSidecar(root, cid string) (sidecar, error) {
	raw, err := os.ReadFile(sidecarPath(root, cid))
	if os.IsNotExist(err) {
		return sidecar{}, ErrNotFound
	}
	if err != nil {
		return sidecar{}, fmt.Errorf("blobstore: reading sidecar for %s: %w", cid, err)
	}
	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return sidecar{}, fmt.Errorf("blobstore: decoding sidecar for %s: %w", cid, err)
	}
	return sc, nil
}

func writeSidecar(root, cid string, sc sidecar) error {
	raw, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("blobstore: encoding sidecar for %s: %w", cid, err)
	}
	return os.WriteFile(sidecarPath(root, cid), raw, 0o644)
}

// AddOwner records owner as a referrer of cid's already-present blob,
// without rehashing or rewriting its bytes. Callers that have just
// verified cid's presence (e.g. the executor resolving a store-path
// manifest) use this instead of Put, which requires the blob's actual
// content and would be wasted work for a blob already on disk.
func (s *Store) AddOwner(cid, owner string) error {
	if err := s.Verify(cid); err != nil {
		return err
	}
	return recordOwner(s.root, cid, owner, time.Now())
}

// recordOwner appends owner to cid's sidecar, creating it with now as
// both timestamps if this is the blob's first write, or bumping
// Updated and appending owner (deduplicated) if it already exists.
func recordOwner(root, cid, owner string, now time.Time) error {
	sc, err := readSidecar(root, cid)
	if err == ErrNotFound {
		sc = sidecar{Created: now, Updated: now, Owners: []string{owner}}
		return writeSidecar(root, cid, sc)
	}
	if err != nil {
		return err
	}

	sc.Updated = now
	for _, o := range sc.Owners {
		if o == owner {
			return writeSidecar(root, cid, sc)
		}
	}
	sc.Owners = append(sc.Owners, owner)
	return writeSidecar(root, cid, sc)
}
