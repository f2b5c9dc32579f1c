package blobstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// storeVersion is the on-disk layout version this package writes and
// expects; featureBitmask has no bits defined yet, reserved for future
// sidecar extensions (e.g. compression, chunking).
const (
	storeVersion   = 1
	featureBitmask = 0
)

// Metadata is the repo root's metadata.json: version and feature
// bitmask for whatever reads this store back later.
type Metadata struct {
	Version  int    `json:"version"`
	Features uint64 `json:"features"`
}

func metadataPath(root string) string {
	return filepath.Join(root, "metadata.json")
}

// writeMetadataIfAbsent creates root/metadata.json on first use of a
// store root; an existing file is left untouched.
func writeMetadataIfAbsent(root string) error {
	path := metadataPath(root)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: checking metadata.json: %w", err)
	}

	raw, err := json.Marshal(Metadata{Version: storeVersion, Features: featureBitmask})
	if err != nil {
		return fmt.Errorf("blobstore: encoding metadata.json: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// ReadMetadata loads root/metadata.json.
func ReadMetadata(root string) (Metadata, error) {
	raw, err := os.ReadFile(metadataPath(root))
	if err != nil {
		return Metadata{}, fmt.Errorf("blobstore: reading metadata.json: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("blobstore: decoding metadata.json: %w", err)
	}
	return m, nil
}
