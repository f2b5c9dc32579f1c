package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is a local content-addressable blob store rooted at one
// directory, laid out per §6.3: metadata.json, new/ (staging), and
// v1_data/ (finalized blobs plus their {cid}.json sidecars).
type Store struct {
	root string
}

// Open opens (creating if needed) a Store rooted at root.
func Open(root string) (*Store, error) {
	for _, dir := range []string{root, newDir(root), v1DataDir(root)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("blobstore: creating %s: %w", dir, err)
		}
	}
	if err := writeMetadataIfAbsent(root); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func newDir(root string) string    { return filepath.Join(root, "new") }
func v1DataDir(root string) string { return filepath.Join(root, "v1_data") }

func blobPath(root, cid string) string {
	return filepath.Join(v1DataDir(root), cid)
}
