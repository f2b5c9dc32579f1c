package hostagent

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketStatus = []byte("status")

// StatusCache persists the last-known StatusReport per workload id
// locally. The dispatcher writes every status it publishes into it;
// fetch_workload_status does not read from it and always queries the
// JobRunner. Grounded on pkg/authcallout's NonceCache, the same
// bbolt-bucket-file shape.
type StatusCache struct {
	db *bolt.DB
}

// OpenStatusCache opens (creating if absent) a bbolt-backed status
// cache at path.
func OpenStatusCache(path string) (*StatusCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("hostagent: opening status cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketStatus)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("hostagent: creating status bucket: %w", err)
	}
	return &StatusCache{db: db}, nil
}

// Close releases the underlying bbolt handle.
func (c *StatusCache) Close() error { return c.db.Close() }

// Put records report as the last-known status for its workload id.
func (c *StatusCache) Put(report StatusReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("hostagent: encoding status report: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStatus).Put([]byte(report.WorkloadID), raw)
	})
}

// Get returns the last-known status for workloadID, and false if none
// has been recorded.
func (c *StatusCache) Get(workloadID string) (StatusReport, bool, error) {
	var report StatusReport
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketStatus).Get([]byte(workloadID))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &report)
	})
	return report, found, err
}
