package authcallout

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketNonces = []byte("nonces")

// NonceCache persists (device_id, nonce) -> first_seen on the
// orchestrator, rejecting replays inside window. This closes Open
// Question Q3: the validate endpoint's nonce was previously unchecked.
type NonceCache struct {
	db     *bolt.DB
	window time.Duration
}

// OpenNonceCache opens (creating if absent) a bbolt-backed nonce cache
// at path.
func OpenNonceCache(path string, window time.Duration) (*NonceCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("authcallout: opening nonce cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNonces)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("authcallout: creating nonce bucket: %w", err)
	}
	return &NonceCache{db: db, window: window}, nil
}

// Close releases the underlying bbolt handle.
func (c *NonceCache) Close() error { return c.db.Close() }

// CheckAndRecord returns an error if (deviceID, nonce) was already seen
// within the replay window; otherwise records it as first-seen now.
func (c *NonceCache) CheckAndRecord(deviceID, nonce string) error {
	key := []byte(deviceID + "\x00" + nonce)
	now := time.Now()

	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNonces)
		existing := b.Get(key)
		if existing != nil {
			seenAt, err := time.Parse(time.RFC3339Nano, string(existing))
			if err == nil && now.Sub(seenAt) < c.window {
				return fmt.Errorf("authcallout: nonce %q replayed for device %q", nonce, deviceID)
			}
		}
		return b.Put(key, []byte(now.Format(time.RFC3339Nano)))
	})
}
