package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/holo-host/hpos-core/pkg/types"
)

// newDocID mints a fresh id in the same 4-byte-timestamp/5-byte-random/
// 3-byte-counter shape types.DocID documents, so ids generated here are
// indistinguishable from ones a document store would have assigned.
func newDocID() types.DocID {
	var id types.DocID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	_, _ = rand.Read(id[4:9])
	counter := docIDCounter.next()
	id[9] = byte(counter >> 16)
	id[10] = byte(counter >> 8)
	id[11] = byte(counter)
	return id
}

var docIDCounter = newCounter()

type counter struct{ ch chan uint32 }

func newCounter() *counter {
	c := &counter{ch: make(chan uint32, 1)}
	c.ch <- 0
	return c
}

func (c *counter) next() uint32 {
	v := <-c.ch
	v++
	c.ch <- v
	return v
}

func docIDFromBytes(b []byte) (types.DocID, error) {
	var id types.DocID
	if len(b) != len(id) {
		return types.DocID{}, fmt.Errorf("store: doc id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func docIDFromHex(s string) (types.DocID, error) {
	var id types.DocID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return types.DocID{}, err
	}
	return id, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
