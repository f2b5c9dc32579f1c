package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/holo-host/hpos-core/pkg/log"
	"github.com/holo-host/hpos-core/pkg/types"
)

// ResumeToken is the Postgres analogue of a document-store resume
// token: a monotonic event_seq cursor. The zero value replays every
// recorded event; LatestResumeToken supplies the current-time cursor
// used when there is no prior one.
type ResumeToken int64

// ChangeEvent is one row off workload_events.
type ChangeEvent struct {
	Token      ResumeToken
	WorkloadID types.DocID
	Operation  string // insert | update | delete
	OccurredAt time.Time
}

// ChangeStream delivers workload_events rows in order, waking on
// LISTEN/NOTIFY instead of polling, and falling back to a timed poll if
// the notification connection drops — mirroring the bus's "acknowledge
// only after publish attempts conclude" durability posture for the
// reconciler's own consumption loop.
type ChangeStream struct {
	db       *DB
	dsn      string
	listener *pq.Listener
	events   chan ChangeEvent
	errs     chan error
}

// NewChangeStream opens a LISTEN connection on the workload_events
// channel and begins delivering events with sequence number greater
// than from.
func NewChangeStream(db *DB, dsn string, from ResumeToken) (*ChangeStream, error) {
	listener := pq.NewListener(dsn, 2*time.Second, 16*time.Second, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Errorf("changestream: listener event error", err)
		}
	})
	if err := listener.Listen("workload_events"); err != nil {
		return nil, fmt.Errorf("store: listening on workload_events: %w", err)
	}

	cs := &ChangeStream{
		db:       db,
		dsn:      dsn,
		listener: listener,
		events:   make(chan ChangeEvent, 128),
		errs:     make(chan error, 1),
	}
	go cs.run(from)
	return cs, nil
}

// Events returns the channel new change events arrive on, in event_seq
// order.
func (cs *ChangeStream) Events() <-chan ChangeEvent { return cs.events }

// Errs returns the channel transport errors are reported on.
func (cs *ChangeStream) Errs() <-chan error { return cs.errs }

// Close releases the LISTEN connection.
func (cs *ChangeStream) Close() error {
	close(cs.events)
	return cs.listener.Close()
}

func (cs *ChangeStream) run(from ResumeToken) {
	cursor := from
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	drain := func() {
		rows, next, err := cs.db.fetchEventsSince(context.Background(), cursor)
		if err != nil {
			select {
			case cs.errs <- err:
			default:
			}
			return
		}
		for _, r := range rows {
			cs.events <- r
		}
		cursor = next
	}

	drain()
	for {
		select {
		case <-cs.listener.Notify:
			drain()
		case <-ticker.C:
			drain()
		}
	}
}

// fetchEventsSince returns every event with token > since, and the new
// cursor to resume from (the max token seen, or since if none arrived).
func (d *DB) fetchEventsSince(ctx context.Context, since ResumeToken) ([]ChangeEvent, ResumeToken, error) {
	var rows []struct {
		EventSeq   int64     `db:"event_seq"`
		WorkloadID []byte    `db:"workload_id"`
		Operation  string    `db:"operation"`
		OccurredAt time.Time `db:"occurred_at"`
	}
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.SelectContext(ctx, &rows, `
			SELECT event_seq, workload_id, operation, occurred_at
			FROM workload_events
			WHERE event_seq > $1
			ORDER BY event_seq ASC
			LIMIT 500
		`, int64(since))
	})
	if err != nil {
		return nil, since, fmt.Errorf("store: fetch events since %d: %w", since, err)
	}

	out := make([]ChangeEvent, 0, len(rows))
	cursor := since
	for _, r := range rows {
		id, err := docIDFromBytes(r.WorkloadID)
		if err != nil {
			return nil, since, err
		}
		out = append(out, ChangeEvent{
			Token:      ResumeToken(r.EventSeq),
			WorkloadID: id,
			Operation:  r.Operation,
			OccurredAt: r.OccurredAt,
		})
		cursor = ResumeToken(r.EventSeq)
	}
	return out, cursor, nil
}

// LatestResumeToken returns the current max event_seq, the "current
// time" equivalent used when the reconciler has no prior cursor.
func (d *DB) LatestResumeToken(ctx context.Context) (ResumeToken, error) {
	var max sql.NullInt64
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.GetContext(ctx, &max, `SELECT max(event_seq) FROM workload_events`)
	})
	if err != nil {
		return 0, fmt.Errorf("store: latest resume token: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return ResumeToken(max.Int64), nil
}
