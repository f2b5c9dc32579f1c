// Package store is the document-store substitute: PostgreSQL via sqlx,
// standing in for the design's Mongo-shaped document store and change
// feed. Tables mirror the data model in pkg/types; an append-only
// workload_events table plus a monotonic event_seq column plays the
// role of a change-stream resume token, and a LISTEN/NOTIFY channel on
// that table lets the reconciler wake up instead of polling.
//
// Schema migrations live under migrations/ and are applied with
// golang-migrate. Transient connection failures are wrapped in a
// circuit breaker so a flapping database degrades the reconciler's
// retry behavior instead of spinning it.
package store
