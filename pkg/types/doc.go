// Package types defines hpos-core's domain model: users, hosters, hosts,
// workloads, and the workload state machine described in the design's
// data-model section. Types carry plain DocID cross-references rather than
// handles, so the store and the reconciler can pass them around and
// (de)serialize them without any ownership cycles.
package types
