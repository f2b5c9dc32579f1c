// Package reconciler implements the Workload Reconciler: it consumes
// the workload change stream, computes host assignments under capacity
// and change-relevance rules, publishes per-host commands, and
// correlates host status updates back into the store.
package reconciler
