// Package hostagent implements the host-side half of workload dispatch
// (§4.4): durable consumers that execute lifecycle commands and report
// status, plus the HC-HTTP-Gateway key/value watcher.
package hostagent
