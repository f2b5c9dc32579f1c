// Package identity implements the per-host Identity Keystore and
// Credentials Store described in the design's system overview: ed25519
// host/sys key pairs generated and persisted with owner-only permissions,
// and a file-backed credentials set that is either guard (minimal
// unauthenticated publish rights) or authenticated (full per-host
// permissions) — never both, and the transition is one-way per boot (I5).
//
// File handling follows the teacher's pkg/security/certs.go: directories
// created as needed, files written 0600, and a failed partial write
// cleans up everything written earlier in the same operation.
package identity
