// Package executor implements the host-side local job API §4.4
// delegates to: container-path manifests run for real via containerd,
// store-path manifests resolve against the local blob store when their
// blob is present, and everything else is forwarded to the external Ham
// contract.
package executor
