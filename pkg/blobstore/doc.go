// Package blobstore implements the local content-addressable blob
// store (§4.5): files are staged under a random name, hashed with
// blake3 as they stream in, and atomically renamed into place under
// their content id once complete.
package blobstore
