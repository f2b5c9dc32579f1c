package blobstore

import "errors"

// ErrNotFound is returned when a blob or its sidecar is absent.
var ErrNotFound = errors.New("blobstore: not found")

// ErrInvalidData is returned by Verify when a stored blob's bytes no
// longer hash to its own cid.
var ErrInvalidData = errors.New("blobstore: invalid data")
