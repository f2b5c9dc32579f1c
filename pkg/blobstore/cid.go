package blobstore

import "encoding/base64"

// cidPrefix marks every content id as a version-1, blake3-256 digest.
const cidPrefix = "c1"

func encodeCID(sum [32]byte) string {
	return cidPrefix + base64.RawURLEncoding.EncodeToString(sum[:])
}
