// Package authtoken implements the bus's ed25519-nkey JWT flavor: a
// three-segment base64url-no-pad token (header.body.signature) signed
// with an ed25519 account key instead of HMAC or RSA. Because the
// header's alg is nonstandard, tokens are never handed to a
// general-purpose JWT library — verification rewrites the header to a
// recognized name internally and keeps the original bytes for emission,
// per the design notes.
package authtoken
