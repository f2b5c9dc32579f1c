package authtoken

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Algorithm is the bus's nonstandard JWT alg. Never forward a token
// carrying this alg to a general-purpose JWT verifier — it will reject
// it outright.
const Algorithm = "ed25519-nkey"

var b64 = base64.URLEncoding.WithPadding(base64.NoPadding)
var b32hex = base32.HexEncoding.WithPadding(base32.NoPadding)

// Header is the fixed JWT header this package emits and expects.
type Header struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

// Permissions is the pub/sub permission set embedded under the "nats"
// claims field.
type Permissions struct {
	Publish   []string `json:"publish,omitempty"`
	Subscribe []string `json:"subscribe,omitempty"`
}

// NatsClaims carries the domain-specific fields nested under "nats" in
// the JWT body, per §6.2.
type NatsClaims struct {
	Type        string      `json:"type,omitempty"`
	Permissions Permissions `json:"permissions,omitempty"`
}

// Claims is the JWT body. Top-level fields match §6.2 exactly; domain
// fields live under Nats.
type Claims struct {
	IssuedAt      int64      `json:"iat"`
	Issuer        string     `json:"iss"`
	Subject       string     `json:"sub"`
	Audience      string     `json:"aud,omitempty"`
	Expires       int64      `json:"exp,omitempty"`
	NotBefore     int64      `json:"nbf,omitempty"`
	JWTID         string     `json:"jti,omitempty"`
	Name          string     `json:"name,omitempty"`
	IssuerAccount string     `json:"issuer_account,omitempty"`
	Nats          NatsClaims `json:"nats,omitempty"`
}

// Signer produces an ed25519 signature over a payload. identity.KeyPair
// satisfies this without authtoken importing identity.
type Signer interface {
	Sign(payload []byte) []byte
}

// ComputeJTI derives the jwt_id the spec requires: base32hex(sha256(claim
// body)), computed over the claims' canonical JSON encoding.
func ComputeJTI(claims Claims) (string, error) {
	withoutJTI := claims
	withoutJTI.JWTID = ""
	body, err := json.Marshal(withoutJTI)
	if err != nil {
		return "", fmt.Errorf("authtoken: marshaling claims for jti: %w", err)
	}
	sum := sha256.Sum256(body)
	return b32hex.EncodeToString(sum[:]), nil
}

// Encode signs claims with signer and renders the three-segment token:
// base64url_nopad(header) + "." + base64url_nopad(body) + "." +
// base64url_nopad(signature).
func Encode(claims Claims, signer Signer) (string, error) {
	headerJSON, err := json.Marshal(Header{Typ: "JWT", Alg: Algorithm})
	if err != nil {
		return "", fmt.Errorf("authtoken: marshaling header: %w", err)
	}
	bodyJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("authtoken: marshaling claims: %w", err)
	}

	signingInput := b64.EncodeToString(headerJSON) + "." + b64.EncodeToString(bodyJSON)
	sig := signer.Sign([]byte(signingInput))
	return signingInput + "." + b64.EncodeToString(sig), nil
}

// Decode splits a token into its header and claims without verifying
// the signature. Use Verify for the authenticated path; Decode exists
// for inspecting tokens whose issuer key is not yet known.
func Decode(token string) (Header, Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Header{}, Claims{}, errors.New("authtoken: malformed token, expected 3 segments")
	}

	headerJSON, err := b64.DecodeString(parts[0])
	if err != nil {
		return Header{}, Claims{}, fmt.Errorf("authtoken: decoding header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, Claims{}, fmt.Errorf("authtoken: unmarshaling header: %w", err)
	}

	bodyJSON, err := b64.DecodeString(parts[1])
	if err != nil {
		return Header{}, Claims{}, fmt.Errorf("authtoken: decoding body: %w", err)
	}
	var claims Claims
	if err := json.Unmarshal(bodyJSON, &claims); err != nil {
		return Header{}, Claims{}, fmt.Errorf("authtoken: unmarshaling body: %w", err)
	}

	return header, claims, nil
}

// Verify decodes token, confirms its header carries the expected
// ed25519-nkey alg (rewritten internally to a recognizable name for this
// check rather than routed through a standard JWT verifier, which would
// reject the nonstandard alg outright), and checks the signature segment
// against pub.
func Verify(token string, pub ed25519.PublicKey) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, errors.New("authtoken: malformed token, expected 3 segments")
	}

	header, claims, err := Decode(token)
	if err != nil {
		return Claims{}, err
	}
	if normalizeAlg(header.Alg) != normalizeAlg(Algorithm) {
		return Claims{}, fmt.Errorf("authtoken: unsupported alg %q", header.Alg)
	}

	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return Claims{}, fmt.Errorf("authtoken: decoding signature: %w", err)
	}

	signingInput := parts[0] + "." + parts[1]
	if !ed25519.Verify(pub, []byte(signingInput), sig) {
		return Claims{}, errors.New("authtoken: signature verification failed")
	}

	return claims, nil
}

// normalizeAlg maps the bus's nonstandard alg name to itself; kept as a
// single seam so a future alg variant only needs a change here, not at
// every call site that compares alg strings.
func normalizeAlg(alg string) string {
	return strings.ToLower(alg)
}

// EncodeBody signs an arbitrary JSON-marshalable body, for callers
// whose claims shape extends beyond Claims (the auth-callout's nested
// server_id/user_nkey/user_auth_token fields, for instance).
func EncodeBody(body interface{}, signer Signer) (string, error) {
	headerJSON, err := json.Marshal(Header{Typ: "JWT", Alg: Algorithm})
	if err != nil {
		return "", fmt.Errorf("authtoken: marshaling header: %w", err)
	}
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("authtoken: marshaling body: %w", err)
	}

	signingInput := b64.EncodeToString(headerJSON) + "." + b64.EncodeToString(bodyJSON)
	sig := signer.Sign([]byte(signingInput))
	return signingInput + "." + b64.EncodeToString(sig), nil
}

// DecodeInto unmarshals a token's body into v without verifying its
// signature.
func DecodeInto(token string, v interface{}) (Header, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Header{}, errors.New("authtoken: malformed token, expected 3 segments")
	}

	headerJSON, err := b64.DecodeString(parts[0])
	if err != nil {
		return Header{}, fmt.Errorf("authtoken: decoding header: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, fmt.Errorf("authtoken: unmarshaling header: %w", err)
	}

	bodyJSON, err := b64.DecodeString(parts[1])
	if err != nil {
		return Header{}, fmt.Errorf("authtoken: decoding body: %w", err)
	}
	if err := json.Unmarshal(bodyJSON, v); err != nil {
		return Header{}, fmt.Errorf("authtoken: unmarshaling body: %w", err)
	}
	return header, nil
}

// VerifyInto verifies token's signature against pub and unmarshals its
// body into v.
func VerifyInto(token string, pub ed25519.PublicKey, v interface{}) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return errors.New("authtoken: malformed token, expected 3 segments")
	}

	header, err := DecodeInto(token, v)
	if err != nil {
		return err
	}
	if normalizeAlg(header.Alg) != normalizeAlg(Algorithm) {
		return fmt.Errorf("authtoken: unsupported alg %q", header.Alg)
	}

	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("authtoken: decoding signature: %w", err)
	}
	signingInput := parts[0] + "." + parts[1]
	if !ed25519.Verify(pub, []byte(signingInput), sig) {
		return errors.New("authtoken: signature verification failed")
	}
	return nil
}
