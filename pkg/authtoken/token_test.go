package authtoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSigner struct {
	priv ed25519.PrivateKey
}

func (s testSigner) Sign(payload []byte) []byte {
	return ed25519.Sign(s.priv, payload)
}

func newTestKeyPair(t *testing.T) (ed25519.PublicKey, testSigner) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, testSigner{priv: priv}
}

func TestEncodeVerifyRoundTrip(t *testing.T) {
	pub, signer := newTestKeyPair(t)

	claims := Claims{
		IssuedAt: time.Now().Unix(),
		Issuer:   "signing-account",
		Subject:  "user-nkey",
		Expires:  time.Now().Add(7 * 24 * time.Hour).Unix(),
		Nats: NatsClaims{
			Type: "user",
			Permissions: Permissions{
				Publish: []string{"AUTH.validate", "AUTH.pk.>"},
			},
		},
	}

	token, err := Encode(claims, signer)
	require.NoError(t, err)

	got, err := Verify(token, pub)
	require.NoError(t, err)
	assert.Equal(t, claims.Subject, got.Subject)
	assert.Equal(t, claims.Nats.Permissions.Publish, got.Nats.Permissions.Publish)
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	pub, signer := newTestKeyPair(t)
	token, err := Encode(Claims{Subject: "user-nkey"}, signer)
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "abcd"
	_, err = Verify(tampered, pub)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, signer := newTestKeyPair(t)
	otherPub, _ := newTestKeyPair(t)

	token, err := Encode(Claims{Subject: "user-nkey"}, signer)
	require.NoError(t, err)

	_, err = Verify(token, otherPub)
	assert.Error(t, err)
}

func TestDecodeReadsHeaderAndClaimsWithoutVerifying(t *testing.T) {
	_, signer := newTestKeyPair(t)
	token, err := Encode(Claims{Subject: "user-nkey", Issuer: "issuer-1"}, signer)
	require.NoError(t, err)

	header, claims, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, Algorithm, header.Alg)
	assert.Equal(t, "issuer-1", claims.Issuer)
}

func TestEncodeBodyVerifyIntoRoundTripsCustomShape(t *testing.T) {
	pub, signer := newTestKeyPair(t)

	type calloutBody struct {
		ServerID      string `json:"server_id"`
		UserNkey      string `json:"user_nkey"`
		UserAuthToken string `json:"user_auth_token"`
	}
	body := calloutBody{ServerID: "srv-1", UserNkey: "U...", UserAuthToken: "eyJ..."}

	token, err := EncodeBody(body, signer)
	require.NoError(t, err)

	var got calloutBody
	err = VerifyInto(token, pub, &got)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestVerifyIntoRejectsWrongKey(t *testing.T) {
	_, signer := newTestKeyPair(t)
	otherPub, _ := newTestKeyPair(t)

	token, err := EncodeBody(map[string]string{"a": "b"}, signer)
	require.NoError(t, err)

	var got map[string]string
	err = VerifyInto(token, otherPub, &got)
	assert.Error(t, err)
}

func TestComputeJTIIsStableAndOrderIndependentOfJTIField(t *testing.T) {
	c1 := Claims{Subject: "x", IssuedAt: 100}
	c2 := c1
	c2.JWTID = "ignored-when-hashing"

	jti1, err := ComputeJTI(c1)
	require.NoError(t, err)
	jti2, err := ComputeJTI(c2)
	require.NoError(t, err)
	assert.Equal(t, jti1, jti2)
	assert.NotEmpty(t, jti1)
}
