package authcallout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holo-host/hpos-core/pkg/authtoken"
	"github.com/holo-host/hpos-core/pkg/identity"
)

func TestUserAuthTokenSignVerifyRoundTrip(t *testing.T) {
	host, err := identity.GenerateKeyPair(identity.PrefixHost)
	require.NoError(t, err)
	hostPubkey, err := host.PublicNkey()
	require.NoError(t, err)

	uat := UserAuthToken{
		DeviceID:   "device-1",
		HostPubkey: hostPubkey,
		Nonce:      "nonce-1",
	}
	signed, err := uat.Sign(host)
	require.NoError(t, err)
	assert.NotEmpty(t, signed.HostSignature)
	assert.NoError(t, signed.Verify())
}

func TestUserAuthTokenVerifyRejectsTamperedField(t *testing.T) {
	host, err := identity.GenerateKeyPair(identity.PrefixHost)
	require.NoError(t, err)
	hostPubkey, err := host.PublicNkey()
	require.NoError(t, err)

	uat := UserAuthToken{DeviceID: "device-1", HostPubkey: hostPubkey, Nonce: "nonce-1"}
	signed, err := uat.Sign(host)
	require.NoError(t, err)

	signed.DeviceID = "device-2"
	assert.Error(t, signed.Verify())
}

func TestUserAuthTokenVerifyRejectsMissingSignature(t *testing.T) {
	host, err := identity.GenerateKeyPair(identity.PrefixHost)
	require.NoError(t, err)
	hostPubkey, err := host.PublicNkey()
	require.NoError(t, err)

	uat := UserAuthToken{DeviceID: "device-1", HostPubkey: hostPubkey, Nonce: "nonce-1"}
	assert.Error(t, uat.Verify())
}

func TestVerifyCalloutRejectsWrongSigningKey(t *testing.T) {
	signing, err := identity.GenerateKeyPair(identity.PrefixAccount)
	require.NoError(t, err)
	other, err := identity.GenerateKeyPair(identity.PrefixAccount)
	require.NoError(t, err)

	body := CalloutBody{ServerID: "server-1", UserNkey: "U123", UserAuthToken: "irrelevant"}
	token, err := authtoken.EncodeBody(body, signing)
	require.NoError(t, err)

	_, err = VerifyCallout(token, other.Public)
	assert.Error(t, err)
}
