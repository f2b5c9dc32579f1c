package identity

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNkeyEncodeDecodeRoundTrip(t *testing.T) {
	k, err := GenerateKeyPair(PrefixHost)
	require.NoError(t, err)

	encoded, err := k.PublicNkey()
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeNkey(encoded, PrefixHost)
	require.NoError(t, err)
	assert.Equal(t, []byte(k.Public), []byte(decoded))
}

func TestDecodeNkeyRejectsWrongPrefix(t *testing.T) {
	k, err := GenerateKeyPair(PrefixHost)
	require.NoError(t, err)
	encoded, err := k.PublicNkey()
	require.NoError(t, err)

	_, err = DecodeNkey(encoded, PrefixSys)
	assert.Error(t, err)
}

func TestDecodeNkeyRejectsTamperedChecksum(t *testing.T) {
	k, err := GenerateKeyPair(PrefixHost)
	require.NoError(t, err)
	encoded, err := k.PublicNkey()
	require.NoError(t, err)

	tampered := []rune(encoded)
	if tampered[len(tampered)-1] == 'A' {
		tampered[len(tampered)-1] = 'B'
	} else {
		tampered[len(tampered)-1] = 'A'
	}
	_, err = DecodeNkey(string(tampered), PrefixHost)
	assert.Error(t, err)
}

func TestSignVerifiesAgainstSamePublicKey(t *testing.T) {
	k, err := GenerateKeyPair(PrefixHost)
	require.NoError(t, err)

	payload := []byte("hello host agent")
	sig := k.Sign(payload)
	assert.True(t, ed25519.Verify(k.Public, payload, sig))
}

func TestLoadOrGenerateSeedPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.seed")

	first, err := LoadOrGenerateSeed(path, PrefixHost)
	require.NoError(t, err)

	second, err := LoadOrGenerateSeed(path, PrefixHost)
	require.NoError(t, err)

	assert.Equal(t, first.Public, second.Public)
}

func TestSaveSeedsCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "host.seed")
	// An empty path is invalid and should make the second write fail,
	// triggering cleanup of the first.
	bad := ""

	k, err := GenerateKeyPair(PrefixHost)
	require.NoError(t, err)

	err = SaveSeeds(map[string]KeyPair{good: k, bad: k})
	assert.Error(t, err)
	assert.NoFileExists(t, good)
}

func TestCredentialsUpgradeIsOneWay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.creds")

	guard := NewGuardCredentials()
	assert.Equal(t, StateGuard, guard.State())

	authed, err := guard.Upgrade("jwt-token", path)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, authed.State())

	_, err = authed.Upgrade("another-token", path)
	assert.Error(t, err)
}

func TestLoadCredentialsFallsBackToGuard(t *testing.T) {
	dir := t.TempDir()
	c, err := LoadCredentials(filepath.Join(dir, "missing.creds"))
	require.NoError(t, err)
	assert.Equal(t, StateGuard, c.State())
}
