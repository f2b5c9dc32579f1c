package authcallout

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holo-host/hpos-core/pkg/authtoken"
	"github.com/holo-host/hpos-core/pkg/identity"
	"github.com/holo-host/hpos-core/pkg/store"
	"github.com/holo-host/hpos-core/pkg/types"
)

// openTestStore mirrors pkg/store's own integration gate: skipped
// unless TEST_POSTGRES_DSN points at a scratch database.
func openTestStore(t *testing.T) *store.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping authcallout integration test")
	}
	db, err := store.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestService(t *testing.T) (*Service, identity.KeyPair) {
	t.Helper()
	db := openTestStore(t)

	signingKey, err := identity.GenerateKeyPair(identity.PrefixAccount)
	require.NoError(t, err)
	sysKey, err := identity.GenerateKeyPair(identity.PrefixAccount)
	require.NoError(t, err)
	rootKey, err := identity.GenerateKeyPair(identity.PrefixAccount)
	require.NoError(t, err)

	nonces, err := OpenNonceCache(filepath.Join(t.TempDir(), "nonces.db"), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nonces.Close() })

	svc := &Service{Store: db, SigningKey: signingKey, SysKey: sysKey, RootKey: rootKey, Nonces: nonces}
	return svc, signingKey
}

func TestHandleCalloutGrantsGuardPermissionsWithoutHosterMatch(t *testing.T) {
	svc, signingKey := newTestService(t)

	host, err := identity.GenerateKeyPair(identity.PrefixHost)
	require.NoError(t, err)
	hostPubkey, err := host.PublicNkey()
	require.NoError(t, err)

	uat, err := UserAuthToken{DeviceID: "device-guard", HostPubkey: hostPubkey, Nonce: "n1"}.Sign(host)
	require.NoError(t, err)
	uatRaw, err := json.Marshal(uat)
	require.NoError(t, err)
	uatEncoded := rawB64.EncodeToString(uatRaw)

	user, err := identity.GenerateKeyPair(identity.PrefixUser)
	require.NoError(t, err)
	userNkey, err := user.PublicNkey()
	require.NoError(t, err)

	callout := CalloutBody{ServerID: "server-1", UserNkey: userNkey, UserAuthToken: uatEncoded}
	outerToken, err := authtoken.EncodeBody(callout, signingKey)
	require.NoError(t, err)

	responseToken, err := svc.HandleCallout(context.Background(), outerToken)
	require.NoError(t, err)
	require.NotEmpty(t, responseToken)
}

func TestHandleValidateMintsHostAndSysJWTs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	host, err := identity.GenerateKeyPair(identity.PrefixHost)
	require.NoError(t, err)
	hostPubkey, err := host.PublicNkey()
	require.NoError(t, err)

	sys, err := identity.GenerateKeyPair(identity.PrefixSys)
	require.NoError(t, err)
	sysPubkey, err := sys.PublicNkey()
	require.NoError(t, err)

	_, err = svc.Store.UpsertHost(ctx, types.Host{
		DeviceID: "device-validate",
		Status:   types.HostStatusAuthenticated,
	})
	require.NoError(t, err)

	req := ValidateRequest{
		DeviceID:       "device-validate",
		HostPubkey:     hostPubkey,
		MaybeSysPubkey: sysPubkey,
		Nonce:          "n-validate-1",
	}
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	sig := host.Sign(payload)
	sigHeader := rawB64.EncodeToString(sig)

	resp, err := svc.HandleValidate(ctx, payload, req, sigHeader)
	require.NoError(t, err)
	require.Equal(t, hostPubkey, resp.HostPubkey)
	require.NotEmpty(t, resp.HostJWT)
	require.NotEmpty(t, resp.SysJWT)
}
