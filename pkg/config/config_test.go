package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadHostAgentConfigRequiresVars(t *testing.T) {
	_, err := LoadHostAgentConfig()
	assert.Error(t, err)

	t.Setenv("HOSTING_AGENT_HOST_NKEY_PATH", "/tmp/host.seed")
	t.Setenv("HOSTING_AGENT_SYS_NKEY_PATH", "/tmp/sys.seed")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := LoadHostAgentConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/host.seed", cfg.Paths.HostNkeySeedFile)
	assert.Equal(t, "nats://localhost:4222", cfg.BusURL)
}

func TestLookupEnvFallsBackToFileVariant(t *testing.T) {
	dir := t.TempDir()
	passFile := filepath.Join(dir, "pass")
	require.NoError(t, os.WriteFile(passFile, []byte("s3cret\n"), 0o600))

	t.Setenv("HOSTING_AGENT_HOST_NKEY_PATH", "/tmp/host.seed")
	t.Setenv("HOSTING_AGENT_SYS_NKEY_PATH", "/tmp/sys.seed")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("NATS_PASSWORD_FILE", passFile)

	cfg, err := LoadHostAgentConfig()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.BusPass)
}

func TestLoadOverlayMissingFileIsNotError(t *testing.T) {
	o, err := LoadOverlay(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestLoadOverlayParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bus_url: nats://dev:4222\nstore_dsn: postgres://dev\n"), 0o600))

	o, err := LoadOverlay(path)
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, "nats://dev:4222", o.BusURL)
}
