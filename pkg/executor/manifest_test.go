package executor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holo-host/hpos-core/pkg/types"
)

func TestDecodeManifestContainerPath(t *testing.T) {
	raw, err := json.Marshal(manifestFields{
		Kind:     types.ManifestKindContainerPath,
		ImageRef: "registry.example/app:1.2.3",
		Command:  []string{"/bin/run"},
		Env:      []string{"FOO=bar"},
	})
	require.NoError(t, err)

	m, err := decodeManifest(raw)
	require.NoError(t, err)
	assert.Equal(t, types.ContainerPathManifest{
		ImageRef: "registry.example/app:1.2.3",
		Command:  []string{"/bin/run"},
		Env:      []string{"FOO=bar"},
	}, m)
}

func TestDecodeManifestHolochainDhtV1(t *testing.T) {
	raw, err := json.Marshal(manifestFields{
		Kind:          types.ManifestKindHolochainDhtV1,
		DnaHash:       "dna-hash",
		HappBundleURL: "https://example/happ.bundle",
		NetworkSeed:   "seed",
	})
	require.NoError(t, err)

	m, err := decodeManifest(raw)
	require.NoError(t, err)
	assert.Equal(t, types.ManifestKindHolochainDhtV1, m.Kind())
	hha, ok := m.(types.HolochainDhtV1Manifest)
	require.True(t, ok)
	assert.Equal(t, "dna-hash", hha.DnaHash)
}

func TestDecodeManifestEmptyReturnsNone(t *testing.T) {
	m, err := decodeManifest(nil)
	require.NoError(t, err)
	assert.Equal(t, types.NoneManifest{}, m)
}

func TestDecodeManifestRejectsInvalidJSON(t *testing.T) {
	_, err := decodeManifest([]byte("{not json"))
	require.Error(t, err)
}
