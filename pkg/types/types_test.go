package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocIDTextRoundTrip(t *testing.T) {
	var id DocID
	copy(id[:], []byte("abcdefghijkl"))

	text, err := id.MarshalText()
	require.NoError(t, err)

	var decoded DocID
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, id, decoded)
}

func TestDocIDUnmarshalTextRejectsWrongLength(t *testing.T) {
	var id DocID
	err := id.UnmarshalText([]byte("deadbeef"))
	assert.Error(t, err)
}

func TestDocIDIsZero(t *testing.T) {
	var zero DocID
	assert.True(t, zero.IsZero())

	var id DocID
	id[0] = 1
	assert.False(t, id.IsZero())
}

func TestManifestKindMatchesVariant(t *testing.T) {
	tests := []struct {
		name     string
		manifest ManifestSpec
		wantKind ManifestKind
	}{
		{"none", NoneManifest{}, ManifestKindNone},
		{"container", ContainerPathManifest{ImageRef: "registry/app:1.0"}, ManifestKindContainerPath},
		{"store", StorePathManifest{Path: "/nix/store/abc"}, ManifestKindStorePath},
		{"build", BuildCmdManifest{Command: []string{"make", "build"}}, ManifestKindBuildCmd},
		{"hha", HolochainDhtV1Manifest{DnaHash: "uhC0k..."}, ManifestKindHolochainDhtV1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.manifest.Kind())
		})
	}
}

func TestStateConstructors(t *testing.T) {
	err := StateError("no eligible host")
	assert.Equal(t, WorkloadError, err.Tag)
	assert.Equal(t, "no eligible host", err.Detail)

	unk := StateUnknown("host reported unfamiliar context")
	assert.Equal(t, WorkloadUnknown, unk.Tag)

	running := State(WorkloadRunning)
	assert.Equal(t, WorkloadRunning, running.Tag)
	assert.Empty(t, running.Detail)
}
