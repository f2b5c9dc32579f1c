package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holo-host/hpos-core/pkg/store"
	"github.com/holo-host/hpos-core/pkg/types"
)

func TestCommandForWorkloadEncodesManifestRoundTrip(t *testing.T) {
	var id types.DocID
	copy(id[:], []byte("workload-cmd"))

	w := types.Workload{
		ID:              id,
		MinHosts:        2,
		Manifest:        types.ContainerPathManifest{ImageRef: "registry.example/app:1.2.3"},
		ExecutionPolicy: "policy-x",
		Owner:           "dev-1",
		Context:         "prod",
	}

	cmd, err := commandForWorkload(CommandAssign, w)
	require.NoError(t, err)

	assert.Equal(t, CommandAssign, cmd.Op)
	assert.Equal(t, w.ID.String(), cmd.WorkloadID)
	assert.Equal(t, "policy-x", cmd.ExecutionPolicy)

	decoded, err := store.DecodeManifest(cmd.Manifest)
	require.NoError(t, err)
	assert.Equal(t, w.Manifest, decoded)
}

func TestCommandForWorkloadPropagatesNoneManifest(t *testing.T) {
	w := types.Workload{Manifest: types.NoneManifest{}}

	cmd, err := commandForWorkload(CommandUpdate, w)
	require.NoError(t, err)

	decoded, err := store.DecodeManifest(cmd.Manifest)
	require.NoError(t, err)
	assert.Equal(t, types.NoneManifest{}, decoded)
}
