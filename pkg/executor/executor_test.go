package executor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holo-host/hpos-core/pkg/blobstore"
	"github.com/holo-host/hpos-core/pkg/hostagent"
	"github.com/holo-host/hpos-core/pkg/types"
)

type fakeHamClient struct {
	installStatus string
	installErr    error
	statusValue   string
	statusErr     error
	removeErr     error
	removedIDs    []string
}

func (f *fakeHamClient) Install(ctx context.Context, workloadID string, manifest types.ManifestSpec) (string, error) {
	return f.installStatus, f.installErr
}

func (f *fakeHamClient) Status(ctx context.Context, workloadID string) (string, error) {
	return f.statusValue, f.statusErr
}

func (f *fakeHamClient) Remove(ctx context.Context, workloadID string) error {
	f.removedIDs = append(f.removedIDs, workloadID)
	return f.removeErr
}

func holochainCommand(op hostagent.CommandOp, workloadID string) hostagent.WorkloadCommand {
	raw, _ := json.Marshal(manifestFields{
		Kind:    types.ManifestKindHolochainDhtV1,
		DnaHash: "dna-1",
	})
	return hostagent.WorkloadCommand{Op: op, WorkloadID: workloadID, Manifest: raw}
}

func storePathCommand(op hostagent.CommandOp, workloadID, path string) hostagent.WorkloadCommand {
	raw, _ := json.Marshal(manifestFields{
		Kind: types.ManifestKindStorePath,
		Path: path,
	})
	return hostagent.WorkloadCommand{Op: op, WorkloadID: workloadID, Manifest: raw}
}

func TestExecutorRunStorePathResolvesLocallyWithoutHam(t *testing.T) {
	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	cid, err := blobs.Put(strings.NewReader("hello world"), "test-writer")
	require.NoError(t, err)

	ham := &fakeHamClient{installErr: assertErr("ham should not have been called")}
	e := NewExecutor(nil, ham, blobs)

	report, err := e.UpdateWorkload(context.Background(), hostagent.ApiOptions{}, storePathCommand(hostagent.CommandAssign, "wl-1", cid))
	require.NoError(t, err)
	assert.Equal(t, "running", report.Actual)

	owners, err := blobs.Owners(cid)
	require.NoError(t, err)
	assert.Contains(t, owners, "wl-1")
}

func TestExecutorRunStorePathFallsBackToHamWhenBlobAbsent(t *testing.T) {
	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)

	ham := &fakeHamClient{installStatus: "pending"}
	e := NewExecutor(nil, ham, blobs)

	report, err := e.UpdateWorkload(context.Background(), hostagent.ApiOptions{}, storePathCommand(hostagent.CommandAssign, "wl-1", "missing-cid"))
	require.NoError(t, err)
	assert.Equal(t, "pending", report.Actual)
}

func TestExecutorUpdateWorkloadDelegatesNonContainerManifestToHam(t *testing.T) {
	ham := &fakeHamClient{installStatus: "pending"}
	e := NewExecutor(nil, ham, nil)

	report, err := e.UpdateWorkload(context.Background(), hostagent.ApiOptions{}, holochainCommand(hostagent.CommandAssign, "wl-1"))
	require.NoError(t, err)
	assert.Equal(t, "pending", report.Actual)
	assert.Equal(t, "wl-1", report.WorkloadID)
}

func TestExecutorUpdateWorkloadSurfacesHamInstallError(t *testing.T) {
	ham := &fakeHamClient{installErr: assertErr("install failed")}
	e := NewExecutor(nil, ham, nil)

	report, err := e.UpdateWorkload(context.Background(), hostagent.ApiOptions{}, holochainCommand(hostagent.CommandAssign, "wl-1"))
	require.Error(t, err)
	assert.Equal(t, "error", report.Actual)
}

func TestExecutorRemoveDelegatesNonContainerManifestToHam(t *testing.T) {
	ham := &fakeHamClient{}
	e := NewExecutor(nil, ham, nil)

	report, err := e.UpdateWorkload(context.Background(), hostagent.ApiOptions{}, holochainCommand(hostagent.CommandRemove, "wl-1"))
	require.NoError(t, err)
	assert.Equal(t, "uninstalled", report.Actual)
	assert.Equal(t, []string{"wl-1"}, ham.removedIDs)
}

func TestExecutorFetchWorkloadStatusFallsBackToHamWithoutRuntime(t *testing.T) {
	ham := &fakeHamClient{statusValue: "running"}
	e := NewExecutor(nil, ham, nil)

	report, err := e.FetchWorkloadStatus(context.Background(), hostagent.ApiOptions{}, "wl-1")
	require.NoError(t, err)
	assert.Equal(t, "running", report.Actual)
}

func TestExecutorUpdateWorkloadRejectsUnrecognizedOp(t *testing.T) {
	e := NewExecutor(nil, &fakeHamClient{}, nil)
	cmd := holochainCommand(hostagent.CommandOp("bogus"), "wl-1")

	_, err := e.UpdateWorkload(context.Background(), hostagent.ApiOptions{}, cmd)
	require.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
