package executor

import (
	"context"
	"fmt"

	"github.com/holo-host/hpos-core/pkg/blobstore"
	"github.com/holo-host/hpos-core/pkg/hostagent"
	"github.com/holo-host/hpos-core/pkg/types"
)

// Executor implements hostagent.JobRunner: it runs container-path
// manifests for real via containerd, resolves store-path manifests
// against the local content-addressed blob store, and delegates every
// other manifest kind to Ham. This is the only concrete local job API
// §4.4 assumes — every other variant stays an external contract.
type Executor struct {
	Runtime *ContainerRuntime
	Ham     HamClient
	Blobs   *blobstore.Store // optional; nil disables the store-path fast path
}

// NewExecutor builds an Executor. ham may be UnimplementedHamClient{}
// until a real Ham RPC client is wired in. blobs may be nil, in which
// case store-path manifests fall straight through to ham.
func NewExecutor(runtime *ContainerRuntime, ham HamClient, blobs *blobstore.Store) *Executor {
	if ham == nil {
		ham = UnimplementedHamClient{}
	}
	return &Executor{Runtime: runtime, Ham: ham, Blobs: blobs}
}

// UpdateWorkload applies cmd: assign/update runs or re-runs the
// manifest's payload, remove tears it down. The manifest travels on
// every op (including remove), so there's no need to track which kind
// a workload_id was last assigned as.
func (e *Executor) UpdateWorkload(ctx context.Context, opts hostagent.ApiOptions, cmd hostagent.WorkloadCommand) (hostagent.StatusReport, error) {
	manifest, err := decodeManifest(cmd.Manifest)
	if err != nil {
		return hostagent.StatusReport{WorkloadID: cmd.WorkloadID, Actual: "error", Payload: err.Error()}, err
	}

	switch cmd.Op {
	case hostagent.CommandRemove:
		return e.remove(ctx, cmd.WorkloadID, manifest)
	case hostagent.CommandAssign, hostagent.CommandUpdate:
		return e.run(ctx, cmd.WorkloadID, manifest)
	default:
		err := fmt.Errorf("executor: unrecognized command op %q", cmd.Op)
		return hostagent.StatusReport{WorkloadID: cmd.WorkloadID, Actual: "error", Payload: err.Error()}, err
	}
}

// FetchWorkloadStatus reports workloadID's current state. Since the
// manifest kind isn't known at this call site, both backends are
// consulted; containerd's answer wins when it has an opinion (not
// "pending" from an absent container), since only one backend will
// ever actually be running a given workload_id.
func (e *Executor) FetchWorkloadStatus(ctx context.Context, opts hostagent.ApiOptions, workloadID string) (hostagent.StatusReport, error) {
	if e.Runtime != nil {
		status, err := e.Runtime.Status(ctx, containerID(workloadID))
		if err == nil && status != "pending" {
			return hostagent.StatusReport{WorkloadID: workloadID, Actual: status}, nil
		}
	}

	status, err := e.Ham.Status(ctx, workloadID)
	if err != nil {
		return hostagent.StatusReport{WorkloadID: workloadID, Actual: "error", Payload: err.Error()}, err
	}
	return hostagent.StatusReport{WorkloadID: workloadID, Actual: status}, nil
}

func (e *Executor) run(ctx context.Context, workloadID string, manifest types.ManifestSpec) (hostagent.StatusReport, error) {
	if sp, ok := manifest.(types.StorePathManifest); ok {
		return e.runStorePath(ctx, workloadID, sp)
	}

	cp, ok := manifest.(types.ContainerPathManifest)
	if !ok {
		status, err := e.Ham.Install(ctx, workloadID, manifest)
		if err != nil {
			return hostagent.StatusReport{WorkloadID: workloadID, Actual: "error", Payload: err.Error()}, err
		}
		return hostagent.StatusReport{WorkloadID: workloadID, Actual: status}, nil
	}

	imageRef, err := resolveImageRef(cp.ImageRef)
	if err != nil {
		// fall back to the unresolved reference; containerd can still
		// pull it directly, resolution is a correctness aid, not a
		// precondition
		imageRef = cp.ImageRef
	}

	if err := e.Runtime.Run(ctx, containerID(workloadID), imageRef, cp.Command, cp.Env); err != nil {
		return hostagent.StatusReport{WorkloadID: workloadID, Actual: "error", Payload: err.Error()}, err
	}
	return hostagent.StatusReport{WorkloadID: workloadID, Actual: "running"}, nil
}

// runStorePath resolves a store-path manifest against the local
// content-addressed blob store: if the referenced cid is already
// present and intact, the workload is considered running without
// involving Ham at all. Anything else (no local store configured, the
// blob missing, or a hash mismatch) falls through to Ham, which owns
// actually fetching and installing the content.
func (e *Executor) runStorePath(ctx context.Context, workloadID string, sp types.StorePathManifest) (hostagent.StatusReport, error) {
	if e.Blobs != nil {
		if err := e.Blobs.AddOwner(sp.Path, workloadID); err == nil {
			return hostagent.StatusReport{WorkloadID: workloadID, Actual: "running"}, nil
		}
	}

	status, err := e.Ham.Install(ctx, workloadID, sp)
	if err != nil {
		return hostagent.StatusReport{WorkloadID: workloadID, Actual: "error", Payload: err.Error()}, err
	}
	return hostagent.StatusReport{WorkloadID: workloadID, Actual: status}, nil
}

func (e *Executor) remove(ctx context.Context, workloadID string, manifest types.ManifestSpec) (hostagent.StatusReport, error) {
	if _, ok := manifest.(types.ContainerPathManifest); ok {
		if err := e.Runtime.Remove(ctx, containerID(workloadID)); err != nil {
			return hostagent.StatusReport{WorkloadID: workloadID, Actual: "error", Payload: err.Error()}, err
		}
		return hostagent.StatusReport{WorkloadID: workloadID, Actual: "uninstalled"}, nil
	}

	if err := e.Ham.Remove(ctx, workloadID); err != nil {
		return hostagent.StatusReport{WorkloadID: workloadID, Actual: "error", Payload: err.Error()}, err
	}
	return hostagent.StatusReport{WorkloadID: workloadID, Actual: "uninstalled"}, nil
}

// containerID derives the containerd container name from a workload_id
// — a plain 1:1 mapping, kept as a named function so the convention
// has one place to change.
func containerID(workloadID string) string {
	return "wl-" + workloadID
}
