package executor

import (
	"context"
	"fmt"

	"github.com/holo-host/hpos-core/pkg/types"
)

// HamClient is the external contract §4.4 treats as a black box:
// installing and querying a HolochainDhtV1Manifest happ. Build-cmd,
// holochain_dht_v1 and none manifests delegate here rather than
// executing locally; store-path manifests come here only when their blob
// is not in the local blob store.
type HamClient interface {
	Install(ctx context.Context, workloadID string, manifest types.ManifestSpec) (status string, err error)
	Status(ctx context.Context, workloadID string) (status string, err error)
	Remove(ctx context.Context, workloadID string) error
}

// UnimplementedHamClient satisfies HamClient by reporting every call as
// unsupported — a placeholder until a real Ham RPC client exists, kept
// separate from Executor so a real implementation can be substituted
// without touching the dispatch logic in executor.go.
type UnimplementedHamClient struct{}

func (UnimplementedHamClient) Install(ctx context.Context, workloadID string, manifest types.ManifestSpec) (string, error) {
	return "", fmt.Errorf("executor: no Ham client configured, cannot install %s for workload %s", manifest.Kind(), workloadID)
}

func (UnimplementedHamClient) Status(ctx context.Context, workloadID string) (string, error) {
	return "", fmt.Errorf("executor: no Ham client configured, cannot query status for workload %s", workloadID)
}

func (UnimplementedHamClient) Remove(ctx context.Context, workloadID string) error {
	return fmt.Errorf("executor: no Ham client configured, cannot remove workload %s", workloadID)
}
