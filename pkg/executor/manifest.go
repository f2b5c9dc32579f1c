package executor

import (
	"encoding/json"
	"fmt"

	"github.com/holo-host/hpos-core/pkg/types"
)

// manifestFields mirrors pkg/store's ManifestFields wire shape — the
// flattened union every manifest kind round-trips through on the bus,
// decoded here from hostagent.WorkloadCommand.Manifest without
// importing pkg/store (and its Postgres driver) just for this shape.
type manifestFields struct {
	Kind          types.ManifestKind `json:"kind"`
	ImageRef      string             `json:"image_ref,omitempty"`
	Command       []string           `json:"command,omitempty"`
	Env           []string           `json:"env,omitempty"`
	Path          string             `json:"path,omitempty"`
	WorkDir       string             `json:"work_dir,omitempty"`
	DnaHash       string             `json:"dna_hash,omitempty"`
	HappBundleURL string             `json:"happ_bundle_url,omitempty"`
	MembraneProof []byte             `json:"membrane_proof,omitempty"`
	NetworkSeed   string             `json:"network_seed,omitempty"`
}

// decodeManifest parses a command's raw manifest bytes into the
// ManifestSpec variant its kind names.
func decodeManifest(raw []byte) (types.ManifestSpec, error) {
	if len(raw) == 0 {
		return types.NoneManifest{}, nil
	}
	var f manifestFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("executor: decoding manifest: %w", err)
	}

	switch f.Kind {
	case types.ManifestKindContainerPath:
		return types.ContainerPathManifest{ImageRef: f.ImageRef, Command: f.Command, Env: f.Env}, nil
	case types.ManifestKindStorePath:
		return types.StorePathManifest{Path: f.Path}, nil
	case types.ManifestKindBuildCmd:
		return types.BuildCmdManifest{Command: f.Command, WorkDir: f.WorkDir}, nil
	case types.ManifestKindHolochainDhtV1:
		return types.HolochainDhtV1Manifest{
			DnaHash:       f.DnaHash,
			HappBundleURL: f.HappBundleURL,
			MembraneProof: f.MembraneProof,
			NetworkSeed:   f.NetworkSeed,
		}, nil
	default:
		return types.NoneManifest{}, nil
	}
}
