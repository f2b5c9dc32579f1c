package reconciler

import "github.com/holo-host/hpos-core/pkg/types"

// relevanceFingerprint captures the fields whose change fires host
// propagation (§4.3's relevance check): manifest_id, execution_policy,
// owner, context. Any other change is DB-only.
type relevanceFingerprint struct {
	ManifestID      string
	ExecutionPolicy string
	Owner           string
	Context         string
}

func fingerprintOf(w types.Workload) relevanceFingerprint {
	return relevanceFingerprint{
		ManifestID:      w.Manifest.ManifestID(),
		ExecutionPolicy: w.ExecutionPolicy,
		Owner:           w.Owner,
		Context:         w.Context,
	}
}

func (a relevanceFingerprint) changed(b relevanceFingerprint) bool {
	return a != b
}
