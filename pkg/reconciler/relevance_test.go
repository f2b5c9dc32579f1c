package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holo-host/hpos-core/pkg/types"
)

func TestRelevanceFingerprintChangedDetectsEachTrackedField(t *testing.T) {
	base := types.Workload{
		Manifest:        types.ContainerPathManifest{ImageRef: "img:1"},
		ExecutionPolicy: "policy-a",
		Owner:           "dev-1",
		Context:         "prod",
	}

	cases := []struct {
		name    string
		mutate  func(w types.Workload) types.Workload
		changed bool
	}{
		{"identical", func(w types.Workload) types.Workload { return w }, false},
		{"manifest changed", func(w types.Workload) types.Workload {
			w.Manifest = types.ContainerPathManifest{ImageRef: "img:2"}
			return w
		}, true},
		{"execution policy changed", func(w types.Workload) types.Workload {
			w.ExecutionPolicy = "policy-b"
			return w
		}, true},
		{"owner changed", func(w types.Workload) types.Workload {
			w.Owner = "dev-2"
			return w
		}, true},
		{"context changed", func(w types.Workload) types.Workload {
			w.Context = "staging"
			return w
		}, true},
		{"min_hosts alone does not count", func(w types.Workload) types.Workload {
			w.MinHosts = 7
			return w
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other := tc.mutate(base)
			assert.Equal(t, tc.changed, fingerprintOf(base).changed(fingerprintOf(other)))
		})
	}
}
