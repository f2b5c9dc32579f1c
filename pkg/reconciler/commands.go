package reconciler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/holo-host/hpos-core/pkg/log"
	"github.com/holo-host/hpos-core/pkg/store"
	"github.com/holo-host/hpos-core/pkg/types"
)

// CommandOp names the kind of per-host workload command §4.3 publishes.
type CommandOp string

const (
	CommandAssign CommandOp = "assign"
	CommandUpdate CommandOp = "update"
	CommandRemove CommandOp = "remove"
)

// WorkloadCommand is the payload published to a host's command
// subject. Manifest travels as the same JSON shape the store persists
// it as, so the host agent decodes it with store.DecodeManifest.
type WorkloadCommand struct {
	Op              CommandOp         `json:"op"`
	WorkloadID      string            `json:"workload_id"`
	Manifest        json.RawMessage   `json:"manifest,omitempty"`
	SystemSpecs     types.SystemSpecs `json:"system_specs"`
	ExecutionPolicy string            `json:"execution_policy,omitempty"`
	Owner           string            `json:"owner,omitempty"`
	Context         string            `json:"context,omitempty"`
}

// publishToHosts fans out cmd to every hostID's update_workload
// subject (WORKLOAD.<device_id>.update), resolving device_id per host.
// This plays the role §4.1 describes for a reply's tag-map fan-out,
// adapted for a reconciler-originated command rather than a reply to
// an inbound message: there is no inbound message to reply to, so the
// fan-out loop is inlined here instead of going through bus's
// ReplySubjectFn.
func (r *Reconciler) publishToHosts(ctx context.Context, cmd WorkloadCommand, hostIDs []types.DocID) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("reconciler: encoding command: %w", err)
	}

	var result *multierror.Error
	for _, hostID := range hostIDs {
		host, err := r.Store.GetHost(ctx, hostID)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("resolving device_id for host %s: %w", hostID, err))
			continue
		}
		subject := "WORKLOAD." + host.DeviceID + ".update"
		headers := map[string]string{"workload_id": cmd.WorkloadID}
		if err := r.Bus.Publish(ctx, subject, body, headers); err != nil {
			result = multierror.Append(result, fmt.Errorf("publishing to %s: %w", subject, err))
		}
	}

	if result == nil {
		return nil
	}
	log.WithWorkload(cmd.WorkloadID).Error().Err(result).Msg("reconciler: one or more per-host command publishes failed")
	return result
}

func commandForWorkload(op CommandOp, w types.Workload) (WorkloadCommand, error) {
	manifestJSON, err := store.EncodeManifest(w.Manifest)
	if err != nil {
		return WorkloadCommand{}, err
	}
	return WorkloadCommand{
		Op:              op,
		WorkloadID:      w.ID.String(),
		Manifest:        manifestJSON,
		SystemSpecs:     w.SystemSpecs,
		ExecutionPolicy: w.ExecutionPolicy,
		Owner:           w.Owner,
		Context:         w.Context,
	}, nil
}
