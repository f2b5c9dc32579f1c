package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holo-host/hpos-core/pkg/bus"
	"github.com/holo-host/hpos-core/pkg/types"
)

// StatusUpdate is the payload a host publishes to
// WORKLOAD.HandleStatusUpdate after executing a command.
type StatusUpdate struct {
	WorkloadID string              `json:"workload_id,omitempty"`
	DeviceID   string              `json:"device_id"`
	Actual     types.WorkloadState `json:"actual"`
	Payload    string              `json:"payload,omitempty"`
}

// StatusHandler implements §4.3's status correlation: resolve the
// workload id (from the body, falling back to the job_id header when
// absent), write the actual state back, and — when actual transitions
// to Uninstalled or Removed — drop the workload id off the reporting
// host's assigned_workloads (Q4's hook point).
func (r *Reconciler) StatusHandler() bus.Handler {
	return func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		var upd StatusUpdate
		if err := json.Unmarshal(msg.Body, &upd); err != nil {
			return bus.Response{}, fmt.Errorf("reconciler: decoding status update: %w", err)
		}

		workloadIDStr := upd.WorkloadID
		if workloadIDStr == "" {
			workloadIDStr = msg.Headers["job_id"]
		}
		if workloadIDStr == "" {
			return bus.Response{}, errors.New("reconciler: status update missing workload_id and job_id header")
		}

		var workloadID types.DocID
		if err := workloadID.UnmarshalText([]byte(workloadIDStr)); err != nil {
			return bus.Response{}, fmt.Errorf("reconciler: decoding workload id: %w", err)
		}

		if err := r.Store.UpdateWorkloadStatus(ctx, workloadID, types.WorkloadStatus{
			Actual:  upd.Actual,
			Payload: upd.Payload,
		}); err != nil {
			return bus.Response{}, fmt.Errorf("reconciler: recording status update: %w", err)
		}

		if upd.Actual.Tag == types.WorkloadUninstalled || upd.Actual.Tag == types.WorkloadRemoved {
			if err := r.dropFromHost(ctx, workloadID, upd.DeviceID); err != nil {
				return bus.Response{}, err
			}
		}

		return bus.Response{}, nil
	}
}

func (r *Reconciler) dropFromHost(ctx context.Context, workloadID types.DocID, deviceID string) error {
	if deviceID == "" {
		return nil
	}
	host, err := r.Store.GetHostByDeviceID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("reconciler: resolving reporting host %s: %w", deviceID, err)
	}
	return r.Store.UnassignWorkloadFromHost(ctx, workloadID, host.ID)
}
