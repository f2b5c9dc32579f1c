package hostagent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/holo-host/hpos-core/pkg/bus"
	"github.com/holo-host/hpos-core/pkg/log"
)

// statusUpdate mirrors pkg/reconciler's StatusUpdate wire shape — a
// separate declaration for the same dependency-isolation reason as
// WorkloadCommand.
type statusUpdate struct {
	WorkloadID string `json:"workload_id,omitempty"`
	DeviceID   string `json:"device_id"`
	Actual     struct {
		Tag    string `json:"Tag"`
		Detail string `json:"Detail"`
	} `json:"actual"`
	Payload string `json:"payload,omitempty"`
}

// Dispatcher runs the two durable consumers §4.4 names:
// update_workload on WORKLOAD.<device_id>.update and
// fetch_workload_status on WORKLOAD.<device_id>.send_status. Both
// invoke the local job API and publish the result on the shared
// WORKLOAD.HandleStatusUpdate subject.
type Dispatcher struct {
	Bus      *bus.Service
	DeviceID string
	Runner   JobRunner
	Cache    *StatusCache // optional; last-known-status persisted locally
	logger   zerolog.Logger
}

// NewDispatcher builds a Dispatcher bound to deviceID's command
// subjects.
func NewDispatcher(busSvc *bus.Service, deviceID string, runner JobRunner, cache *StatusCache) *Dispatcher {
	return &Dispatcher{
		Bus:      busSvc,
		DeviceID: deviceID,
		Runner:   runner,
		Cache:    cache,
		logger:   log.WithHost(deviceID),
	}
}

// Start registers both durable consumers.
func (d *Dispatcher) Start() error {
	if err := d.Bus.AddConsumer("update_workload", "WORKLOAD."+d.DeviceID+".update", d.updateHandler(), nil); err != nil {
		return fmt.Errorf("hostagent: registering update_workload consumer: %w", err)
	}
	if err := d.Bus.AddConsumer("fetch_workload_status", "WORKLOAD."+d.DeviceID+".send_status", d.sendStatusHandler(), nil); err != nil {
		return fmt.Errorf("hostagent: registering fetch_workload_status consumer: %w", err)
	}
	return nil
}

// Stop tears down both consumers.
func (d *Dispatcher) Stop() {
	_ = d.Bus.DeleteConsumer("update_workload")
	_ = d.Bus.DeleteConsumer("fetch_workload_status")
}

func (d *Dispatcher) updateHandler() bus.Handler {
	return func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		var cmd WorkloadCommand
		if err := json.Unmarshal(msg.Body, &cmd); err != nil {
			return bus.Response{}, fmt.Errorf("hostagent: decoding workload command: %w", err)
		}

		report, err := d.Runner.UpdateWorkload(ctx, ApiOptions{DeviceID: d.DeviceID}, cmd)
		if err != nil {
			d.logger.Error().Err(err).Str("workload_id", cmd.WorkloadID).Msg("update_workload failed")
			report = StatusReport{WorkloadID: cmd.WorkloadID, Actual: "error", Payload: err.Error()}
		}
		return bus.Response{}, d.publishStatus(ctx, report)
	}
}

func (d *Dispatcher) sendStatusHandler() bus.Handler {
	return func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		workloadID := msg.Headers["workload_id"]
		report, err := d.Runner.FetchWorkloadStatus(ctx, ApiOptions{DeviceID: d.DeviceID}, workloadID)
		if err != nil {
			d.logger.Error().Err(err).Str("workload_id", workloadID).Msg("fetch_workload_status failed")
			report = StatusReport{WorkloadID: workloadID, Actual: "error", Payload: err.Error()}
		}
		return bus.Response{}, d.publishStatus(ctx, report)
	}
}

func (d *Dispatcher) publishStatus(ctx context.Context, report StatusReport) error {
	if d.Cache != nil {
		if err := d.Cache.Put(report); err != nil {
			d.logger.Warn().Err(err).Str("workload_id", report.WorkloadID).Msg("failed to persist status to local cache")
		}
	}

	upd := statusUpdate{WorkloadID: report.WorkloadID, DeviceID: d.DeviceID, Payload: report.Payload}
	upd.Actual.Tag = report.Actual

	body, err := json.Marshal(upd)
	if err != nil {
		return fmt.Errorf("hostagent: encoding status update: %w", err)
	}
	headers := map[string]string{"workload_id": report.WorkloadID}
	if err := d.Bus.Publish(ctx, "WORKLOAD.HandleStatusUpdate", body, headers); err != nil {
		return fmt.Errorf("hostagent: publishing status update: %w", err)
	}
	return nil
}
