package hostagent

import "context"

// ApiOptions is passed to every local job API call, per §4.4.
type ApiOptions struct {
	DeviceID string
}

// StatusReport is what a JobRunner call returns — packaged onto
// WORKLOAD.HandleStatusUpdate by the dispatcher.
type StatusReport struct {
	WorkloadID string
	Actual     string // one of types.WorkloadStateTag's string values
	Payload    string
}

// JobRunner is the local job API the dispatcher invokes for every
// update_workload / fetch_workload_status command — implemented by
// pkg/executor. Declared here, not imported from there, so hostagent
// doesn't pull in pkg/executor's containerd dependency just to define
// the dispatch loop's shape.
type JobRunner interface {
	UpdateWorkload(ctx context.Context, opts ApiOptions, cmd WorkloadCommand) (StatusReport, error)
	FetchWorkloadStatus(ctx context.Context, opts ApiOptions, workloadID string) (StatusReport, error)
}
