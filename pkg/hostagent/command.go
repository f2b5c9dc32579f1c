package hostagent

import "encoding/json"

// CommandOp mirrors pkg/reconciler's CommandOp — a separate declaration
// rather than an import, so the host agent binary never links
// pkg/reconciler's Postgres/workqueue dependency chain.
type CommandOp string

const (
	CommandAssign CommandOp = "assign"
	CommandUpdate CommandOp = "update"
	CommandRemove CommandOp = "remove"
)

// WorkloadCommand is the wire shape published by the reconciler on
// WORKLOAD.<device_id>.update (pkg/reconciler/commands.go's
// WorkloadCommand). Manifest is decoded lazily by whatever executor
// variant Kind names, so it stays raw JSON here too.
type WorkloadCommand struct {
	Op              CommandOp       `json:"op"`
	WorkloadID      string          `json:"workload_id"`
	Manifest        json.RawMessage `json:"manifest,omitempty"`
	SystemSpecs     SystemSpecs     `json:"system_specs"`
	ExecutionPolicy string          `json:"execution_policy,omitempty"`
	Owner           string          `json:"owner,omitempty"`
	Context         string          `json:"context,omitempty"`
}

// SystemSpecs mirrors types.SystemSpecs's default JSON encoding (no
// struct tags on the orchestrator side, so none here either) without
// importing pkg/types, for the same dependency-isolation reason as
// CommandOp.
type SystemSpecs struct {
	Capacity        Capacity
	AvgNetworkSpeed float64
	AvgUptime       int64
}

// Capacity mirrors types.Capacity's default JSON encoding.
type Capacity struct {
	DriveBytes int64
	Cores      int
}
