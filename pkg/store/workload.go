package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/holo-host/hpos-core/pkg/types"
)

// ManifestFields is the union of every manifest variant's fields,
// tagged by Kind so a single struct round-trips through JSON for all
// five ManifestSpec implementations.
type ManifestFields struct {
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

func manifestToFields(m types.ManifestSpec) ManifestFields {
	switch v := m.(type) {
	case types.ContainerPathManifest:
		return ManifestFields{Kind: types.ManifestKindContainerPath, ImageRef: v.ImageRef, Command: v.Command, Env: v.Env}
	case types.StorePathManifest:
		return ManifestFields{Kind: types.ManifestKindStorePath, Path: v.Path}
	case types.BuildCmdManifest:
		return ManifestFields{Kind: types.ManifestKindBuildCmd, Command: v.Command, WorkDir: v.WorkDir}
	case types.HolochainDhtV1Manifest:
		return ManifestFields{Kind: types.ManifestKindHolochainDhtV1, DnaHash: v.DnaHash, HappBundleURL: v.HappBundleURL, MembraneProof: v.MembraneProof, NetworkSeed: v.NetworkSeed}
	default:
		return ManifestFields{Kind: types.ManifestKindNone}
	}
}

func fieldsToManifest(f ManifestFields) types.ManifestSpec {
	switch f.Kind {
	case types.ManifestKindContainerPath:
		return types.ContainerPathManifest{ImageRef: f.ImageRef, Command: f.Command, Env: f.Env}
	case types.ManifestKindStorePath:
		return types.StorePathManifest{Path: f.Path}
	case types.ManifestKindBuildCmd:
		return types.BuildCmdManifest{Command: f.Command, WorkDir: f.WorkDir}
	case types.ManifestKindHolochainDhtV1:
		return types.HolochainDhtV1Manifest{DnaHash: f.DnaHash, HappBundleURL: f.HappBundleURL, MembraneProof: f.MembraneProof, NetworkSeed: f.NetworkSeed}
	default:
		return types.NoneManifest{}
	}
}

// EncodeManifest renders any ManifestSpec variant as the same JSON shape
// persisted in the manifest column, for callers (the reconciler's
// command payloads) that need to carry a manifest over the bus.
func EncodeManifest(m types.ManifestSpec) ([]byte, error) {
	return json.Marshal(manifestToFields(m))
}

// DecodeManifest reverses EncodeManifest.
func DecodeManifest(raw []byte) (types.ManifestSpec, error) {
	var fields ManifestFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("store: unmarshal manifest: %w", err)
	}
	return fieldsToManifest(fields), nil
}

type workloadRow struct {
	ID                  []byte  `db:"id"`
	AssignedDeveloperID []byte  `db:"assigned_developer_id"`
	Version             string  `db:"version"`
	MinHosts            int     `db:"min_hosts"`
	CapacityDriveBytes  int64   `db:"capacity_drive_bytes"`
	CapacityCores       int     `db:"capacity_cores"`
	SpecAvgNetSpeed     float64 `db:"spec_avg_network_speed_mbps"`
	SpecAvgUptimeNs     int64   `db:"spec_avg_uptime_ns"`
	ManifestKind        string  `db:"manifest_kind"`
	Manifest            []byte  `db:"manifest"`
	DesiredState        string  `db:"desired_state"`
	DesiredDetail       string  `db:"desired_detail"`
	ActualState         string  `db:"actual_state"`
	ActualDetail        string  `db:"actual_detail"`
	StatusPayload       string  `db:"status_payload"`
	ExecutionPolicy     string  `db:"execution_policy"`
	Owner               string  `db:"owner"`
	Context             string  `db:"context"`
}

func (r workloadRow) toWorkload(assignedHosts []types.DocID) (types.Workload, error) {
	id, err := docIDFromBytes(r.ID)
	if err != nil {
		return types.Workload{}, err
	}
	devID, err := docIDFromBytes(r.AssignedDeveloperID)
	if err != nil {
		return types.Workload{}, err
	}
	var fields ManifestFields
	if err := json.Unmarshal(r.Manifest, &fields); err != nil {
		return types.Workload{}, fmt.Errorf("store: unmarshal manifest: %w", err)
	}

	return types.Workload{
		ID:                id,
		AssignedDeveloper: devID,
		Version:           r.Version,
		MinHosts:          r.MinHosts,
		SystemSpecs: types.SystemSpecs{
			Capacity:        types.Capacity{DriveBytes: r.CapacityDriveBytes, Cores: r.CapacityCores},
			AvgNetworkSpeed: types.NetworkSpeedMbps(r.SpecAvgNetSpeed),
			AvgUptime:       time.Duration(r.SpecAvgUptimeNs),
		},
		AssignedHosts: assignedHosts,
		Status: types.WorkloadStatus{
			Desired: types.WorkloadState{Tag: types.WorkloadStateTag(r.DesiredState), Detail: r.DesiredDetail},
			Actual:  types.WorkloadState{Tag: types.WorkloadStateTag(r.ActualState), Detail: r.ActualDetail},
			Payload: r.StatusPayload,
		},
		Manifest:        fieldsToManifest(fields),
		ExecutionPolicy: r.ExecutionPolicy,
		Owner:           r.Owner,
		Context:         r.Context,
	}, nil
}

// GetWorkload fetches a workload by id, including its assigned hosts.
func (d *DB) GetWorkload(ctx context.Context, id types.DocID) (types.Workload, error) {
	var row workloadRow
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.GetContext(ctx, &row, `
			SELECT id, assigned_developer_id, version, min_hosts, capacity_drive_bytes, capacity_cores,
			       spec_avg_network_speed_mbps, spec_avg_uptime_ns, manifest_kind, manifest,
			       desired_state, desired_detail, actual_state, actual_detail, status_payload,
			       execution_policy, owner, context
			FROM workloads WHERE id = $1 AND deleted_at IS NULL
		`, id[:])
	})
	if isNoRows(err) {
		return types.Workload{}, errNotFound
	}
	if err != nil {
		return types.Workload{}, fmt.Errorf("store: get workload: %w", err)
	}

	hosts, err := d.workloadAssignedHosts(ctx, id)
	if err != nil {
		return types.Workload{}, err
	}
	return row.toWorkload(hosts)
}

// CreateWorkload inserts a new workload and records an insert event on
// workload_events, waking any LISTENers on the change stream.
func (d *DB) CreateWorkload(ctx context.Context, w types.Workload) (types.Workload, error) {
	if w.ID.IsZero() {
		w.ID = newDocID()
	}
	fields := manifestToFields(w.Manifest)
	manifestJSON, err := json.Marshal(fields)
	if err != nil {
		return types.Workload{}, fmt.Errorf("store: marshal manifest: %w", err)
	}

	err = d.withBreaker(ctx, func(ctx context.Context) error {
		tx, err := d.sqlx.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workloads (id, assigned_developer_id, version, min_hosts,
				capacity_drive_bytes, capacity_cores, spec_avg_network_speed_mbps, spec_avg_uptime_ns,
				manifest_kind, manifest, desired_state, desired_detail, actual_state, actual_detail,
				status_payload, execution_policy, owner, context)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		`, w.ID[:], w.AssignedDeveloper[:], w.Version, w.MinHosts,
			w.SystemSpecs.Capacity.DriveBytes, w.SystemSpecs.Capacity.Cores,
			float64(w.SystemSpecs.AvgNetworkSpeed), int64(w.SystemSpecs.AvgUptime),
			string(fields.Kind), manifestJSON,
			string(w.Status.Desired.Tag), w.Status.Desired.Detail,
			string(w.Status.Actual.Tag), w.Status.Actual.Detail, w.Status.Payload,
			w.ExecutionPolicy, w.Owner, w.Context); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workload_events (workload_id, operation) VALUES ($1, 'insert')
		`, w.ID[:]); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return types.Workload{}, fmt.Errorf("store: create workload: %w", err)
	}
	return d.GetWorkload(ctx, w.ID)
}

// UpdateWorkloadStatus records a new actual state and emits an update
// event. Used by the host agent status consumer path.
func (d *DB) UpdateWorkloadStatus(ctx context.Context, id types.DocID, status types.WorkloadStatus) error {
	return d.withBreaker(ctx, func(ctx context.Context) error {
		tx, err := d.sqlx.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `
			UPDATE workloads SET actual_state = $2, actual_detail = $3, status_payload = $4, updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL
		`, id[:], string(status.Actual.Tag), status.Actual.Detail, status.Payload)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workload_events (workload_id, operation) VALUES ($1, 'update')
		`, id[:]); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// AssignWorkloadToHost records the bidirectional Host<->Workload
// reference the reconciler maintains per I1/I2.
func (d *DB) AssignWorkloadToHost(ctx context.Context, workloadID, hostID types.DocID) error {
	return d.withBreaker(ctx, func(ctx context.Context) error {
		_, err := d.sqlx.ExecContext(ctx, `
			INSERT INTO workload_hosts (workload_id, host_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, workloadID[:], hostID[:])
		return err
	})
}

// UnassignWorkloadFromHost removes the bidirectional reference — the
// uninstall-ack path (Open Question Q4).
func (d *DB) UnassignWorkloadFromHost(ctx context.Context, workloadID, hostID types.DocID) error {
	return d.withBreaker(ctx, func(ctx context.Context) error {
		_, err := d.sqlx.ExecContext(ctx, `
			DELETE FROM workload_hosts WHERE workload_id = $1 AND host_id = $2
		`, workloadID[:], hostID[:])
		return err
	})
}

// DeleteWorkload soft-deletes a workload and emits a delete event.
func (d *DB) DeleteWorkload(ctx context.Context, id types.DocID) error {
	return d.withBreaker(ctx, func(ctx context.Context) error {
		tx, err := d.sqlx.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			UPDATE workloads SET deleted_at = now(), desired_state = $2, updated_at = now()
			WHERE id = $1 AND deleted_at IS NULL
		`, id[:], string(types.WorkloadDeleted)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workload_events (workload_id, operation) VALUES ($1, 'delete')
		`, id[:]); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetWorkloadIncludingDeleted fetches a workload regardless of its
// soft-delete flag — the reconciler's deletion path needs the manifest
// and currently-assigned hosts of a workload that is already marked
// deleted_at.
func (d *DB) GetWorkloadIncludingDeleted(ctx context.Context, id types.DocID) (types.Workload, error) {
	var row workloadRow
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.GetContext(ctx, &row, `
			SELECT id, assigned_developer_id, version, min_hosts, capacity_drive_bytes, capacity_cores,
			       spec_avg_network_speed_mbps, spec_avg_uptime_ns, manifest_kind, manifest,
			       desired_state, desired_detail, actual_state, actual_detail, status_payload,
			       execution_policy, owner, context
			FROM workloads WHERE id = $1
		`, id[:])
	})
	if isNoRows(err) {
		return types.Workload{}, errNotFound
	}
	if err != nil {
		return types.Workload{}, fmt.Errorf("store: get workload: %w", err)
	}

	hosts, err := d.workloadAssignedHosts(ctx, id)
	if err != nil {
		return types.Workload{}, err
	}
	return row.toWorkload(hosts)
}

// AssignedHostsForWorkload exposes the currently-assigned host ids for
// a workload, deleted or not.
func (d *DB) AssignedHostsForWorkload(ctx context.Context, workloadID types.DocID) ([]types.DocID, error) {
	return d.workloadAssignedHosts(ctx, workloadID)
}

// ClearWorkloadAssignedHosts drops every workload_hosts row for
// workloadID — the deletion path's "clear assigned_hosts on the
// workload" step.
func (d *DB) ClearWorkloadAssignedHosts(ctx context.Context, workloadID types.DocID) error {
	return d.withBreaker(ctx, func(ctx context.Context) error {
		_, err := d.sqlx.ExecContext(ctx, `DELETE FROM workload_hosts WHERE workload_id = $1`, workloadID[:])
		return err
	})
}

// SetWorkloadDeletionStatus records the final {desired, actual} status
// pair for a workload the deletion path has already soft-deleted,
// bypassing the deleted_at filter UpdateWorkloadStatus applies.
func (d *DB) SetWorkloadDeletionStatus(ctx context.Context, id types.DocID, status types.WorkloadStatus) error {
	return d.withBreaker(ctx, func(ctx context.Context) error {
		_, err := d.sqlx.ExecContext(ctx, `
			UPDATE workloads SET desired_state = $2, desired_detail = $3,
				actual_state = $4, actual_detail = $5, status_payload = $6, updated_at = now()
			WHERE id = $1
		`, id[:], string(status.Desired.Tag), status.Desired.Detail,
			string(status.Actual.Tag), status.Actual.Detail, status.Payload)
		return err
	})
}

func (d *DB) workloadAssignedHosts(ctx context.Context, workloadID types.DocID) ([]types.DocID, error) {
	var rows [][]byte
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.SelectContext(ctx, &rows, `
			SELECT host_id FROM workload_hosts WHERE workload_id = $1
		`, workloadID[:])
	})
	if err != nil {
		return nil, fmt.Errorf("store: workload assigned hosts: %w", err)
	}
	out := make([]types.DocID, 0, len(rows))
	for _, b := range rows {
		id, err := docIDFromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
