package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/holo-host/hpos-core/pkg/types"
)

type hostRow struct {
	ID                   []byte         `db:"id"`
	DeviceID             string         `db:"device_id"`
	DriveBytes           int64          `db:"drive_bytes"`
	Cores                int            `db:"cores"`
	MemoryBytes          int64          `db:"memory_bytes"`
	InventoryReportedAt  sql.NullTime   `db:"inventory_reported_at"`
	AvgUptimeNs          int64          `db:"avg_uptime_ns"`
	AvgNetworkSpeedMbps  float64        `db:"avg_network_speed_mbps"`
	AvgLatencyNs         int64          `db:"avg_latency_ns"`
	IP                   string         `db:"ip"`
	AssignedHosterID     []byte         `db:"assigned_hoster_id"`
	Status               string         `db:"status"`
	LastHeartbeat        sql.NullTime   `db:"last_heartbeat"`
}

func (r hostRow) toHost(assignedWorkloads []types.DocID) (types.Host, error) {
	id, err := docIDFromBytes(r.ID)
	if err != nil {
		return types.Host{}, err
	}
	h := types.Host{
		ID:                id,
		DeviceID:          r.DeviceID,
		Inventory:         types.HostInventory{DriveBytes: r.DriveBytes, Cores: r.Cores, MemoryBytes: r.MemoryBytes},
		AvgUptime:         time.Duration(r.AvgUptimeNs),
		AvgNetworkSpeed:   types.NetworkSpeedMbps(r.AvgNetworkSpeedMbps),
		AvgLatency:        time.Duration(r.AvgLatencyNs),
		IP:                r.IP,
		Status:            types.HostStatus(r.Status),
		AssignedWorkloads: assignedWorkloads,
	}
	if r.InventoryReportedAt.Valid {
		h.Inventory.ReportedAt = r.InventoryReportedAt.Time
	}
	if r.LastHeartbeat.Valid {
		h.LastHeartbeat = r.LastHeartbeat.Time
	}
	if len(r.AssignedHosterID) > 0 {
		hosterID, err := docIDFromBytes(r.AssignedHosterID)
		if err != nil {
			return types.Host{}, err
		}
		h.AssignedHoster = &hosterID
	}
	return h, nil
}

// GetHost fetches a host by id, including its assigned workload ids.
func (d *DB) GetHost(ctx context.Context, id types.DocID) (types.Host, error) {
	var row hostRow
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.GetContext(ctx, &row, `
			SELECT id, device_id, drive_bytes, cores, memory_bytes, inventory_reported_at,
			       avg_uptime_ns, avg_network_speed_mbps, avg_latency_ns, ip,
			       assigned_hoster_id, status, last_heartbeat
			FROM hosts WHERE id = $1
		`, id[:])
	})
	if isNoRows(err) {
		return types.Host{}, errNotFound
	}
	if err != nil {
		return types.Host{}, fmt.Errorf("store: get host: %w", err)
	}

	workloadIDs, err := d.assignedWorkloadIDs(ctx, id)
	if err != nil {
		return types.Host{}, err
	}
	return row.toHost(workloadIDs)
}

// GetHostByDeviceID fetches a host by its device_id, the identifier
// carried in the auth-callout user_auth_token.
func (d *DB) GetHostByDeviceID(ctx context.Context, deviceID string) (types.Host, error) {
	var row hostRow
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.GetContext(ctx, &row, `
			SELECT id, device_id, drive_bytes, cores, memory_bytes, inventory_reported_at,
			       avg_uptime_ns, avg_network_speed_mbps, avg_latency_ns, ip,
			       assigned_hoster_id, status, last_heartbeat
			FROM hosts WHERE device_id = $1
		`, deviceID)
	})
	if isNoRows(err) {
		return types.Host{}, errNotFound
	}
	if err != nil {
		return types.Host{}, fmt.Errorf("store: get host by device id: %w", err)
	}

	workloadIDs, err := d.assignedWorkloadIDs(ctx, row.ID)
	if err != nil {
		return types.Host{}, err
	}
	id, err := docIDFromBytes(row.ID)
	if err != nil {
		return types.Host{}, err
	}
	return row.toHost2(id, workloadIDs)
}

// toHost2 avoids re-decoding row.ID when it is already known.
func (r hostRow) toHost2(id types.DocID, assignedWorkloads []types.DocID) (types.Host, error) {
	r.ID = id[:]
	return r.toHost(assignedWorkloads)
}

// UpsertHost inserts a host, or overwrites the existing row with the
// same device_id — the "register on first callout" path.
func (d *DB) UpsertHost(ctx context.Context, h types.Host) (types.Host, error) {
	if h.ID.IsZero() {
		h.ID = newDocID()
	}
	var assignedHosterBytes interface{}
	if h.AssignedHoster != nil {
		assignedHosterBytes = h.AssignedHoster[:]
	}

	err := d.withBreaker(ctx, func(ctx context.Context) error {
		_, err := d.sqlx.ExecContext(ctx, `
			INSERT INTO hosts (id, device_id, drive_bytes, cores, memory_bytes, inventory_reported_at,
			                    avg_uptime_ns, avg_network_speed_mbps, avg_latency_ns, ip,
			                    assigned_hoster_id, status, last_heartbeat, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13, now())
			ON CONFLICT (device_id) DO UPDATE SET
				drive_bytes = EXCLUDED.drive_bytes,
				cores = EXCLUDED.cores,
				memory_bytes = EXCLUDED.memory_bytes,
				inventory_reported_at = EXCLUDED.inventory_reported_at,
				avg_uptime_ns = EXCLUDED.avg_uptime_ns,
				avg_network_speed_mbps = EXCLUDED.avg_network_speed_mbps,
				avg_latency_ns = EXCLUDED.avg_latency_ns,
				ip = EXCLUDED.ip,
				assigned_hoster_id = EXCLUDED.assigned_hoster_id,
				status = EXCLUDED.status,
				last_heartbeat = EXCLUDED.last_heartbeat,
				updated_at = now()
		`, h.ID[:], h.DeviceID, h.Inventory.DriveBytes, h.Inventory.Cores, h.Inventory.MemoryBytes,
			nullTime(h.Inventory.ReportedAt), int64(h.AvgUptime), float64(h.AvgNetworkSpeed), int64(h.AvgLatency),
			h.IP, assignedHosterBytes, string(h.Status), nullTime(h.LastHeartbeat))
		return err
	})
	if err != nil {
		return types.Host{}, fmt.Errorf("store: upsert host: %w", err)
	}
	return d.GetHostByDeviceID(ctx, h.DeviceID)
}

// AssignHoster records the hoster that owns a host — enforced only
// after §I4's foreign-key check that the hoster row exists.
func (d *DB) AssignHoster(ctx context.Context, hostID, hosterID types.DocID) error {
	return d.withBreaker(ctx, func(ctx context.Context) error {
		res, err := d.sqlx.ExecContext(ctx, `
			UPDATE hosts SET assigned_hoster_id = $2, status = $3, updated_at = now() WHERE id = $1
		`, hostID[:], hosterID[:], string(types.HostStatusAuthenticated))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errNotFound
		}
		return nil
	})
}

// RandomEligibleHosts returns up to n hosts with free capacity >= spec,
// in random order — the reconciler's assignment-candidate sampling
// (§4.3's "random host sampling").
func (d *DB) RandomEligibleHosts(ctx context.Context, spec types.SystemSpecs, n int) ([]types.DocID, error) {
	var ids [][]byte
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.SelectContext(ctx, &ids, `
			SELECT id FROM hosts
			WHERE status = $1
			  AND drive_bytes >= $2
			  AND cores >= $3
			ORDER BY random()
			LIMIT $4
		`, string(types.HostStatusAuthorized), spec.Capacity.DriveBytes, spec.Capacity.Cores, n)
	})
	if err != nil {
		return nil, fmt.Errorf("store: random eligible hosts: %w", err)
	}
	out := make([]types.DocID, 0, len(ids))
	for _, b := range ids {
		id, err := docIDFromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (d *DB) assignedWorkloadIDs(ctx context.Context, hostID []byte) ([]types.DocID, error) {
	var rows [][]byte
	err := d.withBreaker(ctx, func(ctx context.Context) error {
		return d.sqlx.SelectContext(ctx, &rows, `
			SELECT workload_id FROM workload_hosts WHERE host_id = $1
		`, hostID)
	})
	if err != nil {
		return nil, fmt.Errorf("store: assigned workload ids: %w", err)
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
