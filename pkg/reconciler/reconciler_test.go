package reconciler

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/holo-host/hpos-core/pkg/bus"
	"github.com/holo-host/hpos-core/pkg/store"
	"github.com/holo-host/hpos-core/pkg/types"
)

// openTestStore mirrors pkg/store's own integration gate.
func openTestStore(t *testing.T) (*store.DB, string) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping reconciler integration test")
	}
	db, err := store.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db, dsn
}

func openTestBus(t *testing.T) *bus.Service {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping reconciler integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, rdb.Ping(ctx).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return bus.NewService(rdb, "RECONTEST")
}

func mustUpsertHost(t *testing.T, db *store.DB, deviceID string) types.Host {
	t.Helper()
	h, err := db.UpsertHost(context.Background(), types.Host{
		DeviceID: deviceID,
		Status:   types.HostStatusAuthorized,
		Inventory: types.HostInventory{
			DriveBytes: 1 << 30,
			Cores:      4,
		},
	})
	require.NoError(t, err)
	return h
}

func TestReconcilerAssignsHostsAndPublishesOnInsert(t *testing.T) {
	db, dsn := openTestStore(t)
	busSvc := openTestBus(t)

	h := mustUpsertHost(t, db, "device-insert-1")

	received := make(chan bus.Message, 1)
	err := busSvc.AddConsumer("test-command-sink", "WORKLOAD."+h.DeviceID+".update", func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		received <- msg
		return bus.Response{}, nil
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = busSvc.DeleteConsumer("test-command-sink") })

	r := NewReconciler(db, busSvc)
	require.NoError(t, r.Start(context.Background(), dsn))
	t.Cleanup(r.Stop)

	w, err := db.CreateWorkload(context.Background(), types.Workload{
		Version:  "1.0.0",
		MinHosts: 1,
		SystemSpecs: types.SystemSpecs{
			Capacity: types.Capacity{DriveBytes: 1 << 20, Cores: 1},
		},
		Manifest:        types.ContainerPathManifest{ImageRef: "registry.example/app:1"},
		ExecutionPolicy: "policy-a",
		Owner:           "dev-1",
		Context:         "prod",
	})
	require.NoError(t, err)

	select {
	case msg := <-received:
		require.Equal(t, w.ID.String(), msg.Headers["workload_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for assign command")
	}

	assigned, err := db.AssignedHostsForWorkload(context.Background(), w.ID)
	require.NoError(t, err)
	require.Contains(t, assigned, h.ID)
}

func TestReconcilerPublishesRemoveOnDelete(t *testing.T) {
	db, dsn := openTestStore(t)
	busSvc := openTestBus(t)

	h := mustUpsertHost(t, db, "device-delete-1")

	w, err := db.CreateWorkload(context.Background(), types.Workload{
		Version:  "1.0.0",
		MinHosts: 1,
		SystemSpecs: types.SystemSpecs{
			Capacity: types.Capacity{DriveBytes: 1 << 20, Cores: 1},
		},
		Manifest: types.ContainerPathManifest{ImageRef: "registry.example/app:1"},
	})
	require.NoError(t, err)
	require.NoError(t, db.AssignWorkloadToHost(context.Background(), w.ID, h.ID))

	received := make(chan bus.Message, 1)
	err = busSvc.AddConsumer("test-remove-sink", "WORKLOAD."+h.DeviceID+".update", func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		received <- msg
		return bus.Response{}, nil
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = busSvc.DeleteConsumer("test-remove-sink") })

	r := NewReconciler(db, busSvc)
	require.NoError(t, r.Start(context.Background(), dsn))
	t.Cleanup(r.Stop)

	require.NoError(t, db.DeleteWorkload(context.Background(), w.ID))

	select {
	case msg := <-received:
		require.Equal(t, w.ID.String(), msg.Headers["workload_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for remove command")
	}

	remaining, err := db.AssignedHostsForWorkload(context.Background(), w.ID)
	require.NoError(t, err)
	require.Empty(t, remaining)

	deleted, err := db.GetWorkloadIncludingDeleted(context.Background(), w.ID)
	require.NoError(t, err)
	require.Equal(t, types.WorkloadUninstalled, deleted.Status.Desired.Tag)
	require.Equal(t, types.WorkloadDeleted, deleted.Status.Actual.Tag)
}

func TestReconcilerToppsUpHostsOnMinHostsIncreaseAlone(t *testing.T) {
	db, _ := openTestStore(t)
	busSvc := openTestBus(t)

	h1 := mustUpsertHost(t, db, "device-topup-1")
	h2 := mustUpsertHost(t, db, "device-topup-2")

	w, err := db.CreateWorkload(context.Background(), types.Workload{
		Version:  "1.0.0",
		MinHosts: 1,
		SystemSpecs: types.SystemSpecs{
			Capacity: types.Capacity{DriveBytes: 1 << 20, Cores: 1},
		},
		Manifest:        types.ContainerPathManifest{ImageRef: "registry.example/app:1"},
		ExecutionPolicy: "policy-a",
		Owner:           "dev-1",
		Context:         "prod",
	})
	require.NoError(t, err)
	require.NoError(t, db.AssignWorkloadToHost(context.Background(), w.ID, h1.ID))

	received := make(chan bus.Message, 2)
	err = busSvc.AddConsumer("test-topup-sink", "WORKLOAD."+h2.DeviceID+".update", func(ctx context.Context, msg bus.Message) (bus.Response, error) {
		received <- msg
		return bus.Response{}, nil
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = busSvc.DeleteConsumer("test-topup-sink") })

	r := NewReconciler(db, busSvc)

	w, err = db.GetWorkload(context.Background(), w.ID)
	require.NoError(t, err)
	r.rememberFingerprint(w)

	// Raising min_hosts with no manifest/system_specs/owner/context
	// change must still sample and assign an additional host: the
	// relevance fingerprint alone must not short-circuit the top-up.
	w.MinHosts = 2
	r.reconcileUpdate(context.Background(), w, r.logger)

	select {
	case msg := <-received:
		require.Equal(t, w.ID.String(), msg.Headers["workload_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update command on newly topped-up host")
	}

	assigned, err := db.AssignedHostsForWorkload(context.Background(), w.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	require.Contains(t, assigned, h1.ID)
	require.Contains(t, assigned, h2.ID)
}

func TestStatusHandlerDropsHostOnUninstalledAck(t *testing.T) {
	db, _ := openTestStore(t)
	busSvc := openTestBus(t)

	h := mustUpsertHost(t, db, "device-status-1")
	w, err := db.CreateWorkload(context.Background(), types.Workload{
		Version:     "1.0.0",
		MinHosts:    1,
		SystemSpecs: types.SystemSpecs{Capacity: types.Capacity{DriveBytes: 1 << 20, Cores: 1}},
		Manifest:    types.ContainerPathManifest{ImageRef: "registry.example/app:1"},
	})
	require.NoError(t, err)
	require.NoError(t, db.AssignWorkloadToHost(context.Background(), w.ID, h.ID))

	r := NewReconciler(db, busSvc)
	handler := r.StatusHandler()

	_, err = handler(context.Background(), bus.Message{
		Body: mustMarshalStatus(t, StatusUpdate{
			WorkloadID: w.ID.String(),
			DeviceID:   h.DeviceID,
			Actual:     types.State(types.WorkloadUninstalled),
		}),
	})
	require.NoError(t, err)

	remaining, err := db.AssignedHostsForWorkload(context.Background(), w.ID)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func mustMarshalStatus(t *testing.T, upd StatusUpdate) []byte {
	t.Helper()
	body, err := json.Marshal(upd)
	require.NoError(t, err)
	return body
}
