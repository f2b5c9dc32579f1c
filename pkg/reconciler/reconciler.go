package reconciler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/holo-host/hpos-core/pkg/bus"
	"github.com/holo-host/hpos-core/pkg/log"
	"github.com/holo-host/hpos-core/pkg/store"
	"github.com/holo-host/hpos-core/pkg/types"
)

// Reconciler converges persisted workload desired-state onto the host
// fleet by consuming the workload change stream and publishing
// per-host commands — §4.3.
type Reconciler struct {
	Store *store.DB
	Bus   *bus.Service

	logger zerolog.Logger
	cs     *store.ChangeStream
	stopCh chan struct{}
	doneCh chan struct{}

	mu           sync.Mutex
	fingerprints map[types.DocID]relevanceFingerprint
}

// NewReconciler builds a Reconciler bound to db and the bus Service it
// publishes commands and status-update consumers on.
func NewReconciler(db *store.DB, busSvc *bus.Service) *Reconciler {
	return &Reconciler{
		Store:        db,
		Bus:          busSvc,
		logger:       log.WithComponent("reconciler"),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		fingerprints: make(map[types.DocID]relevanceFingerprint),
	}
}

// Start opens the change stream from the latest resume token and
// begins the consumption loop. It also registers the durable status
// consumer on WORKLOAD.HandleStatusUpdate. dsn is the same
// connection string used to open db — the change stream needs its own
// LISTEN connection, separate from db's pooled query connections.
func (r *Reconciler) Start(ctx context.Context, dsn string) error {
	from, err := r.Store.LatestResumeToken(ctx)
	if err != nil {
		return err
	}

	cs, err := store.NewChangeStream(r.Store, dsn, from)
	if err != nil {
		return err
	}
	r.cs = cs

	// WORKLOAD.HandleStatusUpdate is a single subject shared by every
	// host, not WORKLOAD.<device_id>.HandleStatusUpdate per §6.1: the
	// bus maps one literal subject to one stream key with no wildcard
	// matching, so one subject per host would mean one consumer per
	// host. The reporting device_id travels in StatusUpdate.DeviceID
	// instead of in the subject.
	if err := r.Bus.AddConsumer("reconciler-status", "WORKLOAD.HandleStatusUpdate", r.StatusHandler(), nil); err != nil {
		return err
	}

	go r.run(ctx)
	return nil
}

// Stop signals the consumption loop to exit and waits for it to
// return, then closes the change stream.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
	if r.cs != nil {
		_ = r.cs.Close()
	}
	_ = r.Bus.DeleteConsumer("reconciler-status")
}

// run drives the Idle -> WaitBatch -> ProcessEvent -> Idle state
// machine from §9: each iteration blocks in WaitBatch for the next
// change event or transport error, then transitions through
// ProcessEvent before returning to Idle. Event N's per-host publishing
// completes before event N+1 is pulled, matching §5's ordering
// guarantee for the reconciler.
func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)
	state := stateIdle

	for {
		switch state {
		case stateIdle:
			state = stateWaitBatch

		case stateWaitBatch:
			select {
			case <-r.stopCh:
				return
			case err, ok := <-r.cs.Errs():
				if !ok {
					return
				}
				r.logger.Error().Err(err).Msg("change stream transport error")
				state = stateIdle
			case ev, ok := <-r.cs.Events():
				if !ok {
					return
				}
				r.processEvent(ctx, ev)
				state = stateProcessEvent
			}

		case stateProcessEvent:
			state = stateIdle
		}
	}
}

func (r *Reconciler) processEvent(ctx context.Context, ev store.ChangeEvent) {
	logger := r.logger.With().Str("workload_id", ev.WorkloadID.String()).Str("operation", ev.Operation).Logger()

	w, err := r.Store.GetWorkloadIncludingDeleted(ctx, ev.WorkloadID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load workload for change event")
		return
	}

	switch ev.Operation {
	case "insert":
		r.reconcileInsert(ctx, w, logger)
	case "update":
		r.reconcileUpdate(ctx, w, logger)
	case "delete":
		r.reconcileDelete(ctx, w, logger)
	default:
		logger.Warn().Msg("ignoring change event with unrecognized operation")
	}
}

func (r *Reconciler) rememberFingerprint(w types.Workload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fingerprints[w.ID] = fingerprintOf(w)
}

func (r *Reconciler) lastFingerprint(id types.DocID) (relevanceFingerprint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.fingerprints[id]
	return fp, ok
}

func (r *Reconciler) forgetFingerprint(id types.DocID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fingerprints, id)
}

// reconcileInsert implements §4.3's insert path: select eligible hosts,
// persist the bidirectional assignment, and publish assign commands.
func (r *Reconciler) reconcileInsert(ctx context.Context, w types.Workload, logger zerolog.Logger) {
	assigned, err := r.assignHosts(ctx, w)
	if err != nil {
		logger.Error().Err(err).Msg("failed to assign hosts for new workload")
		if updErr := r.Store.UpdateWorkloadStatus(ctx, w.ID, types.WorkloadStatus{
			Desired: w.Status.Desired,
			Actual:  types.StateError(err.Error()),
		}); updErr != nil {
			logger.Error().Err(updErr).Msg("failed to record assignment error status")
		}
		return
	}

	cmd, err := commandForWorkload(CommandAssign, w)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode assign command")
		return
	}
	if err := r.publishToHosts(ctx, cmd, assigned); err != nil {
		logger.Error().Err(err).Msg("one or more assign command publishes failed")
	}

	if err := r.Store.UpdateWorkloadStatus(ctx, w.ID, types.WorkloadStatus{
		Desired: types.State(types.WorkloadAssigned),
		Actual:  types.State(types.WorkloadAssigned),
	}); err != nil {
		logger.Error().Err(err).Msg("failed to record assigned status")
	}
	r.rememberFingerprint(w)
}

// reconcileUpdate implements §4.3's update path. The min_hosts top-up
// runs unconditionally, before the relevance check: a workload update
// that only raises min_hosts leaves the relevance fingerprint unchanged,
// so it must still be acted on rather than falling into the DB-only
// short-circuit below. Only once top-up is settled does the relevance
// fingerprint (manifest_id, execution_policy, owner, context) decide
// whether anything needs republishing. Decreases are a known open question (Q1) and are
// not acted on.
func (r *Reconciler) reconcileUpdate(ctx context.Context, w types.Workload, logger zerolog.Logger) {
	toppedUp := false
	if need := w.MinHosts - len(w.AssignedHosts); need > 0 {
		already := make(map[types.DocID]bool, len(w.AssignedHosts))
		for _, id := range w.AssignedHosts {
			already[id] = true
		}

		// RandomEligibleHosts doesn't know which hosts this workload is
		// already on, so over-sample and skip the ones it returns that
		// are already assigned.
		extra, err := r.Store.RandomEligibleHosts(ctx, w.SystemSpecs, need+len(w.AssignedHosts))
		if err != nil {
			logger.Error().Err(err).Msg("failed to sample additional hosts for min_hosts increase")
		} else {
			for _, hostID := range extra {
				if need == 0 {
					break
				}
				if already[hostID] {
					continue
				}
				if err := r.Store.AssignWorkloadToHost(ctx, w.ID, hostID); err != nil {
					logger.Error().Err(err).Msg("failed to assign additional host")
					continue
				}
				w.AssignedHosts = append(w.AssignedHosts, hostID)
				already[hostID] = true
				toppedUp = true
				need--
			}
		}
	}

	current := fingerprintOf(w)
	prev, seen := r.lastFingerprint(w.ID)
	if seen && !prev.changed(current) && !toppedUp {
		logger.Debug().Msg("update has no relevant field changes, DB-only")
		r.rememberFingerprint(w)
		return
	}

	cmd, err := commandForWorkload(CommandUpdate, w)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode update command")
		return
	}
	if err := r.publishToHosts(ctx, cmd, w.AssignedHosts); err != nil {
		logger.Error().Err(err).Msg("one or more update command publishes failed")
	}
	r.rememberFingerprint(w)
}

// reconcileDelete implements §4.3's deletion path: fetch currently
// assigned hosts, clear assigned_hosts on the workload, mark
// {desired: Uninstalled, actual: Deleted}, and publish removal
// commands. Both directions of the reference live in the single
// workload_hosts table, so clearing assigned_hosts here also drops the
// workload from every host's assigned_workloads immediately; the status
// ack handled in status.go finds nothing left to remove for these hosts.
func (r *Reconciler) reconcileDelete(ctx context.Context, w types.Workload, logger zerolog.Logger) {
	hosts, err := r.Store.AssignedHostsForWorkload(ctx, w.ID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load assigned hosts for deletion")
		return
	}

	if err := r.Store.ClearWorkloadAssignedHosts(ctx, w.ID); err != nil {
		logger.Error().Err(err).Msg("failed to clear assigned hosts on workload")
	}

	if err := r.Store.SetWorkloadDeletionStatus(ctx, w.ID, types.WorkloadStatus{
		Desired: types.State(types.WorkloadUninstalled),
		Actual:  types.State(types.WorkloadDeleted),
	}); err != nil {
		logger.Error().Err(err).Msg("failed to record deletion status")
	}

	w.Status.Desired = types.State(types.WorkloadUninstalled)
	w.Status.Actual = types.State(types.WorkloadDeleted)
	cmd, err := commandForWorkload(CommandRemove, w)
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode remove command")
		return
	}
	if err := r.publishToHosts(ctx, cmd, hosts); err != nil {
		logger.Error().Err(err).Msg("one or more remove command publishes failed")
	}
	r.forgetFingerprint(w.ID)
}
