package reconciler

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/client-go/util/workqueue"

	"github.com/holo-host/hpos-core/pkg/log"
	"github.com/holo-host/hpos-core/pkg/types"
)

// maxAssignAttempts bounds the per-host assignment retry loop — §4.3's
// "retry up to 5 times".
const maxAssignAttempts = 5

// assignHosts samples up to max(min_hosts, 1) eligible hosts and
// attempts to record the bidirectional assignment for each, retrying
// individual failures through a rate-limited queue rather than a flat
// sleep loop: each host gets its own backoff and its own 5-attempt
// budget, which a single shared retry counter could not express.
func (r *Reconciler) assignHosts(ctx context.Context, w types.Workload) ([]types.DocID, error) {
	n := w.MinHosts
	if n < 1 {
		n = 1
	}

	candidates, err := r.Store.RandomEligibleHosts(ctx, w.SystemSpecs, n)
	if err != nil {
		return nil, fmt.Errorf("reconciler: sampling eligible hosts: %w", err)
	}
	if len(candidates) == 0 {
		return nil, errors.New("reconciler: no eligible hosts available for assignment")
	}
	if len(candidates) < n {
		log.Warn(fmt.Sprintf("reconciler: only %d of %d requested hosts available, proceeding with what's available", len(candidates), n))
	}

	queue := workqueue.NewRateLimitingQueue(workqueue.DefaultControllerRateLimiter())
	for _, hostID := range candidates {
		queue.Add(hostID)
	}

	var assigned []types.DocID
	pending := len(candidates)
	for pending > 0 {
		item, shutdown := queue.Get()
		if shutdown {
			break
		}
		hostID := item.(types.DocID)

		if err := r.Store.AssignWorkloadToHost(ctx, w.ID, hostID); err != nil {
			if queue.NumRequeues(item) < maxAssignAttempts-1 {
				queue.Done(item)
				queue.AddRateLimited(item)
				continue
			}
			log.Errorf(fmt.Sprintf("reconciler: giving up assigning workload %s to host %s after %d attempts", w.ID, hostID, maxAssignAttempts), err)
			queue.Done(item)
			pending--
			continue
		}

		assigned = append(assigned, hostID)
		queue.Done(item)
		queue.Forget(item)
		pending--
	}
	queue.ShutDown()

	if len(assigned) == 0 {
		return nil, errors.New("reconciler: failed to assign workload to any host")
	}
	return assigned, nil
}
