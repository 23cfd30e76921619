package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

// ReconciliationJob drives full syncs for every property whose auto-sync
// cadence has elapsed. Parallelism across properties is bounded by a
// semaphore; the coordinator's per-property lock keeps two overlapping runs
// for the same property from racing watermarks or the ledger.
type ReconciliationJob struct {
	store    domain.Store
	coord    *SyncCoordinator
	notifier domain.Notifier
	workers  int64
	// consecutive job-level failures per property before an operator alert
	failThreshold int

	mu       sync.Mutex
	failures map[int64]int
}

func NewReconciliationJob(store domain.Store, coord *SyncCoordinator, notifier domain.Notifier, workers, failThreshold int) *ReconciliationJob {
	if workers <= 0 {
		workers = 4
	}
	if failThreshold <= 0 {
		failThreshold = 3
	}
	return &ReconciliationJob{
		store:         store,
		coord:         coord,
		notifier:      notifier,
		workers:       int64(workers),
		failThreshold: failThreshold,
		failures:      make(map[int64]int),
	}
}

// RunDue syncs every property due at now and returns the produced reports.
// Safe to invoke concurrently; a property already syncing is skipped this
// round and picked up on the next tick.
func (j *ReconciliationJob) RunDue(ctx context.Context, now time.Time) []domain.SyncReport {
	due, err := j.store.ListAutoSyncDue(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("due-property query failed")
		return nil
	}
	if len(due) == 0 {
		return nil
	}
	log.Info().Int("properties", len(due)).Msg("reconciliation round starting")

	sem := semaphore.NewWeighted(j.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var reports []domain.SyncReport

	for _, id := range due {
		if err := sem.Acquire(ctx, 1); err != nil {
			break // context gone; stop launching
		}
		wg.Add(1)
		go func(propertyID int64) {
			defer wg.Done()
			defer sem.Release(1)

			rep, err := j.coord.Sync(ctx, propertyID, domain.SyncFull, time.Time{}, time.Time{})
			if err != nil {
				if errors.Is(err, domain.ErrSyncInProgress) {
					log.Debug().Int64("property", propertyID).Msg("sync still running, skipped")
					return
				}
				j.recordFailure(ctx, propertyID, err)
				return
			}
			j.clearFailure(propertyID)
			mu.Lock()
			reports = append(reports, rep)
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return reports
}

// Run ticks RunDue on the given interval until ctx is cancelled.
func (j *ReconciliationJob) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			j.RunDue(ctx, now.UTC())
		}
	}
}

// recordFailure counts consecutive job-level failures and alerts once the
// threshold is crossed instead of retrying forever.
func (j *ReconciliationJob) recordFailure(ctx context.Context, propertyID int64, err error) {
	j.mu.Lock()
	j.failures[propertyID]++
	n := j.failures[propertyID]
	j.mu.Unlock()

	log.Warn().Err(err).Int64("property", propertyID).Int("consecutive", n).Msg("reconciliation sync failed")
	if n == j.failThreshold {
		j.notifier.Alert(ctx, domain.Alert{
			Kind:       "sync_failure",
			PropertyID: propertyID,
			Detail:     fmt.Sprintf("auto-sync failed %d times in a row: %v", n, err),
			At:         time.Now().UTC(),
		})
	}
}

func (j *ReconciliationJob) clearFailure(propertyID int64) {
	j.mu.Lock()
	delete(j.failures, propertyID)
	j.mu.Unlock()
}
