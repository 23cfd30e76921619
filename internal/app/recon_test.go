package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/himmu2625/baithkaGhar-sub031/internal/app"
	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

func TestRunDue_SyncsEveryDueProperty(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	seedSyncProperty(store, enabledChannel("alpha"))
	store.addProperty(domain.Property{ID: 2, City: "Goa", Currency: "INR", BookingHorizonDays: 7})
	store.addPlan(domain.RoomPlan{
		PropertyID: 2, Code: "STD-EP-SINGLE",
		RoomType: "STD", RatePlan: "EP", Occupancy: domain.OccupancySingle,
		RoomCapacity: 2, Units: 4, BaseRate: 1500,
	})
	store.channels[2] = []domain.ChannelConfig{{
		PropertyID: 2, Channel: "alpha", Enabled: true,
		Connection: domain.ConnConnected, State: domain.StateActive,
	}}
	store.due = []int64{1, 2}

	coord := testCoordinator(store, notifier, map[string]*fakeAdapter{"alpha": {name: "alpha"}})
	job := app.NewReconciliationJob(store, coord, notifier, 2, 3)

	reports := job.RunDue(context.Background(), time.Now().UTC())
	if len(reports) != 2 {
		t.Fatalf("want 2 reports, got %d", len(reports))
	}
	seen := map[int64]bool{}
	for _, r := range reports {
		if r.Type != domain.SyncFull {
			t.Fatalf("reconciliation must run full syncs, got %s", r.Type)
		}
		seen[r.PropertyID] = true
	}
	if !seen[1] || !seen[2] {
		t.Fatalf("missing property report: %v", seen)
	}
}

func TestRunDue_NothingDueIsQuiet(t *testing.T) {
	store := newFakeStore()
	coord := testCoordinator(store, &fakeNotifier{}, nil)
	job := app.NewReconciliationJob(store, coord, &fakeNotifier{}, 2, 3)
	if reports := job.RunDue(context.Background(), time.Now().UTC()); reports != nil {
		t.Fatalf("want no reports, got %d", len(reports))
	}
}

func TestRunDue_PersistentFailureRaisesOneAlert(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	// property 9 does not exist, so every sync attempt fails at load
	store.due = []int64{9}
	coord := testCoordinator(store, notifier, nil)
	job := app.NewReconciliationJob(store, coord, notifier, 1, 3)

	for i := 0; i < 5; i++ {
		job.RunDue(context.Background(), time.Now().UTC())
	}
	// alert fires when the threshold is crossed, not on every round after
	if got := len(notifier.byKind("sync_failure")); got != 1 {
		t.Fatalf("want exactly 1 alert, got %d", got)
	}
}
