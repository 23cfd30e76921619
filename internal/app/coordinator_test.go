package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himmu2625/baithkaGhar-sub031/internal/app"
	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
	"github.com/himmu2625/baithkaGhar-sub031/internal/rate"
)

// fakeAdapter scripts one partner's behavior for a pass.
type fakeAdapter struct {
	name     string
	failAll  bool          // every call answers PartnerUnavailable
	blockOn  chan struct{} // when set, TestConnection parks until closed
	entered  chan struct{} // closed once TestConnection is reached
	bookings []domain.ExternalBooking
	pushes   int32
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) TestConnection(ctx context.Context) error {
	if a.entered != nil {
		close(a.entered)
		a.entered = nil
	}
	if a.blockOn != nil {
		select {
		case <-a.blockOn:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if a.failAll {
		return fmt.Errorf("dial %s: %w", a.name, domain.ErrPartnerUnavailable)
	}
	return nil
}

func (a *fakeAdapter) PushInventory(_ context.Context, _ int64, items []domain.InventoryPush) (domain.PushResult, error) {
	if a.failAll {
		return domain.PushResult{}, fmt.Errorf("push: %w", domain.ErrPartnerUnavailable)
	}
	atomic.AddInt32(&a.pushes, 1)
	return domain.PushResult{Sent: len(items)}, nil
}

func (a *fakeAdapter) PushRates(_ context.Context, _ int64, items []domain.RatePush) (domain.PushResult, error) {
	if a.failAll {
		return domain.PushResult{}, fmt.Errorf("push: %w", domain.ErrPartnerUnavailable)
	}
	atomic.AddInt32(&a.pushes, 1)
	return domain.PushResult{Sent: len(items)}, nil
}

func (a *fakeAdapter) PullBookings(_ context.Context, since time.Time) ([]domain.ExternalBooking, error) {
	if a.failAll {
		return nil, fmt.Errorf("pull: %w", domain.ErrPartnerUnavailable)
	}
	var out []domain.ExternalBooking
	for _, b := range a.bookings {
		if b.BookedAt.After(since) {
			out = append(out, b)
		}
	}
	return out, nil
}

func testCoordinator(store *fakeStore, notifier *fakeNotifier, adapters map[string]*fakeAdapter) *app.SyncCoordinator {
	factory := func(cc domain.ChannelConfig) (domain.ChannelAdapter, error) {
		a, ok := adapters[cc.Channel]
		if !ok {
			return nil, fmt.Errorf("no adapter registered for %s", cc.Channel)
		}
		return a, nil
	}
	return app.NewSyncCoordinator(store, app.NewLedgerService(store), rate.New(rate.Config{}), factory, notifier, app.CoordinatorConfig{
		AdapterTimeout: time.Second,
		MaxRetries:     -1, // no partner retries; keeps failure tests fast
		PauseThreshold: 3,
		HorizonDays:    7,
	})
}

func seedSyncProperty(store *fakeStore, channels ...domain.ChannelConfig) {
	store.addProperty(domain.Property{ID: 1, City: "Jaipur", Currency: "INR", BookingHorizonDays: 7})
	store.addPlan(domain.RoomPlan{
		PropertyID: 1, Code: "DLX-EP-DOUBLE",
		RoomType: "DLX", RatePlan: "EP", Occupancy: domain.OccupancyDouble,
		RoomCapacity: 3, Units: 2, BaseRate: 2000,
	})
	store.channels[1] = channels
}

func enabledChannel(name string) domain.ChannelConfig {
	return domain.ChannelConfig{
		PropertyID: 1, Channel: name, Enabled: true,
		Connection: domain.ConnConnected, State: domain.StateActive,
	}
}

func TestSync_OneBrokenChannelDoesNotPoisonOthers(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	seedSyncProperty(store, enabledChannel("alpha"), enabledChannel("beta"), enabledChannel("gamma"))
	coord := testCoordinator(store, notifier, map[string]*fakeAdapter{
		"alpha": {name: "alpha"},
		"beta":  {name: "beta", failAll: true},
		"gamma": {name: "gamma"},
	})

	rep, err := coord.Sync(context.Background(), 1, domain.SyncFull, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if rep.Succeeded != 2 || rep.Failed != 1 {
		t.Fatalf("want 2 ok / 1 failed, got %d/%d", rep.Succeeded, rep.Failed)
	}
	for _, cr := range rep.Channels {
		if cr.Channel == "beta" && cr.Status != "failed" {
			t.Fatalf("beta should be failed, got %s", cr.Status)
		}
		if cr.Channel != "beta" && cr.Status != "ok" {
			t.Fatalf("%s should be ok, got %s", cr.Channel, cr.Status)
		}
	}
}

func TestSync_DisabledChannelNeverTouched(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	off := enabledChannel("dormant")
	off.Enabled = false
	seedSyncProperty(store, enabledChannel("alpha"), off)
	dormant := &fakeAdapter{name: "dormant"}
	coord := testCoordinator(store, notifier, map[string]*fakeAdapter{
		"alpha":   {name: "alpha"},
		"dormant": dormant,
	})

	rep, err := coord.Sync(context.Background(), 1, domain.SyncInventory, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(rep.Channels) != 1 || rep.Channels[0].Channel != "alpha" {
		t.Fatalf("disabled channel leaked into the pass: %+v", rep.Channels)
	}
	if atomic.LoadInt32(&dormant.pushes) != 0 {
		t.Fatal("disabled channel adapter was called")
	}
}

func TestSync_AutoPauseAfterConsecutiveErrors(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	cc := enabledChannel("flaky")
	cc.ErrorCount = 2 // one failure away from the threshold of 3
	seedSyncProperty(store, cc)
	coord := testCoordinator(store, notifier, map[string]*fakeAdapter{
		"flaky": {name: "flaky", failAll: true},
	})

	if _, err := coord.Sync(context.Background(), 1, domain.SyncInventory, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got, ok := store.channel(1, "flaky")
	if !ok {
		t.Fatal("channel vanished")
	}
	if got.Enabled || got.State != domain.StatePaused {
		t.Fatalf("want auto-paused+disabled, got enabled=%v state=%s", got.Enabled, got.State)
	}
	if len(notifier.byKind("sync_failure")) == 0 {
		t.Fatal("pause should raise an operator alert")
	}
}

func TestSync_ErrorCounterResetsOnSuccess(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	cc := enabledChannel("alpha")
	cc.ErrorCount = 2
	cc.LastError = "stale"
	seedSyncProperty(store, cc)
	coord := testCoordinator(store, notifier, map[string]*fakeAdapter{
		"alpha": {name: "alpha"},
	})

	if _, err := coord.Sync(context.Background(), 1, domain.SyncRates, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	got, _ := store.channel(1, "alpha")
	if got.ErrorCount != 0 || got.LastError != "" || got.State != domain.StateActive {
		t.Fatalf("counters not reset: %+v", got)
	}
}

func TestSync_OverbookedPullFlaggedAlertedCountedAsConflict(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	seedSyncProperty(store, enabledChannel("alpha"))
	coord := testCoordinator(store, notifier, map[string]*fakeAdapter{
		"alpha": {name: "alpha", bookings: []domain.ExternalBooking{{
			PartnerBookingID: "A-1",
			PlanCode:         "DLX-EP-DOUBLE",
			From:             nye,
			To:               nyeTo,
			Units:            1,
			BookedAt:         time.Now().UTC(),
		}}},
	})

	// fill the plan locally first
	ledger := app.NewLedgerService(store)
	if _, err := ledger.Reserve(context.Background(), 1, "DLX-EP-DOUBLE", nye, nyeTo, 2); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}

	rep, err := coord.Sync(context.Background(), 1, domain.SyncBookings, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if rep.Conflicts != 1 || rep.Failed != 0 {
		t.Fatalf("overbooking must count as conflict, not failure: %+v", rep)
	}
	if len(notifier.byKind("overbooking")) != 1 {
		t.Fatalf("want 1 overbooking alert, got %d", len(notifier.byKind("overbooking")))
	}
	if b := store.bookings["alpha|A-1"]; !b.Overbooked {
		t.Fatal("booking not flagged overbooked")
	}
}

func TestSync_WatermarkAdvancesPastProcessedBookings(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	seedSyncProperty(store, enabledChannel("alpha"))
	latest := time.Date(2025, 11, 20, 14, 0, 0, 0, time.UTC)
	coord := testCoordinator(store, notifier, map[string]*fakeAdapter{
		"alpha": {name: "alpha", bookings: []domain.ExternalBooking{
			{
				PartnerBookingID: "A-1", PlanCode: "DLX-EP-DOUBLE",
				From: nye, To: nyeTo, Units: 1,
				BookedAt: latest.Add(-time.Hour),
			},
			{
				PartnerBookingID: "A-2", PlanCode: "DLX-EP-DOUBLE",
				From: nye, To: nyeTo, Units: 1,
				BookedAt: latest,
			},
		}},
	})

	rep, err := coord.Sync(context.Background(), 1, domain.SyncBookings, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if rep.Channels[0].BookingsPulled != 2 {
		t.Fatalf("want 2 bookings pulled, got %d", rep.Channels[0].BookingsPulled)
	}
	got, _ := store.channel(1, "alpha")
	if !got.Watermark.Equal(latest) {
		t.Fatalf("watermark not advanced: %v", got.Watermark)
	}
}

func TestSync_SecondRequestForSamePropertyRejected(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	seedSyncProperty(store, enabledChannel("slow"))
	gate := make(chan struct{})
	entered := make(chan struct{})
	coord := testCoordinator(store, notifier, map[string]*fakeAdapter{
		"slow": {name: "slow", blockOn: gate, entered: entered},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = coord.Sync(context.Background(), 1, domain.SyncInventory, time.Time{}, time.Time{})
	}()

	// first pass is inside its adapter call, so it holds the property lock
	<-entered
	_, second := coord.Sync(context.Background(), 1, domain.SyncInventory, time.Time{}, time.Time{})
	close(gate)
	<-done
	if !errors.Is(second, domain.ErrSyncInProgress) {
		t.Fatalf("want ErrSyncInProgress, got %v", second)
	}
}

func TestSync_InvalidTypeRejected(t *testing.T) {
	store := newFakeStore()
	seedSyncProperty(store, enabledChannel("alpha"))
	coord := testCoordinator(store, &fakeNotifier{}, map[string]*fakeAdapter{"alpha": {name: "alpha"}})

	if _, err := coord.Sync(context.Background(), 1, domain.SyncType("everything"), time.Time{}, time.Time{}); !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestSync_ReportPersistedForAudit(t *testing.T) {
	store := newFakeStore()
	seedSyncProperty(store, enabledChannel("alpha"))
	coord := testCoordinator(store, &fakeNotifier{}, map[string]*fakeAdapter{"alpha": {name: "alpha"}})

	if _, err := coord.Sync(context.Background(), 1, domain.SyncFull, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	runs, err := store.ListSyncReports(context.Background(), 1, 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("want 1 persisted report, got %d (err %v)", len(runs), err)
	}
	if runs[0].Type != domain.SyncFull {
		t.Fatalf("report type %s", runs[0].Type)
	}
}
