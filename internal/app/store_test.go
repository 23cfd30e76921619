package app_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

// fakeStore is an in-memory domain.Store with real compare-and-swap
// semantics on inventory versions, so the ledger's optimistic loop is
// exercised the same way the MySQL repo exercises it.
type fakeStore struct {
	mu       sync.Mutex
	props    map[int64]domain.Property
	plans    map[string]domain.RoomPlan
	rules    []domain.PricingRule
	events   []domain.Event
	inv      map[string]domain.InventoryRecord
	res      map[string]domain.Reservation
	bookings map[string]domain.ExternalBooking
	channels map[int64][]domain.ChannelConfig
	reports  []domain.SyncReport
	due      []int64

	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		props:    map[int64]domain.Property{},
		plans:    map[string]domain.RoomPlan{},
		inv:      map[string]domain.InventoryRecord{},
		res:      map[string]domain.Reservation{},
		bookings: map[string]domain.ExternalBooking{},
		channels: map[int64][]domain.ChannelConfig{},
	}
}

func planKey(propertyID int64, code string) string { return fmt.Sprintf("%d|%s", propertyID, code) }

func invKey(propertyID int64, code string, d time.Time) string {
	return fmt.Sprintf("%d|%s|%s", propertyID, code, d.Format(time.DateOnly))
}

func (f *fakeStore) addProperty(p domain.Property) { f.props[p.ID] = p }

func (f *fakeStore) addPlan(p domain.RoomPlan) { f.plans[planKey(p.PropertyID, p.Code)] = p }

func (f *fakeStore) GetProperty(_ context.Context, id int64) (domain.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.props[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListPlans(_ context.Context, propertyID int64) ([]domain.RoomPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.RoomPlan
	for _, p := range f.plans {
		if p.PropertyID == propertyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (f *fakeStore) GetPlan(_ context.Context, propertyID int64, code string) (domain.RoomPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plans[planKey(propertyID, code)]
	if !ok {
		return domain.RoomPlan{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) ListRules(_ context.Context, propertyID int64) ([]domain.PricingRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PricingRule
	for _, r := range f.rules {
		if r.PropertyID == propertyID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEvents(_ context.Context, city, region string, _, _ time.Time) ([]domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Event
	for _, e := range f.events {
		if e.City == city || e.Region == region {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetInventory(_ context.Context, propertyID int64, planCode string, from, to time.Time) ([]domain.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.InventoryRecord
	for d := domain.DateOnly(from); d.Before(domain.DateOnly(to)); d = d.AddDate(0, 0, 1) {
		if rec, ok := f.inv[invKey(propertyID, planCode, d)]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateInventory(_ context.Context, rec domain.InventoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := invKey(rec.PropertyID, rec.PlanCode, rec.Date)
	if _, exists := f.inv[k]; exists {
		return domain.ErrVersionConflict
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	f.inv[k] = rec
	return nil
}

func (f *fakeStore) UpdateInventory(_ context.Context, rec domain.InventoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := invKey(rec.PropertyID, rec.PlanCode, rec.Date)
	cur, ok := f.inv[k]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != rec.Version {
		return domain.ErrVersionConflict
	}
	rec.Version++
	f.inv[k] = rec
	return nil
}

func (f *fakeStore) SaveReservation(_ context.Context, r domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.res[r.Token] = r
	return nil
}

func (f *fakeStore) GetReservation(_ context.Context, token string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[token]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) MarkReleased(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[token]
	if !ok {
		return domain.ErrNotFound
	}
	r.Released = true
	f.res[token] = r
	return nil
}

func (f *fakeStore) UpsertExternalBooking(_ context.Context, _ int64, b domain.ExternalBooking) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	k := b.Channel + "|" + b.PartnerBookingID
	if prev, exists := f.bookings[k]; exists {
		// Mirrors the SQL upsert: a duplicate only ever raises the flag.
		prev.Overbooked = prev.Overbooked || b.Overbooked
		f.bookings[k] = prev
		return false, nil
	}
	f.bookings[k] = b
	return true, nil
}

func (f *fakeStore) ListChannels(_ context.Context, propertyID int64) ([]domain.ChannelConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChannelConfig(nil), f.channels[propertyID]...), nil
}

func (f *fakeStore) UpdateChannelStatus(_ context.Context, cc domain.ChannelConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.channels[cc.PropertyID]
	for i := range list {
		if list[i].Channel == cc.Channel {
			list[i] = cc
		}
	}
	return nil
}

func (f *fakeStore) ListAutoSyncDue(_ context.Context, _ time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.due...), nil
}

func (f *fakeStore) SaveSyncReport(_ context.Context, r domain.SyncReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeStore) ListSyncReports(_ context.Context, propertyID int64, limit int) ([]domain.SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.SyncReport
	for i := len(f.reports) - 1; i >= 0 && len(out) < limit; i-- {
		if f.reports[i].PropertyID == propertyID {
			out = append(out, f.reports[i])
		}
	}
	return out, nil
}

func (f *fakeStore) channel(propertyID int64, name string) (domain.ChannelConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cc := range f.channels[propertyID] {
		if cc.Channel == name {
			return cc, true
		}
	}
	return domain.ChannelConfig{}, false
}

func (f *fakeStore) record(propertyID int64, code string, d time.Time) (domain.InventoryRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.inv[invKey(propertyID, code, d)]
	return rec, ok
}

// fakeNotifier records alerts for assertions.
type fakeNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (n *fakeNotifier) Alert(_ context.Context, a domain.Alert) {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
}

func (n *fakeNotifier) byKind(kind string) []domain.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Alert
	for _, a := range n.alerts {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// fakeCache is the minimal domain.Cache used by StatusService tests.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]domain.RateQuote
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dst.(*[]domain.RateQuote); ok {
		*d = v
		return true, nil
	}
	return false, nil
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]domain.RateQuote{}
	}
	if q, ok := v.([]domain.RateQuote); ok {
		c.store[key] = q
	}
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.store, key)
	c.mu.Unlock()
	return nil
}
