package app

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/himmu2625/baithkaGhar-sub031/internal/adapters/observability"
	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
	"github.com/himmu2625/baithkaGhar-sub031/internal/rate"
)

type CoordinatorConfig struct {
	AdapterTimeout time.Duration // per adapter call
	MaxRetries     int           // extra attempts for PartnerUnavailable only
	RetryBase      time.Duration // first backoff step
	PauseThreshold int           // consecutive errors before auto-pause
	HorizonDays    int           // default push window when no range is given
	MaxParallel    int           // concurrent adapters per pass
}

func (c *CoordinatorConfig) defaults() {
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.PauseThreshold <= 0 {
		c.PauseThreshold = 5
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = 90
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = 8
	}
}

// SyncCoordinator runs one sync pass across every enabled channel of a
// property: pushes authoritative availability and resolved rates, pulls
// partner bookings into the ledger, and folds per-channel outcomes into a
// single report. One partner's outage never blocks the others.
type SyncCoordinator struct {
	store      domain.Store
	ledger     *LedgerService
	engine     *rate.Engine
	newAdapter domain.AdapterFactory
	notifier   domain.Notifier
	cfg        CoordinatorConfig

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewSyncCoordinator(store domain.Store, ledger *LedgerService, engine *rate.Engine, factory domain.AdapterFactory, notifier domain.Notifier, cfg CoordinatorConfig) *SyncCoordinator {
	cfg.defaults()
	return &SyncCoordinator{
		store:      store,
		ledger:     ledger,
		engine:     engine,
		newAdapter: factory,
		notifier:   notifier,
		cfg:        cfg,
		inFlight:   make(map[int64]struct{}),
	}
}

// Sync runs one pass for a property. A second call for the same property
// while one is running is rejected with ErrSyncInProgress; different
// properties sync independently. A zero date range defaults to today plus
// the booking horizon.
func (c *SyncCoordinator) Sync(ctx context.Context, propertyID int64, st domain.SyncType, from, to time.Time) (domain.SyncReport, error) {
	if !st.Valid() {
		return domain.SyncReport{}, domain.NewValidationError("sync_type", string(st))
	}
	if !c.acquire(propertyID) {
		return domain.SyncReport{}, fmt.Errorf("property %d: %w", propertyID, domain.ErrSyncInProgress)
	}
	defer c.release(propertyID)

	prop, err := c.store.GetProperty(ctx, propertyID)
	if err != nil {
		return domain.SyncReport{}, fmt.Errorf("load property %d: %w", propertyID, err)
	}

	if from.IsZero() || to.IsZero() {
		horizon := prop.BookingHorizonDays
		if horizon <= 0 {
			horizon = c.cfg.HorizonDays
		}
		from = domain.DateOnly(time.Now().UTC())
		to = from.AddDate(0, 0, horizon)
	} else {
		from, to = domain.DateOnly(from), domain.DateOnly(to)
		if !from.Before(to) {
			return domain.SyncReport{}, domain.NewValidationError("date_range", "from must be before to")
		}
	}

	report := domain.SyncReport{PropertyID: propertyID, Type: st, StartedAt: time.Now().UTC()}

	channels, err := c.store.ListChannels(ctx, propertyID)
	if err != nil {
		return domain.SyncReport{}, fmt.Errorf("load channels: %w", err)
	}
	enabled := channels[:0]
	for _, cc := range channels {
		if cc.Enabled {
			enabled = append(enabled, cc)
		}
	}

	inv, rates, err := c.preparePushes(ctx, prop, st, from, to)
	if err != nil {
		return domain.SyncReport{}, err
	}

	results := make([]domain.ChannelReport, len(enabled))
	var g errgroup.Group
	g.SetLimit(c.cfg.MaxParallel)
	for i, cc := range enabled {
		i, cc := i, cc
		g.Go(func() error {
			results[i] = c.syncChannel(ctx, cc, st, inv, rates)
			return nil
		})
	}
	_ = g.Wait()

	for _, cr := range results {
		report.Channels = append(report.Channels, cr)
		report.Conflicts += cr.Conflicts
		if cr.Status == "failed" {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	report.FinishedAt = time.Now().UTC()
	report.Cancelled = ctx.Err() != nil

	if err := c.store.SaveSyncReport(ctx, report); err != nil {
		log.Warn().Err(err).Int64("property", propertyID).Msg("sync report not persisted")
	}
	log.Info().
		Int64("property", propertyID).
		Str("type", string(st)).
		Int("ok", report.Succeeded).
		Int("failed", report.Failed).
		Int("conflicts", report.Conflicts).
		Bool("cancelled", report.Cancelled).
		Msg("sync pass done")
	return report, nil
}

// preparePushes reads the authoritative inventory and resolves rates once,
// so every adapter pushes the same numbers from the same base state.
func (c *SyncCoordinator) preparePushes(ctx context.Context, prop domain.Property, st domain.SyncType, from, to time.Time) ([]domain.InventoryPush, []domain.RatePush, error) {
	if !st.PushesInventory() && !st.PushesRates() {
		return nil, nil, nil
	}
	plans, err := c.store.ListPlans(ctx, prop.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load plans: %w", err)
	}

	var inv []domain.InventoryPush
	if st.PushesInventory() {
		for _, p := range plans {
			recs, err := c.ledger.Availability(ctx, prop.ID, p.Code, from, to)
			if err != nil {
				return nil, nil, fmt.Errorf("read availability %s: %w", p.Code, err)
			}
			for _, rec := range recs {
				inv = append(inv, domain.InventoryPush{PlanCode: p.Code, Date: rec.Date, UnitsAvailable: rec.UnitsAvailable()})
			}
		}
	}

	var rates []domain.RatePush
	if st.PushesRates() {
		rules, err := c.store.ListRules(ctx, prop.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("load rules: %w", err)
		}
		events, err := c.store.ListEvents(ctx, prop.City, prop.Region, from, to)
		if err != nil {
			return nil, nil, fmt.Errorf("load events: %w", err)
		}
		today := domain.DateOnly(time.Now().UTC())
		for _, p := range plans {
			for _, q := range c.engine.ResolveRange(p.BaseRate, p.Code, from, to, today, 0, rules, events) {
				rates = append(rates, domain.RatePush{PlanCode: q.PlanCode, Date: q.Date, Rate: q.Rate})
			}
		}
	}
	return inv, rates, nil
}

// syncChannel runs every requested operation against one adapter and turns
// whatever happens into a ChannelReport plus a persisted status update.
// Nothing escapes: classification here is what isolates one partner's outage.
func (c *SyncCoordinator) syncChannel(ctx context.Context, cc domain.ChannelConfig, st domain.SyncType, inv []domain.InventoryPush, rates []domain.RatePush) domain.ChannelReport {
	rep := domain.ChannelReport{Channel: cc.Channel}
	started := time.Now()

	adapter, err := c.newAdapter(cc)
	if err != nil {
		rep.Status = "failed"
		rep.Err = err.Error()
		c.persistOutcome(ctx, cc, rep)
		return rep
	}

	if err := c.callPartner(ctx, func(opCtx context.Context) error {
		return adapter.TestConnection(opCtx)
	}); err != nil {
		rep.Status = "failed"
		rep.Err = fmt.Sprintf("connection test: %v", err)
		cc.Connection = domain.ConnDisconnected
		c.persistOutcome(ctx, cc, rep)
		observability.ObserveSync(cc.Channel, string(st), "failed", time.Since(started))
		return rep
	}
	cc.Connection = domain.ConnConnected

	var opErrs []string

	if st.PushesInventory() {
		if res, err := c.push(ctx, func(opCtx context.Context) (domain.PushResult, error) {
			return adapter.PushInventory(opCtx, cc.PropertyID, inv)
		}); err != nil {
			opErrs = append(opErrs, fmt.Sprintf("inventory push: %v", err))
		} else {
			rep.RangesPushed += res.Sent
			rep.Warnings = append(rep.Warnings, res.Skipped...)
		}
	}

	if st.PushesRates() {
		if res, err := c.push(ctx, func(opCtx context.Context) (domain.PushResult, error) {
			return adapter.PushRates(opCtx, cc.PropertyID, rates)
		}); err != nil {
			opErrs = append(opErrs, fmt.Sprintf("rate push: %v", err))
		} else {
			rep.RangesPushed += res.Sent
			rep.Warnings = append(rep.Warnings, res.Skipped...)
		}
	}

	if st.PullsBookings() {
		pulled, conflicts, watermark, err := c.pullBookings(ctx, adapter, cc)
		rep.BookingsPulled = pulled
		rep.Conflicts = conflicts
		if watermark.After(cc.Watermark) {
			cc.Watermark = watermark
		}
		if err != nil {
			opErrs = append(opErrs, fmt.Sprintf("booking pull: %v", err))
		}
	}

	switch {
	case len(opErrs) == 0:
		rep.Status = "ok"
	case rep.RangesPushed > 0 || rep.BookingsPulled > 0:
		rep.Status = "partial"
		rep.Err = joinErrs(opErrs)
	default:
		rep.Status = "failed"
		rep.Err = joinErrs(opErrs)
	}

	c.persistOutcome(ctx, cc, rep)
	observability.ObserveSync(cc.Channel, string(st), rep.Status, time.Since(started))
	return rep
}

// pullBookings fetches partner reservations past the channel watermark and
// writes them into the ledger. The watermark only advances past bookings that
// were fully processed, so a mid-batch failure is re-pulled next pass.
// Overbooked pulls are kept, flagged, alerted, and counted as conflicts.
func (c *SyncCoordinator) pullBookings(ctx context.Context, adapter domain.ChannelAdapter, cc domain.ChannelConfig) (pulled, conflicts int, watermark time.Time, err error) {
	watermark = cc.Watermark

	var bookings []domain.ExternalBooking
	if err = c.callPartner(ctx, func(opCtx context.Context) error {
		var perr error
		bookings, perr = adapter.PullBookings(opCtx, cc.Watermark)
		return perr
	}); err != nil {
		return 0, 0, watermark, err
	}
	sort.SliceStable(bookings, func(i, j int) bool { return bookings[i].BookedAt.Before(bookings[j].BookedAt) })

	for _, b := range bookings {
		b.Channel = cc.Channel
		created, overbooked, lerr := c.ledger.RecordExternalBooking(ctx, cc.PropertyID, b)
		if lerr != nil {
			return pulled, conflicts, watermark, fmt.Errorf("booking %s: %w", b.PartnerBookingID, lerr)
		}
		if created {
			pulled++
		}
		if overbooked {
			conflicts++
			c.notifier.Alert(ctx, domain.Alert{
				Kind:       "overbooking",
				PropertyID: cc.PropertyID,
				Channel:    cc.Channel,
				Detail:     fmt.Sprintf("booking %s for %s %s..%s exceeds ledger capacity", b.PartnerBookingID, b.PlanCode, b.From.Format(time.DateOnly), b.To.Format(time.DateOnly)),
				At:         time.Now().UTC(),
			})
		}
		if b.BookedAt.After(watermark) {
			watermark = b.BookedAt
		}
	}
	return pulled, conflicts, watermark, nil
}

// persistOutcome updates the channel's dashboard-facing status, error
// counters, and auto-pause state after a pass.
func (c *SyncCoordinator) persistOutcome(ctx context.Context, cc domain.ChannelConfig, rep domain.ChannelReport) {
	now := time.Now().UTC()
	cc.LastSyncAt = &now

	if rep.Status == "ok" {
		cc.State = domain.StateActive
		cc.ErrorCount = 0
		cc.LastError = ""
	} else {
		cc.State = domain.StateError
		cc.ErrorCount++
		cc.LastError = rep.Err
		if cc.Connection != domain.ConnDisconnected {
			cc.Connection = domain.ConnError
		}
	}

	if cc.ErrorCount >= c.cfg.PauseThreshold {
		cc.Enabled = false
		cc.State = domain.StatePaused
		c.notifier.Alert(ctx, domain.Alert{
			Kind:       "sync_failure",
			PropertyID: cc.PropertyID,
			Channel:    cc.Channel,
			Detail:     fmt.Sprintf("channel paused after %d consecutive failures: %s", cc.ErrorCount, cc.LastError),
			At:         now,
		})
	}

	if err := c.store.UpdateChannelStatus(ctx, cc); err != nil {
		log.Warn().Err(err).Str("channel", cc.Channel).Msg("channel status not persisted")
	}
}

// callPartner time-boxes one adapter call and retries PartnerUnavailable
// with jittered exponential backoff. Validation and mapping errors pass
// through untouched.
func (c *SyncCoordinator) callPartner(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, c.cfg.AdapterTimeout)
		err = op(opCtx)
		cancel()
		if err == nil || !errors.Is(err, domain.ErrPartnerUnavailable) || ctx.Err() != nil {
			return err
		}
		if attempt < c.cfg.MaxRetries && !sleepCtx(ctx, retryBackoff(attempt, c.cfg.RetryBase)) {
			return err
		}
	}
	return err
}

func (c *SyncCoordinator) push(ctx context.Context, op func(context.Context) (domain.PushResult, error)) (domain.PushResult, error) {
	var res domain.PushResult
	err := c.callPartner(ctx, func(opCtx context.Context) error {
		var perr error
		res, perr = op(opCtx)
		return perr
	})
	return res, err
}

func (c *SyncCoordinator) acquire(propertyID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[propertyID]; busy {
		return false
	}
	c.inFlight[propertyID] = struct{}{}
	return true
}

func (c *SyncCoordinator) release(propertyID int64) {
	c.mu.Lock()
	delete(c.inFlight, propertyID)
	c.mu.Unlock()
}

func joinErrs(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	return out
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryBackoff doubles base each attempt with up to +50% jitter.
func retryBackoff(attempt int, base time.Duration) time.Duration {
	d := time.Duration(1<<attempt) * base
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return d
	}
	f := float64(b[0]) / 255.0
	return d + time.Duration(0.5*f*float64(d))
}
