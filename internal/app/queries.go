package app

import (
	"context"
	"fmt"
	"time"

	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
	"github.com/himmu2625/baithkaGhar-sub031/internal/rate"
)

// StatusService serves the owner-facing reads: per-channel sync status,
// rate previews for the pricing UI, and availability lookups. Previews are
// read-through cached; staleness is bounded by the TTL.
type StatusService struct {
	store    domain.Store
	ledger   *LedgerService
	engine   *rate.Engine
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewStatusService(store domain.Store, ledger *LedgerService, engine *rate.Engine, cache domain.Cache, ttl time.Duration) *StatusService {
	return &StatusService{store: store, ledger: ledger, engine: engine, cache: cache, cacheTTL: ttl}
}

const recentRuns = 10

// SyncStatus returns what the dashboard shows: each channel's connection and
// sync state, last error, and the most recent runs.
func (s *StatusService) SyncStatus(ctx context.Context, propertyID int64) (domain.SyncStatusView, error) {
	channels, err := s.store.ListChannels(ctx, propertyID)
	if err != nil {
		return domain.SyncStatusView{}, err
	}
	view := domain.SyncStatusView{PropertyID: propertyID}
	for _, cc := range channels {
		view.Channels = append(view.Channels, domain.ChannelStatusView{
			Channel:    cc.Channel,
			Enabled:    cc.Enabled,
			Connection: cc.Connection,
			State:      cc.State,
			LastSyncAt: cc.LastSyncAt,
			ErrorCount: cc.ErrorCount,
			LastError:  cc.LastError,
		})
	}
	runs, err := s.store.ListSyncReports(ctx, propertyID, recentRuns)
	if err != nil {
		return domain.SyncStatusView{}, err
	}
	view.Recent = runs
	return view, nil
}

// PreviewRates resolves the nightly rate for each date of [from, to),
// exactly as the coordinator would push it to the channels.
func (s *StatusService) PreviewRates(ctx context.Context, propertyID int64, planCode string, from, to time.Time, stayNights int) ([]domain.RateQuote, error) {
	from, to = domain.DateOnly(from), domain.DateOnly(to)
	if !from.Before(to) {
		return nil, domain.NewValidationError("date_range", "from must be before to")
	}

	key := fmt.Sprintf("rates:%d:%s:%s:%s:%d", propertyID, planCode, from.Format(time.DateOnly), to.Format(time.DateOnly), stayNights)
	var cached []domain.RateQuote
	if ok, _ := s.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	prop, err := s.store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	plan, err := s.store.GetPlan(ctx, propertyID, planCode)
	if err != nil {
		return nil, err
	}
	rules, err := s.store.ListRules(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, prop.City, prop.Region, from, to)
	if err != nil {
		return nil, err
	}

	today := domain.DateOnly(time.Now().UTC())
	quotes := s.engine.ResolveRange(plan.BaseRate, plan.Code, from, to, today, stayNights, rules, events)
	for i := range quotes {
		quotes[i].Currency = prop.Currency
	}
	_ = s.cache.Set(ctx, key, quotes, int(s.cacheTTL.Seconds()))
	return quotes, nil
}

// Availability exposes the ledger's read-only view.
func (s *StatusService) Availability(ctx context.Context, propertyID int64, planCode string, from, to time.Time) ([]domain.InventoryRecord, error) {
	return s.ledger.Availability(ctx, propertyID, planCode, from, to)
}
