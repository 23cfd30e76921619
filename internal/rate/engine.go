// Package rate resolves nightly prices from the layered pricing model:
// base rate -> matching pricing rules (priority order) -> event overlay ->
// combined-multiplier ceiling -> floor -> currency rounding. The engine does
// no I/O and is safe for any number of concurrent callers.
package rate

import (
	"math"
	"sort"
	"time"

	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

type Config struct {
	// MaxCombinedMultiplier caps the product of every multiplicative factor
	// (rules and events together) applied to one night.
	MaxCombinedMultiplier float64
	// MinPriceFraction floors the resolved price at this fraction of the
	// unmodified base rate.
	MinPriceFraction float64
}

const (
	defaultMaxCombined  = 3.0
	defaultFloorPercent = 0.10
)

type Engine struct{ cfg Config }

func New(cfg Config) *Engine {
	if cfg.MaxCombinedMultiplier <= 0 {
		cfg.MaxCombinedMultiplier = defaultMaxCombined
	}
	if cfg.MinPriceFraction <= 0 {
		cfg.MinPriceFraction = defaultFloorPercent
	}
	return &Engine{cfg: cfg}
}

// Query is one night to price. BaseRate is the per-night price for the plan
// code (the caller resolves any per-property override first). Today anchors
// last-minute rules; the zero value means "the stay date itself is today".
// StayNights is 0 when the stay length is unknown.
type Query struct {
	BaseRate   int64
	PlanCode   string
	Date       time.Time
	Today      time.Time
	StayNights int
}

// Resolve prices one night. Identical inputs always produce identical output.
func (e *Engine) Resolve(q Query, rules []domain.PricingRule, events []domain.Event) int64 {
	today := q.Today
	if today.IsZero() {
		today = q.Date
	}

	matched := make([]domain.PricingRule, 0, len(rules))
	for _, r := range rules {
		if _, ok := r.Adjustment(q.PlanCode); !ok {
			continue
		}
		if r.Matches(q.Date, today, q.StayNights) {
			matched = append(matched, r)
		}
	}
	// Explicit tie-break: priority desc, then creation time asc. The stable
	// sort keeps input order for rules created in the same instant.
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	price := float64(q.BaseRate)
	multProduct := 1.0

	applyFactor := func(f float64) {
		if f <= 0 {
			return
		}
		// Cap the running product so stacked rules and events can never
		// push the combined multiplicative effect past the ceiling.
		if allowed := e.cfg.MaxCombinedMultiplier / multProduct; f > allowed {
			f = allowed
		}
		price *= f
		multProduct *= f
	}

	for _, r := range matched {
		v, _ := r.Adjustment(q.PlanCode)
		switch r.Type {
		case domain.RuleFixedAmount:
			price += v
		case domain.RulePercentage:
			applyFactor(1 + v/100)
		case domain.RuleMultiplier:
			applyFactor(v)
		}
		if r.Exclusive {
			break
		}
	}

	for _, ev := range events {
		if ev.PriceMultiplier > 0 && ev.Covers(q.Date) {
			applyFactor(ev.PriceMultiplier)
		}
	}

	if floor := float64(q.BaseRate) * e.cfg.MinPriceFraction; price < floor {
		price = floor
	}
	return roundHalfUp(price)
}

// ResolveRange prices every night in [from, to) for one plan.
func (e *Engine) ResolveRange(baseRate int64, planCode string, from, to, today time.Time, stayNights int, rules []domain.PricingRule, events []domain.Event) []domain.RateQuote {
	nights := domain.Nights(from, to)
	out := make([]domain.RateQuote, 0, len(nights))
	for _, d := range nights {
		out = append(out, domain.RateQuote{
			PlanCode: planCode,
			Date:     d,
			Rate: e.Resolve(Query{
				BaseRate:   baseRate,
				PlanCode:   planCode,
				Date:       d,
				Today:      today,
				StayNights: stayNights,
			}, rules, events),
		})
	}
	return out
}

// roundHalfUp rounds to the currency's minimum unit, halves away from zero,
// and never returns less than 1.
func roundHalfUp(v float64) int64 {
	n := int64(math.Floor(v + 0.5))
	if n < 1 {
		n = 1
	}
	return n
}
