package domain

import "time"

type RuleType string

const (
	RuleMultiplier  RuleType = "multiplier"
	RuleFixedAmount RuleType = "fixed_amount"
	RulePercentage  RuleType = "percentage"
)

type RuleCategory string

const (
	CategoryWeekend    RuleCategory = "weekend"
	CategorySeasonal   RuleCategory = "seasonal"
	CategoryLastMinute RuleCategory = "last_minute"
	CategoryPeakPeriod RuleCategory = "peak_period"
	CategoryCustom     RuleCategory = "custom"
)

// PricingRule adjusts the base nightly price when its activation condition
// matches the stay date. Rules apply in descending Priority; equal priorities
// fall back to CreatedAt ascending. An Exclusive rule ends folding once applied.
type PricingRule struct {
	ID         int64
	PropertyID int64
	Type       RuleType
	Category   RuleCategory

	// Activation condition; nil/empty parts are unconstrained.
	DaysOfWeek        []time.Weekday
	From, To          *time.Time // inclusive date-range containment
	DaysBeforeCheckIn *int       // fires when check-in is at most this many days away
	MinStay           *int       // fires when the queried stay is at least this long

	// Adjustments maps plan code to the rule value: a factor for multiplier,
	// a signed amount for fixed_amount, a signed percent for percentage.
	// The "*" key applies to any plan without its own entry.
	Adjustments map[string]float64

	Exclusive bool
	Active    bool
	Priority  int
	CreatedAt time.Time
}

// Matches reports whether the rule fires for date. today anchors the
// days-before-check-in test; stayNights is 0 when the query has no stay length.
func (r PricingRule) Matches(date, today time.Time, stayNights int) bool {
	if !r.Active {
		return false
	}
	date, today = DateOnly(date), DateOnly(today)
	if len(r.DaysOfWeek) > 0 {
		ok := false
		for _, wd := range r.DaysOfWeek {
			if date.Weekday() == wd {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if r.From != nil && date.Before(DateOnly(*r.From)) {
		return false
	}
	if r.To != nil && date.After(DateOnly(*r.To)) {
		return false
	}
	if r.DaysBeforeCheckIn != nil {
		days := int(date.Sub(today).Hours() / 24)
		if days < 0 || days > *r.DaysBeforeCheckIn {
			return false
		}
	}
	if r.MinStay != nil && stayNights < *r.MinStay {
		return false
	}
	return true
}

// Adjustment returns the rule value for a plan, honoring the "*" wildcard.
func (r PricingRule) Adjustment(planCode string) (float64, bool) {
	if v, ok := r.Adjustments[planCode]; ok {
		return v, true
	}
	v, ok := r.Adjustments["*"]
	return v, ok
}

// Event is an external demand signal (holiday, festival, conference). It feeds
// the rate engine as an extra multiplicative factor and never mutates stored
// rates itself.
type Event struct {
	ID              int64
	Name            string
	City            string
	Region          string
	From, To        time.Time
	Impact          string // low|medium|high
	PriceMultiplier float64
}

// Covers reports whether the event window includes date.
func (e Event) Covers(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(e.From)) && !d.After(DateOnly(e.To))
}
