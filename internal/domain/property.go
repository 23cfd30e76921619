package domain

import "time"

type Property struct {
	ID                 int64
	OwnerID            int64
	Name               string
	City               string
	Region             string
	Currency           string // ISO code, e.g. "INR"
	BookingHorizonDays int
	Archived           bool
}

// OccupancyType is the headcount tier a plan is sold for.
type OccupancyType string

const (
	OccupancySingle OccupancyType = "SINGLE"
	OccupancyDouble OccupancyType = "DOUBLE"
	OccupancyTriple OccupancyType = "TRIPLE"
	OccupancyQuad   OccupancyType = "QUAD"
)

// Guests returns the headcount implied by the occupancy tier.
func (o OccupancyType) Guests() int {
	switch o {
	case OccupancySingle:
		return 1
	case OccupancyDouble:
		return 2
	case OccupancyTriple:
		return 3
	case OccupancyQuad:
		return 4
	}
	return 0
}

// RoomPlan is the atomic saleable unit: room category x rate plan x occupancy.
// Code carries all three, e.g. "DLX-EP-DOUBLE".
type RoomPlan struct {
	PropertyID   int64
	Code         string
	RoomType     string // "DLX"
	RatePlan     string // meal/inclusion tier: "EP", "CP", ...
	Occupancy    OccupancyType
	RoomCapacity int   // physical max headcount of the room category
	Units        int   // sellable rooms per night under this plan
	BaseRate     int64 // nightly base price in whole currency units
}

// Validate rejects plans priced for more heads than the room physically holds.
func (p RoomPlan) Validate() error {
	if p.Code == "" {
		return NewValidationError("code", "plan code is required")
	}
	if p.Units < 0 {
		return NewValidationError("units", "units must not be negative")
	}
	if p.BaseRate <= 0 {
		return NewValidationError("base_rate", "base rate must be positive")
	}
	if g := p.Occupancy.Guests(); g == 0 || g > p.RoomCapacity {
		return NewValidationError("occupancy", "occupancy exceeds room capacity")
	}
	return nil
}

// DateOnly normalizes t to midnight UTC; all inventory and rate dates use this form.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Nights expands a [from, to) stay into its per-night dates.
// Returns nil when the range is empty or inverted.
func Nights(from, to time.Time) []time.Time {
	from, to = DateOnly(from), DateOnly(to)
	if !from.Before(to) {
		return nil
	}
	var out []time.Time
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
