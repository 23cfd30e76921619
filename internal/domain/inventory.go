package domain

import "time"

// InventoryRecord tracks one (plan, date) night. Records are created lazily on
// first touch and never deleted, only zeroed. Version backs the optimistic
// concurrency loop in the ledger: every successful write bumps it by one.
type InventoryRecord struct {
	PropertyID  int64
	PlanCode    string
	Date        time.Time // midnight UTC
	UnitsTotal  int
	UnitsBooked int
	Blocked     bool
	BlockReason string
	Version     int64
}

// UnitsAvailable reports sellable units; a blocked date always reports zero.
func (r InventoryRecord) UnitsAvailable() int {
	if r.Blocked {
		return 0
	}
	if n := r.UnitsTotal - r.UnitsBooked; n > 0 {
		return n
	}
	return 0
}

type ReservationKind string

const (
	ReservationGuest ReservationKind = "guest"
	ReservationBlock ReservationKind = "block"
)

// Reservation is the token handed back by the ledger for a successful
// all-or-nothing hold over [From, To). Released reservations stay on record;
// releasing twice is a no-op.
type Reservation struct {
	Token      string
	PropertyID int64
	PlanCode   string
	From       time.Time
	To         time.Time
	Units      int
	Kind       ReservationKind
	Reason     string // block reason, empty for guest holds
	Released   bool
	CreatedAt  time.Time
}
