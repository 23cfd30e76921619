package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

// LedgerService is the single write path for room-night inventory. Every
// mutation is an all-or-nothing hold over a date range, implemented as a
// version-stamped compare-and-swap loop against the store so concurrent
// callers can never jointly oversell a night.
type LedgerService struct {
	store       domain.Store
	maxAttempts int
}

const defaultLedgerAttempts = 5

func NewLedgerService(store domain.Store) *LedgerService {
	return &LedgerService{store: store, maxAttempts: defaultLedgerAttempts}
}

// Availability reads inventory for [from, to) without mutating anything.
// Dates with no record yet are reported at the plan's full capacity.
func (s *LedgerService) Availability(ctx context.Context, propertyID int64, planCode string, from, to time.Time) ([]domain.InventoryRecord, error) {
	nights := domain.Nights(from, to)
	if len(nights) == 0 {
		return nil, domain.NewValidationError("date_range", "from must be before to")
	}
	plan, err := s.store.GetPlan(ctx, propertyID, planCode)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", planCode, err)
	}
	existing, err := s.store.GetInventory(ctx, propertyID, planCode, nights[0], nights[len(nights)-1].AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	byDate := make(map[time.Time]domain.InventoryRecord, len(existing))
	for _, rec := range existing {
		byDate[rec.Date] = rec
	}
	out := make([]domain.InventoryRecord, 0, len(nights))
	for _, d := range nights {
		if rec, ok := byDate[d]; ok {
			out = append(out, rec)
			continue
		}
		out = append(out, domain.InventoryRecord{
			PropertyID: propertyID,
			PlanCode:   planCode,
			Date:       d,
			UnitsTotal: plan.Units,
		})
	}
	return out, nil
}

// Reserve decrements remaining units for every night of [from, to) or fails
// entirely. Capacity shortfalls and blocked dates answer ErrCapacityExceeded;
// optimistic-concurrency collisions are retried a bounded number of times
// before escalating to the same error.
func (s *LedgerService) Reserve(ctx context.Context, propertyID int64, planCode string, from, to time.Time, units int) (domain.Reservation, error) {
	return s.hold(ctx, propertyID, planCode, from, to, units, domain.ReservationGuest, "")
}

// Block places a manual inventory hold with the same all-or-nothing
// semantics as Reserve. The whole plan capacity is withheld and the affected
// dates report zero availability.
func (s *LedgerService) Block(ctx context.Context, propertyID int64, planCode string, from, to time.Time, reason string) (domain.Reservation, error) {
	return s.hold(ctx, propertyID, planCode, from, to, 0, domain.ReservationBlock, reason)
}

// Unblock lifts a manual hold. It shares Release's idempotency.
func (s *LedgerService) Unblock(ctx context.Context, token string) error {
	return s.Release(ctx, token)
}

// Release returns a reservation's units to the pool. Releasing an already
// released token is a no-op, not an error.
func (s *LedgerService) Release(ctx context.Context, token string) error {
	r, err := s.store.GetReservation(ctx, token)
	if err != nil {
		return fmt.Errorf("load reservation %s: %w", token, err)
	}
	if r.Released {
		return nil
	}
	for _, d := range domain.Nights(r.From, r.To) {
		if err := s.adjust(ctx, r.PropertyID, r.PlanCode, d, func(rec *domain.InventoryRecord) {
			switch r.Kind {
			case domain.ReservationBlock:
				rec.Blocked = false
				rec.BlockReason = ""
			default:
				if rec.UnitsBooked >= r.Units {
					rec.UnitsBooked -= r.Units
				} else {
					rec.UnitsBooked = 0
				}
			}
		}); err != nil {
			return err
		}
	}
	return s.store.MarkReleased(ctx, token)
}

// RecordExternalBooking writes a channel-pulled booking into the ledger.
// When the inventory cannot hold it (an overbooking race against a locally
// committed reservation) the booking is still kept, flagged overbooked for
// manual resolution; booked counts are never pushed past capacity. The
// returned flags report (newly created, overbooked).
//
// The booking row is written before any units are held. Partners re-deliver
// known ids past the watermark, so a duplicate returns early without touching
// the inventory or the stored overbooked flag.
func (s *LedgerService) RecordExternalBooking(ctx context.Context, propertyID int64, b domain.ExternalBooking) (bool, bool, error) {
	if b.PartnerBookingID == "" {
		return false, false, domain.NewValidationError("partner_booking_id", "required")
	}
	if b.Units <= 0 {
		b.Units = 1
	}

	b.Overbooked = false
	created, err := s.store.UpsertExternalBooking(ctx, propertyID, b)
	if err != nil {
		return false, false, err
	}
	if !created {
		return false, false, nil
	}

	_, err = s.Reserve(ctx, propertyID, b.PlanCode, b.From, b.To, b.Units)
	switch {
	case err == nil:
		return true, false, nil
	case errors.Is(err, domain.ErrCapacityExceeded):
		b.Overbooked = true
		if _, uerr := s.store.UpsertExternalBooking(ctx, propertyID, b); uerr != nil {
			return true, true, uerr
		}
		return true, true, nil
	default:
		// The row already exists, so the next pull will skip it. Flag it
		// best-effort so the unheld units surface for manual resolution.
		b.Overbooked = true
		_, _ = s.store.UpsertExternalBooking(ctx, propertyID, b)
		return true, false, err
	}
}

// hold is the shared all-or-nothing path behind Reserve and Block.
func (s *LedgerService) hold(ctx context.Context, propertyID int64, planCode string, from, to time.Time, units int, kind domain.ReservationKind, reason string) (domain.Reservation, error) {
	nights := domain.Nights(from, to)
	if len(nights) == 0 {
		return domain.Reservation{}, domain.NewValidationError("date_range", "from must be before to")
	}
	if kind == domain.ReservationGuest && units <= 0 {
		return domain.Reservation{}, domain.NewValidationError("units", "must reserve at least one unit")
	}
	plan, err := s.store.GetPlan(ctx, propertyID, planCode)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("load plan %s: %w", planCode, err)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		recs, err := s.loadOrCreate(ctx, plan, nights)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return domain.Reservation{}, err
		}

		// Check the whole range before touching anything.
		for _, rec := range recs {
			switch kind {
			case domain.ReservationBlock:
				if rec.Blocked {
					return domain.Reservation{}, fmt.Errorf("%s already blocked: %w", rec.Date.Format(time.DateOnly), domain.ErrCapacityExceeded)
				}
			default:
				if rec.Blocked || rec.UnitsBooked+units > rec.UnitsTotal {
					return domain.Reservation{}, fmt.Errorf("%s %s: %w", planCode, rec.Date.Format(time.DateOnly), domain.ErrCapacityExceeded)
				}
			}
		}

		applied, conflict := s.apply(ctx, recs, units, kind, reason)
		if conflict {
			s.undo(ctx, plan, applied, units, kind)
			continue
		}

		r := domain.Reservation{
			Token:      uuid.NewString(),
			PropertyID: propertyID,
			PlanCode:   planCode,
			From:       nights[0],
			To:         nights[len(nights)-1].AddDate(0, 0, 1),
			Units:      units,
			Kind:       kind,
			Reason:     reason,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.store.SaveReservation(ctx, r); err != nil {
			s.undo(ctx, plan, applied, units, kind)
			return domain.Reservation{}, err
		}
		return r, nil
	}
	// Bounded transient-conflict retries exhausted; to the caller this is
	// indistinguishable from losing the capacity race.
	return domain.Reservation{}, fmt.Errorf("%s contention: %w", planCode, domain.ErrCapacityExceeded)
}

// loadOrCreate fetches inventory for the nights, lazily creating missing
// records at the plan's capacity.
func (s *LedgerService) loadOrCreate(ctx context.Context, plan domain.RoomPlan, nights []time.Time) ([]domain.InventoryRecord, error) {
	existing, err := s.store.GetInventory(ctx, plan.PropertyID, plan.Code, nights[0], nights[len(nights)-1].AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	byDate := make(map[time.Time]domain.InventoryRecord, len(existing))
	for _, rec := range existing {
		byDate[rec.Date] = rec
	}
	out := make([]domain.InventoryRecord, 0, len(nights))
	for _, d := range nights {
		rec, ok := byDate[d]
		if !ok {
			rec = domain.InventoryRecord{
				PropertyID: plan.PropertyID,
				PlanCode:   plan.Code,
				Date:       d,
				UnitsTotal: plan.Units,
				Version:    1,
			}
			if err := s.store.CreateInventory(ctx, rec); err != nil {
				// Lost the creation race; caller re-reads.
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// apply CAS-writes the hold onto each record in order, returning the records
// written so far and whether a version conflict interrupted the range.
func (s *LedgerService) apply(ctx context.Context, recs []domain.InventoryRecord, units int, kind domain.ReservationKind, reason string) ([]domain.InventoryRecord, bool) {
	applied := make([]domain.InventoryRecord, 0, len(recs))
	for _, rec := range recs {
		next := rec
		if kind == domain.ReservationBlock {
			next.Blocked = true
			next.BlockReason = reason
		} else {
			next.UnitsBooked += units
		}
		if err := s.store.UpdateInventory(ctx, next); err != nil {
			return applied, true
		}
		applied = append(applied, next)
	}
	return applied, false
}

// undo walks back a partially applied range so a retry starts clean. Each
// revert runs its own small CAS loop; a revert that still cannot land is
// logged rather than propagated, the next full attempt re-reads anyway.
func (s *LedgerService) undo(ctx context.Context, plan domain.RoomPlan, applied []domain.InventoryRecord, units int, kind domain.ReservationKind) {
	for _, rec := range applied {
		if err := s.adjust(ctx, plan.PropertyID, plan.Code, rec.Date, func(r *domain.InventoryRecord) {
			if kind == domain.ReservationBlock {
				r.Blocked = false
				r.BlockReason = ""
			} else if r.UnitsBooked >= units {
				r.UnitsBooked -= units
			}
		}); err != nil {
			log.Warn().Err(err).
				Str("plan", plan.Code).
				Time("date", rec.Date).
				Msg("ledger undo did not land")
		}
	}
}

// adjust applies fn to the latest version of one record with bounded CAS retries.
func (s *LedgerService) adjust(ctx context.Context, propertyID int64, planCode string, date time.Time, fn func(*domain.InventoryRecord)) error {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		recs, err := s.store.GetInventory(ctx, propertyID, planCode, date, date.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("inventory %s %s: %w", planCode, date.Format(time.DateOnly), domain.ErrNotFound)
		}
		rec := recs[0]
		fn(&rec)
		if err := s.store.UpdateInventory(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				continue
			}
			return err
		}
		return nil
	}
	return domain.ErrVersionConflict
}
