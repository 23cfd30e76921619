package domain

import (
	"context"
	"time"
)

type Store interface {
	// Properties & plans
	GetProperty(ctx context.Context, id int64) (Property, error)
	ListPlans(ctx context.Context, propertyID int64) ([]RoomPlan, error)
	GetPlan(ctx context.Context, propertyID int64, code string) (RoomPlan, error)

	// Pricing inputs
	ListRules(ctx context.Context, propertyID int64) ([]PricingRule, error)
	ListEvents(ctx context.Context, city, region string, from, to time.Time) ([]Event, error)

	// Inventory. UpdateInventory is a compare-and-swap on Version and fails
	// with ErrVersionConflict when the record moved underneath the caller.
	// CreateInventory fails with ErrVersionConflict when the (plan, date) row
	// already exists.
	GetInventory(ctx context.Context, propertyID int64, planCode string, from, to time.Time) ([]InventoryRecord, error)
	CreateInventory(ctx context.Context, rec InventoryRecord) error
	UpdateInventory(ctx context.Context, rec InventoryRecord) error

	// Reservations
	SaveReservation(ctx context.Context, r Reservation) error
	GetReservation(ctx context.Context, token string) (Reservation, error)
	MarkReleased(ctx context.Context, token string) error

	// Channel-pulled bookings. Upsert reports whether the row was newly
	// created; a repeated pull of the same partner booking id is a no-op.
	UpsertExternalBooking(ctx context.Context, propertyID int64, b ExternalBooking) (created bool, err error)

	// Channel configuration & status
	ListChannels(ctx context.Context, propertyID int64) ([]ChannelConfig, error)
	UpdateChannelStatus(ctx context.Context, cc ChannelConfig) error

	// Reconciliation & audit
	ListAutoSyncDue(ctx context.Context, now time.Time) ([]int64, error)
	SaveSyncReport(ctx context.Context, r SyncReport) error
	ListSyncReports(ctx context.Context, propertyID int64, limit int) ([]SyncReport, error)
}

// ChannelAdapter translates the canonical model to one partner's wire shape
// and performs the network call. Per-item failures inside a push are recorded
// in the PushResult and do not abort the batch; a total failure (auth, network)
// returns an error wrapping ErrPartnerUnavailable.
type ChannelAdapter interface {
	Name() string
	PushInventory(ctx context.Context, propertyID int64, items []InventoryPush) (PushResult, error)
	PushRates(ctx context.Context, propertyID int64, items []RatePush) (PushResult, error)
	PullBookings(ctx context.Context, since time.Time) ([]ExternalBooking, error)
	TestConnection(ctx context.Context) error
}

// AdapterFactory builds the adapter for one channel configuration.
type AdapterFactory func(cc ChannelConfig) (ChannelAdapter, error)

type InventoryPush struct {
	PlanCode       string
	Date           time.Time
	UnitsAvailable int
}

type RatePush struct {
	PlanCode string
	Date     time.Time
	Rate     int64
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Notifier is the fire-and-forget alert sink; senders do not depend on
// delivery success.
type Notifier interface {
	Alert(ctx context.Context, a Alert)
}

// Read models for the owner-facing API.

type RateQuote struct {
	PlanCode string    `json:"plan_code"`
	Date     time.Time `json:"date"`
	Rate     int64     `json:"rate"`
	Currency string    `json:"currency"`
}

type ChannelStatusView struct {
	Channel    string           `json:"channel"`
	Enabled    bool             `json:"enabled"`
	Connection ConnectionStatus `json:"connection"`
	State      SyncState        `json:"state"`
	LastSyncAt *time.Time       `json:"last_sync_at,omitempty"`
	ErrorCount int              `json:"error_count"`
	LastError  string           `json:"last_error,omitempty"`
}

type SyncStatusView struct {
	PropertyID int64               `json:"property_id"`
	Channels   []ChannelStatusView `json:"channels"`
	Recent     []SyncReport        `json:"recent_runs"`
}
