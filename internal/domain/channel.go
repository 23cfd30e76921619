package domain

import "time"

type ConnectionStatus string

const (
	ConnConnected    ConnectionStatus = "connected"
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnError        ConnectionStatus = "error"
	ConnTesting      ConnectionStatus = "testing"
)

type SyncState string

const (
	StateActive  SyncState = "active"
	StateSyncing SyncState = "syncing"
	StateError   SyncState = "error"
	StatePaused  SyncState = "paused"
)

type SyncType string

const (
	SyncInventory SyncType = "inventory"
	SyncRates     SyncType = "rates"
	SyncBookings  SyncType = "bookings"
	SyncFull      SyncType = "full"
)

func (t SyncType) Valid() bool {
	switch t {
	case SyncInventory, SyncRates, SyncBookings, SyncFull:
		return true
	}
	return false
}

// PushesInventory reports whether a pass of this type sends availability.
func (t SyncType) PushesInventory() bool { return t == SyncInventory || t == SyncFull }

// PushesRates reports whether a pass of this type sends prices.
func (t SyncType) PushesRates() bool { return t == SyncRates || t == SyncFull }

// PullsBookings reports whether a pass of this type fetches reservations.
func (t SyncType) PullsBookings() bool { return t == SyncBookings || t == SyncFull }

// ChannelConfig binds one property to one OTA partner: credentials, code
// mappings, cadence, and the last known sync state. A disabled channel is
// never part of a sync pass; a channel past the error threshold is paused
// until an operator re-enables it.
type ChannelConfig struct {
	ID         int64
	PropertyID int64
	Channel    string // adapter identity, e.g. "stayconnect"
	Enabled    bool
	AutoSync   bool
	SyncEvery  time.Duration

	BaseURL string
	APIKey  string

	// Local plan code -> partner code. A plan absent from the map has no
	// partner representation and is skipped with a MappingMissing warning.
	RoomMappings map[string]string
	RateMappings map[string]string

	Connection ConnectionStatus
	State      SyncState
	LastSyncAt *time.Time
	Watermark  time.Time // bookings pulled up to this instant
	ErrorCount int       // consecutive failures; reset on full success
	LastError  string
}

// ExternalBooking is a reservation fetched from a partner. PartnerBookingID
// makes the upsert idempotent across repeated pulls.
type ExternalBooking struct {
	Channel          string
	PartnerBookingID string
	PlanCode         string
	From, To         time.Time
	Units            int
	GuestName        string
	GuestEmail       string
	BookedAt         time.Time
	Overbooked       bool
}

// PushResult is the per-call outcome of an inventory or rate push.
// Skipped carries MappingMissing warnings; Failed counts per-item rejections
// that did not abort the batch.
type PushResult struct {
	Sent    int
	Failed  int
	Skipped []string
}

// ChannelReport is one channel's slice of a SyncReport.
type ChannelReport struct {
	Channel        string
	Status         string // ok|partial|failed|skipped
	RangesPushed   int
	BookingsPulled int
	Conflicts      int
	Warnings       []string
	Err            string
}

// SyncReport aggregates one coordinator run. It is persisted for audit and
// surfaced on the owner dashboard.
type SyncReport struct {
	PropertyID int64
	Type       SyncType
	StartedAt  time.Time
	FinishedAt time.Time
	Channels   []ChannelReport
	Succeeded  int
	Failed     int
	Conflicts  int
	Cancelled  bool
}

// Alert is an operator-facing notification: overbooking conflicts and
// repeated sync failures. Delivery is fire-and-forget.
type Alert struct {
	Kind       string // "overbooking" | "sync_failure"
	PropertyID int64
	Channel    string
	Detail     string
	At         time.Time
}
