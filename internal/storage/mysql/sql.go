package mysql

const getPropertySQL = `
SELECT id, owner_id, name, city, region, currency, booking_horizon_days, archived
FROM properties
WHERE id = ?
`

const listPlansSQL = `
SELECT property_id, code, room_type, rate_plan, occupancy, room_capacity, units, base_rate
FROM room_plans
WHERE property_id = ?
ORDER BY code
`

const getPlanSQL = `
SELECT property_id, code, room_type, rate_plan, occupancy, room_capacity, units, base_rate
FROM room_plans
WHERE property_id = ? AND code = ?
`

const listRulesSQL = `
SELECT id, property_id, type, category, days_of_week, from_date, to_date,
       days_before_checkin, min_stay, adjustments, exclusive, active, priority, created_at
FROM pricing_rules
WHERE property_id = ?
`

// Overlap test: the event window intersects [from, to].
const listEventsSQL = `
SELECT id, name, city, region, from_date, to_date, impact, price_multiplier
FROM events
WHERE (city = ? OR region = ?)
  AND from_date <= ? AND to_date >= ?
`

const getInventorySQL = `
SELECT property_id, plan_code, date, units_total, units_booked, blocked, block_reason, version
FROM inventory
WHERE property_id = ? AND plan_code = ? AND date >= ? AND date < ?
ORDER BY date
`

const createInventorySQL = `
INSERT INTO inventory
  (property_id, plan_code, date, units_total, units_booked, blocked, block_reason, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

// Optimistic write: the WHERE version guard makes lost updates impossible;
// zero rows affected means the caller raced and must re-read.
const updateInventorySQL = `
UPDATE inventory
SET units_total = ?, units_booked = ?, blocked = ?, block_reason = ?, version = version + 1
WHERE property_id = ? AND plan_code = ? AND date = ? AND version = ?
`

const insertReservationSQL = `
INSERT INTO reservations
  (token, property_id, plan_code, from_date, to_date, units, kind, reason, released, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const getReservationSQL = `
SELECT token, property_id, plan_code, from_date, to_date, units, kind, reason, released, created_at
FROM reservations
WHERE token = ?
`

const markReleasedSQL = `
UPDATE reservations SET released = 1 WHERE token = ?
`

// (channel, partner_booking_id) is unique, so a repeated pull of the same
// partner booking collapses into a no-op update.
const upsertExternalBookingSQL = `
INSERT INTO external_bookings
  (property_id, channel, partner_booking_id, plan_code, from_date, to_date,
   units, guest_name, guest_email, booked_at, overbooked)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  overbooked = (overbooked OR VALUES(overbooked))
`

const listChannelsSQL = `
SELECT id, property_id, channel, enabled, auto_sync, sync_every_seconds,
       base_url, api_key, room_mappings, rate_mappings,
       connection, state, last_sync_at, watermark, error_count, last_error
FROM channel_configs
WHERE property_id = ?
ORDER BY channel
`

const updateChannelStatusSQL = `
UPDATE channel_configs
SET enabled = ?, connection = ?, state = ?, last_sync_at = ?,
    watermark = ?, error_count = ?, last_error = ?
WHERE id = ?
`

const listAutoSyncDueSQL = `
SELECT DISTINCT property_id
FROM channel_configs
WHERE enabled = 1 AND auto_sync = 1
  AND (last_sync_at IS NULL
       OR DATE_ADD(last_sync_at, INTERVAL sync_every_seconds SECOND) <= ?)
`

const insertSyncReportSQL = `
INSERT INTO sync_reports
  (property_id, type, started_at, finished_at, channels, succeeded, failed, conflicts, cancelled)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const listSyncReportsSQL = `
SELECT property_id, type, started_at, finished_at, channels, succeeded, failed, conflicts, cancelled
FROM sync_reports
WHERE property_id = ?
ORDER BY started_at DESC, id DESC
LIMIT ?
`
