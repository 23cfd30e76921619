package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

const dupEntryErr = 1062

// Repo implements domain.Store on MySQL. Dates are stored as DATE columns at
// midnight UTC; JSON columns carry mappings, rule adjustments, and the
// per-channel slices of a sync report.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func isDupKey(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == dupEntryErr
}

func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ---- properties & plans ----

func (r *Repo) GetProperty(ctx context.Context, id int64) (domain.Property, error) {
	var p domain.Property
	var region sql.NullString
	err := r.db.QueryRowContext(ctx, getPropertySQL, id).Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.City, &region, &p.Currency, &p.BookingHorizonDays, &p.Archived,
	)
	if err == sql.ErrNoRows {
		return domain.Property{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Property{}, err
	}
	p.Region = region.String
	return p, nil
}

func scanPlan(row interface{ Scan(...any) error }) (domain.RoomPlan, error) {
	var p domain.RoomPlan
	err := row.Scan(&p.PropertyID, &p.Code, &p.RoomType, &p.RatePlan, &p.Occupancy,
		&p.RoomCapacity, &p.Units, &p.BaseRate)
	return p, err
}

func (r *Repo) ListPlans(ctx context.Context, propertyID int64) ([]domain.RoomPlan, error) {
	rows, err := r.db.QueryContext(ctx, listPlansSQL, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetPlan(ctx context.Context, propertyID int64, code string) (domain.RoomPlan, error) {
	p, err := scanPlan(r.db.QueryRowContext(ctx, getPlanSQL, propertyID, code))
	if err == sql.ErrNoRows {
		return domain.RoomPlan{}, domain.ErrNotFound
	}
	return p, err
}

// ---- pricing inputs ----

func (r *Repo) ListRules(ctx context.Context, propertyID int64) ([]domain.PricingRule, error) {
	rows, err := r.db.QueryContext(ctx, listRulesSQL, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PricingRule
	for rows.Next() {
		var rule domain.PricingRule
		var dow, adj []byte
		var from, to sql.NullTime
		var daysBefore, minStay sql.NullInt64
		if err := rows.Scan(&rule.ID, &rule.PropertyID, &rule.Type, &rule.Category,
			&dow, &from, &to, &daysBefore, &minStay, &adj,
			&rule.Exclusive, &rule.Active, &rule.Priority, &rule.CreatedAt); err != nil {
			return nil, err
		}
		if len(dow) > 0 {
			var days []int
			if err := json.Unmarshal(dow, &days); err != nil {
				return nil, err
			}
			for _, d := range days {
				rule.DaysOfWeek = append(rule.DaysOfWeek, time.Weekday(d))
			}
		}
		if from.Valid {
			t := from.Time
			rule.From = &t
		}
		if to.Valid {
			t := to.Time
			rule.To = &t
		}
		if daysBefore.Valid {
			n := int(daysBefore.Int64)
			rule.DaysBeforeCheckIn = &n
		}
		if minStay.Valid {
			n := int(minStay.Int64)
			rule.MinStay = &n
		}
		if len(adj) > 0 {
			if err := json.Unmarshal(adj, &rule.Adjustments); err != nil {
				return nil, err
			}
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *Repo) ListEvents(ctx context.Context, city, region string, from, to time.Time) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, listEventsSQL, city, region, to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var evRegion sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.City, &evRegion, &e.From, &e.To,
			&e.Impact, &e.PriceMultiplier); err != nil {
			return nil, err
		}
		e.Region = evRegion.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- inventory ----

func (r *Repo) GetInventory(ctx context.Context, propertyID int64, planCode string, from, to time.Time) ([]domain.InventoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, getInventorySQL, propertyID, planCode, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InventoryRecord
	for rows.Next() {
		var rec domain.InventoryRecord
		var reason sql.NullString
		if err := rows.Scan(&rec.PropertyID, &rec.PlanCode, &rec.Date, &rec.UnitsTotal,
			&rec.UnitsBooked, &rec.Blocked, &reason, &rec.Version); err != nil {
			return nil, err
		}
		rec.BlockReason = reason.String
		rec.Date = domain.DateOnly(rec.Date)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) CreateInventory(ctx context.Context, rec domain.InventoryRecord) error {
	_, err := r.db.ExecContext(ctx, createInventorySQL,
		rec.PropertyID, rec.PlanCode, rec.Date, rec.UnitsTotal, rec.UnitsBooked,
		rec.Blocked, valStr(rec.BlockReason), rec.Version)
	if isDupKey(err) {
		return domain.ErrVersionConflict
	}
	return err
}

func (r *Repo) UpdateInventory(ctx context.Context, rec domain.InventoryRecord) error {
	res, err := r.db.ExecContext(ctx, updateInventorySQL,
		rec.UnitsTotal, rec.UnitsBooked, rec.Blocked, valStr(rec.BlockReason),
		rec.PropertyID, rec.PlanCode, rec.Date, rec.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// ---- reservations ----

func (r *Repo) SaveReservation(ctx context.Context, res domain.Reservation) error {
	_, err := r.db.ExecContext(ctx, insertReservationSQL,
		res.Token, res.PropertyID, res.PlanCode, res.From, res.To, res.Units,
		string(res.Kind), valStr(res.Reason), res.Released, res.CreatedAt)
	return err
}

func (r *Repo) GetReservation(ctx context.Context, token string) (domain.Reservation, error) {
	var res domain.Reservation
	var reason sql.NullString
	err := r.db.QueryRowContext(ctx, getReservationSQL, token).Scan(
		&res.Token, &res.PropertyID, &res.PlanCode, &res.From, &res.To, &res.Units,
		&res.Kind, &reason, &res.Released, &res.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	res.Reason = reason.String
	res.From = domain.DateOnly(res.From)
	res.To = domain.DateOnly(res.To)
	return res, nil
}

func (r *Repo) MarkReleased(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, markReleasedSQL, token)
	return err
}

// ---- external bookings ----

func (r *Repo) UpsertExternalBooking(ctx context.Context, propertyID int64, b domain.ExternalBooking) (bool, error) {
	res, err := r.db.ExecContext(ctx, upsertExternalBookingSQL,
		propertyID, b.Channel, b.PartnerBookingID, b.PlanCode, b.From, b.To,
		b.Units, valStr(b.GuestName), valStr(b.GuestEmail), b.BookedAt, b.Overbooked)
	if err != nil {
		return false, err
	}
	// MySQL reports 1 affected row for an insert, 2 for an update and 0 for
	// an update that changed nothing.
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ---- channel configuration ----

func (r *Repo) ListChannels(ctx context.Context, propertyID int64) ([]domain.ChannelConfig, error) {
	rows, err := r.db.QueryContext(ctx, listChannelsSQL, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChannelConfig
	for rows.Next() {
		var cc domain.ChannelConfig
		var every int64
		var roomMaps, rateMaps []byte
		var lastSync, watermark sql.NullTime
		var lastErr sql.NullString
		if err := rows.Scan(&cc.ID, &cc.PropertyID, &cc.Channel, &cc.Enabled, &cc.AutoSync, &every,
			&cc.BaseURL, &cc.APIKey, &roomMaps, &rateMaps,
			&cc.Connection, &cc.State, &lastSync, &watermark, &cc.ErrorCount, &lastErr); err != nil {
			return nil, err
		}
		cc.SyncEvery = time.Duration(every) * time.Second
		if len(roomMaps) > 0 {
			if err := json.Unmarshal(roomMaps, &cc.RoomMappings); err != nil {
				return nil, err
			}
		}
		if len(rateMaps) > 0 {
			if err := json.Unmarshal(rateMaps, &cc.RateMappings); err != nil {
				return nil, err
			}
		}
		if lastSync.Valid {
			t := lastSync.Time
			cc.LastSyncAt = &t
		}
		if watermark.Valid {
			cc.Watermark = watermark.Time
		}
		cc.LastError = lastErr.String
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateChannelStatus(ctx context.Context, cc domain.ChannelConfig) error {
	var watermark any
	if !cc.Watermark.IsZero() {
		watermark = cc.Watermark
	}
	_, err := r.db.ExecContext(ctx, updateChannelStatusSQL,
		cc.Enabled, string(cc.Connection), string(cc.State), valTime(cc.LastSyncAt),
		watermark, cc.ErrorCount, valStr(cc.LastError), cc.ID)
	return err
}

// ---- reconciliation & audit ----

func (r *Repo) ListAutoSyncDue(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, listAutoSyncDueSQL, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repo) SaveSyncReport(ctx context.Context, rep domain.SyncReport) error {
	channels, err := json.Marshal(rep.Channels)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertSyncReportSQL,
		rep.PropertyID, string(rep.Type), rep.StartedAt, rep.FinishedAt,
		string(channels), rep.Succeeded, rep.Failed, rep.Conflicts, rep.Cancelled)
	return err
}

func (r *Repo) ListSyncReports(ctx context.Context, propertyID int64, limit int) ([]domain.SyncReport, error) {
	rows, err := r.db.QueryContext(ctx, listSyncReportsSQL, propertyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SyncReport
	for rows.Next() {
		var rep domain.SyncReport
		var channels []byte
		if err := rows.Scan(&rep.PropertyID, &rep.Type, &rep.StartedAt, &rep.FinishedAt,
			&channels, &rep.Succeeded, &rep.Failed, &rep.Conflicts, &rep.Cancelled); err != nil {
			return nil, err
		}
		if len(channels) > 0 {
			if err := json.Unmarshal(channels, &rep.Channels); err != nil {
				return nil, err
			}
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
