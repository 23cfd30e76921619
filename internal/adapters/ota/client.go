// Package ota is the reference ChannelAdapter: a JSON-over-HTTP client for
// partners speaking the common channel-manager surface (inventory push, rate
// push, booking pull, ping). Per-partner code mappings come from the channel
// configuration; an unmapped plan is skipped with a warning, never fatal.
package ota

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/himmu2625/baithkaGhar-sub031/internal/adapters/observability"
	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

type Client struct {
	cfg domain.ChannelConfig
	hc  *http.Client
	rl  *rate.Limiter
}

func New(cfg domain.ChannelConfig, rps int) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("channel %s: base URL is required", cfg.Channel)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("channel %s: API key is required", cfg.Channel)
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: 20 * time.Second},
		rl:  rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// Factory adapts New to the coordinator's AdapterFactory shape.
func Factory(rps int) domain.AdapterFactory {
	return func(cc domain.ChannelConfig) (domain.ChannelAdapter, error) {
		return New(cc, rps)
	}
}

func (c *Client) Name() string { return c.cfg.Channel }

// ---- wire shapes ----

type inventoryItem struct {
	RoomCode  string `json:"room_code"`
	Date      string `json:"date"` // 2006-01-02
	Available int    `json:"available"`
}

type rateItem struct {
	RateCode string `json:"rate_code"`
	Date     string `json:"date"`
	Amount   int64  `json:"amount"`
}

type pushResponse struct {
	Accepted int `json:"accepted"`
	Rejected []struct {
		Code   string `json:"code"`
		Date   string `json:"date"`
		Reason string `json:"reason"`
	} `json:"rejected"`
}

type wireBooking struct {
	BookingID string `json:"booking_id"`
	RoomCode  string `json:"room_code"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Units     int    `json:"units"`
	Guest     struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"guest"`
	BookedAt time.Time `json:"booked_at"`
}

// ---- ChannelAdapter ----

func (c *Client) PushInventory(ctx context.Context, propertyID int64, items []domain.InventoryPush) (domain.PushResult, error) {
	var res domain.PushResult
	payload := make([]inventoryItem, 0, len(items))
	missing := map[string]bool{}
	for _, it := range items {
		code, ok := c.cfg.RoomMappings[it.PlanCode]
		if !ok {
			if !missing[it.PlanCode] {
				missing[it.PlanCode] = true
				res.Skipped = append(res.Skipped, fmt.Sprintf("%v: no room mapping for %s", domain.ErrMappingMissing, it.PlanCode))
			}
			continue
		}
		payload = append(payload, inventoryItem{
			RoomCode:  code,
			Date:      it.Date.Format(time.DateOnly),
			Available: it.UnitsAvailable,
		})
	}
	if len(payload) == 0 {
		return res, nil
	}

	var out pushResponse
	if err := c.do(ctx, http.MethodPost, "/v1/inventory", map[string]any{"property_id": propertyID, "items": payload}, &out); err != nil {
		return res, err
	}
	res.Sent = out.Accepted
	res.Failed = len(out.Rejected)
	for _, rej := range out.Rejected {
		res.Skipped = append(res.Skipped, fmt.Sprintf("rejected %s %s: %s", rej.Code, rej.Date, rej.Reason))
	}
	return res, nil
}

func (c *Client) PushRates(ctx context.Context, propertyID int64, items []domain.RatePush) (domain.PushResult, error) {
	var res domain.PushResult
	payload := make([]rateItem, 0, len(items))
	missing := map[string]bool{}
	for _, it := range items {
		code, ok := c.cfg.RateMappings[it.PlanCode]
		if !ok {
			if !missing[it.PlanCode] {
				missing[it.PlanCode] = true
				res.Skipped = append(res.Skipped, fmt.Sprintf("%v: no rate mapping for %s", domain.ErrMappingMissing, it.PlanCode))
			}
			continue
		}
		payload = append(payload, rateItem{
			RateCode: code,
			Date:     it.Date.Format(time.DateOnly),
			Amount:   it.Rate,
		})
	}
	if len(payload) == 0 {
		return res, nil
	}

	var out pushResponse
	if err := c.do(ctx, http.MethodPost, "/v1/rates", map[string]any{"property_id": propertyID, "items": payload}, &out); err != nil {
		return res, err
	}
	res.Sent = out.Accepted
	res.Failed = len(out.Rejected)
	for _, rej := range out.Rejected {
		res.Skipped = append(res.Skipped, fmt.Sprintf("rejected %s %s: %s", rej.Code, rej.Date, rej.Reason))
	}
	return res, nil
}

func (c *Client) PullBookings(ctx context.Context, since time.Time) ([]domain.ExternalBooking, error) {
	var wire struct {
		Bookings []wireBooking `json:"bookings"`
	}
	path := "/v1/bookings?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	if err := c.do(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}

	// reverse the room mapping: partner code -> local plan
	local := make(map[string]string, len(c.cfg.RoomMappings))
	for plan, code := range c.cfg.RoomMappings {
		local[code] = plan
	}

	out := make([]domain.ExternalBooking, 0, len(wire.Bookings))
	for _, wb := range wire.Bookings {
		plan, ok := local[wb.RoomCode]
		if !ok {
			log.Warn().
				Str("channel", c.cfg.Channel).
				Str("booking", wb.BookingID).
				Str("room_code", wb.RoomCode).
				Msg("pulled booking for unmapped room code, skipped")
			continue
		}
		from, err1 := time.Parse(time.DateOnly, wb.CheckIn)
		to, err2 := time.Parse(time.DateOnly, wb.CheckOut)
		if err1 != nil || err2 != nil {
			log.Warn().Str("channel", c.cfg.Channel).Str("booking", wb.BookingID).Msg("unparseable stay dates, skipped")
			continue
		}
		units := wb.Units
		if units <= 0 {
			units = 1
		}
		out = append(out, domain.ExternalBooking{
			Channel:          c.cfg.Channel,
			PartnerBookingID: wb.BookingID,
			PlanCode:         plan,
			From:             from,
			To:               to,
			Units:            units,
			GuestName:        wb.Guest.Name,
			GuestEmail:       wb.Guest.Email,
			BookedAt:         wb.BookedAt,
		})
	}
	return out, nil
}

func (c *Client) TestConnection(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/ping", nil, nil)
}

// ---- HTTP core ----

// do performs one call with client-side rate limiting and bounded retries on
// 429/transient 5xx, honoring Retry-After when provided. Auth rejections and
// exhausted retries surface as ErrPartnerUnavailable; a 400 comes back as a
// validation error so the coordinator never retries it.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var reqBody []byte
	if body != nil {
		var err error
		if reqBody, err = json.Marshal(body); err != nil {
			return err
		}
	}

	endpoint := path
	if q := strings.IndexByte(endpoint, '?'); q >= 0 {
		endpoint = endpoint[:q]
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		var rd io.Reader
		if reqBody != nil {
			rd = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
		if err != nil {
			return err
		}
		req.Header.Set("X-API-Key", c.cfg.APIKey)
		req.Header.Set("Accept", "application/json")
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		started := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObservePartner(c.cfg.Channel, endpoint, 0, time.Since(started))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrPartnerUnavailable)
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}
		observability.ObservePartner(c.cfg.Channel, endpoint, resp.StatusCode, time.Since(started))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				return nil
			}
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusBadRequest:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return domain.NewValidationError("request", strings.TrimSpace(string(b)))

		case http.StatusNotFound:
			resp.Body.Close()
			return fmt.Errorf("%s %s: %w", method, path, domain.ErrNotFound)

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("%s auth rejected (%d): %w", c.cfg.Channel, resp.StatusCode, domain.ErrPartnerUnavailable)

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("%s remote %d: %w", c.cfg.Channel, resp.StatusCode, domain.ErrPartnerUnavailable)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles each attempt (200ms, 400ms, 800ms...) with up to +50%
// concurrency-safe jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
