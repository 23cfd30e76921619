package ota_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himmu2625/baithkaGhar-sub031/internal/adapters/ota"
	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

func testConfig(baseURL string) domain.ChannelConfig {
	return domain.ChannelConfig{
		PropertyID: 1,
		Channel:    "stayconnect",
		BaseURL:    baseURL,
		APIKey:     "test-key",
		RoomMappings: map[string]string{
			"DLX-EP-DOUBLE": "SC-DLX",
		},
		RateMappings: map[string]string{
			"DLX-EP-DOUBLE": "SC-DLX-RATE",
		},
	}
}

func mustClient(t *testing.T, baseURL string) *ota.Client {
	t.Helper()
	cl, err := ota.New(testConfig(baseURL), 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestPushInventory_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(500)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"accepted": 3})
		}
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	res, err := mustClient(t, ts.URL).PushInventory(ctx, 1, []domain.InventoryPush{
		{PlanCode: "DLX-EP-DOUBLE", Date: d, UnitsAvailable: 2},
		{PlanCode: "DLX-EP-DOUBLE", Date: d.AddDate(0, 0, 1), UnitsAvailable: 2},
		{PlanCode: "DLX-EP-DOUBLE", Date: d.AddDate(0, 0, 2), UnitsAvailable: 1},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Sent != 3 {
		t.Fatalf("want 3 sent, got %d", res.Sent)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected retries, got %d calls", hits)
	}
}

func TestPushInventory_UnmappedPlanSkippedNotFatal(t *testing.T) {
	var body struct {
		Items []struct {
			RoomCode string `json:"room_code"`
		} `json:"items"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": len(body.Items)})
	}))
	defer ts.Close()

	d := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	res, err := mustClient(t, ts.URL).PushInventory(context.Background(), 1, []domain.InventoryPush{
		{PlanCode: "DLX-EP-DOUBLE", Date: d, UnitsAvailable: 2},
		{PlanCode: "STD-CP-SINGLE", Date: d, UnitsAvailable: 4}, // no mapping
		{PlanCode: "STD-CP-SINGLE", Date: d.AddDate(0, 0, 1), UnitsAvailable: 4},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("want only the mapped item sent, got %d", res.Sent)
	}
	// one warning per plan, not per date
	if len(res.Skipped) != 1 {
		t.Fatalf("want 1 mapping warning, got %v", res.Skipped)
	}
	if len(body.Items) != 1 || body.Items[0].RoomCode != "SC-DLX" {
		t.Fatalf("unexpected payload: %+v", body.Items)
	}
}

func TestDo_AuthRejectedIsPartnerUnavailable(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	err := mustClient(t, ts.URL).TestConnection(context.Background())
	if !errors.Is(err, domain.ErrPartnerUnavailable) {
		t.Fatalf("want ErrPartnerUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("auth rejection must not be retried, got %d calls", hits)
	}
}

func TestDo_BadRequestIsValidationError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "malformed date", http.StatusBadRequest)
	}))
	defer ts.Close()

	d := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err := mustClient(t, ts.URL).PushRates(context.Background(), 1, []domain.RatePush{
		{PlanCode: "DLX-EP-DOUBLE", Date: d, Rate: 3600},
	})
	if !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
	if errors.Is(err, domain.ErrPartnerUnavailable) {
		t.Fatal("validation errors must not look retryable")
	}
}

func TestPullBookings_MapsPartnerCodesAndSkipsUnknown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("since"); got == "" {
			t.Errorf("missing since param")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"bookings": []map[string]any{
				{
					"booking_id": "SC-991",
					"room_code":  "SC-DLX",
					"check_in":   "2025-12-31",
					"check_out":  "2026-01-02",
					"units":      1,
					"guest":      map[string]any{"name": "Asha Verma", "email": "asha@example.com"},
					"booked_at":  "2025-11-20T10:00:00Z",
				},
				{
					"booking_id": "SC-992",
					"room_code":  "SC-UNKNOWN",
					"check_in":   "2025-12-31",
					"check_out":  "2026-01-01",
					"booked_at":  "2025-11-20T11:00:00Z",
				},
			},
		})
	}))
	defer ts.Close()

	got, err := mustClient(t, ts.URL).PullBookings(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 mapped booking, got %d", len(got))
	}
	b := got[0]
	if b.PartnerBookingID != "SC-991" || b.PlanCode != "DLX-EP-DOUBLE" || b.Channel != "stayconnect" {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if nights := len(domain.Nights(b.From, b.To)); nights != 2 {
		t.Fatalf("want 2 nights, got %d", nights)
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	cfg := testConfig("http://localhost:1")
	cfg.APIKey = ""
	if _, err := ota.New(cfg, 5); err == nil {
		t.Fatal("expected error for missing API key")
	}
	cfg = testConfig("")
	if _, err := ota.New(cfg, 5); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}
