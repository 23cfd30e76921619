package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/himmu2625/baithkaGhar-sub031/internal/app"
	"github.com/himmu2625/baithkaGhar-sub031/internal/domain"
)

type Handlers struct {
	Coord  *app.SyncCoordinator
	Status *app.StatusService
	Store  domain.Store
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers, jwtSecret string) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Group(func(r chi.Router) {
		r.Use(Auth(jwtSecret))
		r.Post("/v1/properties/{id}/sync", h.triggerSync)
		r.Get("/v1/properties/{id}/sync-status", h.syncStatus)
		r.Get("/v1/properties/{id}/rates/preview", h.previewRates)
		r.Get("/v1/properties/{id}/availability", h.availability)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// propertyFor parses {id} and checks the caller owns the property.
// Unknown properties are reported as 404 regardless of ownership so
// ids cannot be probed.
func (h *Handlers) propertyFor(w http.ResponseWriter, r *http.Request) (domain.Property, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return domain.Property{}, false
	}
	prop, err := h.Store.GetProperty(r.Context(), id)
	if err != nil || prop.OwnerID != OwnerID(r.Context()) {
		writeProblem(w, http.StatusNotFound, "Not Found", "property not found")
		return domain.Property{}, false
	}
	return prop, true
}

func parseDate(s string) (time.Time, error) { return time.Parse("2006-01-02", s) }

// dateRange reads optional from/to query params. Missing values default
// to today and today+30 days.
func dateRange(r *http.Request) (from, to time.Time, err error) {
	if fs := r.URL.Query().Get("from"); fs != "" {
		if from, err = parseDate(fs); err != nil {
			return
		}
	} else {
		from = domain.DateOnly(time.Now().UTC())
	}
	if ts := r.URL.Query().Get("to"); ts != "" {
		if to, err = parseDate(ts); err != nil {
			return
		}
	} else {
		to = from.AddDate(0, 0, 30)
	}
	return
}

type syncRequest struct {
	Type string `json:"type"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (h *Handlers) triggerSync(w http.ResponseWriter, r *http.Request) {
	prop, ok := h.propertyFor(w, r)
	if !ok {
		return
	}
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "expected a JSON object")
		return
	}
	var from, to time.Time
	var err error
	if req.From != "" {
		if from, err = parseDate(req.From); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid range", "from must be YYYY-MM-DD")
			return
		}
	}
	if req.To != "" {
		if to, err = parseDate(req.To); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid range", "to must be YYYY-MM-DD")
			return
		}
	}

	rep, err := h.Coord.Sync(r.Context(), prop.ID, domain.SyncType(req.Type), from, to)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rep)
	case errors.Is(err, domain.ErrSyncInProgress):
		writeProblem(w, http.StatusConflict, "Sync in progress", "a sync for this property is already running")
	case domain.IsValidation(err):
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		log.Error().Err(err).Int64("property_id", prop.ID).Msg("sync failed")
		writeProblem(w, http.StatusInternalServerError, "Sync failed", "")
	}
}

func (h *Handlers) syncStatus(w http.ResponseWriter, r *http.Request) {
	prop, ok := h.propertyFor(w, r)
	if !ok {
		return
	}
	view, err := h.Status.SyncStatus(r.Context(), prop.ID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Status unavailable", "")
		return
	}
	writeCached(w, r, view)
}

func (h *Handlers) previewRates(w http.ResponseWriter, r *http.Request) {
	prop, ok := h.propertyFor(w, r)
	if !ok {
		return
	}
	plan := r.URL.Query().Get("plan")
	if plan == "" {
		writeProblem(w, http.StatusBadRequest, "Missing plan", "plan query parameter is required")
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid range", "dates must be YYYY-MM-DD")
		return
	}
	nights := 1
	if ns := r.URL.Query().Get("nights"); ns != "" {
		if nights, err = strconv.Atoi(ns); err != nil || nights <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid nights", "nights must be a positive integer")
			return
		}
	}
	quotes, err := h.Status.PreviewRates(r.Context(), prop.ID, plan, from, to, nights)
	switch {
	case err == nil:
		writeCached(w, r, quotes)
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown rate plan")
	case domain.IsValidation(err):
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Preview failed", "")
	}
}

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	prop, ok := h.propertyFor(w, r)
	if !ok {
		return
	}
	plan := r.URL.Query().Get("plan")
	if plan == "" {
		writeProblem(w, http.StatusBadRequest, "Missing plan", "plan query parameter is required")
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid range", "dates must be YYYY-MM-DD")
		return
	}
	recs, err := h.Status.Availability(r.Context(), prop.ID, plan, from, to)
	switch {
	case err == nil:
		writeCached(w, r, recs)
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown rate plan")
	case domain.IsValidation(err):
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Availability failed", "")
	}
}
