package observability

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chansync", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chansync", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	PartnerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chansync", Name: "partner_requests_total", Help: "Outbound channel partner requests."},
		[]string{"channel", "endpoint", "status"},
	)
	PartnerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chansync", Name: "partner_request_duration_seconds",
			Help:    "Outbound channel partner request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "endpoint"},
	)
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chansync", Name: "sync_channel_runs_total", Help: "Per-channel sync outcomes."},
		[]string{"channel", "type", "status"}, // status: ok|partial|failed
	)
	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chansync", Name: "sync_channel_duration_seconds",
			Help:    "Per-channel sync duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "type"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "chansync", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
)

// Serve exposes reg on METRICS_ADDR for scrape setups that keep metrics off
// the public listener. No-op when the variable is unset.
func Serve(reg *prometheus.Registry) {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, PartnerRequests, PartnerLatency, SyncRuns, SyncDuration, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObservePartner(channel, endpoint string, status int, dur time.Duration) {
	PartnerRequests.WithLabelValues(channel, endpoint, strconv.Itoa(status)).Inc()
	PartnerLatency.WithLabelValues(channel, endpoint).Observe(dur.Seconds())
}

func ObserveSync(channel, syncType, status string, dur time.Duration) {
	SyncRuns.WithLabelValues(channel, syncType, status).Inc()
	SyncDuration.WithLabelValues(channel, syncType).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
