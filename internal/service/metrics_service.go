package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. A nil *MetricsService is valid and
// records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	tokensIssued    prometheus.Counter
	tokenCollisions prometheus.Counter
	tokensPurged    prometheus.Counter
	authFailures    *prometheus.CounterVec
	assetUploads    *prometheus.CounterVec
	checksumMatches prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	tokensIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Bearer tokens issued",
	})

	tokenCollisions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_collisions_total",
		Help: "Token candidates rejected because the value was already live",
	})

	tokensPurged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_purged_total",
		Help: "Expired tokens removed by the reaper",
	})

	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "Failed authentication attempts",
	}, []string{"operation"})

	assetUploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_uploads_total",
		Help: "Asset uploads by inferred kind",
	}, []string{"kind"})

	checksumMatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "asset_checksum_matches_total",
		Help: "Uploads whose content already existed in the corpus",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses, tokensIssued, tokenCollisions,
		tokensPurged, authFailures, assetUploads, checksumMatches, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		tokensIssued:    tokensIssued,
		tokenCollisions: tokenCollisions,
		tokensPurged:    tokensPurged,
		authFailures:    authFailures,
		assetUploads:    assetUploads,
		checksumMatches: checksumMatches,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, route, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// TokenIssued counts a persisted token.
func (m *MetricsService) TokenIssued() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
}

// TokenCollision counts a rejected token candidate.
func (m *MetricsService) TokenCollision() {
	if m == nil {
		return
	}
	m.tokenCollisions.Inc()
}

// TokensPurged adds n reaped tokens.
func (m *MetricsService) TokensPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensPurged.Add(float64(n))
}

// AuthFailure counts a failed credential check for operation (login, password_change).
func (m *MetricsService) AuthFailure(operation string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(operation).Inc()
}

// AssetUploaded counts a stored asset and whether its content duplicated an existing one.
func (m *MetricsService) AssetUploaded(kind string, duplicate bool) {
	if m == nil {
		return
	}
	m.assetUploads.WithLabelValues(kind).Inc()
	if duplicate {
		m.checksumMatches.Inc()
	}
}
