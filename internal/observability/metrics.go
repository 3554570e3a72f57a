package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/rent-lookup-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate per source (rates, weather). Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per source. Watch for: p95 > 2s (upstream degradation).
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts per source. High retries = unstable upstream.
	UpstreamRetriesTotal *prometheus.CounterVec

	// Cache lookups by cache and result (fresh, stale, missing).
	CacheLookupsTotal *prometheus.CounterVec

	// Cache backend errors by cache and operation (load, save).
	CacheErrorsTotal *prometheus.CounterVec

	// Stale entries served after a failed refresh.
	StaleServesTotal *prometheus.CounterVec

	// Age of stale entries when served.
	StaleAgeSeconds *prometheus.HistogramVec

	// Unavailable results by cache and failure kind (not_configured, upstream).
	UnavailableTotal *prometheus.CounterVec

	// Callers that joined an in-flight fetch instead of issuing their own.
	CoalescingHitsTotal *prometheus.CounterVec

	// Concurrent misses for the same key. Non-zero with coalescing disabled means duplicate upstream calls.
	CacheStampedeDetectedTotal *prometheus.CounterVec

	// Conversions rendered in RWF instead of the requested currency.
	ConversionFallbacksTotal *prometheus.CounterVec

	// Circuit breaker state per component (0=closed, 1=open, 2=half_open).
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	// Neighborhood searches by result (found, not_found, invalid).
	SearchesTotal *prometheus.CounterVec

	// Per-neighborhood searches (allow-list; others go to "other").
	SearchesByNeighborhoodTotal *prometheus.CounterVec

	// Widgets replaced by a placeholder.
	WidgetFailuresTotal *prometheus.CounterVec

	// Cache warming runs, failures and duration.
	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	trackedNeighborhoodsMu sync.RWMutex
	trackedNeighborhoods   map[string]struct{}

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls by source and status",
		},
		[]string{"source", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts for upstream calls",
		},
		[]string{"source"},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheLookupsTotal",
			Help: "Cache lookups by cache and result (fresh, stale, missing)",
		},
		[]string{"cache", "result"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by cache and operation",
		},
		[]string{"cache", "operation"},
	)
	StaleServesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staleCacheServesTotal",
			Help: "Stale cache entries served after a failed refresh",
		},
		[]string{"cache"},
	)
	StaleAgeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staleCacheAgeSeconds",
			Help:    "Age of stale cache entries when served",
			Buckets: []float64{1800, 3600, 7200, 21600, 86400},
		},
		[]string{"cache"},
	)
	UnavailableTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unavailableResultsTotal",
			Help: "Results reported unavailable by cache and failure kind",
		},
		[]string{"cache", "kind"},
	)
	CoalescingHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requestCoalescingHitsTotal",
			Help: "Callers that waited on an in-flight fetch for the same key",
		},
		[]string{"cache"},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Concurrent cache misses for the same key",
		},
		[]string{"cache"},
	)
	ConversionFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversionFallbacksTotal",
			Help: "Prices rendered in RWF instead of the requested currency",
		},
		[]string{"currency", "reason"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neighborhoodSearchesTotal",
			Help: "Neighborhood searches by result",
		},
		[]string{"result"},
	)
	SearchesByNeighborhoodTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neighborhoodSearchesByNameTotal",
			Help: "Neighborhood searches by name (allow-list; others use neighborhood=other)",
		},
		[]string{"neighborhood"},
	)
	WidgetFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widgetFailuresTotal",
			Help: "Widgets replaced by a placeholder after a build failure",
		},
		[]string{"widget"},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed key",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Cache warming run duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal,
		CacheLookupsTotal, CacheErrorsTotal, StaleServesTotal, StaleAgeSeconds, UnavailableTotal,
		CoalescingHitsTotal, CacheStampedeDetectedTotal,
		ConversionFallbacksTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
		SearchesTotal, SearchesByNeighborhoodTotal, WidgetFailuresTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
		RateLimitDeniedTotal,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with the lifecycle window.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordCircuitBreakerTransition counts a state change and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue float64) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(toValue)
}

// SetTrackedNeighborhoods sets the allow-list for per-neighborhood metrics. Others increment "other".
func SetTrackedNeighborhoods(names []string) {
	trackedNeighborhoodsMu.Lock()
	defer trackedNeighborhoodsMu.Unlock()
	trackedNeighborhoods = make(map[string]struct{}, len(names))
	for _, n := range names {
		trackedNeighborhoods[normalizeForMetrics(n)] = struct{}{}
	}
}

// RecordSearch records a search outcome and, for found neighborhoods, the per-name counter.
func RecordSearch(name, result string) {
	SearchesTotal.WithLabelValues(result).Inc()
	if result != "found" {
		return
	}
	n := normalizeForMetrics(name)
	trackedNeighborhoodsMu.RLock()
	_, ok := trackedNeighborhoods[n]
	trackedNeighborhoodsMu.RUnlock()
	if ok {
		SearchesByNeighborhoodTotal.WithLabelValues(n).Inc()
	} else {
		SearchesByNeighborhoodTotal.WithLabelValues("other").Inc()
	}
}

func normalizeForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
