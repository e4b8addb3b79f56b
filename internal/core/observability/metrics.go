package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of analytics backend calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"endpoint"},
	)

	mapTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "map_transitions_total",
			Help: "Mode and content membership changes applied by sessions.",
		},
		[]string{"kind", "item", "op"},
	)

	staleResultsDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stale_results_discarded_total",
			Help: "Fetch results dropped because a newer input superseded them.",
		},
		[]string{"stream"},
	)

	viewUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_stream_updates_total",
			Help: "Fetch results installed into a session view, by stream.",
		},
		[]string{"stream"},
	)

	fetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_failures_total",
			Help: "Failed derived-view fetches by stream.",
		},
		[]string{"stream"},
	)

	mapLoading = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "map_loading",
			Help: "Number of sessions with the loading flag raised.",
		},
		[]string{"key"},
	)

	fetchCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cache_results_total",
			Help: "Fetch cache results by outcome.",
		},
		[]string{"outcome"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live map sessions.",
		},
	)

	polygonStoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polygon_store_op_total",
			Help: "Saved-polygon store operations by result.",
		},
		[]string{"op", "result"},
	)

	storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "session_events_dropped_total",
			Help: "Session events dropped because the publish queue was full.",
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		mapTransitionsTotal, staleResultsDiscarded, viewUpdatesTotal, fetchFailuresTotal, mapLoading,
		fetchCacheResults, sessionsActive, polygonStoreOps, storeOpDuration,
		eventsDropped, buildInfo,
	}
}

// Init registers the service collectors on reg. Registering on several
// registries is allowed; repeated registration on one registry is ignored.
func Init(reg prometheus.Registerer, on bool) {
	enabled.Store(on)
	if !on || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func Enabled() bool { return enabled.Load() }

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(endpoint string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(endpoint).Observe(durationSeconds)
}

// ObserveTransition counts one mode or content change; kind is "mode" or "content".
func ObserveTransition(kind, item, op string) {
	mapTransitionsTotal.WithLabelValues(kind, item, op).Inc()
}

func IncStaleDiscarded(stream string) {
	staleResultsDiscarded.WithLabelValues(stream).Inc()
}

func IncViewUpdate(stream string) {
	viewUpdatesTotal.WithLabelValues(stream).Inc()
}

func IncFetchFailure(stream string) {
	fetchFailuresTotal.WithLabelValues(stream).Inc()
}

func AddLoading(key string, delta float64) {
	mapLoading.WithLabelValues(key).Add(delta)
}

func IncFetchCacheHit()  { fetchCacheResults.WithLabelValues("hit").Inc() }
func IncFetchCacheMiss() { fetchCacheResults.WithLabelValues("miss").Inc() }

func SetSessionsActive(n int) { sessionsActive.Set(float64(n)) }

func ObservePolygonStoreOp(op string, err error) {
	polygonStoreOps.WithLabelValues(op, resultLabel(err)).Inc()
}

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	storeOpDuration.WithLabelValues(op, resultLabel(err)).Observe(durationSeconds)
}

func IncEventsDropped() { eventsDropped.Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
