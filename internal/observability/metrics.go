package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpdatesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livemap_position_updates_total",
		Help: "Position updates applied to a map session",
	})
	UpdatesMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livemap_position_updates_malformed_total",
		Help: "Position updates without a vehicle or a usable fix",
	})
	TrailChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livemap_trail_changes_total",
		Help: "Trail mutations by kind (reset, append, evict, duplicate)",
	}, []string{"kind"})
	TrailSaveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livemap_trail_save_errors_total",
		Help: "Failed trail persistence writes",
	})
	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livemap_geocode_requests_total",
		Help: "Reverse geocoding lookups by outcome (ok, error, stale, cached)",
	}, []string{"outcome"})
	GeocodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "livemap_geocode_latency_seconds",
		Help:    "Reverse geocoding upstream latency",
		Buckets: prometheus.DefBuckets,
	})
	AnimationRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livemap_animation_restarts_total",
		Help: "Marker animations interrupted by a newer target",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livemap_sessions_active",
		Help: "Open map sessions",
	})
	QueueDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livemap_queue_deliveries_total",
		Help: "Queue deliveries by outcome (ack, reject)",
	}, []string{"outcome"})
)

// ObserveGeocodeLatency records the time since start
func ObserveGeocodeLatency(start time.Time) {
	GeocodeLatency.Observe(time.Since(start).Seconds())
}
