package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "bustrackr_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	syncPasses  *prometheus.CounterVec
	syncItems   *prometheus.CounterVec
	tickLatency *prometheus.HistogramVec

	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec

	broadcastPublishes *prometheus.CounterVec

	upstreamHealthy prometheus.Gauge
)

// Init registers pipeline metrics and, when a DB is given, store gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		syncPasses = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_passes_total",
				Help: "Completed sync passes by kind and result",
			},
			[]string{"kind", "result"},
		)
		syncItems = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_items_total",
				Help: "Per-item sync outcomes by kind and result",
			},
			[]string{"kind", "result"},
		)
		tickLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_duration_seconds",
				Help:    "Scheduled job tick duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		)

		providerCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "provider_calls_total",
				Help: "Upstream provider calls by endpoint and result",
			},
			[]string{"endpoint", "result"},
		)
		providerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "provider_call_duration_seconds",
				Help:    "Upstream provider call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		)

		broadcastPublishes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_publishes_total",
				Help: "Broadcast publishes by topic kind and result",
			},
			[]string{"kind", "result"},
		)

		upstreamHealthy = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "upstream_healthy",
				Help: "1 when the last upstream health probe succeeded",
			},
		)

		prometheus.MustRegister(
			syncPasses,
			syncItems,
			tickLatency,
			providerCalls,
			providerLatency,
			broadcastPublishes,
			upstreamHealthy,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSyncPass records one completed pass.
func ObserveSyncPass(kind, result string) {
	if result == "" {
		result = resultSuccess
	}
	if syncPasses != nil {
		syncPasses.WithLabelValues(kind, result).Inc()
	}
}

// AddSyncItems adds per-item outcomes for a pass.
func AddSyncItems(kind, result string, count int) {
	if count <= 0 {
		return
	}
	if syncItems != nil {
		syncItems.WithLabelValues(kind, result).Add(float64(count))
	}
}

// ObserveTick records one scheduled job tick.
func ObserveTick(job string, duration time.Duration) {
	if tickLatency != nil {
		tickLatency.WithLabelValues(job).Observe(duration.Seconds())
	}
}

// ObserveProviderCall records one upstream call.
func ObserveProviderCall(endpoint, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if providerCalls != nil {
		providerCalls.WithLabelValues(endpoint, result).Inc()
	}
	if providerLatency != nil {
		providerLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
	}
}

// IncBroadcast records one publish attempt.
func IncBroadcast(kind, result string) {
	if result == "" {
		result = resultSuccess
	}
	if broadcastPublishes != nil {
		broadcastPublishes.WithLabelValues(kind, result).Inc()
	}
}

// SetUpstreamHealthy sets the upstream health gauge.
func SetUpstreamHealthy(healthy bool) {
	if upstreamHealthy == nil {
		return
	}
	if healthy {
		upstreamHealthy.Set(1)
		return
	}
	upstreamHealthy.Set(0)
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
