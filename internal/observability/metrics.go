package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every Prometheus collector the render service
// exports, registered once at the composition root. Task and admission
// metrics are event-driven; pool and cache metrics are gauges refreshed
// from component stats by the composition root's sync loop.
type Metrics struct {
	Registry *prometheus.Registry

	TasksCreated   prometheus.Counter
	TasksCompleted *prometheus.CounterVec
	TaskDuration   prometheus.Histogram

	RateLimitBlocked *prometheus.CounterVec

	PoolEngines      prometheus.Gauge
	PoolActive       prometheus.Gauge
	PoolAcquisitions prometheus.Gauge
	PoolWaitMs       prometheus.Gauge

	CacheEntries prometheus.Gauge
	CacheBytes   prometheus.Gauge
	CacheHits    prometheus.Gauge
	CacheMisses  prometheus.Gauge
}

// NewMetrics constructs and registers every collector on a fresh
// registry, so multiple test instances never collide on the global one.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		TasksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "scrapegoat_tasks_created_total",
			Help: "Total scrape tasks created.",
		}),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrapegoat_tasks_completed_total",
			Help: "Total scrape tasks finished, by terminal status.",
		}, []string{"status"}),
		TaskDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scrapegoat_task_duration_seconds",
			Help:    "Scrape task end-to-end duration.",
			Buckets: prometheus.DefBuckets,
		}),
		RateLimitBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scrapegoat_rate_limit_blocked_total",
			Help: "Total admission refusals, by endpoint class.",
		}, []string{"class"}),
		PoolEngines: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrapegoat_pool_engines",
			Help: "Rendering engines owned by the browser pool.",
		}),
		PoolActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrapegoat_pool_active",
			Help: "Rendering engines currently checked out.",
		}),
		PoolAcquisitions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrapegoat_pool_acquisitions_total",
			Help: "Lifetime browser pool acquisitions.",
		}),
		PoolWaitMs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrapegoat_pool_wait_ms",
			Help: "Mean acquisition wait over the last 100 samples.",
		}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrapegoat_cache_entries",
			Help: "Entries held in the memory cache tier.",
		}),
		CacheBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrapegoat_cache_bytes",
			Help: "Approximate bytes held in the memory cache tier.",
		}),
		CacheHits: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrapegoat_cache_hits_total",
			Help: "Lifetime cache hits across tiers.",
		}),
		CacheMisses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scrapegoat_cache_misses_total",
			Help: "Lifetime cache misses across tiers.",
		}),
	}
}
