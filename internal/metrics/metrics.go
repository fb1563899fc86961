package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convierto_conversions_total",
			Help: "Total number of conversion requests by source category and outcome",
		},
		[]string{"category", "status"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convierto_conversion_duration_seconds",
			Help:    "End-to-end conversion duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"category"},
	)

	ConversionRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convierto_conversion_retries_total",
			Help: "Total number of conversion attempt retries",
		},
	)

	ConversionFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convierto_conversion_fallbacks_total",
			Help: "Total number of reduced-quality fallback attempts",
		},
	)

	ConversionTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convierto_conversion_timeouts_total",
			Help: "Total number of conversion attempts that exceeded their time budget",
		},
	)
)

// Resource pool metrics
var (
	ActiveTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "convierto_active_tasks",
			Help: "Number of currently registered conversion tasks",
		},
		[]string{"category"},
	)

	AdmissionRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convierto_admission_rejections_total",
			Help: "Total number of conversions rejected by admission control",
		},
	)

	AvailableMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convierto_available_memory_bytes",
			Help: "Available physical memory observed at the last admission check",
		},
	)
)

// Cache metrics
var (
	CacheSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convierto_cache_sweeps_total",
			Help: "Total number of cache sweep runs",
		},
	)

	CacheEntriesRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convierto_cache_entries_removed_total",
			Help: "Total number of stale cache entries removed by sweeps",
		},
	)

	CacheTempPathsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convierto_cache_temp_paths_total",
			Help: "Total number of temporary output locations issued",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convierto_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convierto_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convierto_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Watcher metrics
var (
	WatcherFilesSeenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convierto_watcher_files_seen_total",
			Help: "Total number of files observed in the drop directory",
		},
	)

	WatcherConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convierto_watcher_conversions_total",
			Help: "Total number of watcher-initiated conversions by outcome",
		},
		[]string{"status"},
	)
)
