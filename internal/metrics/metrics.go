package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photosphere_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_db_queries_total",
			Help: "Total number of catalog database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photosphere_db_query_duration_seconds",
			Help:    "Catalog database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photosphere_db_transaction_duration_seconds",
			Help:    "Catalog database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_db_connections_open",
			Help: "Number of open catalog database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photosphere_db_size_bytes",
			Help: "Size of SQLite catalog files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Import pipeline metrics
var (
	ImportBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_import_batches_total",
			Help: "Total number of import batches by final state",
		},
		[]string{"state"}, // "completed", "cancelled", "aborted"
	)

	ImportFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_import_files_total",
			Help: "Total number of files processed by the import pipeline",
		},
		[]string{"outcome"},
	)

	ImportFileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photosphere_import_file_duration_seconds",
			Help:    "Per-file import processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ImportBatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_import_batches_in_flight",
			Help: "Number of import batches currently running",
		},
	)

	ImportWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_import_workers",
			Help: "Configured import worker pool size",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photosphere_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"trigger", "status"}, // trigger: "warm" or "lazy"
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photosphere_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosphere_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosphere_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses (placeholder served)",
		},
	)

	ThumbnailCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_thumbnail_cache_size_bytes",
			Help: "Total size of the thumbnail cache in bytes",
		},
	)

	ThumbnailCacheCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_thumbnail_cache_count",
			Help: "Number of thumbnails in the cache",
		},
	)

	ThumbnailOrphansReclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photosphere_thumbnail_orphans_reclaimed_total",
			Help: "Total number of orphaned thumbnail cache entries reclaimed",
		},
	)
)

// Catalog content metrics
var (
	CatalogPhotosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_catalog_photos_total",
			Help: "Total number of cataloged photos",
		},
	)

	CatalogTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_catalog_tags_total",
			Help: "Total number of tags",
		},
	)
)

// Application info metrics
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photosphere_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)

	HEIFCapability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photosphere_heif_capability",
			Help: "Whether HEIF/AVIF decoding is available (1 = available, 0 = absent)",
		},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// SetHEIFCapability records the startup HEIF probe result
func SetHEIFCapability(available bool) {
	if available {
		HEIFCapability.Set(1)
	} else {
		HEIFCapability.Set(0)
	}
}
