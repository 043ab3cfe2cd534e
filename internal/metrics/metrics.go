package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_prep_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_prep_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_prep_upload_bytes_total",
			Help: "Total bytes received in send requests",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_prep_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_prep_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"result"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_prep_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_prep_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Queue metrics
var (
	QueueTasksQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_prep_queue_tasks_queued_total",
			Help: "Total number of tasks added to the preparation queue",
		},
	)

	QueueTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_prep_queue_task_duration_seconds",
			Help:    "Time spent processing one task on the worker",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	QueueTasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_queue_tasks_completed_total",
			Help: "Total number of tasks leaving the queue, by outcome",
		},
		[]string{"outcome"}, // "finished", "cancelled", "discarded"
	)

	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_prep_queue_pending",
			Help: "Number of tasks waiting for or under processing",
		},
	)

	QueueWorkerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_prep_queue_worker_running",
			Help: "Whether the queue worker goroutine is running (1 = running, 0 = stopped)",
		},
	)
)

// Preparation metrics
var (
	PreparedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_prepared_total",
			Help: "Total number of files prepared for upload, by send type",
		},
		[]string{"type"},
	)

	PreparedBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_prep_prepared_bytes",
			Help:    "Size of prepared files in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
		},
		[]string{"type"},
	)

	PreparedParts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_prep_prepared_parts",
			Help:    "Number of upload parts per prepared file",
			Buckets: []float64{1, 2, 5, 10, 50, 100, 500, 1000, 10000, 50000},
		},
	)

	PrepareFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_prepare_failures_total",
			Help: "Total number of files that could not be sent, by reason",
		},
		[]string{"reason"}, // "unreadable", "empty", "too_large", "other"
	)

	AlbumsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_prep_albums_completed_total",
			Help: "Total number of albums whose items all received media",
		},
	)
)

// Outbox contents
var (
	OutboxEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_prep_outbox_entries",
			Help: "Number of rows in the outbox by kind",
		},
		[]string{"kind"}, // "prepared", "failed", "albums"
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after a stale NFS file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_prep_filesystem_operation_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_prep_filesystem_stale_errors_total",
			Help: "Stale NFS file handle errors seen",
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_prep_go_memalloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	GoGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_prep_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_prep_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_prep_memory_paused",
			Help: "1 while preparation is paused for memory pressure",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_prep_memory_pauses_total",
			Help: "Number of times preparation was paused for memory pressure",
		},
	)

	MemoryWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_prep_memory_wait_seconds",
			Help:    "Time a task waited for memory pressure to clear",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)

// AppInfo exposes build information as labels.
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "media_prep_app_info",
		Help: "Application information",
	},
	[]string{"version", "commit", "go_version"},
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
