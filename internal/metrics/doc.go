// Package metrics provides Prometheus instrumentation for media-prep.
//
// All metrics are prefixed with "media_prep_" to avoid naming collisions
// with other applications.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//   - UploadBytesTotal: Counter of bytes received in send requests
//
// ## Database Metrics
//
// Monitor the SQLite outbox:
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBTransactionDuration: Histogram of transaction duration by result
//   - DBConnectionsOpen: Gauge of open database connections
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//
// ## Queue Metrics
//
// Recorded through the tasks.Observer returned by NewQueueObserver:
//   - QueueTasksQueued: Counter of tasks added
//   - QueueTaskDuration: Histogram of time spent in Process
//   - QueueTasksCompleted: Counter by outcome (finished/cancelled/discarded)
//   - QueuePending: Gauge of tasks not yet delivered
//   - QueueWorkerRunning: Gauge indicating if the worker goroutine is alive
//
// ## Preparation Metrics
//
// Recorded through the sending.Observer returned by NewPrepareObserver:
//   - PreparedTotal: Counter of prepared files by send type
//   - PreparedBytes: Histogram of prepared file sizes by send type
//   - PreparedParts: Histogram of upload parts per file
//   - PrepareFailuresTotal: Counter of failures by reason
//   - AlbumsCompletedTotal: Counter of albums with media on every item
//
// ## Filesystem Metrics
//
// Recorded through the filesystem.Observer returned by NewFilesystemObserver,
// labelled by operation and volume:
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures
//   - FilesystemStaleErrors: Counter of ESTALE errors seen
//   - FilesystemRetryDuration: Histogram of operation duration including retries
//
// ## Memory Metrics
//
// Set by memory.Monitor:
//   - MemoryUsageRatio: Gauge of heap allocation over the memory limit
//   - MemoryPaused: Gauge, 1 while preparation is paused
//   - MemoryPausesTotal: Counter of pauses
//   - MemoryWaitDuration: Histogram of time a task waited
//
// ## Outbox and Runtime Metrics
//
// Updated periodically by the Collector:
//   - OutboxEntries: Gauge of outbox rows by kind
//   - GoMemAllocBytes, GoGoroutines: Go runtime gauges
//
// # Usage
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape, then serve promhttp.Handler() on the
// metrics port.
package metrics
