// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig]. A .env
// file in the working directory is loaded first if present. Every variable
// carries the MEDIAPREP_ prefix:
//
//   - MEDIAPREP_PORT: HTTP API port (default: 8080)
//   - MEDIAPREP_METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - MEDIAPREP_METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - MEDIAPREP_LOG_HEALTH_CHECKS: Log health check requests (default: false)
//   - MEDIAPREP_SPOOL_DIR: Where uploaded files wait for preparation (default: /spool)
//   - MEDIAPREP_DATABASE_DIR: Outbox database directory (default: /database)
//   - MEDIAPREP_MAX_FILE_SIZE: Largest accepted file in bytes (default: 1500 MiB)
//   - MEDIAPREP_STICKER_MAX_SIZE: Largest sticker side in pixels (default: 512)
//   - MEDIAPREP_MAX_STICKER_IN_MEMORY: Largest sticker file in bytes (default: 2 MiB)
//   - MEDIAPREP_QUEUE_STOP_TIMEOUT: Idle time before the queue worker stops (default: 5s)
//   - MEDIAPREP_PROBE_TIMEOUT: Timeout for a single ffprobe/ffmpeg run (default: 30s)
//   - MEDIAPREP_MEMORY_LIMIT: Container memory limit in bytes, 0 for none (default: 0)
//   - MEDIAPREP_MEMORY_RATIO: Share of the limit given to GOMEMLIMIT (default: 0.85)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogOutboxInit]: Outbox initialization timing
//   - [LogProbeInit]: ffprobe and FFmpeg availability
//   - [LogVipsInit]: libvips availability
//   - [LogQueueInit]: Preparation queue settings
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
package startup
