package metrics

import "media-prep/internal/sending"

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Database files ---
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "confirm_file", "record_failure",
		"get_status", "get_prepared", "get_parts", "save_album", "get_album", "get_stats", "vacuum"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, r := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(r)
	}

	// --- Queue outcomes ---
	for _, outcome := range []string{"finished", "cancelled", "discarded"} {
		QueueTasksCompleted.WithLabelValues(outcome)
	}

	// --- Preparation by send type ---
	for _, t := range []sending.SendMediaType{sending.SendMediaPhoto, sending.SendMediaAudio, sending.SendMediaFile, sending.SendMediaWallPaper} {
		PreparedTotal.WithLabelValues(t.String())
		PreparedBytes.WithLabelValues(t.String())
	}

	for _, reason := range []string{"unreadable", "empty", "too_large", "other"} {
		PrepareFailuresTotal.WithLabelValues(reason)
	}

	// --- Filesystem retries on the spool volume ---
	for _, op := range []string{"stat", "open", "read"} {
		FilesystemRetryAttempts.WithLabelValues(op, "spool")
		FilesystemRetryFailures.WithLabelValues(op, "spool")
		FilesystemStaleErrors.WithLabelValues(op, "spool")
	}

	for _, kind := range []string{"prepared", "failed", "albums"} {
		OutboxEntries.WithLabelValues(kind)
	}
}
