package filesystem

// Observer records retry metrics. The metrics package provides the
// implementation; it cannot be imported here without a cycle.
type Observer interface {
	// op is "stat", "open" or "read"; volume is the resolved volume label.
	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	ObserveRetryDuration(op, volume string, durationSeconds float64)
	ObserveStaleError(op, volume string)
}

// defaultObserver is nil until SetObserver; recording is then skipped.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
