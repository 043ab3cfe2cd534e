package metrics

import (
	"errors"

	"media-prep/internal/filesystem"
	"media-prep/internal/sending"
	"media-prep/internal/tasks"
)

// queueObserver implements tasks.Observer using the Prometheus metrics
// declared in this package.
type queueObserver struct{}

// NewQueueObserver creates an observer that records queue metrics.
func NewQueueObserver() tasks.Observer {
	return &queueObserver{}
}

func (o *queueObserver) ObserveQueued(count int) {
	QueueTasksQueued.Add(float64(count))
	QueuePending.Add(float64(count))
}

func (o *queueObserver) ObserveProcessed(durationSeconds float64) {
	QueueTaskDuration.Observe(durationSeconds)
}

func (o *queueObserver) ObserveFinished() {
	QueueTasksCompleted.WithLabelValues("finished").Inc()
	QueuePending.Dec()
}

func (o *queueObserver) ObserveCancelled() {
	QueueTasksCompleted.WithLabelValues("cancelled").Inc()
	QueuePending.Dec()
}

func (o *queueObserver) ObserveDiscarded(count int) {
	QueueTasksCompleted.WithLabelValues("discarded").Add(float64(count))
	QueuePending.Sub(float64(count))
}

func (o *queueObserver) ObserveWorker(running bool) {
	if running {
		QueueWorkerRunning.Set(1)
	} else {
		QueueWorkerRunning.Set(0)
	}
}

// prepareObserver implements sending.Observer.
type prepareObserver struct{}

// NewPrepareObserver creates an observer that records preparation outcomes.
func NewPrepareObserver() sending.Observer {
	return &prepareObserver{}
}

func (o *prepareObserver) ObservePrepared(t sending.SendMediaType, size int64, parts int) {
	PreparedTotal.WithLabelValues(t.String()).Inc()
	PreparedBytes.WithLabelValues(t.String()).Observe(float64(size))
	PreparedParts.Observe(float64(parts))
}

func (o *prepareObserver) ObserveFailure(reason error) {
	PrepareFailuresTotal.WithLabelValues(FailureReason(reason)).Inc()
}

// FailureReason maps a preparation error to its metric label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, sending.ErrUnreadable):
		return "unreadable"
	case errors.Is(err, sending.ErrEmpty):
		return "empty"
	case errors.Is(err, sending.ErrTooLarge):
		return "too_large"
	default:
		return "other"
	}
}

// filesystemObserver implements filesystem.Observer.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records filesystem retries.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryDuration(op, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, volume).Observe(durationSeconds)
}

func (o *filesystemObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volume).Inc()
}
