package tasks

import (
	"context"
	"sync/atomic"
)

// ID identifies a task for the lifetime of the process. The zero ID is
// never assigned.
type ID uint64

var lastID atomic.Uint64

// NewID returns a process-unique task id.
func NewID() ID {
	return ID(lastID.Add(1))
}

// Task is one unit of background work.
type Task interface {
	// ID returns the id assigned at construction.
	ID() ID

	// Process does the work on the queue's worker goroutine. The context is
	// cancelled only when the queue is torn down, and the result is then
	// discarded. A panic is logged and the task is still finished.
	Process(ctx context.Context)

	// Finish delivers the result on the owner's goroutine.
	Finish()
}

// Dispatcher runs functions on the goroutine that owns a queue.
// Post must not block the caller.
type Dispatcher interface {
	Post(fn func())
}

// Observer receives queue lifecycle events. Implementations must be safe
// for concurrent use; the metrics package provides one.
type Observer interface {
	ObserveQueued(count int)
	ObserveProcessed(durationSeconds float64)
	ObserveFinished()
	ObserveCancelled()
	ObserveDiscarded(count int)
	ObserveWorker(running bool)
}

type nopObserver struct{}

func (nopObserver) ObserveQueued(int) {}
func (nopObserver) ObserveProcessed(float64) {}
func (nopObserver) ObserveFinished() {}
func (nopObserver) ObserveCancelled() {}
func (nopObserver) ObserveDiscarded(int) {}
func (nopObserver) ObserveWorker(running bool) {}
