package tasks

import (
	"context"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"media-prep/internal/logging"
)

// Options configures a Queue.
type Options struct {
	// StopTimeout tears the worker down after the queue has been idle this
	// long. Zero keeps the worker alive until Stop or Close.
	StopTimeout time.Duration

	// Observer receives lifecycle events. Nil disables observation.
	Observer Observer
}

// Queue serializes tasks onto one worker goroutine and delivers finished
// tasks through its Dispatcher.
//
// Two locks guard the state: toProcessMu covers the pending list and the
// in-process marker, toFinishMu covers the finished list. Neither is held
// while a task's Process or Finish runs.
type Queue struct {
	dispatcher Dispatcher
	options    Options
	observer   Observer

	toProcessMu   sync.Mutex
	toProcess     []Task
	taskInProcess ID

	toFinishMu sync.Mutex
	toFinish   []Task
	stopping   bool

	workerMu  sync.Mutex
	worker    *worker
	stopTimer *time.Timer
	timerGen  uint64

	closed atomic.Bool
}

type worker struct {
	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

// NewQueue creates a queue whose tasks finish on dispatcher.
func NewQueue(dispatcher Dispatcher, options Options) *Queue {
	observer := options.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Queue{
		dispatcher: dispatcher,
		options:    options,
		observer:   observer,
	}
}

// AddTask appends task to the queue and returns its id without waiting.
func (q *Queue) AddTask(task Task) ID {
	id := task.ID()
	if q.closed.Load() {
		logging.Warn("Task queue: dropping task %d submitted after close", id)
		return id
	}

	q.toProcessMu.Lock()
	q.toProcess = append(q.toProcess, task)
	q.toProcessMu.Unlock()

	q.observer.ObserveQueued(1)
	q.wakeWorker()
	return id
}

// AddTasks appends all tasks atomically, preserving their order.
func (q *Queue) AddTasks(tasks []Task) {
	if len(tasks) == 0 {
		return
	}
	if q.closed.Load() {
		logging.Warn("Task queue: dropping %d tasks submitted after close", len(tasks))
		return
	}

	q.toProcessMu.Lock()
	q.toProcess = append(q.toProcess, tasks...)
	q.toProcessMu.Unlock()

	q.observer.ObserveQueued(len(tasks))
	q.wakeWorker()
}

// CancelTask forgets the task with the given id. A task already being
// processed runs to completion but is never finished.
func (q *Queue) CancelTask(id ID) {
	matches := func(task Task) bool { return task.ID() == id }

	cancelled := false
	q.toProcessMu.Lock()
	if i := slices.IndexFunc(q.toProcess, matches); i >= 0 {
		q.toProcess = slices.Delete(q.toProcess, i, i+1)
		cancelled = true
	}
	if q.taskInProcess == id {
		q.taskInProcess = 0
		cancelled = true
	}
	q.toProcessMu.Unlock()

	q.toFinishMu.Lock()
	if i := slices.IndexFunc(q.toFinish, matches); i >= 0 {
		q.toFinish = slices.Delete(q.toFinish, i, i+1)
		cancelled = true
	}
	q.toFinishMu.Unlock()

	if cancelled {
		logging.Debug("Task queue: cancelled task %d", id)
		q.observer.ObserveCancelled()
	}
}

// Len returns the number of tasks waiting or being processed.
func (q *Queue) Len() int {
	q.toProcessMu.Lock()
	defer q.toProcessMu.Unlock()

	n := len(q.toProcess)
	if q.taskInProcess != 0 {
		n++
	}
	return n
}

// Running reports whether the worker goroutine is alive.
func (q *Queue) Running() bool {
	q.workerMu.Lock()
	defer q.workerMu.Unlock()
	return q.worker != nil
}

// Stop tears the worker down and discards every pending and undelivered
// task; no Finish starts once Stop has been called. It blocks until the
// worker goroutine has exited. The queue can be used again afterwards; the
// next AddTask starts a new worker.
func (q *Queue) Stop() {
	q.toFinishMu.Lock()
	q.stopping = true
	q.toFinishMu.Unlock()

	q.workerMu.Lock()
	w := q.worker
	q.worker = nil
	q.cancelStopTimerLocked()
	q.workerMu.Unlock()

	q.shutdown(w)

	q.toProcessMu.Lock()
	discarded := len(q.toProcess)
	if q.taskInProcess != 0 {
		discarded++
	}
	q.toProcess = nil
	q.taskInProcess = 0
	q.toProcessMu.Unlock()

	q.toFinishMu.Lock()
	discarded += len(q.toFinish)
	q.toFinish = nil
	q.stopping = false
	q.toFinishMu.Unlock()

	if discarded > 0 {
		logging.Debug("Task queue: discarded %d tasks on stop", discarded)
		q.observer.ObserveDiscarded(discarded)
	}
}

func (q *Queue) shutdown(w *worker) {
	if w == nil {
		return
	}
	w.cancel()
	close(w.quit)
	logging.Debug("Task queue: waiting for worker to finish")
	<-w.done
	q.observer.ObserveWorker(false)
}

// Close stops the queue for good. Tasks added afterwards are dropped.
func (q *Queue) Close() {
	q.closed.Store(true)
	q.Stop()
}

func (q *Queue) wakeWorker() {
	q.workerMu.Lock()
	defer q.workerMu.Unlock()

	if q.worker == nil {
		ctx, cancel := context.WithCancel(context.Background())
		q.worker = &worker{
			ctx:    ctx,
			cancel: cancel,
			wake:   make(chan struct{}, 1),
			quit:   make(chan struct{}),
			done:   make(chan struct{}),
		}
		go q.run(q.worker)
		logging.Debug("Task queue: worker started")
		q.observer.ObserveWorker(true)
	}
	q.cancelStopTimerLocked()

	select {
	case q.worker.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(w *worker) {
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			return
		case <-w.wake:
		}
		q.drain(w)
	}
}

// drain processes pending tasks until none are left or the worker is
// interrupted.
func (q *Queue) drain(w *worker) {
	for w.ctx.Err() == nil {
		q.toProcessMu.Lock()
		if len(q.toProcess) == 0 {
			q.toProcessMu.Unlock()
			return
		}
		task := q.toProcess[0]
		q.toProcess[0] = nil
		q.toProcess = q.toProcess[1:]
		q.taskInProcess = task.ID()
		q.toProcessMu.Unlock()

		start := time.Now()
		q.process(w.ctx, task)
		q.observer.ObserveProcessed(time.Since(start).Seconds())

		notify := false
		q.toProcessMu.Lock()
		if w.ctx.Err() != nil {
			// Stop is waiting for us; it discards the in-process task.
			logging.Debug("Task queue: dropping result of task %d interrupted by stop", task.ID())
		} else if q.taskInProcess == task.ID() {
			q.taskInProcess = 0

			q.toFinishMu.Lock()
			notify = len(q.toFinish) == 0
			q.toFinish = append(q.toFinish, task)
			q.toFinishMu.Unlock()
		} else {
			logging.Debug("Task queue: dropping result of cancelled task %d", task.ID())
		}
		q.toProcessMu.Unlock()

		if notify {
			q.dispatcher.Post(q.onTaskProcessed)
		}
	}
}

// process runs task.Process, recovering a panic so the task still reaches
// Finish.
func (q *Queue) process(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Task queue: task %d panicked: %v\n%s", task.ID(), r, debug.Stack())
		}
	}()
	task.Process(ctx)
}

// onTaskProcessed runs on the dispatcher and finishes every delivered task.
func (q *Queue) onTaskProcessed() {
	for !q.closed.Load() {
		q.toFinishMu.Lock()
		if q.stopping || len(q.toFinish) == 0 {
			q.toFinishMu.Unlock()
			break
		}
		task := q.toFinish[0]
		q.toFinish[0] = nil
		q.toFinish = q.toFinish[1:]
		q.toFinishMu.Unlock()

		task.Finish()
		q.observer.ObserveFinished()
	}

	if q.options.StopTimeout > 0 && q.idle() {
		q.armStopTimer()
	}
}

func (q *Queue) idle() bool {
	q.toProcessMu.Lock()
	defer q.toProcessMu.Unlock()
	return len(q.toProcess) == 0 && q.taskInProcess == 0
}

func (q *Queue) armStopTimer() {
	q.workerMu.Lock()
	defer q.workerMu.Unlock()

	if q.worker == nil {
		return
	}
	q.cancelStopTimerLocked()
	gen := q.timerGen
	q.stopTimer = time.AfterFunc(q.options.StopTimeout, func() {
		q.dispatcher.Post(func() { q.stopIfIdle(gen) })
	})
}

// stopIfIdle runs on the dispatcher when the idle timer fires. A wake in
// between bumps timerGen and keeps the worker alive. Only the worker is torn
// down here; anything queued concurrently starts a fresh one.
func (q *Queue) stopIfIdle(gen uint64) {
	q.workerMu.Lock()
	if q.timerGen != gen || q.worker == nil || !q.idle() {
		q.workerMu.Unlock()
		return
	}
	w := q.worker
	q.worker = nil
	q.cancelStopTimerLocked()
	q.workerMu.Unlock()

	logging.Debug("Task queue: idle for %v, stopping worker", q.options.StopTimeout)
	q.shutdown(w)
}

func (q *Queue) cancelStopTimerLocked() {
	q.timerGen++
	if q.stopTimer != nil {
		q.stopTimer.Stop()
		q.stopTimer = nil
	}
}
