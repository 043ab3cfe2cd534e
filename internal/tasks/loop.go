package tasks

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopClosed is returned by Do after the loop has stopped.
var ErrLoopClosed = errors.New("loop closed")

// Loop is a Dispatcher that runs posted functions one at a time on the
// goroutine calling Run. Post never blocks; the backlog is unbounded.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool

	signal chan struct{}
	done   chan struct{}
}

// NewLoop creates a loop. Call Run to start executing posted functions.
func NewLoop() *Loop {
	return &Loop{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post schedules fn on the loop goroutine. Functions posted after the loop
// stopped are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	l.Post(func() {
		defer close(ran)
		fn()
	})

	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted functions until ctx is cancelled or Close is called.
// Functions still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) {
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-l.signal:
		}

		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
		}
	}
}

// Close stops the loop. It is safe to call more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.pending = nil
	close(l.done)
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || len(l.pending) == 0 {
		return nil, false
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn, true
}
