package handlers

import (
	"context"
	"os"
	"sync"
	"time"

	"media-prep/internal/logging"
	"media-prep/internal/outbox"
	"media-prep/internal/sending"
	"media-prep/internal/tasks"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// Queue is the part of tasks.Queue used by the handlers.
type Queue interface {
	AddTask(task tasks.Task) tasks.ID
	AddTasks(list []tasks.Task)
	CancelTask(id tasks.ID)
	Len() int
	Running() bool
}

// Store is the part of outbox.Outbox used by the handlers.
type Store interface {
	Status(ctx context.Context, taskID tasks.ID) (*outbox.Status, error)
	Album(ctx context.Context, groupID uint64) (*outbox.AlbumRecord, error)
}

// Options configure New.
type Options struct {
	SpoolDir string
	// Deps are shared by every task the handlers create.
	Deps sending.Deps
	// Dispatcher runs album updates and cancels on the loop that finishes
	// tasks. Nil runs them inline.
	Dispatcher tasks.Dispatcher
}

// Handlers serves the send API. Submitted tasks are tracked until their
// Finish runs so that their state can be reported before the outbox has it.
type Handlers struct {
	queue    Queue
	store    Store
	deps     sending.Deps
	loop     tasks.Dispatcher
	spoolDir string
	messages *sending.Messages
	started  time.Time
	validate *validator.Validate

	mu        sync.Mutex
	pending   map[tasks.ID]*submission
	albums    map[uint64]*sending.Album
	cancelled map[tasks.ID]bool
}

type submission struct {
	filename string
	dir      string
	album    *sending.Album
}

// New returns handlers submitting to queue and reading outcomes from store.
func New(queue Queue, store Store, options Options) *Handlers {
	return &Handlers{
		queue:     queue,
		store:     store,
		deps:      options.Deps,
		loop:      options.Dispatcher,
		spoolDir:  options.SpoolDir,
		messages:  sending.NewMessages(),
		started:   time.Now(),
		validate:  validator.New(),
		pending:   make(map[tasks.ID]*submission),
		albums:    make(map[uint64]*sending.Album),
		cancelled: make(map[tasks.ID]bool),
	}
}

// Register adds the API routes to router.
func (h *Handlers) Register(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET", "HEAD").Name("health")
	router.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD").Name("liveness")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/send", h.Send).Methods("POST").Name("send")
	api.HandleFunc("/send/voice", h.SendVoice).Methods("POST").Name("send-voice")
	api.HandleFunc("/tasks/{id}", h.GetTask).Methods("GET").Name("get-task")
	api.HandleFunc("/tasks/{id}", h.CancelTask).Methods("DELETE").Name("cancel-task")
	api.HandleFunc("/albums/{group}", h.GetAlbum).Methods("GET").Name("get-album")
	api.HandleFunc("/version", h.GetVersion).Methods("GET").Name("version")
}

// track wraps task so that Finish releases its spool directory and drops
// it from the pending set.
func (h *Handlers) track(task *sending.FileLoadTask, sub *submission) tasks.Task {
	h.mu.Lock()
	h.pending[task.ID()] = sub
	if sub.album != nil {
		h.albums[sub.album.GroupID()] = sub.album
	}
	h.mu.Unlock()
	return &trackedTask{FileLoadTask: task, done: h.release}
}

func (h *Handlers) release(id tasks.ID) {
	h.mu.Lock()
	sub, ok := h.pending[id]
	delete(h.pending, id)
	if ok && sub.album != nil && !h.albumPendingLocked(sub.album.GroupID()) {
		delete(h.albums, sub.album.GroupID())
	}
	h.mu.Unlock()

	if ok && sub.dir != "" {
		if err := os.RemoveAll(sub.dir); err != nil {
			logging.Warn("failed to remove spool directory %s: %v", sub.dir, err)
		}
	}
}

func (h *Handlers) albumPendingLocked(groupID uint64) bool {
	for _, sub := range h.pending {
		if sub.album != nil && sub.album.GroupID() == groupID {
			return true
		}
	}
	return false
}

// loopRunner is implemented by tasks.Loop.
type loopRunner interface {
	Do(ctx context.Context, fn func()) error
}

// onLoopWait runs fn on the loop and waits for it to return.
func (h *Handlers) onLoopWait(ctx context.Context, fn func()) error {
	switch loop := h.loop.(type) {
	case nil:
		fn()
		return nil
	case loopRunner:
		return loop.Do(ctx, fn)
	default:
		done := make(chan struct{})
		loop.Post(func() {
			defer close(done)
			fn()
		})
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Handlers) submission(id tasks.ID) (*submission, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.pending[id]
	return sub, ok
}

type trackedTask struct {
	*sending.FileLoadTask
	done func(tasks.ID)
}

func (t *trackedTask) Finish() {
	t.FileLoadTask.Finish()
	t.done(t.ID())
}
