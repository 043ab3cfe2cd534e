package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"media-prep/internal/logging"
	"media-prep/internal/outbox"
	"media-prep/internal/sending"
	"media-prep/internal/tasks"

	"github.com/gorilla/mux"
)

// Task states reported in addition to the outbox states.
const (
	StatePending   = "pending"
	StateCancelled = "cancelled"
)

// TaskResponse describes a task the outbox has no record of yet.
type TaskResponse struct {
	TaskID   tasks.ID `json:"taskId"`
	State    string   `json:"state"`
	Filename string   `json:"filename,omitempty"`
}

func parseTaskID(r *http.Request) (tasks.ID, bool) {
	n, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return tasks.ID(n), true
}

// GetTask reports whether a task is pending, prepared, failed or cancelled.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(r)
	if !ok {
		writeJSONError(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	status, err := h.store.Status(r.Context(), id)
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, status)
		return
	}
	if !errors.Is(err, outbox.ErrNotFound) {
		logging.Error("failed to load status of task %d: %v", id, err)
		writeJSONError(w, "Failed to load task", http.StatusInternalServerError)
		return
	}

	resp := TaskResponse{TaskID: id}
	if sub, ok := h.submission(id); ok {
		resp.State = StatePending
		resp.Filename = sub.filename
	} else if h.isCancelled(id) {
		resp.State = StateCancelled
	} else {
		writeJSONError(w, "Task not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// CancelTask removes a task that has not finished yet. A cancelled album
// item is dropped from its album. The cancel runs on the loop that finishes
// tasks, so a task is either finished or cancelled, never both.
func (h *Handlers) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(r)
	if !ok {
		writeJSONError(w, "Invalid task id", http.StatusBadRequest)
		return
	}

	var sub *submission
	err := h.onLoopWait(r.Context(), func() {
		s, ok := h.submission(id)
		if !ok {
			return
		}
		sub = s

		h.queue.CancelTask(id)
		h.mu.Lock()
		h.cancelled[id] = true
		h.mu.Unlock()
		h.release(id)

		if s.album != nil {
			h.dropFromAlbum(s.album, id)
		}
	})
	if err != nil {
		logging.Warn("failed to cancel task %d: %v", id, err)
		writeJSONError(w, "Task queue unavailable", http.StatusServiceUnavailable)
		return
	}
	if sub == nil {
		writeJSONError(w, "Task not found or already finished", http.StatusNotFound)
		return
	}

	logging.Info("Cancelled task %d (%s)", id, sub.filename)
	writeJSONStatus(w, StateCancelled)
}

func (h *Handlers) isCancelled(id tasks.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled[id]
}

// dropFromAlbum removes the item of a cancelled task, moving the album
// caption when the head goes away. The album is confirmed if every
// remaining item already has its media.
func (h *Handlers) dropFromAlbum(album *sending.Album, id tasks.ID) {
	msgID, ok := album.MsgIDForTask(id)
	if !ok {
		return
	}
	if err := album.RemoveItem(msgID); err != nil {
		logging.Warn("failed to remove task %d from album %d: %v", id, album.GroupID(), err)
		return
	}
	if !album.Ready() {
		return
	}
	if c, ok := h.deps.Confirmer.(sending.AlbumConfirmer); ok {
		c.ConfirmAlbum(album)
	}
}
