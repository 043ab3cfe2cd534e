package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"media-prep/internal/logging"
	"media-prep/internal/outbox"
	"media-prep/internal/sending"

	"github.com/gorilla/mux"
)

// AlbumResponse describes an album. Complete albums come from the outbox;
// incomplete ones are still being prepared.
type AlbumResponse struct {
	GroupID   uint64              `json:"groupId,string"`
	Complete  bool                `json:"complete"`
	Items     []sending.AlbumItem `json:"items"`
	CreatedAt *time.Time          `json:"createdAt,omitempty"`
}

// GetAlbum returns the items of an album.
func (h *Handlers) GetAlbum(w http.ResponseWriter, r *http.Request) {
	groupID, err := strconv.ParseUint(mux.Vars(r)["group"], 10, 64)
	if err != nil {
		writeJSONError(w, "Invalid album id", http.StatusBadRequest)
		return
	}

	var resp AlbumResponse
	rec, err := h.store.Album(r.Context(), groupID)
	switch {
	case err == nil:
		resp = AlbumResponse{GroupID: groupID, Complete: true, Items: rec.Items, CreatedAt: &rec.CreatedAt}
	case errors.Is(err, outbox.ErrNotFound):
		h.mu.Lock()
		album, ok := h.albums[groupID]
		h.mu.Unlock()
		if !ok {
			writeJSONError(w, "Album not found", http.StatusNotFound)
			return
		}
		resp = AlbumResponse{GroupID: groupID, Items: album.Items()}
	default:
		logging.Error("failed to load album %d: %v", groupID, err)
		writeJSONError(w, "Failed to load album", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}
