package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"media-prep/internal/logging"
	"media-prep/internal/sending"
	"media-prep/internal/tasks"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// maxFieldSize bounds non-file multipart fields.
const maxFieldSize = 64 * 1024

// SendRequest holds the non-file fields of a send.
type SendRequest struct {
	Peer    string `validate:"required,max=255"`
	Caption string `validate:"max=4096"`
	Type    string `validate:"omitempty,oneof=photo file"`
	ReplyTo int64  `validate:"gte=0"`
}

// SendResponse lists the tasks created for a send.
type SendResponse struct {
	TaskIDs []tasks.ID `json:"taskIds"`
	GroupID uint64     `json:"groupId,string,omitempty"`
}

// VoiceRequest holds the query parameters of a voice note.
type VoiceRequest struct {
	Peer     string `validate:"required,max=255"`
	Caption  string `validate:"max=4096"`
	Duration int    `validate:"gte=0"`
	Waveform []byte `validate:"dive,lte=31"`
	ReplyTo  int64  `validate:"gte=0"`
}

type spooledFile struct {
	name string
	dir  string
	path string
}

// Send accepts one or more files as multipart/form-data and queues them for
// preparation. More than one file forms an album captioned by its first item.
func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		writeJSONError(w, "Expected multipart/form-data body", http.StatusBadRequest)
		return
	}

	var (
		req   SendRequest
		files []spooledFile
	)
	cleanup := func() {
		for _, f := range files {
			if err := os.RemoveAll(f.dir); err != nil {
				logging.Warn("failed to remove spool directory %s: %v", f.dir, err)
			}
		}
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cleanup()
			writeJSONError(w, "Invalid multipart body", bodyErrorStatus(err))
			return
		}

		if err := h.readSendPart(part, &req, &files); err != nil {
			_ = part.Close()
			cleanup()
			writeJSONError(w, err.Error(), bodyErrorStatus(err))
			return
		}
		_ = part.Close()
	}

	if len(files) == 0 {
		writeJSONError(w, "At least one file is required", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		cleanup()
		writeJSONError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	typ := sending.SendMediaPhoto
	if req.Type == "file" {
		typ = sending.SendMediaFile
	}
	to := sending.SendTo{Peer: req.Peer, ReplyTo: req.ReplyTo}

	var album *sending.Album
	if len(files) > 1 {
		album = sending.NewAlbum(h.messages)
	}

	list := make([]tasks.Task, 0, len(files))
	for i, f := range files {
		caption := ""
		if i == 0 {
			caption = req.Caption
		}
		task := sending.NewFileLoadTask(h.deps, sending.FileLoadRequest{
			Path:    f.path,
			Type:    typ,
			To:      to,
			Caption: caption,
			Album:   album,
		})
		if album != nil {
			album.AddItem(task.ID(), h.messages.Add(caption))
		}
		list = append(list, h.track(task, &submission{filename: f.name, dir: f.dir, album: album}))
	}
	h.queue.AddTasks(list)

	resp := SendResponse{TaskIDs: lo.Map(list, func(t tasks.Task, _ int) tasks.ID { return t.ID() })}
	if album != nil {
		resp.GroupID = album.GroupID()
		logging.Info("Queued album %d with %d files for %s", album.GroupID(), len(list), req.Peer)
	} else {
		logging.Info("Queued task %d (%s) for %s", resp.TaskIDs[0], files[0].name, req.Peer)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, resp)
}

func (h *Handlers) readSendPart(part *multipart.Part, req *SendRequest, files *[]spooledFile) error {
	name := part.FormName()
	if name == "file" {
		f, err := h.spool(part)
		if err != nil {
			return err
		}
		*files = append(*files, f)
		return nil
	}

	value, err := readField(part)
	if err != nil {
		return err
	}
	switch name {
	case "peer":
		req.Peer = value
	case "caption":
		req.Caption = value
	case "type":
		req.Type = value
	case "replyTo":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid replyTo: %w", err)
		}
		req.ReplyTo = n
	default:
		logging.Debug("Ignoring unknown form field %q", name)
	}
	return nil
}

// spool writes one uploaded file to its own directory under the spool dir.
func (h *Handlers) spool(part *multipart.Part) (spooledFile, error) {
	dir := filepath.Join(h.spoolDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return spooledFile{}, fmt.Errorf("failed to create spool directory: %w", err)
	}

	name := spoolName(part.FileName())
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		_ = os.RemoveAll(dir)
		return spooledFile{}, fmt.Errorf("failed to create spool file: %w", err)
	}
	_, err = io.Copy(out, part)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return spooledFile{}, fmt.Errorf("failed to store %s: %w", name, err)
	}

	logging.Debug("Spooled %s to %s", name, path)
	return spooledFile{name: name, dir: dir, path: path}, nil
}

// spoolName reduces a client supplied file name to a single safe path
// element.
func spoolName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return "file"
	}
	return name
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read field %s: %w", part.FormName(), err)
	}
	if len(data) > maxFieldSize {
		return "", fmt.Errorf("field %s is too long", part.FormName())
	}
	return strings.TrimSpace(string(data)), nil
}

func bodyErrorStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// SendVoice queues a recorded voice note sent as the raw request body.
// Query parameters: peer, duration (seconds), waveform (comma separated
// 5-bit samples), caption, replyTo.
func (h *Handlers) SendVoice(w http.ResponseWriter, r *http.Request) {
	req, err := parseVoiceRequest(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSONError(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}

	voice, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, "Failed to read voice body", bodyErrorStatus(err))
		return
	}
	if len(voice) == 0 {
		writeJSONError(w, "Voice body is empty", http.StatusBadRequest)
		return
	}

	to := sending.SendTo{Peer: req.Peer, ReplyTo: req.ReplyTo}
	task := sending.NewVoiceTask(h.deps, voice, req.Duration, req.Waveform, to, req.Caption)
	id := h.queue.AddTask(h.track(task, &submission{filename: "voice"}))
	logging.Info("Queued voice task %d (%d bytes, %ds) for %s", id, len(voice), req.Duration, req.Peer)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, SendResponse{TaskIDs: []tasks.ID{id}})
}

func parseVoiceRequest(r *http.Request) (VoiceRequest, error) {
	q := r.URL.Query()
	req := VoiceRequest{
		Peer:    q.Get("peer"),
		Caption: q.Get("caption"),
	}

	if v := q.Get("duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid duration: %w", err)
		}
		req.Duration = n
	}
	if v := q.Get("replyTo"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid replyTo: %w", err)
		}
		req.ReplyTo = n
	}
	if v := q.Get("waveform"); v != "" {
		for _, s := range strings.Split(v, ",") {
			n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
			if err != nil {
				return req, fmt.Errorf("invalid waveform sample %q", s)
			}
			req.Waveform = append(req.Waveform, byte(n))
		}
	}
	return req, nil
}
