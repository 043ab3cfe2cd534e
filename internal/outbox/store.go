package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"media-prep/internal/chunk"
	"media-prep/internal/logging"
	"media-prep/internal/metrics"
	"media-prep/internal/sending"
	"media-prep/internal/tasks"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	_ sending.Confirmer      = (*Outbox)(nil)
	_ sending.Notifier       = (*Outbox)(nil)
	_ sending.AlbumConfirmer = (*Outbox)(nil)
)

// ConfirmFile implements sending.Confirmer. It runs on the owner loop.
func (o *Outbox) ConfirmFile(r *sending.FileLoadResult) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	id, err := o.SavePrepared(ctx, r)
	if err != nil {
		logging.Error("Failed to store prepared media for task %d: %v", r.TaskID, err)
		return
	}
	logging.Debug("Stored task %d as %s (%d parts)", r.TaskID, id, len(r.FileParts.Parts))

	album := r.Album
	if album == nil {
		return
	}
	msgID, ok := album.MsgIDForTask(r.TaskID)
	if !ok {
		logging.Warn("Task %d is not part of album %d", r.TaskID, album.GroupID())
		return
	}
	if err := album.FillMedia(msgID, sending.InputMedia{ID: r.ID, Type: r.Type}, rand.Uint64()); err != nil {
		logging.Warn("Could not attach media of task %d to album %d: %v", r.TaskID, album.GroupID(), err)
		return
	}
	if album.Ready() {
		o.ConfirmAlbum(album)
	}
}

// ConfirmAlbum implements sending.AlbumConfirmer.
func (o *Outbox) ConfirmAlbum(album *sending.Album) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := o.SaveAlbum(ctx, album); err != nil {
		logging.Error("Failed to store album %d: %v", album.GroupID(), err)
		return
	}
	metrics.AlbumsCompletedTotal.Inc()
	logging.Info("Album %d complete with %d items", album.GroupID(), album.Len())
}

// NotifyFailure implements sending.Notifier.
func (o *Outbox) NotifyFailure(taskID tasks.ID, filename string, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if saveErr := o.SaveFailure(ctx, taskID, filename, err); saveErr != nil {
		logging.Error("Failed to record failure of task %d: %v", taskID, saveErr)
	}
}

// SavePrepared stores r and its parts, returning the outbox uuid.
func (o *Outbox) SavePrepared(ctx context.Context, r *sending.FileLoadResult) (id string, err error) {
	start := time.Now()
	defer func() { recordQuery("confirm_file", start, err) }()

	attributes, err := json.Marshal(encodeAttributes(r.Attributes()))
	if err != nil {
		return "", fmt.Errorf("failed to encode attributes: %w", err)
	}
	var sizes []sending.PhotoSize
	if r.Photo != nil {
		sizes = r.Photo.Sizes
	}
	photoSizes, err := json.Marshal(lo.Ternary(sizes == nil, []sending.PhotoSize{}, sizes))
	if err != nil {
		return "", fmt.Errorf("failed to encode photo sizes: %w", err)
	}
	groupID := ""
	if r.Album != nil {
		groupID = formatID(r.Album.GroupID())
	}

	id = uuid.NewString()
	err = o.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO prepared_media (uuid, task_id, media_id, peer, reply_to, type, filename, mime, size,
				md5, part_count, thumb_name, thumb_md5, thumb_part_count, caption, group_id, attributes, photo_sizes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, int64(r.TaskID), formatID(r.ID), r.To.Peer, r.To.ReplyTo, r.Type.String(),
			r.Filename, r.Filemime, r.Filesize,
			r.FileParts.MD5, len(r.FileParts.Parts),
			r.ThumbName, r.ThumbParts.MD5, len(r.ThumbParts.Parts),
			r.Caption, groupID, string(attributes), string(photoSizes),
		)
		if err != nil {
			return fmt.Errorf("failed to insert prepared media: %w", err)
		}

		if err := insertParts(ctx, tx, id, PartFile, r.FileParts); err != nil {
			return err
		}
		return insertParts(ctx, tx, id, PartThumb, r.ThumbParts)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func insertParts(ctx context.Context, tx *sql.Tx, id, kind string, parts chunk.Parts) error {
	if parts.Empty() {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO media_parts (media_uuid, kind, idx, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare part insert: %w", err)
	}
	defer stmt.Close()

	for i, part := range parts.Parts {
		if _, err := stmt.ExecContext(ctx, id, kind, i, part); err != nil {
			return fmt.Errorf("failed to insert %s part %d: %w", kind, i, err)
		}
	}
	return nil
}

// SaveFailure records that taskID could not be sent.
func (o *Outbox) SaveFailure(ctx context.Context, taskID tasks.ID, filename string, cause error) (err error) {
	start := time.Now()
	defer func() { recordQuery("record_failure", start, err) }()

	o.mu.Lock()
	defer o.mu.Unlock()

	message := ""
	if cause != nil {
		message = cause.Error()
	}
	_, err = o.db.ExecContext(ctx, `
		INSERT INTO failures (uuid, task_id, filename, reason, message)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), int64(taskID), filename, metrics.FailureReason(cause), message)
	return err
}

// Status returns what the outbox knows about taskID, or ErrNotFound.
func (o *Outbox) Status(ctx context.Context, taskID tasks.ID) (status *Status, err error) {
	start := time.Now()
	defer func() { recordQuery("get_status", start, err) }()

	prepared, err := o.Prepared(ctx, taskID)
	switch {
	case err == nil:
		return &Status{TaskID: taskID, State: StatePrepared, Prepared: prepared}, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	failure, err := o.failure(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &Status{TaskID: taskID, State: StateFailed, Failure: failure}, nil
}

// Prepared returns the stored result of taskID.
func (o *Outbox) Prepared(ctx context.Context, taskID tasks.ID) (pm *PreparedMedia, err error) {
	start := time.Now()
	defer func() { recordQuery("get_prepared", start, err) }()

	o.mu.RLock()
	defer o.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		p                            PreparedMedia
		taskIDValue                  int64
		mediaID, groupID             string
		attributesJSON, photoSizesJS string
		createdAt                    int64
	)
	err = o.db.QueryRowContext(ctx, `
		SELECT uuid, task_id, media_id, peer, reply_to, type, filename, mime, size, md5, part_count,
			thumb_name, thumb_md5, thumb_part_count, caption, group_id, attributes, photo_sizes, created_at
		FROM prepared_media WHERE task_id = ?
	`, int64(taskID)).Scan(
		&p.UUID, &taskIDValue, &mediaID, &p.Peer, &p.ReplyTo, &p.Type, &p.Filename, &p.Mime, &p.Size,
		&p.MD5, &p.PartCount, &p.ThumbName, &p.ThumbMD5, &p.ThumbParts, &p.Caption, &groupID,
		&attributesJSON, &photoSizesJS, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prepared media: %w", err)
	}

	p.TaskID = tasks.ID(taskIDValue)
	p.MediaID = parseID(mediaID)
	p.GroupID = parseID(groupID)
	p.CreatedAt = time.Unix(createdAt, 0)
	if err := json.Unmarshal([]byte(attributesJSON), &p.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(photoSizesJS), &p.PhotoSizes); err != nil {
		return nil, fmt.Errorf("failed to decode photo sizes: %w", err)
	}
	return &p, nil
}

func (o *Outbox) failure(ctx context.Context, taskID tasks.ID) (*Failure, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		f           Failure
		taskIDValue int64
		createdAt   int64
	)
	err := o.db.QueryRowContext(ctx, `
		SELECT uuid, task_id, filename, reason, message, created_at
		FROM failures WHERE task_id = ?
		ORDER BY created_at DESC LIMIT 1
	`, int64(taskID)).Scan(&f.UUID, &taskIDValue, &f.Filename, &f.Reason, &f.Message, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load failure: %w", err)
	}
	f.TaskID = tasks.ID(taskIDValue)
	f.CreatedAt = time.Unix(createdAt, 0)
	return &f, nil
}

// Parts reassembles the stored parts of one kind and checks them against
// the recorded MD5.
func (o *Outbox) Parts(ctx context.Context, mediaUUID, kind string) (parts chunk.Parts, err error) {
	start := time.Now()
	defer func() { recordQuery("get_parts", start, err) }()

	o.mu.RLock()
	defer o.mu.RUnlock()

	column := "md5"
	if kind == PartThumb {
		column = "thumb_md5"
	}
	var sum string
	err = o.db.QueryRowContext(ctx, `SELECT `+column+` FROM prepared_media WHERE uuid = ?`, mediaUUID).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return chunk.Parts{}, ErrNotFound
	}
	if err != nil {
		return chunk.Parts{}, fmt.Errorf("failed to load checksum: %w", err)
	}

	rows, err := o.db.QueryContext(ctx, `
		SELECT data FROM media_parts WHERE media_uuid = ? AND kind = ? ORDER BY idx
	`, mediaUUID, kind)
	if err != nil {
		return chunk.Parts{}, fmt.Errorf("failed to load parts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return chunk.Parts{}, fmt.Errorf("failed to scan part: %w", err)
		}
		parts.Parts = append(parts.Parts, data)
		parts.Size += int64(len(data))
	}
	if err := rows.Err(); err != nil {
		return chunk.Parts{}, err
	}

	parts.MD5 = sum
	if !parts.Verify() {
		return chunk.Parts{}, fmt.Errorf("stored %s parts of %s fail checksum", kind, mediaUUID)
	}
	return parts, nil
}

// SaveAlbum stores a snapshot of album, replacing an earlier one.
func (o *Outbox) SaveAlbum(ctx context.Context, album *sending.Album) (err error) {
	start := time.Now()
	defer func() { recordQuery("save_album", start, err) }()

	items, err := json.Marshal(album.Items())
	if err != nil {
		return fmt.Errorf("failed to encode album items: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	_, err = o.db.ExecContext(ctx, `
		INSERT INTO albums (group_id, items) VALUES (?, ?)
		ON CONFLICT(group_id) DO UPDATE SET items = excluded.items
	`, formatID(album.GroupID()), string(items))
	return err
}

// Album returns the stored album with the given group id.
func (o *Outbox) Album(ctx context.Context, groupID uint64) (rec *AlbumRecord, err error) {
	start := time.Now()
	defer func() { recordQuery("get_album", start, err) }()

	o.mu.RLock()
	defer o.mu.RUnlock()

	var (
		items     string
		createdAt int64
	)
	err = o.db.QueryRowContext(ctx, `SELECT items, created_at FROM albums WHERE group_id = ?`, formatID(groupID)).
		Scan(&items, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load album: %w", err)
	}

	rec = &AlbumRecord{GroupID: groupID, CreatedAt: time.Unix(createdAt, 0)}
	if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
		return nil, fmt.Errorf("failed to decode album items: %w", err)
	}
	return rec, nil
}

// GetStats implements metrics.StatsProvider.
func (o *Outbox) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stats", start, err) }()

	o.mu.RLock()
	defer o.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err = o.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM prepared_media),
			(SELECT COUNT(*) FROM failures),
			(SELECT COUNT(*) FROM albums)
	`).Scan(&stats.Prepared, &stats.Failed, &stats.Albums)
	if err != nil {
		logging.Warn("Failed to collect outbox stats: %v", err)
	}
	return stats
}

// uint64 ids are stored as decimal text: SQLite integers are signed.
func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func parseID(s string) uint64 {
	if s == "" {
		return 0
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		logging.Warn("Invalid stored id %q: %v", s, err)
		return 0
	}
	return id
}
