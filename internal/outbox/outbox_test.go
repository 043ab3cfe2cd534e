package outbox

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"media-prep/internal/chunk"
	"media-prep/internal/sending"
	"media-prep/internal/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := New(context.Background(), filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func documentResult(taskID tasks.ID, data []byte) *sending.FileLoadResult {
	return &sending.FileLoadResult{
		TaskID:    taskID,
		ID:        ^uint64(0) - 5, // exercises ids above the signed range
		To:        sending.SendTo{Peer: "chat-1", ReplyTo: 77},
		Caption:   "hello",
		Type:      sending.SendMediaFile,
		Filename:  "report.pdf",
		Filemime:  "application/pdf",
		Filesize:  int64(len(data)),
		FileParts: chunk.Split(data),
		Document: &sending.Document{
			Attributes: []sending.Attribute{sending.FilenameAttribute{Name: "report.pdf"}},
		},
	}
}

func TestNewCreatesSchema(t *testing.T) {
	o := newTestOutbox(t)
	stats := o.GetStats()
	assert.Zero(t, stats.Prepared)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, stats.Albums)
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "outbox.db"))
	assert.Error(t, err)
}

func TestConfirmFileStoresResultAndParts(t *testing.T) {
	o := newTestOutbox(t)
	data := bytes.Repeat([]byte("0123456789"), 10_000)
	r := documentResult(tasks.NewID(), data)

	o.ConfirmFile(r)

	status, err := o.Status(context.Background(), r.TaskID)
	require.NoError(t, err)
	assert.Equal(t, StatePrepared, status.State)

	p := status.Prepared
	require.NotNil(t, p)
	assert.Equal(t, r.ID, p.MediaID)
	assert.Equal(t, "chat-1", p.Peer)
	assert.Equal(t, int64(77), p.ReplyTo)
	assert.Equal(t, "file", p.Type)
	assert.Equal(t, int64(len(data)), p.Size)
	assert.Equal(t, chunk.Count(int64(len(data))), p.PartCount)
	require.Len(t, p.Attributes, 1)
	assert.Equal(t, sending.KindFilename, p.Attributes[0].Kind)

	parts, err := o.Parts(context.Background(), p.UUID, PartFile)
	require.NoError(t, err)
	assert.Equal(t, data, parts.Join())

	thumb, err := o.Parts(context.Background(), p.UUID, PartThumb)
	require.NoError(t, err)
	assert.True(t, thumb.Empty())

	assert.Equal(t, 1, o.GetStats().Prepared)
}

func TestPartsUnknownMedia(t *testing.T) {
	o := newTestOutbox(t)
	_, err := o.Parts(context.Background(), "no-such-uuid", PartFile)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifyFailure(t *testing.T) {
	o := newTestOutbox(t)
	id := tasks.NewID()

	o.NotifyFailure(id, "big.iso", sending.ErrTooLarge)

	status, err := o.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, status.State)
	require.NotNil(t, status.Failure)
	assert.Equal(t, "big.iso", status.Failure.Filename)
	assert.Equal(t, "too_large", status.Failure.Reason)
	assert.Equal(t, 1, o.GetStats().Failed)
}

func TestStatusUnknownTask(t *testing.T) {
	o := newTestOutbox(t)
	_, err := o.Status(context.Background(), tasks.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmFileCompletesAlbum(t *testing.T) {
	o := newTestOutbox(t)
	messages := sending.NewMessages()
	album := sending.NewAlbum(messages)

	first := documentResult(tasks.NewID(), []byte("first"))
	second := documentResult(tasks.NewID(), []byte("second"))
	first.Album, second.Album = album, album
	album.AddItem(first.TaskID, messages.Add("album caption"))
	album.AddItem(second.TaskID, messages.Add(""))

	o.ConfirmFile(first)
	_, err := o.Album(context.Background(), album.GroupID())
	assert.ErrorIs(t, err, ErrNotFound, "album is stored only once complete")

	o.ConfirmFile(second)
	rec, err := o.Album(context.Background(), album.GroupID())
	require.NoError(t, err)
	require.Len(t, rec.Items, 2)
	require.NotNil(t, rec.Items[0].Media)
	assert.Equal(t, "album caption", rec.Items[0].Media.Caption)
	assert.Equal(t, first.ID, rec.Items[0].Media.Media.ID)

	status, err := o.Status(context.Background(), second.TaskID)
	require.NoError(t, err)
	assert.Equal(t, album.GroupID(), status.Prepared.GroupID)
}

func TestSaveAlbumReplaces(t *testing.T) {
	o := newTestOutbox(t)
	messages := sending.NewMessages()
	album := sending.NewAlbum(messages)
	album.AddItem(tasks.NewID(), messages.Add("a"))

	require.NoError(t, o.SaveAlbum(context.Background(), album))
	album.AddItem(tasks.NewID(), messages.Add("b"))
	require.NoError(t, o.SaveAlbum(context.Background(), album))

	rec, err := o.Album(context.Background(), album.GroupID())
	require.NoError(t, err)
	assert.Len(t, rec.Items, 2)
	assert.Equal(t, 1, o.GetStats().Albums)
}

func TestVacuum(t *testing.T) {
	o := newTestOutbox(t)
	assert.NoError(t, o.Vacuum(context.Background()))
	o.UpdateDBMetrics()
}

func TestIDFormatting(t *testing.T) {
	for _, id := range []uint64{0, 1, 1 << 63, ^uint64(0)} {
		assert.Equal(t, id, parseID(formatID(id)))
	}
	assert.Zero(t, parseID("not-a-number"))
}
