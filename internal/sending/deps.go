package sending

import (
	"context"
	"time"

	"media-prep/internal/media"
	"media-prep/internal/tasks"
)

// Limits bounds what a FileLoadTask accepts.
type Limits struct {
	MaxFileSize        int64
	StickerMaxSize     int
	MaxStickerInMemory int64
}

// DefaultLimits returns the stock limits: 1500 MiB files, 512 px stickers
// no larger than 2 MiB.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:        1500 * 1024 * 1024,
		StickerMaxSize:     512,
		MaxStickerInMemory: 2 * 1024 * 1024,
	}
}

// MediaReader classifies a source. media.Classifier implements it.
type MediaReader interface {
	ReadMediaInformation(ctx context.Context, path string, content []byte, fileMime string) *media.Information
}

// Notifier shows preparation failures to the user.
type Notifier interface {
	NotifyFailure(taskID tasks.ID, filename string, err error)
}

// Confirmer receives results that are ready for upload.
type Confirmer interface {
	ConfirmFile(result *FileLoadResult)
}

// AlbumConfirmer is implemented by Confirmers that also want albums which
// became complete because a failed item was dropped.
type AlbumConfirmer interface {
	ConfirmAlbum(album *Album)
}

// Observer receives preparation outcomes. The metrics package provides one.
type Observer interface {
	ObservePrepared(t SendMediaType, size int64, parts int)
	ObserveFailure(reason error)
}

// MemoryGate holds preparation back while memory is short. memory.Monitor
// implements it.
type MemoryGate interface {
	Wait(ctx context.Context) error
}

// Deps are the collaborators shared by all tasks of a queue.
type Deps struct {
	Classifier MediaReader
	Thumbnails *media.ThumbnailBuilder
	Limits     Limits
	Notifier   Notifier
	Confirmer  Confirmer
	Observer   Observer
	Memory     MemoryGate
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) normalize() {
	if d.Thumbnails == nil {
		d.Thumbnails = media.NewThumbnailBuilder()
	}
	if d.Limits == (Limits{}) {
		d.Limits = DefaultLimits()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
}

type nopObserver struct{}

func (nopObserver) ObservePrepared(SendMediaType, int64, int) {}
func (nopObserver) ObserveFailure(error) {}
