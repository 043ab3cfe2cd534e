package sending

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"path/filepath"
	"time"

	"media-prep/internal/chunk"
	"media-prep/internal/filesystem"
	"media-prep/internal/logging"
	"media-prep/internal/media"
	"media-prep/internal/mediatypes"
	"media-prep/internal/tasks"
)

// FileLoadRequest describes one file to prepare. Exactly one source is used,
// in order: Path, Content, then an Image carried by Information.
type FileLoadRequest struct {
	Path    string
	Content []byte
	// Information skips classification when set.
	Information *media.Information
	Type        SendMediaType
	To          SendTo
	Caption     string
	Album       *Album
}

// FileLoadTask prepares one outgoing file on a queue worker.
type FileLoadTask struct {
	id   tasks.ID
	deps Deps

	to      SendTo
	album   *Album
	path    string
	content []byte
	info    *media.Information
	typ     SendMediaType
	caption string

	voice    bool
	duration int
	waveform []byte

	result *FileLoadResult
}

var _ tasks.Task = (*FileLoadTask)(nil)

// NewFileLoadTask returns a task for a file, an in-memory blob or an image.
func NewFileLoadTask(deps Deps, req FileLoadRequest) *FileLoadTask {
	deps.normalize()
	return &FileLoadTask{
		id:      tasks.NewID(),
		deps:    deps,
		to:      req.To,
		album:   req.Album,
		path:    req.Path,
		content: req.Content,
		info:    req.Information,
		typ:     req.Type,
		caption: req.Caption,
	}
}

// NewVoiceTask returns a task for a recorded voice note. Waveform samples
// are 5-bit values; higher bits are dropped.
func NewVoiceTask(deps Deps, voice []byte, duration int, waveform []byte, to SendTo, caption string) *FileLoadTask {
	deps.normalize()
	return &FileLoadTask{
		id:       tasks.NewID(),
		deps:     deps,
		to:       to,
		content:  voice,
		typ:      SendMediaAudio,
		caption:  caption,
		voice:    true,
		duration: duration,
		waveform: waveform,
	}
}

// ID implements tasks.Task.
func (t *FileLoadTask) ID() tasks.ID {
	return t.id
}

// Result returns the prepared result once Process has run.
func (t *FileLoadTask) Result() *FileLoadResult {
	return t.result
}

// Process implements tasks.Task. Failures are recorded in the result's
// Filesize and reported by Finish.
func (t *FileLoadTask) Process(ctx context.Context) {
	if t.deps.Memory != nil {
		if err := t.deps.Memory.Wait(ctx); err != nil {
			logging.Debug("Task %d: memory wait ended: %v", t.id, err)
		}
	}

	now := t.deps.Now()
	limits := t.deps.Limits

	r := &FileLoadResult{
		TaskID:   t.id,
		ID:       rand.Uint64(),
		To:       t.to,
		Caption:  t.caption,
		Album:    t.album,
		Type:     t.typ,
		Filepath: t.path,
		Content:  t.content,
		Filesize: SizeUnreadable,
	}
	t.result = r

	var (
		fullImage image.Image
		animated  bool
		isImage   bool
		filename  string
		filemime  string
		filesize  = SizeUnreadable
		info      = t.info
	)

	takeImage := func() {
		img, ok := info.Image()
		if !ok || img.Data == nil {
			return
		}
		fullImage = img.Data
		animated = img.Animated
		if filemime != mediatypes.StickerMime && !animated {
			fullImage = media.PrepareOpaque(fullImage)
		}
		isImage = true
	}

	switch {
	case t.path != "":
		stat, err := filesystem.StatWithRetry(t.path, filesystem.DefaultRetryConfig())
		if err != nil {
			logging.Warn("Could not stat %s: %v", t.path, err)
			return
		}
		if stat.IsDir() {
			logging.Debug("Refusing to send directory %s", t.path)
			return
		}
		filesize = stat.Size()
		filename = filepath.Base(t.path)
		if info == nil {
			info = t.classify(ctx, t.path, nil, mediatypes.ForFile(t.path))
		}
		filemime = info.FileMime
		takeImage()

	case t.content != nil:
		filesize = int64(len(t.content))
		if t.voice {
			filename = mediatypes.DefaultName("audio", ".ogg", now)
			filemime = mediatypes.VoiceMime
			break
		}
		sniffed, ext := mediatypes.ForData(t.content)
		if info == nil {
			info = t.classify(ctx, "", t.content, sniffed)
		}
		filemime = info.FileMime
		takeImage()
		switch filemime {
		case mediatypes.JPEG:
			filename = mediatypes.DefaultName("photo", ".jpg", now)
		case mediatypes.PNG:
			filename = mediatypes.DefaultName("image", ".png", now)
		default:
			filename = mediatypes.DefaultName("file", ext, now)
		}

	default:
		img, ok := info.Image()
		if !ok || img.Data == nil {
			logging.Warn("Task %d has no source to prepare", t.id)
			return
		}
		fullImage = img.Data
		animated = img.Animated
		w, h := media.Dimensions(fullImage)
		if t.typ == SendMediaPhoto {
			if media.ValidateThumbDimensions(w, h) {
				filemime = mediatypes.JPEG
				filename = mediatypes.DefaultName("image", ".jpg", now)
				// filled in once the photo is encoded
				filesize = SizeUnreadable
			} else {
				t.typ = SendMediaFile
			}
		}
		if t.typ == SendMediaFile {
			data, err := media.EncodePNG(fullImage)
			if err != nil {
				logging.Warn("Could not encode image for task %d: %v", t.id, err)
				return
			}
			filemime = mediatypes.PNG
			filename = mediatypes.DefaultName("image", ".png", now)
			t.content = data
			r.Content = data
			filesize = int64(len(data))
		}
		fullImage = media.PrepareOpaque(fullImage)
		isImage = true
	}

	r.Type = t.typ
	r.Filename = filename
	r.Filemime = filemime
	r.Filesize = filesize

	if filesize == 0 || filesize > limits.MaxFileSize {
		return
	}
	if ctx.Err() != nil {
		r.Filesize = SizeUnreadable
		return
	}

	var (
		attributes = []Attribute{FilenameAttribute{Name: filename}}
		thumbnail  *media.Thumbnail
		photo      *Photo
		photoBytes []byte
		isSong     bool
		isVideo    bool
		isSticker  bool
	)

	if song, ok := info.Song(); ok {
		isSong = true
		attributes = append(attributes, AudioAttribute{
			Duration:  song.Duration,
			Title:     song.Title,
			Performer: song.Performer,
		})
		thumbnail = t.deps.Thumbnails.Prepare(song.Cover)
	} else if video, ok := info.Video(); ok {
		isVideo = true
		if video.IsGifv {
			attributes = append(attributes, AnimatedAttribute{})
		}
		w, h := media.Dimensions(video.Thumbnail)
		attributes = append(attributes, VideoAttribute{
			Duration:          video.Duration,
			Width:             w,
			Height:            h,
			SupportsStreaming: video.SupportsStreaming,
		})
		r.GoodThumbnail = video.Thumbnail
		if data, err := media.EncodeJPEG(video.Thumbnail, media.ThumbnailQuality); err == nil {
			r.GoodThumbnailBytes = data
		} else {
			logging.Debug("Could not encode video cover for task %d: %v", t.id, err)
		}
		thumbnail = t.deps.Thumbnails.Prepare(video.Thumbnail)
	}

	if isImage && !isSong && !isVideo && !t.voice {
		w, h := media.Dimensions(fullImage)
		attributes = append(attributes, ImageSizeAttribute{Width: w, Height: h})
		if media.ValidateThumbDimensions(w, h) {
			if animated {
				attributes = append(attributes, AnimatedAttribute{})
			} else if t.typ != SendMediaFile {
				photo, photoBytes = t.preparePhoto(r, fullImage, now)
				if photo != nil && filesize < 0 {
					filesize = int64(len(photoBytes))
					r.Filesize = filesize
				}
			}

			// A sticker sent as a photo keeps its photo payload; the
			// attribute only matters for documents.
			isSticker = !animated &&
				filemime == mediatypes.StickerMime &&
				w <= limits.StickerMaxSize && h <= limits.StickerMaxSize &&
				filesize < limits.MaxStickerInMemory
			if isSticker {
				attributes = append(attributes, StickerAttribute{})
			}
			thumbnail = t.deps.Thumbnails.Prepare(fullImage)
		}
	}

	if t.voice {
		attributes = []Attribute{AudioAttribute{
			Voice:    true,
			Duration: t.duration,
			Waveform: EncodeWaveform(t.waveform),
		}}
		r.Type = SendMediaAudio
	}

	var thumbSize *PhotoSize
	if thumbnail != nil {
		if err := t.deps.Thumbnails.Finalize(thumbnail, isSticker, filemime, filesize); err != nil {
			logging.Warn("Could not build thumbnail for task %d: %v", t.id, err)
		} else {
			r.ThumbID = thumbnail.ID
			r.ThumbName = thumbnail.Name
			r.Thumb = thumbnail.Image
			r.setThumbData(thumbnail.Bytes)
			w, h := media.Dimensions(thumbnail.Image)
			thumbSize = &PhotoSize{Type: "m", Width: w, Height: h, Size: len(thumbnail.Bytes)}
		}
	}

	if ctx.Err() != nil {
		r.Filesize = SizeUnreadable
		return
	}

	if photo != nil {
		r.setFileData(photoBytes)
	} else if !t.setFileData(r) {
		r.Filesize = SizeUnreadable
		return
	}

	if r.Type == SendMediaPhoto && photo == nil {
		r.Type = SendMediaFile
	}

	if photo != nil {
		r.Photo = photo
	} else {
		r.Document = &Document{
			ID:         r.ID,
			Date:       now,
			Mime:       filemime,
			Size:       r.Filesize,
			Thumb:      thumbSize,
			Attributes: attributes,
		}
	}
}

func (t *FileLoadTask) classify(ctx context.Context, path string, content []byte, fileMime string) *media.Information {
	if t.deps.Classifier == nil {
		return &media.Information{FileMime: fileMime}
	}
	return t.deps.Classifier.ReadMediaInformation(ctx, path, content, fileMime)
}

// preparePhoto builds the photo sizes and the JPEG that replaces the
// original file as the upload payload.
func (t *FileLoadTask) preparePhoto(r *FileLoadResult, img image.Image, now time.Time) (*Photo, []byte) {
	variants := media.Variants(img, media.PhotoSizes)

	var payload []byte
	for _, v := range variants {
		if v.Type == "y" {
			data, err := media.EncodeJPEG(v.Image, media.ThumbnailQuality)
			if err != nil {
				logging.Warn("Could not encode photo for task %d: %v", t.id, err)
				return nil, nil
			}
			payload = data
		}
	}

	photo := &Photo{ID: r.ID, Date: now}
	r.PhotoThumbs = make(map[string]image.Image, len(variants))
	for _, v := range variants {
		size := PhotoSize{Type: v.Type, Width: v.Width, Height: v.Height}
		if v.Type == "y" {
			size.Size = len(payload)
		}
		photo.Sizes = append(photo.Sizes, size)
		r.PhotoThumbs[v.Type] = v.Image
	}
	return photo, payload
}

// setFileData splits the source bytes into parts. It reports false when the
// file could not be read.
func (t *FileLoadTask) setFileData(r *FileLoadResult) bool {
	if len(t.content) > 0 || t.path == "" {
		r.setFileData(t.content)
		return true
	}

	f, err := filesystem.OpenWithRetry(t.path, filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Warn("Could not open %s: %v", t.path, err)
		return false
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Warn("failed to close %s: %v", t.path, err)
		}
	}()

	parts, err := chunk.SplitReader(f)
	if err != nil {
		logging.Warn("Could not read %s: %v", t.path, err)
		return false
	}
	if parts.Size != r.Filesize {
		logging.Warn("File %s changed size while reading: %d -> %d", t.path, r.Filesize, parts.Size)
		r.Filesize = parts.Size
		if r.Filesize == 0 || r.Filesize > t.deps.Limits.MaxFileSize {
			return true
		}
	}
	r.FileParts = parts
	return true
}

// Finish implements tasks.Task.
func (t *FileLoadTask) Finish() {
	r := t.result
	if err := r.Err(t.deps.Limits.MaxFileSize); err != nil {
		name := t.displayName()
		if r != nil && r.Filename != "" {
			name = r.Filename
		}
		logging.Info("Task %d (%s) not sent: %v", t.id, name, err)
		t.deps.Observer.ObserveFailure(err)
		if t.deps.Notifier != nil {
			t.deps.Notifier.NotifyFailure(t.id, name, err)
		}
		if t.album != nil && t.album.RemoveTask(t.id) && t.album.Ready() {
			if c, ok := t.deps.Confirmer.(AlbumConfirmer); ok {
				c.ConfirmAlbum(t.album)
			}
		}
		return
	}

	t.deps.Observer.ObservePrepared(r.Type, r.Filesize, len(r.FileParts.Parts))
	if t.deps.Confirmer != nil {
		t.deps.Confirmer.ConfirmFile(r)
	}
}

func (t *FileLoadTask) displayName() string {
	if t.path != "" {
		return filepath.Base(t.path)
	}
	return fmt.Sprintf("task %d", t.id)
}
