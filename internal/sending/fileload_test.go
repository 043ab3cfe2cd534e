package sending

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"media-prep/internal/chunk"
	"media-prep/internal/media"
	"media-prep/internal/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

type fakeClassifier struct {
	info  *media.Information
	calls int
}

func (f *fakeClassifier) ReadMediaInformation(_ context.Context, _ string, _ []byte, fileMime string) *media.Information {
	f.calls++
	if f.info == nil {
		return &media.Information{FileMime: fileMime}
	}
	info := *f.info
	if info.FileMime == "" {
		info.FileMime = fileMime
	}
	return &info
}

type failure struct {
	taskID tasks.ID
	name   string
	err    error
}

type recorder struct {
	failures  []failure
	confirmed []*FileLoadResult
	albums    []*Album
}

func (r *recorder) ConfirmAlbum(album *Album) {
	r.albums = append(r.albums, album)
}

func (r *recorder) NotifyFailure(taskID tasks.ID, name string, err error) {
	r.failures = append(r.failures, failure{taskID, name, err})
}

func (r *recorder) ConfirmFile(result *FileLoadResult) {
	r.confirmed = append(r.confirmed, result)
}

func testDeps(classifier MediaReader, rec *recorder) Deps {
	return Deps{
		Classifier: classifier,
		Limits:     DefaultLimits(),
		Notifier:   rec,
		Confirmer:  rec,
		Now:        func() time.Time { return fixedNow },
	}
}

func solid(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func run(task *FileLoadTask) *FileLoadResult {
	task.Process(context.Background())
	task.Finish()
	return task.Result()
}

func TestDirectoryIsUnreadable(t *testing.T) {
	rec := &recorder{}
	task := NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{Path: t.TempDir(), Type: SendMediaFile})

	r := run(task)
	assert.Equal(t, SizeUnreadable, r.Filesize)
	require.Len(t, rec.failures, 1)
	assert.ErrorIs(t, rec.failures[0].err, ErrUnreadable)
	assert.Empty(t, rec.confirmed)
}

func TestMissingFileIsUnreadable(t *testing.T) {
	rec := &recorder{}
	classifier := &fakeClassifier{}
	path := filepath.Join(t.TempDir(), "gone.bin")
	task := NewFileLoadTask(testDeps(classifier, rec), FileLoadRequest{Path: path, Type: SendMediaFile})

	r := run(task)
	assert.Equal(t, SizeUnreadable, r.Filesize)
	assert.Zero(t, classifier.calls, "classification is skipped for unreadable sources")
	require.Len(t, rec.failures, 1)
	assert.Equal(t, "gone.bin", rec.failures[0].name)
}

func TestEmptyFile(t *testing.T) {
	rec := &recorder{}
	path := writeFile(t, "empty.txt", nil)
	task := NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{Path: path, Type: SendMediaFile})

	r := run(task)
	assert.Equal(t, int64(0), r.Filesize)
	require.Len(t, rec.failures, 1)
	assert.ErrorIs(t, rec.failures[0].err, ErrEmpty)
	assert.Equal(t, task.ID(), rec.failures[0].taskID)
}

func TestFileSizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"at limit", 64, nil},
		{"one byte over", 65, ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			deps := testDeps(&fakeClassifier{}, rec)
			deps.Limits.MaxFileSize = 64
			path := writeFile(t, "data.bin", bytes.Repeat([]byte{7}, tt.size))

			r := run(NewFileLoadTask(deps, FileLoadRequest{Path: path, Type: SendMediaFile}))
			assert.Equal(t, int64(tt.size), r.Filesize)
			if tt.wantErr == nil {
				assert.Empty(t, rec.failures)
				require.Len(t, rec.confirmed, 1)
				return
			}
			require.Len(t, rec.failures, 1)
			assert.ErrorIs(t, rec.failures[0].err, tt.wantErr)
			assert.Empty(t, r.FileParts.Parts, "oversized files are not read")
		})
	}
}

func TestPlainDocument(t *testing.T) {
	rec := &recorder{}
	data := bytes.Repeat([]byte("abcdefgh"), 10_000)
	path := writeFile(t, "notes.txt", data)

	r := run(NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{Path: path, Type: SendMediaPhoto}))

	require.Len(t, rec.confirmed, 1)
	assert.Equal(t, SendMediaFile, r.Type, "a photo request without a photo becomes a file")
	assert.Nil(t, r.Photo)
	require.NotNil(t, r.Document)
	assert.Equal(t, "notes.txt", r.Filename)
	assert.Equal(t, int64(len(data)), r.Document.Size)
	assert.Equal(t, chunk.Count(int64(len(data))), len(r.FileParts.Parts))
	assert.Equal(t, chunk.Checksum(data), r.FileParts.MD5)

	attr, ok := r.Attribute(KindFilename)
	require.True(t, ok)
	assert.Equal(t, FilenameAttribute{Name: "notes.txt"}, attr)
}

func TestPhotoFromPath(t *testing.T) {
	rec := &recorder{}
	img := solid(2000, 1000)
	path := writeFile(t, "pic.png", pngBytes(t, img))
	info := &media.Information{FileMime: "image/png", Media: &media.Image{Data: img}}

	r := run(NewFileLoadTask(testDeps(&fakeClassifier{info: info}, rec), FileLoadRequest{Path: path, Type: SendMediaPhoto}))

	require.Len(t, rec.confirmed, 1)
	assert.Equal(t, SendMediaPhoto, r.Type)
	require.NotNil(t, r.Photo)
	assert.Nil(t, r.Document)

	types := make([]string, 0, len(r.Photo.Sizes))
	for _, s := range r.Photo.Sizes {
		types = append(types, s.Type)
	}
	assert.Equal(t, []string{"s", "m", "y"}, types)
	assert.Equal(t, 1280, r.Photo.Sizes[2].Width)
	assert.Contains(t, r.PhotoThumbs, "m")

	payload := r.FileParts.Join()
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(payload))
	require.NoError(t, err, "the photo payload is a JPEG")
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 640, cfg.Height)
	assert.NotZero(t, r.ThumbID)
}

func TestImageSentAsFile(t *testing.T) {
	rec := &recorder{}
	img := solid(300, 200)
	path := writeFile(t, "pic.png", pngBytes(t, img))
	info := &media.Information{FileMime: "image/png", Media: &media.Image{Data: img}}

	r := run(NewFileLoadTask(testDeps(&fakeClassifier{info: info}, rec), FileLoadRequest{Path: path, Type: SendMediaFile}))

	require.Len(t, rec.confirmed, 1)
	assert.Nil(t, r.Photo)
	require.NotNil(t, r.Document)
	attr, ok := r.Attribute(KindImageSize)
	require.True(t, ok)
	assert.Equal(t, ImageSizeAttribute{Width: 300, Height: 200}, attr)
	assert.Empty(t, r.ThumbParts.Parts, "png previews are rendered by the receiver")
	assert.Equal(t, "thumb.jpg", r.ThumbName)
}

func TestStickerDetection(t *testing.T) {
	tests := []struct {
		name        string
		mime        string
		w, h        int
		animated    bool
		maxInMemory int64
		wantSticker bool
		wantAnim    bool
	}{
		{"small webp", "image/webp", 512, 300, false, 2 << 20, true, false},
		{"too wide", "image/webp", 513, 300, false, 2 << 20, false, false},
		{"not webp", "image/png", 200, 200, false, 2 << 20, false, false},
		{"too heavy", "image/webp", 200, 200, false, 16, false, false},
		{"animated", "image/webp", 200, 200, true, 2 << 20, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			deps := testDeps(&fakeClassifier{info: &media.Information{
				FileMime: tt.mime,
				Media:    &media.Image{Data: solid(tt.w, tt.h), Animated: tt.animated},
			}}, rec)
			deps.Limits.MaxStickerInMemory = tt.maxInMemory
			path := writeFile(t, "sticker.webp", bytes.Repeat([]byte{1}, 64))

			r := run(NewFileLoadTask(deps, FileLoadRequest{Path: path, Type: SendMediaFile}))
			require.Len(t, rec.confirmed, 1)

			_, sticker := r.Attribute(KindSticker)
			_, anim := r.Attribute(KindAnimated)
			assert.Equal(t, tt.wantSticker, sticker)
			assert.Equal(t, tt.wantAnim, anim)
			if tt.wantSticker {
				assert.Equal(t, "thumb.webp", r.ThumbName)
			}
		})
	}
}

func TestContentNaming(t *testing.T) {
	tests := []struct {
		name    string
		content func(t *testing.T) []byte
		want    string
	}{
		{"jpeg", func(t *testing.T) []byte { return jpegBytes(t, solid(8, 8)) }, "photo_2024-03-09_14-05-06.jpg"},
		{"png", func(t *testing.T) []byte { return pngBytes(t, solid(8, 8)) }, "image_2024-03-09_14-05-06.png"},
		{"pdf", func(t *testing.T) []byte { return []byte("%PDF-1.4\n%fake\n") }, "file_2024-03-09_14-05-06.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r := run(NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{Content: tt.content(t), Type: SendMediaFile}))
			assert.Equal(t, tt.want, r.Filename)
			require.Len(t, rec.confirmed, 1)
		})
	}
}

func TestEmptyContent(t *testing.T) {
	rec := &recorder{}
	r := run(NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{Content: []byte{}, Type: SendMediaFile}))
	assert.Equal(t, int64(0), r.Filesize)
	require.Len(t, rec.failures, 1)
	assert.ErrorIs(t, rec.failures[0].err, ErrEmpty)
}

func TestVoiceNote(t *testing.T) {
	rec := &recorder{}
	voice := bytes.Repeat([]byte("OggS"), 100)
	task := NewVoiceTask(testDeps(&fakeClassifier{}, rec), voice, 7, []byte{0, 31, 15}, SendTo{Peer: "42"}, "")

	r := run(task)
	require.Len(t, rec.confirmed, 1)
	assert.Equal(t, SendMediaAudio, r.Type)
	assert.Equal(t, "audio/ogg", r.Filemime)
	assert.Equal(t, "audio_2024-03-09_14-05-06.ogg", r.Filename)
	assert.Equal(t, "42", r.To.Peer)

	require.Len(t, r.Attributes(), 1, "voice notes carry a single audio attribute")
	audio, ok := r.Attributes()[0].(AudioAttribute)
	require.True(t, ok)
	assert.True(t, audio.Voice)
	assert.Equal(t, 7, audio.Duration)
	assert.Equal(t, EncodeWaveform([]byte{0, 31, 15}), audio.Waveform)
}

func TestPreSuppliedImage(t *testing.T) {
	t.Run("valid dimensions become a photo", func(t *testing.T) {
		rec := &recorder{}
		info := &media.Information{Media: &media.Image{Data: solid(640, 480)}}
		r := run(NewFileLoadTask(testDeps(nil, rec), FileLoadRequest{Information: info, Type: SendMediaPhoto}))

		require.Len(t, rec.confirmed, 1)
		assert.Equal(t, SendMediaPhoto, r.Type)
		assert.Equal(t, "image/jpeg", r.Filemime)
		require.NotNil(t, r.Photo)
		assert.Equal(t, int64(len(r.FileParts.Join())), r.Filesize, "size is taken from the encoded photo")
	})

	t.Run("extreme aspect becomes a png file", func(t *testing.T) {
		rec := &recorder{}
		info := &media.Information{Media: &media.Image{Data: solid(400, 10)}}
		r := run(NewFileLoadTask(testDeps(nil, rec), FileLoadRequest{Information: info, Type: SendMediaPhoto}))

		require.Len(t, rec.confirmed, 1)
		assert.Equal(t, SendMediaFile, r.Type)
		assert.Equal(t, "image/png", r.Filemime)
		assert.True(t, strings.HasPrefix(r.Filename, "image_"))
		_, err := png.Decode(bytes.NewReader(r.FileParts.Join()))
		assert.NoError(t, err)
	})

	t.Run("no source at all", func(t *testing.T) {
		rec := &recorder{}
		r := run(NewFileLoadTask(testDeps(nil, rec), FileLoadRequest{Type: SendMediaPhoto}))
		assert.Equal(t, SizeUnreadable, r.Filesize)
		require.Len(t, rec.failures, 1)
	})
}

func TestSongAndVideo(t *testing.T) {
	t.Run("song", func(t *testing.T) {
		rec := &recorder{}
		info := &media.Information{FileMime: "audio/mp3", Media: &media.Song{
			Duration: 200, Title: "T", Performer: "P", Cover: solid(500, 500),
		}}
		path := writeFile(t, "song.mp3", []byte("ID3 fake audio"))
		r := run(NewFileLoadTask(testDeps(&fakeClassifier{info: info}, rec), FileLoadRequest{Path: path, Type: SendMediaPhoto}))

		require.Len(t, rec.confirmed, 1)
		assert.Equal(t, SendMediaFile, r.Type)
		attr, ok := r.Attribute(KindAudio)
		require.True(t, ok)
		assert.Equal(t, AudioAttribute{Duration: 200, Title: "T", Performer: "P"}, attr)
		w, h := media.Dimensions(r.Thumb)
		assert.Equal(t, 320, w)
		assert.Equal(t, 320, h)
		assert.NotEmpty(t, r.ThumbParts.Parts, "audio previews are uploaded")
	})

	t.Run("gifv video", func(t *testing.T) {
		rec := &recorder{}
		info := &media.Information{FileMime: "video/mp4", Media: &media.Video{
			Duration: 3, IsGifv: true, SupportsStreaming: true, Thumbnail: solid(640, 360),
		}}
		path := writeFile(t, "clip.mp4", []byte("fake mp4"))
		r := run(NewFileLoadTask(testDeps(&fakeClassifier{info: info}, rec), FileLoadRequest{Path: path, Type: SendMediaFile}))

		require.Len(t, rec.confirmed, 1)
		_, animated := r.Attribute(KindAnimated)
		assert.True(t, animated)
		attr, ok := r.Attribute(KindVideo)
		require.True(t, ok)
		assert.Equal(t, VideoAttribute{Duration: 3, Width: 640, Height: 360, SupportsStreaming: true}, attr)
		assert.NotEmpty(t, r.GoodThumbnailBytes)
		assert.Empty(t, r.ThumbParts.Parts, "mp4 previews are rendered by the receiver")
	})
}

func TestFailureRemovesFromAlbum(t *testing.T) {
	rec := &recorder{}
	messages := NewMessages()
	album := NewAlbum(messages)

	good := NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{
		Path: writeFile(t, "a.txt", []byte("data")), Type: SendMediaFile, Album: album,
	})
	bad := NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{
		Path: writeFile(t, "b.txt", nil), Type: SendMediaFile, Album: album,
	})
	album.AddItem(good.ID(), messages.Add("caption"))
	album.AddItem(bad.ID(), messages.Add(""))

	run(good)
	run(bad)

	assert.Equal(t, 1, album.Len())
	assert.Equal(t, good.ID(), album.Items()[0].TaskID)
	require.Len(t, rec.confirmed, 1)
	assert.Same(t, album, rec.confirmed[0].Album)
}

func TestResultErr(t *testing.T) {
	var nilResult *FileLoadResult
	assert.ErrorIs(t, nilResult.Err(10), ErrUnreadable)
	assert.ErrorIs(t, (&FileLoadResult{Filesize: -1}).Err(10), ErrUnreadable)
	assert.ErrorIs(t, (&FileLoadResult{Filesize: 0}).Err(10), ErrEmpty)
	assert.ErrorIs(t, (&FileLoadResult{Filesize: 11}).Err(10), ErrTooLarge)
	assert.NoError(t, (&FileLoadResult{Filesize: 10}).Err(10))
}

func TestTaskIDsAreUnique(t *testing.T) {
	deps := testDeps(nil, &recorder{})
	a := NewFileLoadTask(deps, FileLoadRequest{})
	b := NewVoiceTask(deps, nil, 0, nil, SendTo{}, "")
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestFailureCompletesAlbum(t *testing.T) {
	rec := &recorder{}
	messages := NewMessages()
	album := NewAlbum(messages)

	bad := NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{
		Path: writeFile(t, "b.txt", nil), Type: SendMediaFile, Album: album,
	})
	goodMsg := messages.Add("caption")
	album.AddItem(tasks.NewID(), goodMsg)
	album.AddItem(bad.ID(), messages.Add(""))
	require.NoError(t, album.FillMedia(goodMsg, InputMedia{ID: 9}, 1))

	run(bad)

	require.Len(t, rec.albums, 1, "dropping the last pending item completes the album")
	assert.Same(t, album, rec.albums[0])
}

type gate struct {
	calls int
	err   error
}

func (g *gate) Wait(context.Context) error {
	g.calls++
	return g.err
}

func TestMemoryGate(t *testing.T) {
	for _, gateErr := range []error{nil, context.Canceled} {
		rec := &recorder{}
		g := &gate{err: gateErr}
		deps := testDeps(&fakeClassifier{}, rec)
		deps.Memory = g
		path := writeFile(t, "notes.txt", []byte("hello"))

		run(NewFileLoadTask(deps, FileLoadRequest{Path: path, Type: SendMediaFile}))
		assert.Equal(t, 1, g.calls)
		assert.Len(t, rec.confirmed, 1, "preparation proceeds after the gate (err=%v)", gateErr)
	}
}

func TestInterruptedProcessIsNotConfirmed(t *testing.T) {
	rec := &recorder{}
	path := writeFile(t, "notes.txt", bytes.Repeat([]byte{1}, 64))
	task := NewFileLoadTask(testDeps(&fakeClassifier{}, rec), FileLoadRequest{Path: path, Type: SendMediaFile})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	task.Process(ctx)
	task.Finish()

	r := task.Result()
	assert.Equal(t, SizeUnreadable, r.Filesize)
	assert.Empty(t, rec.confirmed, "an interrupted result must not reach the uploader")
	require.Len(t, rec.failures, 1)
	assert.ErrorIs(t, rec.failures[0].err, ErrUnreadable)
}

func TestSmallWebPSentAsPhoto(t *testing.T) {
	rec := &recorder{}
	deps := testDeps(&fakeClassifier{info: &media.Information{
		FileMime: "image/webp",
		Media:    &media.Image{Data: solid(200, 200)},
	}}, rec)
	path := writeFile(t, "sticker.webp", bytes.Repeat([]byte{1}, 64))

	r := run(NewFileLoadTask(deps, FileLoadRequest{Path: path, Type: SendMediaPhoto}))

	require.Len(t, rec.confirmed, 1)
	assert.Equal(t, SendMediaPhoto, r.Type)
	require.NotNil(t, r.Photo)
	assert.Nil(t, r.Document)
	assert.NotEmpty(t, r.FileParts.Parts)
}
