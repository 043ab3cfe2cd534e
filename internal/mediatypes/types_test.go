package mediatypes

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func encodedImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "png":
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("Failed to encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestGetFileType(t *testing.T) {
	tests := []struct {
		mime string
		want FileType
	}{
		{mime: "image/jpeg", want: FileTypeImage},
		{mime: "video/mp4", want: FileTypeVideo},
		{mime: "audio/ogg", want: FileTypeAudio},
		{mime: "application/pdf", want: FileTypeOther},
		{mime: "", want: FileTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			if got := GetFileType(tt.mime); got != tt.want {
				t.Errorf("GetFileType(%q) = %v, want %v", tt.mime, got, tt.want)
			}
		})
	}
}

func TestForName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "photo.JPG", want: "image/jpeg"},
		{name: "clip.mov", want: "video/quicktime"},
		{name: "track.flac", want: "audio/flac"},
		{name: "archive.zip", want: OctetStream},
		{name: "noext", want: OctetStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForName(tt.name); got != tt.want {
				t.Errorf("ForName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestForData(t *testing.T) {
	mime, ext := ForData(encodedImage(t, "jpeg"))
	if mime != "image/jpeg" || ext != ".jpg" {
		t.Errorf("ForData(jpeg) = (%q, %q)", mime, ext)
	}

	mime, ext = ForData(encodedImage(t, "png"))
	if mime != "image/png" || ext != ".png" {
		t.Errorf("ForData(png) = (%q, %q)", mime, ext)
	}

	mime, _ = ForData([]byte("just some words\n"))
	if mime != "text/plain" {
		t.Errorf("ForData(text) = %q, want text/plain without parameters", mime)
	}
}

func TestForFile(t *testing.T) {
	dir := t.TempDir()

	// Content wins over a misleading extension
	misnamed := filepath.Join(dir, "picture.bin")
	if err := os.WriteFile(misnamed, encodedImage(t, "png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ForFile(misnamed); got != "image/png" {
		t.Errorf("ForFile(png content) = %q", got)
	}

	// Unrecognized content falls back to the extension
	unknown := filepath.Join(dir, "song.flac")
	if err := os.WriteFile(unknown, []byte{0x00, 0x01, 0x02, 0x03}, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ForFile(unknown); got != "audio/flac" {
		t.Errorf("ForFile(unknown content .flac) = %q", got)
	}

	if got := ForFile(filepath.Join(dir, "missing.mp4")); got != "video/mp4" {
		t.Errorf("ForFile(missing) = %q, want extension fallback", got)
	}
}

func TestMatchesMimeOrExtension(t *testing.T) {
	tests := []struct {
		name string
		path string
		mime string
		want bool
	}{
		{name: "Mime match", path: "", mime: "audio/mp3", want: true},
		{name: "Mime match ignores case", path: "", mime: "Audio/FLAC", want: true},
		{name: "Extension match", path: "/music/track.MP3", mime: OctetStream, want: true},
		{name: "No match", path: "/music/track.wav", mime: "audio/wav", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchesMimeOrExtension(tt.path, tt.mime, SongMimes, SongExtensions)
			if got != tt.want {
				t.Errorf("MatchesMimeOrExtension(%q, %q) = %v, want %v", tt.path, tt.mime, got, tt.want)
			}
		})
	}
}

func TestIsThumbnailKnown(t *testing.T) {
	if !IsThumbnailKnown("IMAGE/JPEG") {
		t.Error("image/jpeg should be known regardless of case")
	}
	if IsThumbnailKnown("video/quicktime") {
		t.Error("video/quicktime is not rendered by the server")
	}
}

func TestDefaultName(t *testing.T) {
	at := time.Date(2024, 3, 1, 18, 4, 5, 0, time.UTC)
	if got := DefaultName("photo", ".jpg", at); got != "photo_2024-03-01_18-04-05.jpg" {
		t.Errorf("DefaultName() = %q", got)
	}
	if got := DefaultName("file", "", at); got != "file_2024-03-01_18-04-05" {
		t.Errorf("DefaultName() without extension = %q", got)
	}
}
