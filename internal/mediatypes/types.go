package mediatypes

import (
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// FileType represents the broad type of an outgoing file.
type FileType string

const (
	// FileTypeImage represents an image file.
	FileTypeImage FileType = "image"
	// FileTypeVideo represents a video file.
	FileTypeVideo FileType = "video"
	// FileTypeAudio represents an audio file.
	FileTypeAudio FileType = "audio"
	// FileTypeOther represents anything sent as a plain document.
	FileTypeOther FileType = "other"
)

const (
	// StickerMime is the only MIME type a sticker can have.
	StickerMime = "image/webp"
	// JPEG is the MIME type of re-encoded photos and thumbnails.
	JPEG = "image/jpeg"
	// PNG is the MIME type used when an in-memory image is sent as a file.
	PNG = "image/png"
	// VoiceMime is the MIME type of recorded voice notes.
	VoiceMime = "audio/ogg"
	// OctetStream is reported when nothing better is known.
	OctetStream = "application/octet-stream"
)

// SongMimes are MIME types probed as songs.
var SongMimes = []string{
	"audio/mp3",
	"audio/m4a",
	"audio/aac",
	"audio/ogg",
	"audio/flac",
}

// SongExtensions are extensions probed as songs.
var SongExtensions = []string{".mp3", ".m4a", ".aac", ".ogg", ".flac"}

// VideoMimes are MIME types probed as videos.
var VideoMimes = []string{
	"video/mp4",
	"video/quicktime",
}

// VideoExtensions are extensions probed as videos.
var VideoExtensions = []string{".mp4", ".mov"}

// ThumbnailKnownMimes are types whose thumbnails the server can render by
// itself; for anything else the rendered thumbnail has to be uploaded.
var ThumbnailKnownMimes = []string{
	"image/jpeg",
	"image/gif",
	"image/png",
	"image/webp",
	"video/mp4",
}

// ImageExtensions maps file extensions to whether they are decodable images.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",

	// Videos
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",

	// Audio
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
}

// GetFileType returns the FileType for a MIME type.
func GetFileType(mimeType string) FileType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return FileTypeAudio
	default:
		return FileTypeOther
	}
}

// ForName returns the MIME type registered for the extension of name.
func ForName(name string) string {
	if m, ok := MimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return m
	}
	return OctetStream
}

// ForFile detects the MIME type of the file at path from its content,
// falling back to the extension when the content is not recognized.
func ForFile(path string) string {
	detected, err := mimetype.DetectFile(path)
	if err == nil {
		if m := essence(detected.String()); m != OctetStream && m != "text/plain" {
			return m
		}
	}
	return ForName(path)
}

// ForData detects the MIME type of an in-memory payload and returns it with
// the canonical extension (including the dot, possibly empty).
func ForData(data []byte) (string, string) {
	detected := mimetype.Detect(data)
	return essence(detected.String()), detected.Extension()
}

// essence strips parameters such as "; charset=utf-8".
func essence(value string) string {
	mt, _, err := mime.ParseMediaType(value)
	if err != nil {
		return OctetStream
	}
	return mt
}

// MatchesMimeOrExtension reports whether mimeType is listed in mimes or path
// ends with one of extensions, ignoring case.
func MatchesMimeOrExtension(path, mimeType string, mimes, extensions []string) bool {
	for _, m := range mimes {
		if strings.EqualFold(m, mimeType) {
			return true
		}
	}
	lower := strings.ToLower(path)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsThumbnailKnown reports whether the server renders thumbnails for
// mimeType by itself.
func IsThumbnailKnown(mimeType string) bool {
	lower := strings.ToLower(essence(mimeType))
	for _, m := range ThumbnailKnownMimes {
		if m == lower {
			return true
		}
	}
	return false
}

// DefaultName builds the name given to unnamed payloads, for example
// "photo_2024-03-01_18-04-05.jpg".
func DefaultName(prefix, ext string, at time.Time) string {
	return prefix + at.Format("_2006-01-02_15-04-05") + ext
}
