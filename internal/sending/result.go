package sending

import (
	"fmt"
	"image"
	"time"

	"media-prep/internal/chunk"
	"media-prep/internal/tasks"
)

// SendMediaType is how a prepared file is presented to the receiver.
type SendMediaType int

const (
	// SendMediaPhoto is a compressed photo with size variants.
	SendMediaPhoto SendMediaType = iota
	// SendMediaAudio is a voice note.
	SendMediaAudio
	// SendMediaFile is a document.
	SendMediaFile
	// SendMediaWallPaper is a chat background.
	SendMediaWallPaper
)

func (t SendMediaType) String() string {
	switch t {
	case SendMediaPhoto:
		return "photo"
	case SendMediaAudio:
		return "audio"
	case SendMediaFile:
		return "file"
	case SendMediaWallPaper:
		return "wallpaper"
	default:
		return fmt.Sprintf("SendMediaType(%d)", int(t))
	}
}

// ParseSendMediaType maps a name produced by String back to its value.
func ParseSendMediaType(name string) (SendMediaType, bool) {
	switch name {
	case "photo":
		return SendMediaPhoto, true
	case "audio":
		return SendMediaAudio, true
	case "file":
		return SendMediaFile, true
	case "wallpaper":
		return SendMediaWallPaper, true
	}
	return 0, false
}

// SendTo is the destination of a prepared file.
type SendTo struct {
	Peer    string
	ReplyTo int64
}

// SizeUnreadable is the Filesize of a result whose source could not be read.
const SizeUnreadable int64 = -1

// PhotoSize is one stored variant of a photo.
type PhotoSize struct {
	Type   string `json:"type"`
	Width  int    `json:"w"`
	Height int    `json:"h"`
	Size   int    `json:"size"`
}

// Photo is the record sent for SendMediaPhoto results.
type Photo struct {
	ID    uint64
	Date  time.Time
	Sizes []PhotoSize
}

// Document is the record sent for everything that is not a photo.
type Document struct {
	ID         uint64
	Date       time.Time
	Mime       string
	Size       int64
	Thumb      *PhotoSize
	Attributes []Attribute
}

// FileLoadResult is a prepared file ready for upload. It must not be
// modified once it has been handed to a Confirmer.
type FileLoadResult struct {
	TaskID  tasks.ID
	ID      uint64
	To      SendTo
	Caption string
	Album   *Album
	Type    SendMediaType

	Filepath string
	Content  []byte
	Filename string
	Filemime string
	// Filesize is SizeUnreadable when the source could not be read.
	Filesize  int64
	FileParts chunk.Parts

	ThumbID    uint64
	ThumbName  string
	ThumbParts chunk.Parts
	Thumb      image.Image

	// GoodThumbnail is a full-size video frame kept for the local cache.
	GoodThumbnail      image.Image
	GoodThumbnailBytes []byte

	Photo       *Photo
	Document    *Document
	PhotoThumbs map[string]image.Image
}

// Err classifies a finished result against the size limit. It returns nil
// for results that can be sent.
func (r *FileLoadResult) Err(maxFileSize int64) error {
	switch {
	case r == nil || r.Filesize < 0:
		return ErrUnreadable
	case r.Filesize == 0:
		return ErrEmpty
	case r.Filesize > maxFileSize:
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, r.Filesize, maxFileSize)
	}
	return nil
}

// Attributes returns the document attributes, or nil for photos.
func (r *FileLoadResult) Attributes() []Attribute {
	if r.Document == nil {
		return nil
	}
	return r.Document.Attributes
}

// Attribute returns the first document attribute of the given kind.
func (r *FileLoadResult) Attribute(kind string) (Attribute, bool) {
	for _, a := range r.Attributes() {
		if a.AttributeKind() == kind {
			return a, true
		}
	}
	return nil, false
}

func (r *FileLoadResult) setFileData(data []byte) {
	r.FileParts = chunk.Split(data)
}

func (r *FileLoadResult) setThumbData(data []byte) {
	if len(data) > 0 {
		r.ThumbParts = chunk.Split(data)
	}
}
