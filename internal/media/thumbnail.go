package media

import (
	"bytes"
	"fmt"
	"image"
	"math/rand/v2"

	"media-prep/internal/logging"
	"media-prep/internal/mediatypes"

	"github.com/disintegration/imaging"
	"github.com/samber/lo"
)

const (
	// ThumbnailSize is the longest side of a preview, in pixels.
	ThumbnailSize = 320
	// ThumbnailQuality is the JPEG quality of previews and re-encoded photos.
	ThumbnailQuality = 87
	// ThumbnailUploadSize is the file size above which the preview must be
	// uploaded even for formats the receiver can render itself.
	ThumbnailUploadSize = 5 * 1024 * 1024

	// ThumbnailName is the file name of a JPEG preview.
	ThumbnailName = "thumb.jpg"
	// StickerThumbnailName is the file name of a sticker preview.
	StickerThumbnailName = "thumb.webp"
)

// SizeSpec names one scaled variant of a photo.
type SizeSpec struct {
	Type string
	Side int // 0 keeps the original size
}

var (
	// PhotoSizes are the variants stored for an outgoing photo.
	PhotoSizes = []SizeSpec{{"s", 100}, {"m", 320}, {"y", 1280}}
	// PeerPhotoSizes are the variants stored for a profile photo.
	PeerPhotoSizes = []SizeSpec{{"a", 160}, {"b", 320}, {"c", 0}}
	// WallPaperSizes are the preview variants stored for a wallpaper.
	WallPaperSizes = []SizeSpec{{"s", 320}}
)

// Variant is one scaled copy of an image.
type Variant struct {
	Type   string
	Image  image.Image
	Width  int
	Height int
}

// Thumbnail is a bounded preview and, once finalized, its encoded bytes.
type Thumbnail struct {
	ID    uint64
	Name  string
	Image image.Image
	// Bytes is empty unless the preview must be uploaded.
	Bytes []byte
}

// ThumbnailBuilder scales and encodes previews.
type ThumbnailBuilder struct {
	Size    int
	Quality int
}

// NewThumbnailBuilder returns a builder with the default preview size and quality.
func NewThumbnailBuilder() *ThumbnailBuilder {
	return &ThumbnailBuilder{Size: ThumbnailSize, Quality: ThumbnailQuality}
}

// Prepare scales img down to the preview size and assigns a random id.
// It returns nil for a nil image.
func (b *ThumbnailBuilder) Prepare(img image.Image) *Thumbnail {
	if img == nil {
		return nil
	}
	return &Thumbnail{
		ID:    rand.Uint64(),
		Name:  ThumbnailName,
		Image: ScaleDown(img, b.Size),
	}
}

// Finalize names the preview and, when UploadRequired says so, encodes it.
// Sticker previews are WebP when libvips is available and JPEG otherwise.
func (b *ThumbnailBuilder) Finalize(t *Thumbnail, sticker bool, fileMime string, fileSize int64) error {
	if t == nil {
		return nil
	}
	t.Name = ThumbnailName
	if sticker {
		t.Name = StickerThumbnailName
	}
	if !UploadRequired(fileMime, fileSize) {
		return nil
	}

	if sticker {
		data, err := EncodeWebP(t.Image, b.Quality)
		if err == nil {
			t.Bytes = data
			return nil
		}
		logging.Debug("WebP thumbnail unavailable, falling back to JPEG: %v", err)
		t.Name = ThumbnailName
	}

	data, err := EncodeJPEG(t.Image, b.Quality)
	if err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	t.Bytes = data
	return nil
}

// UploadRequired reports whether the preview bytes must accompany the file.
func UploadRequired(fileMime string, fileSize int64) bool {
	if fileSize > ThumbnailUploadSize {
		return true
	}
	return !mediatypes.IsThumbnailKnown(fileMime)
}

// ScaleDown fits img within a side x side box, preserving aspect ratio.
// Images that already fit are returned unchanged.
func ScaleDown(img image.Image, side int) image.Image {
	w, h := Dimensions(img)
	if side <= 0 || (w <= side && h <= side) {
		return img
	}
	return imaging.Fit(img, side, side, imaging.Lanczos)
}

// Variants returns one scaled copy of img per spec, in order.
func Variants(img image.Image, specs []SizeSpec) []Variant {
	return lo.Map(specs, func(s SizeSpec, _ int) Variant {
		scaled := ScaleDown(img, s.Side)
		w, h := Dimensions(scaled)
		return Variant{Type: s.Type, Image: scaled, Width: w, Height: h}
	})
}

// EncodeJPEG encodes img as a baseline JPEG of the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to encode")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("no image to encode")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
