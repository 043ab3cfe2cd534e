package sending

import (
	"fmt"
	"image"
	"math/rand/v2"
	"time"

	"media-prep/internal/media"
	"media-prep/internal/mediatypes"

	"github.com/samber/lo"
)

// PreparePeerPhoto prepares img as the profile photo of peer. The full-size
// JPEG is the payload; a and b are scaled previews.
func PreparePeerPhoto(peer string, img image.Image) (*FileLoadResult, error) {
	if img == nil {
		return nil, fmt.Errorf("no image for peer photo")
	}
	img = media.PrepareOpaque(img)

	jpeg, err := media.EncodeJPEG(img, media.ThumbnailQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode peer photo: %w", err)
	}

	now := time.Now()
	variants := media.Variants(img, media.PeerPhotoSizes)
	r := &FileLoadResult{
		ID:       rand.Uint64(),
		To:       SendTo{Peer: peer},
		Type:     SendMediaPhoto,
		Content:  jpeg,
		Filemime: mediatypes.JPEG,
		Filesize: int64(len(jpeg)),
		PhotoThumbs: lo.SliceToMap(variants, func(v media.Variant) (string, image.Image) {
			return v.Type, v.Image
		}),
	}
	r.setFileData(jpeg)
	r.Photo = &Photo{
		ID:   r.ID,
		Date: now,
		Sizes: lo.Map(variants, func(v media.Variant, _ int) PhotoSize {
			size := PhotoSize{Type: v.Type, Width: v.Width, Height: v.Height}
			if v.Type == "c" {
				size.Size = len(jpeg)
			}
			return size
		}),
	}
	return r, nil
}

// PrepareWallPaper prepares img as a chat background document with a
// 320 px preview.
func PrepareWallPaper(img image.Image) (*FileLoadResult, error) {
	if img == nil {
		return nil, fmt.Errorf("no image for wallpaper")
	}
	img = media.PrepareOpaque(img)

	jpeg, err := media.EncodeJPEG(img, media.ThumbnailQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wallpaper: %w", err)
	}

	preview := media.Variants(img, media.WallPaperSizes)[0]
	thumb, err := media.EncodeJPEG(preview.Image, media.ThumbnailQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode wallpaper preview: %w", err)
	}

	const filename = "wallpaper.jpg"
	w, h := media.Dimensions(img)
	r := &FileLoadResult{
		ID:          rand.Uint64(),
		Type:        SendMediaWallPaper,
		Content:     jpeg,
		Filename:    filename,
		Filemime:    mediatypes.JPEG,
		Filesize:    int64(len(jpeg)),
		ThumbID:     rand.Uint64(),
		ThumbName:   media.ThumbnailName,
		Thumb:       preview.Image,
		PhotoThumbs: map[string]image.Image{preview.Type: preview.Image},
	}
	r.setFileData(jpeg)
	r.setThumbData(thumb)
	r.Document = &Document{
		ID:   r.ID,
		Date: time.Now(),
		Mime: mediatypes.JPEG,
		Size: r.Filesize,
		Thumb: &PhotoSize{
			Type:   preview.Type,
			Width:  preview.Width,
			Height: preview.Height,
			Size:   len(thumb),
		},
		Attributes: []Attribute{
			FilenameAttribute{Name: filename},
			ImageSizeAttribute{Width: w, Height: h},
		},
	}
	return r, nil
}
