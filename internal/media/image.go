package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/gif"

	"media-prep/internal/filesystem"
	"media-prep/internal/logging"

	// Image format decoders
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the largest side decoded at full size.
	MaxImageDimension = 8192

	// MaxImagePixels is the maximum total pixels (width * height) decoded
	// without shrinking. ~20MP uses ~80MB in RGBA.
	MaxImagePixels = 20_000_000
)

// ReadImage decodes an image from content, or from the file at path when
// content is empty. Oversized images are shrunk at decode time through
// libvips when available. The returned flag reports animation.
func ReadImage(path string, content []byte) (image.Image, bool, error) {
	data := content
	if len(data) == 0 {
		if path == "" {
			return nil, false, fmt.Errorf("no image source")
		}
		var err error
		data, err = filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())
		if err != nil {
			return nil, false, fmt.Errorf("failed to read image: %w", err)
		}
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image config: %w", err)
	}
	animated := isAnimated(format, data)

	pixels := config.Width * config.Height
	if config.Width > MaxImageDimension || config.Height > MaxImageDimension || pixels > MaxImagePixels {
		logging.Debug("Image %s is %dx%d (%d pixels), shrinking on decode", path, config.Width, config.Height, pixels)
		img, err := ShrinkWithVips(data, MaxImageDimension/2)
		if err != nil {
			return nil, false, fmt.Errorf("image too large to decode: %w", err)
		}
		return img, animated, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, animated, nil
}

func isAnimated(format string, data []byte) bool {
	switch format {
	case "gif":
		g, err := gif.DecodeAll(bytes.NewReader(data))
		return err == nil && len(g.Image) > 1
	case "webp":
		return webpAnimated(data)
	case "png":
		return pngAnimated(data)
	}
	return false
}

// webpAnimated checks the animation flag of an extended (VP8X) WebP header.
func webpAnimated(data []byte) bool {
	if len(data) < 21 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return false
	}
	if string(data[12:16]) != "VP8X" {
		return false
	}
	return data[20]&0x02 != 0
}

// pngAnimated looks for an acTL chunk ahead of the first IDAT.
func pngAnimated(data []byte) bool {
	const signature = 8
	if len(data) < signature {
		return false
	}
	pos := signature
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos:]))
		kind := string(data[pos+4 : pos+8])
		switch kind {
		case "acTL":
			return true
		case "IDAT", "IEND":
			return false
		}
		pos += 12 + length
	}
	return false
}

// PrepareOpaque flattens img onto a white background.
func PrepareOpaque(img image.Image) image.Image {
	if img == nil || isOpaque(img) {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
