package media

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T, frames int) []byte {
	t.Helper()
	palette := color.Palette{color.Black, color.White}
	anim := &gif.GIF{}
	for i := 0; i < frames; i++ {
		anim.Image = append(anim.Image, image.NewPaletted(image.Rect(0, 0, 8, 8), palette))
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatalf("gif.EncodeAll() error = %v", err)
	}
	return buf.Bytes()
}

func TestReadImageFromContent(t *testing.T) {
	data := encodePNG(t, solidImage(40, 30, color.NRGBA{R: 255, A: 255}))

	img, animated, err := ReadImage("", data)
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	if animated {
		t.Error("ReadImage() animated = true for a still PNG")
	}
	if w, h := Dimensions(img); w != 40 || h != 30 {
		t.Errorf("ReadImage() size = %dx%d, want 40x30", w, h)
	}
}

func TestReadImageFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(path, encodePNG(t, solidImage(10, 20, color.White)), 0o644); err != nil {
		t.Fatal(err)
	}

	img, _, err := ReadImage(path, nil)
	if err != nil {
		t.Fatalf("ReadImage() error = %v", err)
	}
	if w, h := Dimensions(img); w != 10 || h != 20 {
		t.Errorf("ReadImage() size = %dx%d, want 10x20", w, h)
	}
}

func TestReadImageErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content []byte
	}{
		{"no source", "", nil},
		{"missing file", filepath.Join(t.TempDir(), "missing.png"), nil},
		{"not an image", "", []byte("plain text, definitely not pixels")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ReadImage(tt.path, tt.content); err == nil {
				t.Error("ReadImage() expected error, got nil")
			}
		})
	}
}

func TestGIFAnimationDetection(t *testing.T) {
	tests := []struct {
		frames int
		want   bool
	}{
		{1, false},
		{3, true},
	}

	for _, tt := range tests {
		_, animated, err := ReadImage("", encodeGIF(t, tt.frames))
		if err != nil {
			t.Fatalf("ReadImage() error = %v", err)
		}
		if animated != tt.want {
			t.Errorf("frames=%d animated = %v, want %v", tt.frames, animated, tt.want)
		}
	}
}

func TestWebPAnimated(t *testing.T) {
	header := func(chunk string, flags byte) []byte {
		b := make([]byte, 30)
		copy(b[0:4], "RIFF")
		copy(b[8:12], "WEBP")
		copy(b[12:16], chunk)
		b[20] = flags
		return b
	}

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"extended with animation flag", header("VP8X", 0x02), true},
		{"extended without animation", header("VP8X", 0x10), false},
		{"simple lossy", header("VP8 ", 0x02), false},
		{"too short", []byte("RIFF"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := webpAnimated(tt.data); got != tt.want {
				t.Errorf("webpAnimated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPNGAnimated(t *testing.T) {
	still := encodePNG(t, solidImage(4, 4, color.White))
	if pngAnimated(still) {
		t.Error("pngAnimated() = true for a still PNG")
	}

	// Splice an acTL chunk right after IHDR (8 signature + 25 IHDR bytes).
	actl := []byte{0, 0, 0, 8, 'a', 'c', 'T', 'L', 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0}
	apng := append(append(append([]byte{}, still[:33]...), actl...), still[33:]...)
	if !pngAnimated(apng) {
		t.Error("pngAnimated() = false with an acTL chunk")
	}
}

func TestPrepareOpaque(t *testing.T) {
	transparent := solidImage(2, 2, color.NRGBA{})
	flat := PrepareOpaque(transparent)

	r, g, b, a := flat.At(0, 0).RGBA()
	if a != 0xffff {
		t.Errorf("alpha = %#x, want opaque", a)
	}
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("color = (%#x,%#x,%#x), want white", r, g, b)
	}

	opaque := solidImage(2, 2, color.NRGBA{R: 10, A: 255})
	if got := PrepareOpaque(opaque); got != image.Image(opaque) {
		t.Error("PrepareOpaque() should return opaque images unchanged")
	}

	if PrepareOpaque(nil) != nil {
		t.Error("PrepareOpaque(nil) should be nil")
	}
}
