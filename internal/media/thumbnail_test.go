package media

import (
	"bytes"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestValidateThumbDimensions(t *testing.T) {
	tests := []struct {
		w, h int
		want bool
	}{
		{100, 100, true},
		{1, 1, true},
		{0, 10, false},
		{10, 0, false},
		{-1, 10, false},
		{199, 10, true},
		{200, 10, false},
		{10, 200, false},
	}

	for _, tt := range tests {
		if got := ValidateThumbDimensions(tt.w, tt.h); got != tt.want {
			t.Errorf("ValidateThumbDimensions(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestUploadRequired(t *testing.T) {
	tests := []struct {
		name string
		mime string
		size int64
		want bool
	}{
		{"small jpeg", "image/jpeg", 1024, false},
		{"small mp4", "video/mp4", 1024, false},
		{"small webp", "image/webp", 1024, false},
		{"jpeg at limit", "image/jpeg", ThumbnailUploadSize, false},
		{"jpeg over limit", "image/jpeg", ThumbnailUploadSize + 1, true},
		{"quicktime", "video/quicktime", 1024, true},
		{"document", "application/pdf", 10, true},
		{"mime with params", "image/png; charset=binary", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UploadRequired(tt.mime, tt.size); got != tt.want {
				t.Errorf("UploadRequired(%q, %d) = %v, want %v", tt.mime, tt.size, got, tt.want)
			}
		})
	}
}

func TestScaleDown(t *testing.T) {
	tests := []struct {
		name         string
		w, h, side   int
		wantW, wantH int
	}{
		{"landscape", 1000, 500, 320, 320, 160},
		{"portrait", 500, 1000, 100, 50, 100},
		{"already small", 50, 40, 320, 50, 40},
		{"zero side keeps size", 700, 300, 0, 700, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScaleDown(solidImage(tt.w, tt.h, color.White), tt.side)
			if w, h := Dimensions(got); w != tt.wantW || h != tt.wantH {
				t.Errorf("ScaleDown() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestVariants(t *testing.T) {
	variants := Variants(solidImage(2000, 1000, color.White), PhotoSizes)
	if len(variants) != 3 {
		t.Fatalf("Variants() returned %d entries, want 3", len(variants))
	}

	want := []struct {
		typ  string
		w, h int
	}{
		{"s", 100, 50},
		{"m", 320, 160},
		{"y", 1280, 640},
	}
	for i, v := range variants {
		if v.Type != want[i].typ || v.Width != want[i].w || v.Height != want[i].h {
			t.Errorf("variant %d = %s %dx%d, want %s %dx%d", i, v.Type, v.Width, v.Height, want[i].typ, want[i].w, want[i].h)
		}
	}
}

func TestThumbnailBuilderPrepare(t *testing.T) {
	b := NewThumbnailBuilder()
	if b.Prepare(nil) != nil {
		t.Error("Prepare(nil) should return nil")
	}

	thumb := b.Prepare(solidImage(640, 480, color.White))
	if w, h := Dimensions(thumb.Image); w != 320 || h != 240 {
		t.Errorf("Prepare() size = %dx%d, want 320x240", w, h)
	}
	if thumb.Name != ThumbnailName {
		t.Errorf("Prepare() name = %q, want %q", thumb.Name, ThumbnailName)
	}
}

func TestThumbnailBuilderFinalize(t *testing.T) {
	b := NewThumbnailBuilder()

	t.Run("known mime skips encoding", func(t *testing.T) {
		thumb := b.Prepare(solidImage(64, 64, color.White))
		if err := b.Finalize(thumb, false, "image/jpeg", 1024); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		if len(thumb.Bytes) != 0 {
			t.Errorf("Finalize() encoded %d bytes, want none", len(thumb.Bytes))
		}
	})

	t.Run("unknown mime encodes jpeg", func(t *testing.T) {
		thumb := b.Prepare(solidImage(64, 64, color.White))
		if err := b.Finalize(thumb, false, "application/zip", 1024); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		if _, err := jpeg.Decode(bytes.NewReader(thumb.Bytes)); err != nil {
			t.Errorf("thumbnail bytes are not JPEG: %v", err)
		}
		if thumb.Name != ThumbnailName {
			t.Errorf("name = %q, want %q", thumb.Name, ThumbnailName)
		}
	})

	t.Run("sticker name", func(t *testing.T) {
		thumb := b.Prepare(solidImage(64, 64, color.White))
		if err := b.Finalize(thumb, true, "image/webp", 1024); err != nil {
			t.Fatalf("Finalize() error = %v", err)
		}
		if thumb.Name != StickerThumbnailName {
			t.Errorf("name = %q, want %q", thumb.Name, StickerThumbnailName)
		}
	})

	t.Run("nil thumbnail", func(t *testing.T) {
		if err := b.Finalize(nil, false, "application/zip", 1); err != nil {
			t.Errorf("Finalize(nil) error = %v", err)
		}
	})
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(solidImage(16, 8, color.White), ThumbnailQuality)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 8 {
		t.Errorf("encoded size = %dx%d, want 16x8", cfg.Width, cfg.Height)
	}

	if _, err := EncodeJPEG(nil, 80); err == nil {
		t.Error("EncodeJPEG(nil) expected error")
	}
}
