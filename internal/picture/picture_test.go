package picture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/sketch-match/internal/apperr"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_PNG(t *testing.T) {
	pic, err := Decode(encodePNG(t, testImage(40, 20)))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if pic.Format != "png" {
		t.Errorf("expected format png, got %q", pic.Format)
	}
	if pic.Width() != 40 || pic.Height() != 20 {
		t.Errorf("expected 40x20, got %dx%d", pic.Width(), pic.Height())
	}
}

func TestDecode_JPEG(t *testing.T) {
	data, err := EncodeJPEG(testImage(16, 16), 85)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}

	pic, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if pic.Format != "jpeg" {
		t.Errorf("expected format jpeg, got %q", pic.Format)
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("not an image at all"),
		"truncated": encodePNG(t, testImage(8, 8))[:30],
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			if !apperr.IsKind(err, apperr.KindDecode) {
				t.Errorf("expected decode error, got %v", err)
			}
		})
	}
}

func TestThumbnail(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
		{"already small", 50, 30, 100, 50, 30},
		{"no limit", 300, 300, 0, 300, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Thumbnail(testImage(tt.w, tt.h), tt.max)
			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, got.Bounds().Dx(), got.Bounds().Dy())
			}
		})
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match.jpg")

	if err := Save(testImage(10, 10), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read saved file: %v", err)
	}
	pic, err := Decode(data)
	if err != nil {
		t.Fatalf("saved file does not decode: %v", err)
	}
	if pic.Format != "jpeg" {
		t.Errorf("expected jpeg, got %q", pic.Format)
	}

	if err := Save(testImage(10, 10), filepath.Join(dir, "match.unknown")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
