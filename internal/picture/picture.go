// Package picture decodes, scales and saves the images shown for a match.
package picture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/sketch-match/internal/apperr"
)

// Picture is a decoded image together with the format it was stored in.
type Picture struct {
	Image  image.Image
	Format string // jpeg, png, bmp, webp
}

// Width returns the width in pixels.
func (p *Picture) Width() int { return p.Image.Bounds().Dx() }

// Height returns the height in pixels.
func (p *Picture) Height() int { return p.Image.Bounds().Dy() }

// Decode decodes image bytes, applying the EXIF orientation of JPEG files.
func Decode(data []byte) (*Picture, error) {
	if len(data) == 0 {
		return nil, apperr.Decode("picture.decode", fmt.Errorf("empty image data"))
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Decode("picture.decode", fmt.Errorf("failed to read image header: %w", err))
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Decode("picture.decode", fmt.Errorf("failed to decode %s image: %w", format, err))
	}

	return &Picture{Image: img, Format: format}, nil
}

// Thumbnail scales img to fit within maxSize (width or height) while keeping aspect ratio.
// Images already small enough are returned unchanged.
func Thumbnail(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes img to path; the format follows the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
