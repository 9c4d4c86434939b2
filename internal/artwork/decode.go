package artwork

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned when the bytes are not in a known image format.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Decode decodes raw artwork bytes (JPEG, PNG, GIF, WebP or BMP).
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode artwork: %w", ErrUnsupportedImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("decode artwork: %w", ErrUnsupportedImage)
	}
	if err != nil {
		return nil, fmt.Errorf("decode artwork: %w", err)
	}
	return img, nil
}

// LoadFile decodes the image at path into an Artwork.
func LoadFile(path string) (*Artwork, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artwork file: %w", err)
	}
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return &Artwork{Image: img, URL: path, FetchedAt: time.Now()}, nil
}

// Scale resamples img to exactly w×h pixels.
func Scale(img image.Image, w, h int) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if img == nil {
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
