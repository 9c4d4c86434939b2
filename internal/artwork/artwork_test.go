package artwork

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func solidPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestCache_EmptyUntilWrite(t *testing.T) {
	c := NewCache()
	if got := c.Read(); got != nil {
		t.Fatalf("Read = %v, want nil", got)
	}

	c.Write(nil)
	c.Write(&Artwork{URL: "no-image"})
	if got := c.Read(); got != nil {
		t.Fatalf("Read after ignored writes = %v, want nil", got)
	}
}

func TestCache_LastWriterWins(t *testing.T) {
	c := NewCache()
	first := &Artwork{Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), URL: "a"}
	second := &Artwork{Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), URL: "b"}

	c.Write(first)
	c.Write(second)
	if got := c.Read(); got != second {
		t.Fatalf("Read = %v, want second", got)
	}
}

func TestCache_ConcurrentReadsSeeCompleteValues(t *testing.T) {
	c := NewCache()
	values := []*Artwork{
		{Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), URL: "a"},
		{Image: image.NewRGBA(image.Rect(0, 0, 2, 2)), URL: "b"},
	}

	var wg sync.WaitGroup
	for _, v := range values {
		wg.Add(1)
		go func(v *Artwork) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Write(v)
			}
		}(v)
	}
	for i := 0; i < 2000; i++ {
		got := c.Read()
		if got != nil && got != values[0] && got != values[1] {
			t.Fatalf("Read returned unknown value %v", got)
		}
	}
	wg.Wait()
}

func TestDecode(t *testing.T) {
	img, err := Decode(solidPNG(t, color.RGBA{R: 255, A: 255}, 4, 3))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("bounds = %v, want 4x3", b)
	}

	if _, err := Decode([]byte("definitely not an image")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("Decode garbage error = %v, want ErrUnsupportedImage", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("Decode nil error = %v, want ErrUnsupportedImage", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placeholder.png")
	if err := os.WriteFile(path, solidPNG(t, color.White, 2, 2), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if a.URL != path || a.Image == nil {
		t.Fatalf("LoadFile = %+v", a)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatalf("LoadFile returned nil error for missing file")
	}
}

func TestScale(t *testing.T) {
	src, err := Decode(solidPNG(t, color.RGBA{G: 200, A: 255}, 10, 10))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	dst := Scale(src, 4, 6)
	if b := dst.Bounds(); b.Dx() != 4 || b.Dy() != 6 {
		t.Fatalf("bounds = %v, want 4x6", b)
	}
	r, g, b, a := dst.At(2, 3).RGBA()
	if r>>8 > 1 || g>>8 < 199 || g>>8 > 201 || b>>8 > 1 || a>>8 < 254 {
		t.Fatalf("pixel = %d,%d,%d,%d, want about 0,200,0,255", r>>8, g>>8, b>>8, a>>8)
	}

	if empty := Scale(nil, 0, 0); empty.Bounds().Dx() != 1 {
		t.Fatalf("Scale(nil) bounds = %v, want 1x1", empty.Bounds())
	}
}
