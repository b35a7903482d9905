package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"wunschliste/internal/cache"
	"wunschliste/internal/core"
)

func pngOf(t *testing.T, w, h int, noisy bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r := rand.New(rand.NewPCG(1, 2))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: uint8(x), G: uint8(y), B: 120, A: 255}
			if noisy {
				c = color.NRGBA{R: uint8(r.IntN(256)), G: uint8(r.IntN(256)), B: uint8(r.IntN(256)), A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decodedBounds(t *testing.T, img core.Image) image.Rectangle {
	t.Helper()
	raw, err := img.Decode()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("not a jpeg: %v", err)
	}
	return image.Rect(0, 0, cfg.Width, cfg.Height)
}

func TestCompress_ScalesToMaxDimension(t *testing.T) {
	p := NewProcessor(300*1024, 200, nil)
	img, err := p.Compress(pngOf(t, 800, 400, false))
	if err != nil {
		t.Fatal(err)
	}
	if img.Type != "image/jpeg" {
		t.Errorf("Type = %q", img.Type)
	}
	if b := decodedBounds(t, img); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("bounds = %v, want 200x100", b)
	}
}

func TestCompress_KeepsSmallImages(t *testing.T) {
	p := NewProcessor(300*1024, 1280, nil)
	img, err := p.Compress(pngOf(t, 40, 30, false))
	if err != nil {
		t.Fatal(err)
	}
	if b := decodedBounds(t, img); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("bounds = %v, want 40x30", b)
	}
}

func TestCompress_RespectsByteLimit(t *testing.T) {
	const limit = 20 * 1024
	p := NewProcessor(limit, 1024, nil)
	img, err := p.Compress(pngOf(t, 600, 600, true))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := img.Decode()
	if len(raw) > limit {
		t.Errorf("compressed size %d exceeds %d", len(raw), limit)
	}
}

func TestCompress_RejectsGarbage(t *testing.T) {
	p := NewProcessor(1024, 100, nil)
	if _, err := p.Compress([]byte("not an image")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestThumbnail_CachesAndDeduplicates(t *testing.T) {
	thumbs := cache.NewByteLRUCache(10, 1<<20, time.Minute)
	p := NewProcessor(300*1024, 1280, thumbs)
	stored, err := p.Compress(pngOf(t, 400, 300, false))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Thumbnail("item-1/0", stored, 100); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if thumbs.Size() != 1 {
		t.Fatalf("expected one cached thumbnail, got %d", thumbs.Size())
	}

	b, err := p.Thumbnail("item-1/0", stored, 100)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(b))
	if err != nil || cfg.Width != 100 || cfg.Height != 75 {
		t.Fatalf("thumbnail %dx%d, %v", cfg.Width, cfg.Height, err)
	}

	p.Forget("item-1/")
	if thumbs.Size() != 0 {
		t.Error("Forget should drop the thumbnail")
	}
}

func TestThumbnail_BrokenStoredImage(t *testing.T) {
	p := NewProcessor(1024, 100, nil)
	if _, err := p.Thumbnail("k", core.Image{Data: "!!!", Type: "image/jpeg"}, 50); err == nil {
		t.Fatal("expected error for undecodable data")
	}
}
