// Package imaging turns uploads into bounded JPEGs for inline storage and
// serves cached thumbnails of stored pictures.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"wunschliste/internal/cache"
	"wunschliste/internal/core"
)

const (
	minDimension   = 64
	minQuality     = 40
	startQuality   = 85
	qualityStep    = 10
	shrinkPercent  = 75
	mimeJPEG       = "image/jpeg"
	DefaultThumbPx = 150
)

var (
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrImageTooLarge    = errors.New("image cannot be compressed below the size limit")
)

// Processor compresses uploads and renders thumbnails.
type Processor struct {
	maxBytes     int
	maxDimension int
	thumbs       *cache.LRUCache[[]byte]
	group        singleflight.Group
}

// NewProcessor bounds compressed images by maxBytes and by maxDimension
// pixels on the longer side. thumbs may be nil to disable caching.
func NewProcessor(maxBytes, maxDimension int, thumbs *cache.LRUCache[[]byte]) *Processor {
	return &Processor{maxBytes: maxBytes, maxDimension: maxDimension, thumbs: thumbs}
}

// Compress decodes a JPEG, PNG, GIF or WebP upload and re-encodes it as a
// JPEG no larger than the configured limits.
func (p *Processor) Compress(data []byte) (core.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return core.Image{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	b := src.Bounds()
	dim := min(p.maxDimension, max(b.Dx(), b.Dy()))
	for {
		scaled := flatten(fit(src, dim))
		for q := startQuality; q >= minQuality; q -= qualityStep {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: q}); err != nil {
				return core.Image{}, fmt.Errorf("encode jpeg: %w", err)
			}
			if buf.Len() <= p.maxBytes {
				return core.NewImage(buf.Bytes(), mimeJPEG), nil
			}
		}
		if dim <= minDimension {
			return core.Image{}, ErrImageTooLarge
		}
		dim = max(dim*shrinkPercent/100, minDimension)
	}
}

// Thumbnail returns a JPEG of img no larger than size pixels. Results are
// cached under key; concurrent requests for the same key decode once.
func (p *Processor) Thumbnail(key string, img core.Image, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultThumbPx
	}
	cacheKey := fmt.Sprintf("%s@%d", key, size)
	if p.thumbs != nil {
		if b, ok := p.thumbs.Get(cacheKey); ok {
			return b, nil
		}
	}

	v, err, _ := p.group.Do(cacheKey, func() (any, error) {
		raw, err := img.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode stored image: %w", err)
		}
		src, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, flatten(fit(src, size)), &jpeg.Options{Quality: 75}); err != nil {
			return nil, fmt.Errorf("encode thumbnail: %w", err)
		}
		b := buf.Bytes()
		if p.thumbs != nil {
			p.thumbs.Set(cacheKey, b)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Forget drops cached thumbnails whose key starts with prefix.
func (p *Processor) Forget(prefix string) {
	if p.thumbs != nil {
		p.thumbs.DeletePrefix(prefix)
	}
}

// fit scales src down so its longer side is at most limit. Smaller images
// are returned as they are.
func fit(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return src
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// flatten paints src onto white; JPEG has no alpha channel.
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}
