// Package imaging derives thumbnails from generated results.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxSize is the thumbnail bounding box edge in pixels.
const DefaultMaxSize = 400

var ErrEmptyImage = errors.New("imaging: empty image")

// Thumbnail decodes data and scales it proportionally to fit within
// maxSize x maxSize. Images already inside the box are not upscaled. The
// result is always PNG.
func Thumbnail(data []byte, maxSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	bounds := src.Bounds()
	w, h := Fit(bounds.Dx(), bounds.Dy(), maxSize)
	if w == 0 || h == 0 {
		return nil, ErrEmptyImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("imaging: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Fit returns the dimensions of a w x h image scaled to fit inside a square
// box, keeping the aspect ratio and never enlarging.
func Fit(w, h, box int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= box && h <= box {
		return w, h
	}
	if w >= h {
		return box, max(1, h*box/w)
	}
	return max(1, w*box/h), box
}
