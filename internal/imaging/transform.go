package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Flip directions.
const (
	FlipHorizontal = "horizontal"
	FlipVertical   = "vertical"
)

// Output limits for transforms that allocate a new canvas.
const (
	MaxDimension = 16384
	MaxPixels    = 64 << 20
)

// CheckDimensions reports whether a width x height canvas may be allocated.
func CheckDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("width and height must be positive, got %dx%d", width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%dx%d exceeds the %d pixel side limit", width, height, MaxDimension)
	}
	if int64(width)*int64(height) > MaxPixels {
		return fmt.Errorf("%dx%d exceeds the %d pixel area limit", width, height, MaxPixels)
	}
	return nil
}

// Rotate turns img counter-clockwise by angle degrees.
// With expand the canvas grows to hold the whole result; otherwise the
// result keeps the original size, centered.
// Uncovered areas are transparent. Multiples of 90 degrees are lossless.
func Rotate(img image.Image, angle float64, expand bool) (image.Image, error) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return nil, fmt.Errorf("rotate: invalid angle %v", angle)
	}
	b := img.Bounds()
	if expand {
		rad := angle * math.Pi / 180
		sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
		w := int(math.Ceil(float64(b.Dx())*cos + float64(b.Dy())*sin))
		h := int(math.Ceil(float64(b.Dx())*sin + float64(b.Dy())*cos))
		if err := CheckDimensions(max(w, 1), max(h, 1)); err != nil {
			return nil, fmt.Errorf("rotate: %w", err)
		}
	}
	out := imaging.Rotate(img, angle, color.Transparent)
	if expand {
		return out, nil
	}
	canvas := imaging.New(b.Dx(), b.Dy(), color.Transparent)
	return imaging.PasteCenter(canvas, out), nil
}

// Crop cuts the rectangle (x, y, width, height), given relative to the
// image's top-left corner. The rectangle is clipped to the image; an empty
// intersection is an error.
func Crop(img image.Image, x, y, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("crop: width and height must be positive, got %dx%d", width, height)
	}
	b := img.Bounds()
	rect := image.Rect(x, y, x+width, y+height).Add(b.Min)
	if rect.Intersect(b).Empty() {
		return nil, fmt.Errorf("crop: rectangle %v lies outside image bounds %v", rect, b)
	}
	return imaging.Crop(img, rect), nil
}

// Resize scales img to width x height with a Lanczos filter.
// With keepAspect the image is fitted inside the box, never upscaled
// (thumbnail semantics).
func Resize(img image.Image, width, height int, keepAspect bool) (image.Image, error) {
	if err := CheckDimensions(width, height); err != nil {
		return nil, fmt.Errorf("resize: %w", err)
	}
	if keepAspect {
		return imaging.Fit(img, width, height, imaging.Lanczos), nil
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// Flip mirrors img horizontally or vertically.
func Flip(img image.Image, direction string) (image.Image, error) {
	switch direction {
	case FlipHorizontal:
		return imaging.FlipH(img), nil
	case FlipVertical:
		return imaging.FlipV(img), nil
	default:
		return nil, fmt.Errorf("flip: unknown direction %q", direction)
	}
}

// Thumbnail returns a copy of img fitted inside size x size.
func Thumbnail(img image.Image, size int) (image.Image, error) {
	if size <= 0 {
		return nil, errors.New("thumbnail: size must be positive")
	}
	return imaging.Fit(img, size, size, imaging.Lanczos), nil
}
