// Package imaging is the image codec used by retouch: decoding and encoding
// raster files, lossless snapshot encoding, and the geometric and color
// transforms applied by edit actions.
//
// Every transform is pure: it returns a new image and never mutates its input.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // decode-only
)

// ErrUnsupportedFormat is returned when a file extension has no encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Open decodes the image file at path, applying EXIF orientation.
func Open(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes an image in any registered format
// (png, jpeg, gif, bmp, tiff, webp).
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// EncodeSnapshot serializes img losslessly (PNG) for a restoration point.
func EncodeSnapshot(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, errors.New("encode snapshot: nil image")
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot restores an image written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("decode snapshot: empty data")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return img, nil
}

// EncodeFor writes img to w in the format implied by filename's extension.
// JPEG output uses quality 95.
func EncodeFor(w io.Writer, img image.Image, filename string) error {
	format, err := FormatFor(filename)
	if err != nil {
		return err
	}
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

var readableExts = []string{".bmp", ".gif", ".jpeg", ".jpg", ".png", ".tif", ".tiff", ".webp"}

// IsImageFile reports whether name has an extension Decode understands.
func IsImageFile(name string) bool {
	return slices.Contains(readableExts, strings.ToLower(filepath.Ext(name)))
}

// FormatFor maps a file name to an encodable format.
func FormatFor(filename string) (imaging.Format, error) {
	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		ext := strings.ToLower(filepath.Ext(filename))
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return format, nil
}
