package action

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/roach88/retouch/internal/imaging"
)

// SnapshotSource loads the bitmap stored for a restoration point.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, pointID int64) (image.Image, error)
}

// Catalog applies payloads to bitmaps.
type Catalog struct {
	snapshots SnapshotSource
}

// NewCatalog returns a catalog that resolves restore_point actions through src.
// src may be nil when restore_point actions are never applied.
func NewCatalog(src SnapshotSource) *Catalog {
	return &Catalog{snapshots: src}
}

// Apply runs p against img and returns the resulting bitmap.
// Payloads outside the closed set fail with ErrUnknownAction.
func (c *Catalog) Apply(ctx context.Context, img image.Image, p Payload) (image.Image, error) {
	if p == nil {
		return nil, fmt.Errorf("apply: %w: nil payload", ErrUnknownAction)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("apply %s: %w", p.Type(), err)
	}
	if _, ok := p.(RestorePoint); !ok && img == nil {
		return nil, fmt.Errorf("apply %s: no bitmap", p.Type())
	}

	var (
		out image.Image
		err error
	)
	switch p := p.(type) {
	case Filter:
		out, err = imaging.ApplyFilter(img, p.Name, p.params())
	case Crop:
		out, err = imaging.Crop(img, p.X, p.Y, p.Width, p.Height)
	case Resize:
		out, err = imaging.Resize(img, p.Width, p.Height, p.KeepAspect)
	case Rotate:
		out, err = imaging.Rotate(img, p.Angle, p.Expand)
	case Flip:
		out, err = imaging.Flip(img, p.Direction)
	case RestorePoint:
		if c.snapshots == nil {
			return nil, errors.New("apply restore_point: no snapshot source")
		}
		out, err = c.snapshots.LoadSnapshot(ctx, p.PointID)
	default:
		return nil, fmt.Errorf("apply: %w: %T", ErrUnknownAction, p)
	}
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", p.Type(), err)
	}
	return out, nil
}
