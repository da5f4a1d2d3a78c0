package action

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/retouch/internal/imaging"
)

// Type tags an action in the history log.
type Type string

const (
	TypeFilter       Type = "filter"
	TypeCrop         Type = "crop"
	TypeResize       Type = "resize"
	TypeRotate       Type = "rotate"
	TypeFlip         Type = "flip"
	TypeRestorePoint Type = "restore_point"
)

var (
	// ErrUnknownAction is returned for a tag or payload outside the closed set.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrInvalidPayload is returned when a payload fails validation.
	ErrInvalidPayload = errors.New("invalid action payload")
)

// Types returns every action type in declaration order.
func Types() []Type {
	return []Type{TypeFilter, TypeCrop, TypeResize, TypeRotate, TypeFlip, TypeRestorePoint}
}

// ParseType maps a stored tag to a Type.
func ParseType(s string) (Type, error) {
	for _, t := range Types() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Payload is the typed parameter set of one action.
// It is implemented only by the payload types in this package.
type Payload interface {
	Type() Type
	Validate() error
	Describe() string
	sealed()
}

// Filter applies a named color or effect filter.
type Filter struct {
	Name      string  `json:"name" mapstructure:"name"`
	Factor    float64 `json:"factor,omitempty" mapstructure:"factor"`
	PixelSize int     `json:"pixel_size,omitempty" mapstructure:"pixel_size"`
	Sigma     float64 `json:"sigma,omitempty" mapstructure:"sigma"`
}

// Crop keeps the rectangle at (X, Y) of Width x Height.
type Crop struct {
	X      int `json:"x" mapstructure:"x"`
	Y      int `json:"y" mapstructure:"y"`
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// Resize scales to Width x Height, or fits inside it with KeepAspect.
type Resize struct {
	Width      int  `json:"width" mapstructure:"width"`
	Height     int  `json:"height" mapstructure:"height"`
	KeepAspect bool `json:"keep_aspect,omitempty" mapstructure:"keep_aspect"`
}

// Rotate turns the image counter-clockwise by Angle degrees.
type Rotate struct {
	Angle  float64 `json:"angle" mapstructure:"angle"`
	Expand bool    `json:"expand,omitempty" mapstructure:"expand"`
}

// Flip mirrors the image.
type Flip struct {
	Direction string `json:"direction" mapstructure:"direction"`
}

// RestorePoint marks a restoration point in the log. Replaying it loads the
// referenced snapshot. Restored is set when the entry records a jump back to
// an existing point rather than the capture of a new one.
type RestorePoint struct {
	Name     string `json:"name" mapstructure:"name"`
	PointID  int64  `json:"point_id" mapstructure:"point_id"`
	Restored bool   `json:"restored,omitempty" mapstructure:"restored"`
}

func (Filter) Type() Type       { return TypeFilter }
func (Crop) Type() Type         { return TypeCrop }
func (Resize) Type() Type       { return TypeResize }
func (Rotate) Type() Type       { return TypeRotate }
func (Flip) Type() Type         { return TypeFlip }
func (RestorePoint) Type() Type { return TypeRestorePoint }

func (Filter) sealed()       {}
func (Crop) sealed()         {}
func (Resize) sealed()       {}
func (Rotate) sealed()       {}
func (Flip) sealed()         {}
func (RestorePoint) sealed() {}

func (f Filter) params() imaging.FilterParams {
	return imaging.FilterParams{Factor: f.Factor, PixelSize: f.PixelSize, Sigma: f.Sigma}
}

func (f Filter) Validate() error {
	if err := imaging.ValidateFilter(f.Name, f.params()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (c Crop) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: crop needs positive width and height, got %dx%d", ErrInvalidPayload, c.Width, c.Height)
	}
	if c.X < 0 || c.Y < 0 {
		return fmt.Errorf("%w: crop origin must not be negative, got (%d,%d)", ErrInvalidPayload, c.X, c.Y)
	}
	if max(c.X, c.Y, c.Width, c.Height) > imaging.MaxDimension {
		return fmt.Errorf("%w: crop rectangle exceeds %d pixels per side", ErrInvalidPayload, imaging.MaxDimension)
	}
	return nil
}

func (r Resize) Validate() error {
	if err := imaging.CheckDimensions(r.Width, r.Height); err != nil {
		return fmt.Errorf("%w: resize: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (r Rotate) Validate() error {
	if math.IsNaN(r.Angle) || math.IsInf(r.Angle, 0) {
		return fmt.Errorf("%w: rotate angle must be finite", ErrInvalidPayload)
	}
	return nil
}

func (f Flip) Validate() error {
	switch f.Direction {
	case imaging.FlipHorizontal, imaging.FlipVertical:
		return nil
	default:
		return fmt.Errorf("%w: flip direction must be %q or %q, got %q",
			ErrInvalidPayload, imaging.FlipHorizontal, imaging.FlipVertical, f.Direction)
	}
}

func (r RestorePoint) Validate() error {
	if r.PointID <= 0 {
		return fmt.Errorf("%w: restore_point needs a point_id", ErrInvalidPayload)
	}
	return nil
}

func (f Filter) Describe() string {
	switch f.Name {
	case imaging.FilterBrightness, imaging.FilterContrast, imaging.FilterSaturation, imaging.FilterSharpness:
		return fmt.Sprintf("Filter: %s x%s", f.Name, formatFloat(f.Factor))
	case imaging.FilterPixelate:
		return fmt.Sprintf("Filter: pixelate %dpx", f.PixelSize)
	case imaging.FilterBlur:
		return fmt.Sprintf("Filter: blur %s", formatFloat(f.Sigma))
	default:
		return "Filter: " + f.Name
	}
}

func (c Crop) Describe() string {
	return fmt.Sprintf("Crop %dx%d at (%d,%d)", c.Width, c.Height, c.X, c.Y)
}

func (r Resize) Describe() string {
	if r.KeepAspect {
		return fmt.Sprintf("Resize to fit %dx%d", r.Width, r.Height)
	}
	return fmt.Sprintf("Resize to %dx%d", r.Width, r.Height)
}

func (r Rotate) Describe() string {
	return fmt.Sprintf("Rotate %s°", formatFloat(r.Angle))
}

func (f Flip) Describe() string {
	return "Flip " + f.Direction
}

func (r RestorePoint) Describe() string {
	if r.Restored {
		return "Restored to: " + r.Name
	}
	return "Restoration point: " + r.Name
}

func formatFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
