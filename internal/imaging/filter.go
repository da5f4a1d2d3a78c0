package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/disintegration/imaging"
)

// Filter names.
const (
	FilterBrightness = "brightness"
	FilterContrast   = "contrast"
	FilterSaturation = "saturation"
	FilterSharpness  = "sharpness"
	FilterGrayscale  = "grayscale"
	FilterSepia      = "sepia"
	FilterNegative   = "negative"
	FilterPixelate   = "pixelate"
	FilterVintage    = "vintage"
	FilterBlur       = "blur"
)

// DefaultVintageSigma is the blur radius of the vintage filter.
const DefaultVintageSigma = 2.0

// MaxSigma bounds the Gaussian radius of blur and vintage. The kernel grows
// with 3*sigma, so unbounded values exhaust memory.
const MaxSigma = 1000.0

// FilterParams carries the tunables of a filter. Fields irrelevant to a
// filter are ignored.
type FilterParams struct {
	// Factor is an enhancement factor: 1 leaves the image unchanged,
	// 0 yields the degenerate image (black, flat gray, grayscale or smoothed).
	Factor float64

	// PixelSize is the block edge for pixelate.
	PixelSize int

	// Sigma is the Gaussian radius for blur and vintage.
	Sigma float64
}

// FilterNames lists every supported filter, sorted.
func FilterNames() []string {
	names := []string{
		FilterBrightness, FilterContrast, FilterSaturation, FilterSharpness,
		FilterGrayscale, FilterSepia, FilterNegative, FilterPixelate,
		FilterVintage, FilterBlur,
	}
	slices.Sort(names)
	return names
}

// ValidateFilter reports whether name and params describe an applicable filter.
func ValidateFilter(name string, p FilterParams) error {
	switch name {
	case FilterBrightness, FilterContrast, FilterSaturation, FilterSharpness:
		if !finite(p.Factor) || p.Factor < 0 {
			return fmt.Errorf("filter %s: factor must be a non-negative number, got %v", name, p.Factor)
		}
	case FilterPixelate:
		if p.PixelSize < 1 {
			return fmt.Errorf("filter %s: pixel size must be at least 1, got %d", name, p.PixelSize)
		}
	case FilterBlur:
		if !finite(p.Sigma) || p.Sigma <= 0 || p.Sigma > MaxSigma {
			return fmt.Errorf("filter %s: sigma must be in (0, %v], got %v", name, MaxSigma, p.Sigma)
		}
	case FilterVintage:
		// Zero selects DefaultVintageSigma.
		if !finite(p.Sigma) || p.Sigma < 0 || p.Sigma > MaxSigma {
			return fmt.Errorf("filter %s: sigma must be in [0, %v], got %v", name, MaxSigma, p.Sigma)
		}
	case FilterGrayscale, FilterSepia, FilterNegative:
	default:
		return fmt.Errorf("unknown filter %q", name)
	}
	return nil
}

// ApplyFilter runs the named filter over img.
func ApplyFilter(img image.Image, name string, p FilterParams) (image.Image, error) {
	if err := ValidateFilter(name, p); err != nil {
		return nil, err
	}
	switch name {
	case FilterBrightness:
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clamp8(float64(c.R) * p.Factor),
				G: clamp8(float64(c.G) * p.Factor),
				B: clamp8(float64(c.B) * p.Factor),
				A: c.A,
			}
		}), nil
	case FilterContrast:
		mean := meanLuma(img)
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			return color.NRGBA{
				R: clamp8(mean + p.Factor*(float64(c.R)-mean)),
				G: clamp8(mean + p.Factor*(float64(c.G)-mean)),
				B: clamp8(mean + p.Factor*(float64(c.B)-mean)),
				A: c.A,
			}
		}), nil
	case FilterSaturation:
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			l := luma(c)
			return color.NRGBA{
				R: clamp8(l + p.Factor*(float64(c.R)-l)),
				G: clamp8(l + p.Factor*(float64(c.G)-l)),
				B: clamp8(l + p.Factor*(float64(c.B)-l)),
				A: c.A,
			}
		}), nil
	case FilterSharpness:
		smooth := imaging.Convolve3x3(img, [9]float64{
			1, 1, 1,
			1, 5, 1,
			1, 1, 1,
		}, &imaging.ConvolveOptions{Normalize: true})
		return blend(smooth, imaging.Clone(img), p.Factor), nil
	case FilterGrayscale:
		return imaging.Grayscale(img), nil
	case FilterSepia:
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			r, g, b := float64(c.R), float64(c.G), float64(c.B)
			return color.NRGBA{
				R: clamp8(math.Floor(0.393*r + 0.769*g + 0.189*b)),
				G: clamp8(math.Floor(0.349*r + 0.686*g + 0.168*b)),
				B: clamp8(math.Floor(0.272*r + 0.534*g + 0.131*b)),
				A: c.A,
			}
		}), nil
	case FilterNegative:
		return imaging.Invert(img), nil
	case FilterPixelate:
		return pixelate(img, p.PixelSize), nil
	case FilterVintage:
		sigma := p.Sigma
		if sigma <= 0 {
			sigma = DefaultVintageSigma
		}
		return imaging.Blur(img, sigma), nil
	case FilterBlur:
		return imaging.Blur(img, p.Sigma), nil
	}
	return nil, fmt.Errorf("unknown filter %q", name)
}

func pixelate(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := max(b.Dx()/size, 1), max(b.Dy()/size, 1)
	small := imaging.Resize(img, w, h, imaging.Linear)
	return imaging.Resize(small, b.Dx(), b.Dy(), imaging.NearestNeighbor)
}

// blend computes a + f*(b-a) per color channel, keeping b's alpha.
// a and b must share dimensions.
func blend(a, b *image.NRGBA, f float64) *image.NRGBA {
	out := image.NewNRGBA(b.Rect)
	for i := 0; i+3 < len(b.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			av, bv := float64(a.Pix[i+c]), float64(b.Pix[i+c])
			out.Pix[i+c] = clamp8(av + f*(bv-av))
		}
		out.Pix[i+3] = b.Pix[i+3]
	}
	return out
}

func meanLuma(img image.Image) float64 {
	src := imaging.Clone(img)
	n := len(src.Pix) / 4
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+3 < len(src.Pix); i += 4 {
		sum += luma(color.NRGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2]})
	}
	return math.Floor(sum/float64(n) + 0.5)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func luma(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
