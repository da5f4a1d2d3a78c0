package imaging

import (
	"cmp"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/ericpauley/go-quantize/quantize"
)

// DefaultQuantizeColors is the palette size used when a caller asks for
// quantization without a size.
const DefaultQuantizeColors = 32

// MaxQuantizeColors is the largest palette Quantize produces.
const MaxQuantizeColors = 256

// ColorCount is one opaque RGB color and how much of the image it covers.
type ColorCount struct {
	Color   color.NRGBA
	Count   int
	Percent float64
}

// Cluster groups colors closer than a threshold to its first member.
type Cluster struct {
	Colors  []ColorCount
	Percent float64
}

// Hex formats c as #rrggbb. Alpha is ignored.
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ColorFrequency counts the RGB colors of img, most frequent first.
// Alpha is dropped before counting. Ties are ordered by hex value.
// limit <= 0 returns every color.
func ColorFrequency(img image.Image, limit int) []ColorCount {
	src := imaging.Clone(img)
	total := len(src.Pix) / 4
	if total == 0 {
		return nil
	}
	counts := make(map[color.NRGBA]int)
	for i := 0; i+3 < len(src.Pix); i += 4 {
		counts[color.NRGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2], A: 0xff}]++
	}
	out := make([]ColorCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, ColorCount{Color: c, Count: n, Percent: float64(n) / float64(total) * 100})
	}
	slices.SortFunc(out, func(a, b ColorCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(Hex(a.Color), Hex(b.Color))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortByHue orders colors by hue, then saturation, then value.
func SortByHue(colors []ColorCount) {
	slices.SortStableFunc(colors, func(a, b ColorCount) int {
		ha, sa, va := hsv(a.Color)
		hb, sb, vb := hsv(b.Color)
		if c := cmp.Compare(ha, hb); c != 0 {
			return c
		}
		if c := cmp.Compare(sa, sb); c != 0 {
			return c
		}
		return cmp.Compare(va, vb)
	})
}

// Quantize reduces img to at most n colors with a median cut palette.
func Quantize(img image.Image, n int) (image.Image, error) {
	if n < 1 || n > MaxQuantizeColors {
		return nil, fmt.Errorf("quantize: color count must be in [1, %d], got %d", MaxQuantizeColors, n)
	}
	src := imaging.Clone(img)
	opaque := imaging.New(src.Rect.Dx(), src.Rect.Dy(), color.White)
	opaque = imaging.Overlay(opaque, src, image.Pt(0, 0), 1)

	q := quantize.MedianCutQuantizer{}
	palette := q.Quantize(make(color.Palette, 0, n), opaque)
	if len(palette) == 0 {
		return opaque, nil
	}
	paletted := image.NewPaletted(opaque.Rect, palette)
	draw.Draw(paletted, paletted.Rect, opaque, opaque.Rect.Min, draw.Src)
	return imaging.Clone(paletted), nil
}

// ClusterColors groups colors whose Euclidean RGB distance to a cluster's
// seed is below threshold. Seeds are taken in input order, so pass colors
// most frequent first. Clusters are ordered by total coverage.
func ClusterColors(colors []ColorCount, threshold float64) []Cluster {
	taken := make([]bool, len(colors))
	var clusters []Cluster
	for i, seed := range colors {
		if taken[i] {
			continue
		}
		taken[i] = true
		cl := Cluster{Colors: []ColorCount{seed}, Percent: seed.Percent}
		for j := i + 1; j < len(colors); j++ {
			if taken[j] || distance(seed.Color, colors[j].Color) >= threshold {
				continue
			}
			taken[j] = true
			cl.Colors = append(cl.Colors, colors[j])
			cl.Percent += colors[j].Percent
		}
		slices.SortStableFunc(cl.Colors, func(a, b ColorCount) int { return cmp.Compare(b.Count, a.Count) })
		clusters = append(clusters, cl)
	}
	slices.SortStableFunc(clusters, func(a, b Cluster) int { return cmp.Compare(b.Percent, a.Percent) })
	return clusters
}

func distance(a, b color.NRGBA) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// hsv returns hue in degrees [0, 360) plus saturation and value in [0, 1].
func hsv(c color.NRGBA) (h, s, v float64) {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	hi, lo := max(r, g, b), min(r, g, b)
	d := hi - lo
	switch {
	case d == 0:
		h = 0
	case hi == r:
		h = 60 * math.Mod((g-b)/d+6, 6)
	case hi == g:
		h = 60 * ((b-r)/d + 2)
	default:
		h = 60 * ((r-g)/d + 4)
	}
	if hi > 0 {
		s = d / hi
	}
	return h, s, hi
}
