package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/retouch/internal/imaging"
)

// ColorsOptions holds flags for the colors command.
type ColorsOptions struct {
	*RootOptions
	Max      int
	Quantize int
	Cluster  float64
	ByHue    bool
}

// ColorView is one color of an image.
type ColorView struct {
	Hex     string  `json:"hex"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// ClusterView is a group of similar colors.
type ClusterView struct {
	Percent float64     `json:"percent"`
	Colors  []ColorView `json:"colors"`
}

// ColorsView reports the color analysis of an image.
type ColorsView struct {
	Path      string        `json:"path"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Quantized int           `json:"quantized,omitempty"`
	Colors    []ColorView   `json:"colors"`
	Clusters  []ClusterView `json:"clusters,omitempty"`
}

// NewColorsCommand creates the colors command.
func NewColorsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ColorsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "colors <image>",
		Short: "Analyze the colors of an image",
		Long: `List the image's colors, most frequent first, with the share of pixels
each covers. The image file and its history are not modified.

--quantize reduces the image to that many colors first, --cluster groups
colors closer than the given RGB distance, and --by-hue orders the list by
hue instead of frequency.

Examples:
  retouch colors sprite.png
  retouch colors photo.jpg --quantize 32 --max 16 --cluster 24`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColors(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Max, "max", 100, "maximum number of colors to list (0 for all)")
	cmd.Flags().IntVar(&opts.Quantize, "quantize", 0, fmt.Sprintf("reduce to this many colors first (1-%d, 0 to skip)", imaging.MaxQuantizeColors))
	cmd.Flags().Float64Var(&opts.Cluster, "cluster", 0, "group colors closer than this RGB distance (0 to skip)")
	cmd.Flags().BoolVar(&opts.ByHue, "by-hue", false, "order colors by hue")

	return cmd
}

func runColors(opts *ColorsOptions, cmd *cobra.Command, path string) error {
	if opts.Max < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --max %d: must not be negative", opts.Max))
	}
	if opts.Cluster < 0 || opts.Cluster > 442 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --cluster %v: must be in [0, 442]", opts.Cluster))
	}
	img, err := imaging.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load image", err)
	}
	if opts.Quantize != 0 {
		if img, err = imaging.Quantize(img, opts.Quantize); err != nil {
			return WrapExitError(ExitCommandError, "failed to quantize image", err)
		}
	}

	colors := imaging.ColorFrequency(img, opts.Max)
	b := img.Bounds()
	v := ColorsView{Path: path, Width: b.Dx(), Height: b.Dy(), Quantized: opts.Quantize}
	if opts.Cluster > 0 {
		for _, cl := range imaging.ClusterColors(colors, opts.Cluster) {
			v.Clusters = append(v.Clusters, ClusterView{Percent: cl.Percent, Colors: newColorViews(cl.Colors)})
		}
	}
	if opts.ByHue {
		imaging.SortByHue(colors)
	}
	v.Colors = newColorViews(colors)

	return output(opts.RootOptions, cmd).Success(v, func(w io.Writer) error {
		return renderColors(w, v)
	})
}

func newColorViews(cs []imaging.ColorCount) []ColorView {
	out := make([]ColorView, len(cs))
	for i, c := range cs {
		out[i] = ColorView{Hex: imaging.Hex(c.Color), Count: c.Count, Percent: c.Percent}
	}
	return out
}

func renderColors(w io.Writer, v ColorsView) error {
	fmt.Fprintf(w, "Image: %s (%dx%d)\n", v.Path, v.Width, v.Height)
	if v.Quantized > 0 {
		fmt.Fprintf(w, "Quantized to %d colors\n", v.Quantized)
	}
	fmt.Fprintf(w, "\nColors: %d\n", len(v.Colors))
	for _, c := range v.Colors {
		fmt.Fprintf(w, "  %s  %6.2f%%  %d\n", c.Hex, c.Percent, c.Count)
	}
	for i, cl := range v.Clusters {
		fmt.Fprintf(w, "\nCluster %d: %.2f%%\n", i+1, cl.Percent)
		for _, c := range cl.Colors {
			fmt.Fprintf(w, "  %s  %6.2f%%\n", c.Hex, c.Percent)
		}
	}
	return nil
}
