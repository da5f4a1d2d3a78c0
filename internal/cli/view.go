package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/retouch/internal/store"
)

// ViewportFlags are the viewport settings a command may update.
type ViewportFlags struct {
	Zoom    float64
	ScrollX float64
	ScrollY float64
	FitMode string
}

func (f *ViewportFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.Zoom, "zoom", 1, "zoom factor")
	cmd.Flags().Float64Var(&f.ScrollX, "scroll-x", 0, "horizontal scroll offset")
	cmd.Flags().Float64Var(&f.ScrollY, "scroll-y", 0, "vertical scroll offset")
	cmd.Flags().StringVar(&f.FitMode, "fit", "", "fit mode (fit|width|height)")
}

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	*RootOptions
	ViewportFlags
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "view <image>",
		Short: "Show or update an image's saved viewport",
		Long: `Print the zoom, scroll offsets and fit mode saved for the image, or
update them with flags. A document without a fit mode uses the last fit
mode chosen for any image; setting --fit also remembers it for others.

Examples:
  retouch view photo.png
  retouch view photo.png --zoom 2 --scroll-x 120 --fit width`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, cmd, args[0])
		},
	}
	opts.register(cmd)
	return cmd
}

func runView(opts *ViewOptions, cmd *cobra.Command, image string) error {
	a, ctx, err := newApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.ensureDocument(ctx, image)
	if err != nil {
		return err
	}
	v, err := a.updateViewport(ctx, cmd, &opts.ViewportFlags, id)
	if err != nil {
		return err
	}
	return output(opts.RootOptions, cmd).Success(v, func(w io.Writer) error {
		return renderViewState(w, v)
	})
}

// updateViewport saves the viewport flags set on cmd for document id and
// returns the resulting view state. An unset fit mode falls back to the
// last one chosen for any image.
func (a *app) updateViewport(ctx context.Context, cmd *cobra.Command, f *ViewportFlags, id string) (ViewStateView, error) {
	vs, err := a.store.LoadViewState(ctx, id)
	if err != nil {
		return ViewStateView{}, WrapExitError(ExitCommandError, "failed to load view state", err)
	}
	prefs, err := store.LoadPreferences(ctx, a.store.Queries, a.now)
	if err != nil {
		return ViewStateView{}, WrapExitError(ExitCommandError, "failed to load preferences", err)
	}

	flags := cmd.Flags()
	if flags.Changed("zoom") {
		vs.Zoom = f.Zoom
	}
	if flags.Changed("scroll-x") {
		vs.ScrollX = f.ScrollX
	}
	if flags.Changed("scroll-y") {
		vs.ScrollY = f.ScrollY
	}
	fitChanged := flags.Changed("fit")
	if fitChanged {
		if f.FitMode == "" || !store.ValidFitMode(f.FitMode) {
			return ViewStateView{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid fit mode %q: must be one of fit, width, height", f.FitMode))
		}
		vs.FitMode = f.FitMode
	}
	if flags.Changed("zoom") || flags.Changed("scroll-x") || flags.Changed("scroll-y") || fitChanged {
		if err := a.store.SaveViewState(ctx, id, vs); err != nil {
			return ViewStateView{}, WrapExitError(ExitCommandError, "failed to save view state", err)
		}
	}
	if fitChanged {
		if err := prefs.Set(ctx, store.PrefLastFitMode, vs.FitMode); err != nil {
			return ViewStateView{}, WrapExitError(ExitCommandError, "failed to remember fit mode", err)
		}
	}
	if vs.FitMode == "" {
		vs.FitMode = prefs.Get(store.PrefLastFitMode, store.FitModeFit)
	}
	return newViewStateView(id, vs), nil
}

func newViewStateView(id string, vs store.ViewState) ViewStateView {
	return ViewStateView{
		Document:   id,
		Zoom:       vs.Zoom,
		ScrollX:    vs.ScrollX,
		ScrollY:    vs.ScrollY,
		FitMode:    vs.FitMode,
		Favorite:   vs.Favorite,
		LastOpened: vs.LastOpened,
	}
}

// FavoriteView reports a favorite toggle.
type FavoriteView struct {
	Document string `json:"document"`
	Favorite bool   `json:"favorite"`
}

// NewFavoriteCommand creates the favorite command.
func NewFavoriteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "favorite <image>",
		Short:         "Toggle an image's favorite flag",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.ensureDocument(ctx, args[0])
			if err != nil {
				return err
			}
			fav, err := a.store.ToggleFavorite(ctx, id)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to toggle favorite", err)
			}
			v := FavoriteView{Document: id, Favorite: fav}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Favorite: %s\n", yesNo(v.Favorite))
				return err
			})
		},
	}
}

// ForgetView reports a deleted document.
type ForgetView struct {
	Document string `json:"document"`
	Deleted  bool   `json:"deleted"`
}

// NewForgetCommand creates the forget command.
func NewForgetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <image>",
		Short: "Delete everything recorded about an image",
		Long: `Delete the image's document record together with its history,
restoration points and view state. The image file is not touched.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := identifierFor(args[0])
			if err != nil {
				return err
			}
			deleted, err := a.store.DeleteDocument(ctx, id)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to delete document", err)
			}
			if !deleted {
				return NewExitError(ExitFailure, fmt.Sprintf("unknown document %s", id))
			}
			v := ForgetView{Document: id, Deleted: true}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Forgot %s\n", v.Document)
				return err
			})
		},
	}
}

// ensureDocument returns the identifier of image, registering it without
// decoding the file.
func (a *app) ensureDocument(ctx context.Context, image string) (string, error) {
	id, err := identifierFor(image)
	if err != nil {
		return "", err
	}
	doc, err := a.store.EnsureDocument(ctx, id, a.now())
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to register document", err)
	}
	return doc.Identifier, nil
}
