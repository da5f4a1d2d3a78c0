package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/retouch/internal/session"
	"github.com/roach88/retouch/internal/store"
)

// BrowseView reports the image reached by next or prev.
type BrowseView struct {
	OpenView
	Index int           `json:"index"`
	Total int           `json:"total"`
	View  ViewStateView `json:"view"`
}

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	return newBrowseCommand(rootOpts, "next", "Open the next image in the folder", 1)
}

// NewPrevCommand creates the prev command.
func NewPrevCommand(rootOpts *RootOptions) *cobra.Command {
	return newBrowseCommand(rootOpts, "prev", "Open the previous image in the folder", -1)
}

func newBrowseCommand(rootOpts *RootOptions, name, short string, delta int) *cobra.Command {
	var viewport ViewportFlags
	cmd := &cobra.Command{
		Use:   name + " <image>",
		Short: short,
		Long: short + `, in file name order, and open it.

Viewport flags are saved for the current image before moving on, as view
would save them. The image reached is registered, its history attached and
its saved viewport printed.

Examples:
  retouch ` + name + ` photos/cat.png
  retouch ` + name + ` photos/cat.png --zoom 2 --fit width`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			target, index, total, err := session.Neighbor(args[0], delta)
			if errors.Is(err, session.ErrNoNeighbor) {
				edge := "last"
				if delta < 0 {
					edge = "first"
				}
				return NewExitError(ExitFailure, fmt.Sprintf("already at the %s image of %d", edge, total))
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list folder", err)
			}

			current, err := a.ensureDocument(ctx, args[0])
			if err != nil {
				return err
			}
			if _, err := a.updateViewport(ctx, cmd, &viewport, current); err != nil {
				return err
			}

			st, err := a.attach(ctx, target, true)
			if err != nil {
				return err
			}
			if err := a.store.TouchLastOpened(ctx, st.Document, a.now()); err != nil {
				return WrapExitError(ExitCommandError, "failed to record open", err)
			}
			vs, err := a.store.LoadViewState(ctx, st.Document)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load view state", err)
			}
			prefs, err := store.LoadPreferences(ctx, a.store.Queries, a.now)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load preferences", err)
			}
			if vs.FitMode == "" {
				vs.FitMode = prefs.Get(store.PrefLastFitMode, store.FitModeFit)
			}
			if err := prefs.Set(ctx, store.PrefLastOpenedPath, st.Document); err != nil {
				return WrapExitError(ExitCommandError, "failed to remember last image", err)
			}

			b := a.session.Bitmap().Bounds()
			v := BrowseView{
				OpenView: OpenView{StateView: newStateView(st), Width: b.Dx(), Height: b.Dy()},
				Index:    index + 1,
				Total:    total,
				View:     newViewStateView(st.Document, vs),
			}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				if _, err := fmt.Fprintf(w, "Image %d of %d\n", v.Index, v.Total); err != nil {
					return err
				}
				if err := renderState(w, v.StateView); err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "Size: %dx%d\n", v.Width, v.Height); err != nil {
					return err
				}
				return renderViewState(w, v.View)
			})
		},
	}
	viewport.register(cmd)
	return cmd
}
