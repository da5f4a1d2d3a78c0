package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/retouch/internal/imaging"
	"github.com/roach88/retouch/internal/session"
	"github.com/roach88/retouch/internal/store"
)

// defaultThumbnailSize applies when the thumbnail_size preference is unset.
const defaultThumbnailSize = 256

// OpenView describes an opened image.
type OpenView struct {
	StateView
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// NewOpenCommand creates the open command.
func NewOpenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		thumbnail string
		thumbSize int
	)
	cmd := &cobra.Command{
		Use:   "open <image>",
		Short: "Open an image and show its history position",
		Long: `Register the image as a document if it is new, record when it was
opened and print its history position.

With history.checkpoint_on_open (the default), an image without history
gets a restoration point of its current pixels, so every later edit can
be undone exactly.

--thumbnail writes a preview of the image, fitted inside --thumbnail-size
pixels (default: the thumbnail_size preference, else 256).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.attach(ctx, args[0], true)
			if err != nil {
				return err
			}
			if err := a.store.TouchLastOpened(ctx, st.Document, a.now()); err != nil {
				return WrapExitError(ExitCommandError, "failed to record open", err)
			}
			prefs, err := store.LoadPreferences(ctx, a.store.Queries, a.now)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read preferences", err)
			}
			if err := prefs.Set(ctx, store.PrefLastOpenedPath, st.Document); err != nil {
				return WrapExitError(ExitCommandError, "failed to remember last image", err)
			}
			b := a.session.Bitmap().Bounds()
			v := OpenView{StateView: newStateView(st), Width: b.Dx(), Height: b.Dy()}
			if thumbnail != "" {
				size := thumbSize
				if !cmd.Flags().Changed("thumbnail-size") {
					size = prefs.Int(store.PrefThumbnailSize, defaultThumbnailSize)
				}
				if err := writeThumbnail(a.session, thumbnail, size); err != nil {
					return WrapExitError(ExitCommandError, "failed to write thumbnail", err)
				}
				v.Thumbnail = thumbnail
			}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				if err := renderState(w, v.StateView); err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, "Size: %dx%d\n", v.Width, v.Height); err != nil {
					return err
				}
				if v.Thumbnail != "" {
					_, err := fmt.Fprintf(w, "Thumbnail: %s\n", v.Thumbnail)
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&thumbnail, "thumbnail", "", "Write a preview image to this path")
	cmd.Flags().IntVar(&thumbSize, "thumbnail-size", defaultThumbnailSize, "Longest edge of the preview in pixels")
	return cmd
}

func writeThumbnail(s *session.Session, path string, size int) error {
	img, err := imaging.Thumbnail(s.Bitmap(), size)
	if err != nil {
		return err
	}
	return session.Export(path, img)
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log <image>",
		Short: "Show an image's edit history",
		Long: `List the recorded edits of the image in order. The current position
is marked with ">" and undone edits are flagged.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.attach(ctx, args[0], false)
			if err != nil {
				return err
			}
			entries, err := a.actor.ListActions(ctx)
			if err != nil {
				return historyExit("failed to list history", err)
			}
			v := newLogView(st, entries)
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				return renderLog(w, v)
			})
		},
	}
}

// NewPointsCommand creates the points command.
func NewPointsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "points <image>",
		Short:         "List an image's restoration points",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.attach(ctx, args[0], false)
			if err != nil {
				return err
			}
			points, err := a.actor.ListRestorationPoints(ctx)
			if err != nil {
				return historyExit("failed to list restoration points", err)
			}
			v := PointsView{Document: st.Document, Points: make([]PointView, len(points))}
			for i, p := range points {
				v.Points[i] = newPointView(p)
			}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				return renderPoints(w, v)
			})
		},
	}
}

// NewDocsCommand creates the docs command.
func NewDocsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "docs",
		Short:         "List every image with recorded history",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			docs, err := a.store.ListDocuments(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list documents", err)
			}
			v := make([]DocumentView, len(docs))
			for i, d := range docs {
				v[i] = newDocumentView(d)
			}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				return renderDocuments(w, v)
			})
		},
	}
}
