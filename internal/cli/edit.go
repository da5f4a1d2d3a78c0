package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/retouch/internal/action"
	"github.com/roach88/retouch/internal/history"
	"github.com/roach88/retouch/internal/imaging"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Description string
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <image> <type> [key=value ...]",
		Short: "Apply an edit to an image and record it",
		Long: fmt.Sprintf(`Apply one edit to the image, save it and append the edit to its history.
Any undone edits are discarded first.

Types and their arguments:
  filter  name=<%s> [factor=F] [pixel_size=N] [sigma=S]
  crop    x=X y=Y width=W height=H
  resize  width=W height=H [keep_aspect=true]
  rotate  angle=DEG [expand=true]
  flip    direction=horizontal|vertical

Examples:
  retouch apply photo.png rotate angle=90 expand=true
  retouch apply photo.png filter name=brightness factor=1.2
  retouch apply photo.png crop x=10 y=10 width=200 height=100`, strings.Join(imaging.FilterNames(), "|")),
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, cmd, args[0], args[1], args[2:])
		},
	}

	cmd.Flags().StringVar(&opts.Description, "description", "", "log description (default derived from the edit)")

	return cmd
}

func runApply(opts *ApplyOptions, cmd *cobra.Command, image, typ string, kv []string) error {
	p, err := parsePayload(typ, kv)
	if err != nil {
		return err
	}

	a, ctx, err := newApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.attach(ctx, image, true); err != nil {
		return err
	}
	img, err := a.catalog.Apply(ctx, a.session.Bitmap(), p)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to apply edit", err)
	}
	if err := a.actor.AddAction(ctx, p, opts.Description); err != nil {
		return historyExit("failed to record edit", err)
	}
	a.session.Replace(img)
	if err := a.save(); err != nil {
		return err
	}

	st, _, err := a.actor.State(ctx)
	if err != nil {
		return historyExit("failed to read history state", err)
	}
	v := StepView{StateView: newStateView(st), Action: string(p.Type()), Restored: true}
	return output(opts.RootOptions, cmd).Success(v, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Applied %s: position %d of %d\n", p.Describe(), v.Position, v.MaxPosition)
		return err
	})
}

// parsePayload builds a payload from a type name and key=value arguments.
// restore_point entries are only created by checkpoint and restore.
func parsePayload(typ string, kv []string) (action.Payload, error) {
	t, err := action.ParseType(typ)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid edit type", err)
	}
	if t == action.TypeRestorePoint {
		return nil, NewExitError(ExitCommandError, "restore_point edits are created by the checkpoint and restore commands")
	}
	args := make(map[string]any, len(kv))
	for _, pair := range kv {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid argument %q: want key=value", pair))
		}
		args[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	p, err := action.FromArgs(t, args)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid edit arguments", err)
	}
	return p, nil
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return newStepCommand(rootOpts, "undo", "Undo the last edit",
		`Move back one position and rebuild the image from the nearest
restoration point. Fails when there is nothing to undo.`,
		"Undid", "undo failed",
		func(ctx context.Context, a *app, _ []string) (history.Step, error) {
			return a.actor.Undo(ctx)
		})
}

// NewRedoCommand creates the redo command.
func NewRedoCommand(rootOpts *RootOptions) *cobra.Command {
	return newStepCommand(rootOpts, "redo", "Redo the next undone edit",
		`Re-apply the edit after the current position. Fails when there is
nothing to redo.`,
		"Redid", "redo failed",
		func(ctx context.Context, a *app, _ []string) (history.Step, error) {
			return a.actor.Redo(ctx)
		})
}

// NewGotoCommand creates the goto command.
func NewGotoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := newStepCommand(rootOpts, "goto", "Undo or redo to a position",
		`Undo or redo repeatedly until the given position is reached.
If a step fails the image is left at the last position reached.`,
		"Moved", "navigation failed",
		func(ctx context.Context, a *app, args []string) (history.Step, error) {
			target, err := strconv.Atoi(args[0])
			if err != nil {
				return history.Step{}, WrapExitError(ExitCommandError, "invalid position", err)
			}
			return a.actor.NavigateToPosition(ctx, target)
		})
	cmd.Use = "goto <image> <position>"
	cmd.Args = cobra.ExactArgs(2)
	return cmd
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := newStepCommand(rootOpts, "restore", "Restore a restoration point",
		`Replace the image with a restoration point's snapshot and record the
restore as an edit, so it can itself be undone.`,
		"Restored", "restore failed",
		func(ctx context.Context, a *app, args []string) (history.Step, error) {
			id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
			if err != nil {
				return history.Step{}, WrapExitError(ExitCommandError, "invalid restoration point id", err)
			}
			return a.actor.RestorePoint(ctx, id)
		})
	cmd.Use = "restore <image> <point-id>"
	cmd.Args = cobra.ExactArgs(2)
	return cmd
}

type stepFunc func(ctx context.Context, a *app, args []string) (history.Step, error)

func newStepCommand(rootOpts *RootOptions, name, short, long, verb, failure string, fn stepFunc) *cobra.Command {
	return &cobra.Command{
		Use:           name + " <image>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(rootOpts, cmd, args[0], args[1:], verb, failure, fn)
		},
	}
}

func runStep(opts *RootOptions, cmd *cobra.Command, image string, rest []string, verb, failure string, fn stepFunc) error {
	a, ctx, err := newApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.attach(ctx, image, false)
	if err != nil {
		return err
	}
	step, stepErr := fn(ctx, a, rest)
	// goto may have moved part of the way before failing.
	if err := a.save(); err != nil {
		return err
	}
	if stepErr != nil {
		var exitErr *ExitError
		if errors.As(stepErr, &exitErr) {
			return stepErr
		}
		return historyExit(failure, stepErr)
	}

	v := StepView{
		StateView: StateView{Document: st.Document, UID: st.UID, Position: step.Position, MaxPosition: step.MaxPosition},
		Action:    string(step.Action),
		Restored:  step.Restored,
	}
	return output(opts, cmd).Success(v, func(w io.Writer) error {
		return renderStep(w, verb, v)
	})
}

// CheckpointOptions holds flags for the checkpoint command.
type CheckpointOptions struct {
	*RootOptions
	Name        string
	Description string
}

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckpointOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkpoint <image>",
		Short: "Capture a restoration point",
		Long: `Store a lossless snapshot of the image as a restoration point and
record it in the history. Undo rebuilds images from these snapshots.

Examples:
  retouch checkpoint photo.png --name "before crop"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoint(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "point name (default timestamped)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "point description")

	return cmd
}

func runCheckpoint(opts *CheckpointOptions, cmd *cobra.Command, image string) error {
	a, ctx, err := newApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.attach(ctx, image, false); err != nil {
		return err
	}
	info, err := a.actor.CreateRestorationPoint(ctx, opts.Name, opts.Description)
	if err != nil {
		return historyExit("failed to create restoration point", err)
	}
	v := newPointView(info)
	return output(opts.RootOptions, cmd).Success(v, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Created restoration point #%d: %s\n", v.ID, v.Name)
		return err
	})
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <image>",
		Short: "Drop an image's edit history",
		Long: `Delete every recorded edit of the image and reset its position to 0.
Restoration points and the image itself are kept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.attach(ctx, args[0], false); err != nil {
				return err
			}
			if err := a.actor.ClearHistory(ctx); err != nil {
				return historyExit("failed to clear history", err)
			}
			st, _, err := a.actor.State(ctx)
			if err != nil {
				return historyExit("failed to read history state", err)
			}
			v := newStateView(st)
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Cleared history of %s\n", v.Document)
				return err
			})
		},
	}
}
