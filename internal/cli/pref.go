package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewPrefCommand creates the pref command group.
func NewPrefCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pref",
		Short: "Read and write global preferences",
	}
	cmd.AddCommand(newPrefGetCommand(rootOpts))
	cmd.AddCommand(newPrefSetCommand(rootOpts))
	cmd.AddCommand(newPrefListCommand(rootOpts))
	return cmd
}

func newPrefGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <key>",
		Short:         "Print a preference",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			value, ok, err := a.store.GetPreference(ctx, args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read preference", err)
			}
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("preference %q is not set", args[0]))
			}
			v := PrefView{Key: args[0], Value: value}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, v.Value)
				return err
			})
		},
	}
}

func newPrefSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set <key> <value>",
		Short:         "Store a preference",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			now := a.now()
			if err := a.store.SetPreference(ctx, args[0], args[1], now); err != nil {
				return WrapExitError(ExitCommandError, "failed to store preference", err)
			}
			v := PrefView{Key: args[0], Value: args[1], UpdatedAt: now.UTC()}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s=%s\n", v.Key, v.Value)
				return err
			})
		},
	}
}

func newPrefListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List all preferences",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx, err := newApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			prefs, err := a.store.ListPreferences(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list preferences", err)
			}
			v := make([]PrefView, len(prefs))
			for i, p := range prefs {
				v[i] = PrefView{Key: p.Key, Value: p.Value, UpdatedAt: p.UpdatedAt.UTC()}
			}
			return output(rootOpts, cmd).Success(v, func(w io.Writer) error {
				return renderPrefs(w, v)
			})
		},
	}
}
