package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/retouch/internal/action"
	"github.com/roach88/retouch/internal/config"
	"github.com/roach88/retouch/internal/history"
	"github.com/roach88/retouch/internal/logging"
	"github.com/roach88/retouch/internal/session"
	"github.com/roach88/retouch/internal/store"
)

// Name and description of the restoration point captured the first time a
// document is edited.
const (
	baselinePointName = "Original"
	baselinePointDesc = "captured on first open"
)

// app is everything one command invocation needs: configuration, logger,
// store, the editing session and the history actor running over it.
type app struct {
	opts     *RootOptions
	cfg      config.Config
	logger   *logging.Logger
	store    *store.Store
	registry *prometheus.Registry
	session  *session.Session
	engine   *history.Engine
	actor    *history.Actor
	catalog  *action.Catalog

	now    func() time.Time
	cancel context.CancelFunc
	done   chan error
}

// newApp loads configuration, opens the database and starts the history
// actor. The returned context is cancelled on SIGINT/SIGTERM and by close.
func newApp(parent context.Context, opts *RootOptions) (*app, context.Context, error) {
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = os.Getenv(config.EnvConfig)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Verbose {
		level := "debug"
		cfg.Log.Level = &level
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	slog.SetDefault(logger.Logger)

	slog.Debug("opening database", "path", cfg.Database.Path, "driver", cfg.Database.Driver)
	st, err := store.Open(cfg.Database.Path, cfg.StoreOptions()...)
	if err != nil {
		_ = logger.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	histOpts, err := cfg.HistoryOptions()
	if err != nil {
		_ = st.Close()
		_ = logger.Close()
		return nil, nil, WrapExitError(ExitCommandError, "invalid history config", err)
	}
	registry := prometheus.NewRegistry()
	sess := session.New()
	engine := history.New(st, sess, append(histOpts,
		history.WithLogger(logger.Logger),
		history.WithMetrics(history.NewMetrics(registry)),
	)...)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	a := &app{
		opts:     opts,
		cfg:      cfg,
		logger:   logger,
		store:    st,
		registry: registry,
		session:  sess,
		engine:   engine,
		actor:    history.NewActor(engine),
		catalog:  action.NewCatalog(nil),
		now:      time.Now,
		cancel:   cancel,
		done:     make(chan error, 1),
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	go func() { a.done <- a.actor.Run(ctx) }()
	return a, ctx, nil
}

// attach loads the image at path into the session and attaches its
// history. With baseline, a document whose history is empty first gets a
// restoration point of the unedited image when the config asks for one.
func (a *app) attach(ctx context.Context, path string, baseline bool) (history.State, error) {
	id, err := identifierFor(path)
	if err != nil {
		return history.State{}, err
	}
	if err := a.session.Load(path); err != nil {
		return history.State{}, WrapExitError(ExitCommandError, "failed to load image", err)
	}
	if err := a.actor.OnDocumentLoaded(ctx, id); err != nil {
		return history.State{}, historyExit("failed to load history", err)
	}
	st, _, err := a.actor.State(ctx)
	if err != nil {
		return history.State{}, historyExit("failed to read history state", err)
	}
	if baseline && a.cfg.History.CheckpointOnOpen && st.Max == 0 {
		if _, err := a.actor.CreateRestorationPoint(ctx, baselinePointName, baselinePointDesc); err != nil {
			return history.State{}, historyExit("failed to capture original image", err)
		}
		if st, _, err = a.actor.State(ctx); err != nil {
			return history.State{}, historyExit("failed to read history state", err)
		}
	}
	return st, nil
}

// save writes the session bitmap back to the image when it changed.
func (a *app) save() error {
	if !a.session.Modified() {
		return nil
	}
	if err := a.session.Save(""); err != nil {
		return WrapExitError(ExitCommandError, "failed to save image", err)
	}
	slog.Debug("image saved", "path", a.session.Path())
	return nil
}

// close stops the actor, exports metrics and releases the store and logger.
func (a *app) close() {
	if a.opts.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(a.opts.MetricsOut, a.registry); err != nil {
			slog.Error("error writing metrics", "path", a.opts.MetricsOut, "error", err)
		}
	}
	if err := a.actor.Detach(context.Background()); err != nil {
		slog.Debug("detach document", "error", err)
	}
	a.actor.Stop()
	if err := <-a.done; err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("history actor stopped with error", "error", err)
	}
	a.cancel()
	if err := a.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
	if err := a.logger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "error closing log:", err)
	}
}

// output returns the formatter for cmd's stdout.
func output(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// identifierFor turns an image path into the document identifier: the
// absolute, cleaned path.
func identifierFor(path string) (string, error) {
	if path == "" {
		return "", NewExitError(ExitCommandError, "image path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to resolve image path", err)
	}
	return store.NormalizeIdentifier(abs), nil
}
