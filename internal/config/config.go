// Package config loads retouch settings from a YAML file and RETOUCH_*
// environment variables, and checks them against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/retouch/internal/history"
	"github.com/roach88/retouch/internal/logging"
	"github.com/roach88/retouch/internal/store"
)

//go:embed schema.cue
var schemaCUE string

const (
	EnvConfig           = "RETOUCH_CONFIG"
	EnvDatabase         = "RETOUCH_DB"
	EnvDriver           = "RETOUCH_DB_DRIVER"
	EnvBusyTimeoutMS    = "RETOUCH_DB_BUSY_TIMEOUT_MS"
	EnvSynchronous      = "RETOUCH_DB_SYNCHRONOUS"
	EnvMaxSize          = "RETOUCH_HISTORY_MAX_SIZE"
	EnvUndoPolicy       = "RETOUCH_HISTORY_UNDO_POLICY"
	EnvCheckpointOnOpen = "RETOUCH_HISTORY_CHECKPOINT_ON_OPEN"
)

// Config is the full set of settings.
type Config struct {
	Database Database       `yaml:"database" json:"database"`
	History  History        `yaml:"history" json:"history"`
	Log      logging.Config `yaml:"log" json:"log"`
}

// Database selects the SQLite file and driver.
type Database struct {
	Path          string `yaml:"path" json:"path"`
	Driver        string `yaml:"driver" json:"driver"`
	BusyTimeoutMS int    `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	Synchronous   string `yaml:"synchronous" json:"synchronous"`
}

// History tunes the history engine.
type History struct {
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	UndoPolicy string `yaml:"undo_policy" json:"undo_policy"`

	// CheckpointOnOpen captures a restoration point the first time a
	// document with an empty log is opened, so every edit can be undone
	// with the bitmap restored.
	CheckpointOnOpen bool `yaml:"checkpoint_on_open" json:"checkpoint_on_open"`
}

// DefaultDatabasePath is retouch/retouch.db under the user config
// directory, or ./retouch.db when that is unknown.
func DefaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "retouch.db"
	}
	return filepath.Join(dir, "retouch", "retouch.db")
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database: Database{
			Path:          DefaultDatabasePath(),
			Driver:        store.DriverCGO,
			BusyTimeoutMS: 5000,
			Synchronous:   "NORMAL",
		},
		History: History{
			MaxSize:          history.DefaultMaxSize,
			UndoPolicy:       string(history.PolicyBestEffort),
			CheckpointOnOpen: true,
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads path over the defaults, applies the environment and
// validates the result. An empty path skips the file; a missing file is an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg, err := cfg.WithEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg.Normalize()
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// WithEnv returns c with RETOUCH_* variables applied.
func (c Config) WithEnv() (Config, error) {
	if v, ok := lookup(EnvDatabase); ok {
		c.Database.Path = v
	}
	if v, ok := lookup(EnvDriver); ok {
		c.Database.Driver = v
	}
	if v, ok := lookup(EnvBusyTimeoutMS); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvBusyTimeoutMS, err)
		}
		c.Database.BusyTimeoutMS = n
	}
	if v, ok := lookup(EnvSynchronous); ok {
		c.Database.Synchronous = v
	}
	if v, ok := lookup(EnvMaxSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvMaxSize, err)
		}
		c.History.MaxSize = n
	}
	if v, ok := lookup(EnvUndoPolicy); ok {
		c.History.UndoPolicy = v
	}
	if v, ok := lookup(EnvCheckpointOnOpen); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvCheckpointOnOpen, err)
		}
		c.History.CheckpointOnOpen = b
	}
	c.Log = c.Log.WithEnv()
	return c, nil
}

func lookup(env string) (string, bool) {
	v, ok := os.LookupEnv(env)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Normalize fills unset log fields from the logging defaults, cleans the
// database path and validates the result.
func (c Config) Normalize() (Config, error) {
	lc, err := logging.Merge(logging.DefaultConfig(), c.Log).Normalize()
	if err != nil {
		return Config{}, err
	}
	c.Log = lc
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Database.Synchronous = strings.ToUpper(strings.TrimSpace(c.Database.Synchronous))
	c.History.UndoPolicy = strings.ToLower(strings.TrimSpace(c.History.UndoPolicy))
	if p := strings.TrimSpace(c.Database.Path); p != "" {
		c.Database.Path = filepath.Clean(p)
	}
	return c, c.Validate()
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// StoreOptions returns the store settings as Open options.
func (c Config) StoreOptions() []store.Option {
	return []store.Option{
		store.WithDriver(c.Database.Driver),
		store.WithBusyTimeout(c.Database.BusyTimeoutMS),
		store.WithSynchronous(c.Database.Synchronous),
		store.WithMkdirAll(),
	}
}

// HistoryOptions returns the engine settings as options.
func (c Config) HistoryOptions() ([]history.Option, error) {
	policy, err := history.ParseUndoPolicy(c.History.UndoPolicy)
	if err != nil {
		return nil, err
	}
	return []history.Option{
		history.WithMaxSize(c.History.MaxSize),
		history.WithUndoPolicy(policy),
	}, nil
}
