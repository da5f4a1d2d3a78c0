package logging

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Sink selects where records are written.
type Sink string

const (
	SinkStderr Sink = "stderr"
	SinkFile   Sink = "file"
	SinkNone   Sink = "none"
)

const (
	EnvLevel      = "RETOUCH_LOG_LEVEL"
	EnvFormat     = "RETOUCH_LOG_FORMAT"
	EnvSink       = "RETOUCH_LOG_SINK"
	EnvFile       = "RETOUCH_LOG_FILE"
	EnvAddSource  = "RETOUCH_LOG_ADD_SOURCE"
	EnvMaxSizeMB  = "RETOUCH_LOG_MAX_SIZE_MB"
	EnvMaxBackups = "RETOUCH_LOG_MAX_BACKUPS"
	EnvMaxAgeDays = "RETOUCH_LOG_MAX_AGE_DAYS"
	EnvCompress   = "RETOUCH_LOG_COMPRESS"
)

// Config controls the application logger. Nil fields fall back to
// DefaultConfig.
type Config struct {
	Level      *string `yaml:"level,omitempty" json:"level,omitempty"`
	Format     *string `yaml:"format,omitempty" json:"format,omitempty"`
	Sink       *string `yaml:"sink,omitempty" json:"sink,omitempty"`
	File       *string `yaml:"file,omitempty" json:"file,omitempty"`
	AddSource  *bool   `yaml:"add_source,omitempty" json:"add_source,omitempty"`
	MaxSizeMB  *int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups *int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	MaxAgeDays *int    `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`
	Compress   *bool   `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// DefaultConfig logs warnings and above as text to stderr. The rotation
// settings only matter for SinkFile.
func DefaultConfig() Config {
	level := "warn"
	format := string(FormatText)
	sink := string(SinkStderr)
	maxSize := 10
	maxBackups := 3
	maxAge := 14
	compress := false
	addSource := false
	return Config{
		Level:      &level,
		Format:     &format,
		Sink:       &sink,
		AddSource:  &addSource,
		MaxSizeMB:  &maxSize,
		MaxBackups: &maxBackups,
		MaxAgeDays: &maxAge,
		Compress:   &compress,
	}
}

// WithEnv returns c with RETOUCH_LOG_* variables applied on top.
// Malformed numbers and booleans are ignored.
func (c Config) WithEnv() Config {
	applyString := func(env string, dst **string) {
		if v, ok := os.LookupEnv(env); ok {
			v = strings.TrimSpace(v)
			if v != "" {
				*dst = &v
			}
		}
	}
	applyBool := func(env string, dst **bool) {
		if v, ok := os.LookupEnv(env); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err == nil {
				*dst = &b
			}
		}
	}
	applyInt := func(env string, dst **int) {
		if v, ok := os.LookupEnv(env); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err == nil {
				*dst = &n
			}
		}
	}

	applyString(EnvLevel, &c.Level)
	applyString(EnvFormat, &c.Format)
	applyString(EnvSink, &c.Sink)
	applyString(EnvFile, &c.File)
	applyBool(EnvAddSource, &c.AddSource)
	applyInt(EnvMaxSizeMB, &c.MaxSizeMB)
	applyInt(EnvMaxBackups, &c.MaxBackups)
	applyInt(EnvMaxAgeDays, &c.MaxAgeDays)
	applyBool(EnvCompress, &c.Compress)
	return c
}

// Merge returns base with every non-nil field of override applied.
func Merge(base, override Config) Config {
	out := base
	if override.Level != nil {
		out.Level = override.Level
	}
	if override.Format != nil {
		out.Format = override.Format
	}
	if override.Sink != nil {
		out.Sink = override.Sink
	}
	if override.File != nil {
		out.File = override.File
	}
	if override.AddSource != nil {
		out.AddSource = override.AddSource
	}
	if override.MaxSizeMB != nil {
		out.MaxSizeMB = override.MaxSizeMB
	}
	if override.MaxBackups != nil {
		out.MaxBackups = override.MaxBackups
	}
	if override.MaxAgeDays != nil {
		out.MaxAgeDays = override.MaxAgeDays
	}
	if override.Compress != nil {
		out.Compress = override.Compress
	}
	return out
}

// Normalize lowercases the enum fields, drops blank strings, clamps negative
// rotation settings to zero and validates the result.
func (c Config) Normalize() (Config, error) {
	lower := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.ToLower(strings.TrimSpace(*s))
		if v == "" {
			return nil
		}
		return &v
	}
	nonNegative := func(n *int) *int {
		if n != nil && *n < 0 {
			zero := 0
			return &zero
		}
		return n
	}
	c.Level = lower(c.Level)
	c.Format = lower(c.Format)
	c.Sink = lower(c.Sink)
	if c.File != nil {
		v := strings.TrimSpace(*c.File)
		if v == "" {
			c.File = nil
		} else {
			c.File = &v
		}
	}
	c.MaxSizeMB = nonNegative(c.MaxSizeMB)
	c.MaxBackups = nonNegative(c.MaxBackups)
	c.MaxAgeDays = nonNegative(c.MaxAgeDays)
	return c, c.Validate()
}

// Validate checks the enum fields.
func (c Config) Validate() error {
	if c.Level != nil {
		switch *c.Level {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("log.level: invalid %q", *c.Level)
		}
	}
	if c.Format != nil {
		switch Format(*c.Format) {
		case FormatText, FormatJSON:
		default:
			return fmt.Errorf("log.format: invalid %q", *c.Format)
		}
	}
	if c.Sink != nil {
		switch Sink(*c.Sink) {
		case SinkStderr, SinkNone:
		case SinkFile:
			if c.File == nil {
				return fmt.Errorf("log.file: required when sink is %q", SinkFile)
			}
		default:
			return fmt.Errorf("log.sink: invalid %q", *c.Sink)
		}
	}
	return nil
}
