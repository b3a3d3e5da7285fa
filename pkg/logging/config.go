package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/lumea/pkg/constants"
)

// Config holds logger configuration options.
type Config struct {
	// Level is the minimum level written: trace, debug, info, warn, error or off.
	Level string

	// Format is json, console or auto (console on a terminal, json otherwise).
	Format string

	// Output is stderr, stdout, discard or a file path opened for appending.
	Output string

	// TimeFormat is a Go time layout for console timestamps.
	TimeFormat string

	NoColor   bool
	AddCaller bool
}

// DefaultConfig returns info-level auto-format logging to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "auto",
		Output:     "stderr",
		TimeFormat: time.Kitchen,
	}
}

// ConfigFromEnv applies LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT, DEBUG and
// NO_COLOR to DefaultConfig.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	} else if os.Getenv("DEBUG") != "" {
		cfg.Level = "debug"
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		cfg.Output = v
	}
	cfg.NoColor = os.Getenv("NO_COLOR") != ""
	return cfg
}

// NewLoggerFromConfig builds a logger. A nil cfg means DefaultConfig.
// The zerolog global level follows the configured level.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(writer(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

func writer(cfg *Config) io.Writer {
	var out io.Writer
	terminal := false
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		out = os.Stdout
	case "discard", "none":
		out = io.Discard
	case "", "stderr":
		out, terminal = os.Stderr, stderrIsTerminal()
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
		if err != nil {
			out, terminal = os.Stderr, stderrIsTerminal()
			break
		}
		out = file
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return out
	case "console", "pretty":
	default:
		if !terminal {
			return out
		}
	}

	layout := cfg.TimeFormat
	if layout == "" {
		layout = time.Kitchen
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: layout, NoColor: cfg.NoColor}
}

func parseLevel(level string) zerolog.Level {
	switch level = strings.ToLower(strings.TrimSpace(level)); level {
	case "":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "off", "none", "disabled":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(level); err == nil {
		return l
	}
	return zerolog.InfoLevel
}
