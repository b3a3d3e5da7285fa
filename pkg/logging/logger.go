// Package logging provides structured logging for the lumea pipeline using zerolog.
// Console output is used on terminals and JSON everywhere else, so batch runs
// under a scheduler produce machine-readable logs.
//
// A run carries its logger in the context, tagged with the run identifier
// and, while a source is being read, with that source:
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithSource(ctx, "flat_file")
//	logging.FromContext(ctx).Info().Int("rows", 812).Msg("Source extracted")
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// defaultLogger is used when no logger travels in the context.
var defaultLogger = NewLoggerFromConfig(ConfigFromEnv())

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process-wide logger, including zerolog's global one.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// stderrIsTerminal reports whether stderr is attached to a terminal.
func stderrIsTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
