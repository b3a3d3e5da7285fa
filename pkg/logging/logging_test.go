package logging_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lumea/pkg/logging"
)

func TestSetDefault(t *testing.T) {
	original := *logging.Default()
	t.Cleanup(func() { logging.SetDefault(original) })

	buf := &bytes.Buffer{}
	logging.SetDefault(zerolog.New(buf).Level(zerolog.DebugLevel))

	logging.FromContext(context.Background()).Warn().Msg("staging dir missing")
	assert.Contains(t, buf.String(), "staging dir missing")
}

func TestContextLogger(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithRunID(ctx, "run-42")
	ctx = logging.WithStage(ctx, "extract")
	ctx = logging.WithSource(ctx, "flat_file")

	logging.FromContext(ctx).Info().Msg("source extracted")
	logging.FromContext(logging.WithEntity(ctx, "site")).Debug().Msg("row dropped")

	out := testLogger.Output()
	assert.Contains(t, out, `"run_id":"run-42"`)
	assert.Contains(t, out, `"source":"flat_file"`)
	assert.Contains(t, out, `"stage":"extract"`)
	assert.Contains(t, out, `"entity":"site"`)
	assert.Equal(t, "run-42", logging.RunID(ctx))
	assert.Equal(t, 2, testLogger.Count(`"run_id":"run-42"`))
	assert.Equal(t, 1, testLogger.Count("row dropped"))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	assert.Same(t, logging.Default(), logging.FromContext(nil))
	assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
	assert.Empty(t, logging.RunID(context.Background()))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEBUG", "1")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_OUTPUT", "discard")
	t.Setenv("NO_COLOR", "1")

	cfg := logging.ConfigFromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "discard", cfg.Output)
	assert.True(t, cfg.NoColor)

	t.Setenv("LOG_LEVEL", "error")
	assert.Equal(t, "error", logging.ConfigFromEnv().Level)
}

func TestNewLoggerFromConfig(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(originalLevel) })

	t.Run("defaults", func(t *testing.T) {
		cfg := logging.DefaultConfig()
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "auto", cfg.Format)
		assert.Equal(t, "stderr", cfg.Output)
		assert.False(t, cfg.AddCaller)
	})

	t.Run("auto format writes json to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lumea.log")
		logger := logging.NewLoggerFromConfig(&logging.Config{
			Level:  "info",
			Format: "auto",
			Output: path,
		})
		logger.Info().Str("source", "catalog_api").Msg("written to file")
		logger.Debug().Msg("filtered out")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"message":"written to file"`)
		assert.Contains(t, string(content), `"source":"catalog_api"`)
		assert.NotContains(t, string(content), "filtered out")
	})

	t.Run("level parsing", func(t *testing.T) {
		tests := []struct {
			level string
			want  zerolog.Level
		}{
			{"debug", zerolog.DebugLevel},
			{"WARNING", zerolog.WarnLevel},
			{"off", zerolog.Disabled},
			{"bogus", zerolog.InfoLevel},
			{"", zerolog.InfoLevel},
		}
		for _, tt := range tests {
			t.Run(tt.level, func(t *testing.T) {
				logger := logging.NewLoggerFromConfig(&logging.Config{Level: tt.level, Output: "discard"})
				assert.Equal(t, tt.want, logger.GetLevel())
			})
		}
	})
}
