package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/lumea/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "commune",
			ID:       "29021",
		}
		assert.Equal(t, "commune with ID 29021 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("department", "finistere")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "precision",
			Message: "must be between 0 and 9",
		}
		assert.Equal(t, "validation failed for field precision: must be between 0 and 9", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid configuration"}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestSourceUnreadableError(t *testing.T) {
	t.Run("lists expected columns", func(t *testing.T) {
		err := pkgerrors.NewSourceUnreadableError("flat_file", []string{"site_name", "insee_code"}, "no expected column present", nil)
		assert.Contains(t, err.Error(), "flat_file")
		assert.Contains(t, err.Error(), "site_name, insee_code")
		assert.True(t, pkgerrors.IsSourceUnreadable(err))
	})

	t.Run("unwrap", func(t *testing.T) {
		base := errors.New("connection refused")
		err := pkgerrors.NewSourceUnreadableError("document_store", nil, "fetch failed", base)
		assert.Equal(t, base, errors.Unwrap(err))
		assert.NotContains(t, err.Error(), "expected one of")
	})

	t.Run("through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("collect: %w", pkgerrors.NewSourceUnreadableError("catalog_api", nil, "empty", nil))
		var target *pkgerrors.SourceUnreadableError
		require.True(t, errors.As(err, &target))
		assert.Equal(t, "catalog_api", target.Source)
	})
}

func TestLoadIntegrityError(t *testing.T) {
	err := pkgerrors.NewLoadIntegrityError("department", "FINISTERE", errors.New("case collision"))
	err.RolledBack = []string{"department", "commune", "site"}

	msg := err.Error()
	assert.Contains(t, msg, "department")
	assert.Contains(t, msg, `"FINISTERE"`)
	assert.Contains(t, msg, "case collision")
	assert.Contains(t, msg, "rolled back: department, commune, site")
	assert.NotContains(t, msg, "committed:")
	assert.True(t, pkgerrors.IsLoadIntegrity(err))
	assert.False(t, pkgerrors.IsSourceUnreadable(err))
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
	}{
		{"server error", 503, true},
		{"client error", 404, false},
		{"no status", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pkgerrors.NewAPIError("catalog_api", tt.status, "boom")
			assert.Contains(t, err.Error(), "catalog_api")
			assert.Equal(t, tt.unavailable, errors.Is(err, pkgerrors.ErrSourceUnavailable))
		})
	}
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("config", "db_path: required", nil)
	assert.Contains(t, err.Error(), "configuration error in config")
	assert.Contains(t, err.Error(), "db_path")
}

func TestIOError(t *testing.T) {
	t.Run("unwrap", func(t *testing.T) {
		baseErr := errors.New("disk full")
		err := pkgerrors.NewIOError("write", "/data/extract/flat_file.csv", baseErr)
		assert.Equal(t, baseErr, err.Unwrap())
		assert.Contains(t, err.Error(), "/data/extract/flat_file.csv")
	})

	t.Run("wrap helper", func(t *testing.T) {
		err := pkgerrors.WrapIO("read", "snapshot.csv", errors.New("permission denied"))
		ioErr, ok := err.(*pkgerrors.IOError)
		require.True(t, ok)
		assert.Equal(t, "read", ioErr.Operation)
		assert.Equal(t, "snapshot.csv", ioErr.Path)
	})
}

func TestWrapHelpersNil(t *testing.T) {
	assert.NoError(t, pkgerrors.WrapIO("read", "x", nil))
	assert.NoError(t, pkgerrors.WrapParse("csv", "x", nil))
	assert.NoError(t, pkgerrors.WrapResource("insert", "site", "", nil))
}

func TestResourceError(t *testing.T) {
	base := pkgerrors.NewNotFoundError("commune", "29021")
	err := pkgerrors.WrapResource("insert", "site", "plage du port", base)
	assert.Contains(t, err.Error(), "failed to insert site plage du port")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestParseError(t *testing.T) {
	err := &pkgerrors.ParseError{Format: "csv", File: "flat.csv", Line: 12, Message: "wrong number of fields"}
	assert.Equal(t, "parse error in csv at flat.csv:12: wrong number of fields", err.Error())

	err = pkgerrors.NewParseError("yaml", "", "bad indent", nil)
	assert.Equal(t, "yaml parse error: bad indent", err.Error())
}

func TestIsAs(t *testing.T) {
	err := fmt.Errorf("load: %w", pkgerrors.NewLoadIntegrityError("site", "k", nil))
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrLoadIntegrity))

	var target *pkgerrors.LoadIntegrityError
	require.True(t, pkgerrors.As(err, &target))
	assert.Equal(t, "site", target.Table)
}
