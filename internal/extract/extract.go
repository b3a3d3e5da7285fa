// Package extract holds the adapters that turn each source into a raw
// sources.Table. Column names are left as the source spells them; the
// reconciler maps them onto the canonical vocabulary.
package extract

import (
	"context"
	"strconv"
	"strings"

	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// Extractor produces the raw table of one source.
type Extractor interface {
	// Source identifies the table the extractor produces.
	Source() types.SourceID
	// Extract fetches the source. A failure is not fatal to the run; the
	// caller may fall back to the previous snapshot.
	Extract(ctx context.Context) (*sources.Table, error)
}

// unconfigured stands in for a source the run has no settings for.
type unconfigured struct {
	source types.SourceID
	reason string
}

// Unconfigured returns an extractor that always fails with an
// *errors.ConfigError, so that only a previous snapshot can feed source.
func Unconfigured(source types.SourceID, reason string) Extractor {
	return &unconfigured{source: source, reason: reason}
}

func (u *unconfigured) Source() types.SourceID { return u.source }

func (u *unconfigured) Extract(context.Context) (*sources.Table, error) {
	return nil, errors.NewConfigError(u.source.String(), u.reason, nil)
}

// stringify renders a decoded JSON or BSON scalar the way a CSV cell
// would carry it.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}
