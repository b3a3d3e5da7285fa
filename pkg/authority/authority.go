// Package authority holds the explicit source-priority table consumed by the
// conflict resolver. Priorities are declared once, per entity type and field,
// instead of being implied by the order in which sources are read.
package authority

import (
	_ "embed"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/types"
)

//go:embed authorities.yaml
var defaultTable []byte

// Authority determines how much each source is trusted for each field.
type Authority interface {
	// Priority returns the priority of source for a field. Sources with no
	// matching entry rank at 0, below every declared source.
	Priority(entity types.EntityType, field string, source types.SourceID) int

	// Find returns the most authoritative entry for a field
	Find(field string, entity types.EntityType) *Field

	// List returns all entries for an entity type
	List(entity types.EntityType) []Field
}

// Field defines source priority for a specific field
type Field struct {
	Path     string         `json:"path" yaml:"path"`         // e.g. "name_regional" or "*"
	Source   types.SourceID `json:"source" yaml:"source"`     // Which source the entry ranks
	Priority int            `json:"priority" yaml:"priority"` // Priority (higher = more authoritative)
}

// Table maps entity types to their field authorities.
type Table map[types.EntityType][]Field

// authorities is the default implementation.
type authorities struct {
	table Table
}

// New returns the built-in priority table.
func New() Authority {
	a, err := Parse(defaultTable)
	if err != nil {
		panic("authority: embedded table is invalid: " + err.Error())
	}
	return a
}

// FromTable wraps an in-memory table.
func FromTable(table Table) (Authority, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	return &authorities{table: table}, nil
}

// Parse decodes a YAML priority table.
func Parse(data []byte) (Authority, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, errors.WrapParse("yaml", "authorities", err)
	}
	return FromTable(table)
}

// Load reads a YAML priority table from r.
func Load(r io.Reader) (Authority, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", "authorities", err)
	}
	return Parse(data)
}

// LoadFile reads a YAML priority table from path.
func LoadFile(path string) (Authority, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return a, nil
}

func (t Table) validate() error {
	for entity, fields := range t {
		switch entity {
		case types.EntityDepartment, types.EntityCommune, types.EntitySite:
		default:
			return errors.NewValidationError("entity", entity, "unknown entity type "+string(entity))
		}
		for _, f := range fields {
			if !f.Source.IsValid() {
				return errors.NewValidationError(string(entity)+"."+f.Path, f.Source, "unknown source "+string(f.Source))
			}
			if f.Path == "" {
				return errors.NewValidationError(string(entity)+".path", f.Path, "cannot be empty")
			}
		}
	}
	return nil
}

// Priority returns the priority of source for field. Among the entries for
// that source, the longest matching path wins so that a field-specific entry
// overrides a wildcard.
func (a *authorities) Priority(entity types.EntityType, field string, source types.SourceID) int {
	best, bestLen := 0, -1
	for _, f := range a.table[entity] {
		if f.Source != source || !MatchesPattern(field, f.Path) {
			continue
		}
		if len(f.Path) > bestLen || (len(f.Path) == bestLen && f.Priority > best) {
			best, bestLen = f.Priority, len(f.Path)
		}
	}
	return best
}

// Find returns the most authoritative entry for a field: highest priority
// first, then the most specific path, then table order.
func (a *authorities) Find(field string, entity types.EntityType) *Field {
	entries := a.table[entity]
	var best *Field
	for i, f := range entries {
		if !MatchesPattern(field, f.Path) {
			continue
		}
		if best == nil || f.Priority > best.Priority ||
			(f.Priority == best.Priority && len(f.Path) > len(best.Path)) {
			best = &entries[i]
		}
	}
	return best
}

// List returns all entries for an entity type sorted by descending priority.
func (a *authorities) List(entity types.EntityType) []Field {
	out := append([]Field(nil), a.table[entity]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// MatchesPattern checks if a field path matches a pattern (supports * wildcards)
func MatchesPattern(fieldPath, pattern string) bool {
	if fieldPath == pattern {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(fieldPath) >= len(prefix) && fieldPath[:len(prefix)] == prefix
	}

	matched, err := filepath.Match(pattern, fieldPath)
	if err != nil {
		return false
	}
	return matched
}

// FilterBySource returns only the authorities for a specific source
func FilterBySource(authorities []Field, source types.SourceID) []Field {
	var filtered []Field
	for _, auth := range authorities {
		if auth.Source == source {
			filtered = append(filtered, auth)
		}
	}
	return filtered
}
