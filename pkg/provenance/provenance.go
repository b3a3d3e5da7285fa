// Package provenance provides field-level tracking of which source supplied
// each canonical value.
package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/types"
)

// Provenance records the origin of a field value.
type Provenance struct {
	Source    types.SourceID `yaml:"source,omitempty"` // empty when a default applied
	Field     string         `yaml:"field"`
	Value     string         `yaml:"value"`
	Timestamp time.Time      `yaml:"timestamp"`
	Priority  int            `yaml:"priority"`
	Reason    string         `yaml:"reason,omitempty"`
	Conflict  bool           `yaml:"conflict,omitempty"` // usable candidates disagreed
}

// Map tracks provenance for multiple entities.
type Map map[string][]Provenance // key is "entityType:entityKey:field"

// Tracker records provenance during reconciliation.
type Tracker interface {
	// Track records provenance for a field
	Track(entity types.EntityType, key string, field string, history Provenance)

	// FindByField retrieves provenance for a specific field
	FindByField(entity types.EntityType, key string, field string) []Provenance

	// FindByResource retrieves all provenance for an entity
	FindByResource(entity types.EntityType, key string) map[string][]Provenance

	// Map returns the complete provenance map
	Map() Map

	// Clear removes all provenance data
	Clear()
}

type tracker struct {
	mu         sync.RWMutex
	provenance Map
	enabled    bool
}

// NewTracker creates a new provenance tracker. A disabled tracker records
// nothing and returns nil from every query.
func NewTracker(enabled bool) Tracker {
	return &tracker{
		provenance: make(Map),
		enabled:    enabled,
	}
}

// Track records provenance for a field.
func (p *tracker) Track(entity types.EntityType, key string, field string, history Provenance) {
	if !p.enabled {
		return
	}
	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now()
	}
	if history.Field == "" {
		history.Field = field
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	k := makeKey(entity, key, field)
	p.provenance[k] = append(p.provenance[k], history)
}

// FindByField retrieves provenance for a specific field.
func (p *tracker) FindByField(entity types.EntityType, key string, field string) []Provenance {
	if !p.enabled {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Provenance(nil), p.provenance[makeKey(entity, key, field)]...)
}

// FindByResource retrieves all provenance for an entity.
func (p *tracker) FindByResource(entity types.EntityType, key string) map[string][]Provenance {
	if !p.enabled {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[string][]Provenance)
	prefix := fmt.Sprintf("%s:%s:", entity, key)
	for k, info := range p.provenance {
		field, found := strings.CutPrefix(k, prefix)
		if found && !strings.Contains(field, ":") {
			result[field] = append([]Provenance(nil), info...)
		}
	}
	return result
}

// Map returns a copy of the provenance map.
func (p *tracker) Map() Map {
	if !p.enabled {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(Map, len(p.provenance))
	for k, v := range p.provenance {
		result[k] = append([]Provenance{}, v...)
	}
	return result
}

// Clear removes all provenance data.
func (p *tracker) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provenance = make(Map)
}

func makeKey(entity types.EntityType, key, field string) string {
	return fmt.Sprintf("%s:%s:%s", entity, key, field)
}

// splitKey reverses makeKey. Entity keys may themselves contain colons, so
// the entity type is cut at the first colon and the field at the last.
func splitKey(k string) (entity types.EntityType, key, field string, ok bool) {
	first := strings.Index(k, ":")
	last := strings.LastIndex(k, ":")
	if first < 0 || last <= first {
		return "", "", "", false
	}
	return types.EntityType(k[:first]), k[first+1 : last], k[last+1:], true
}

// Report is a human-readable view of a provenance map.
type Report struct {
	Resources map[string]ResourceProvenance // key is "entityType:entityKey"
}

// ResourceProvenance contains provenance for a single entity.
type ResourceProvenance struct {
	Type   types.EntityType
	Key    string
	Fields map[string]Field
}

// Field contains provenance history for a single field.
type Field struct {
	Current   Provenance   // Latest decision
	History   []Provenance // All decisions, newest first
	Conflicts int          // Decisions where sources disagreed
}

// GenerateReport groups a provenance map by entity.
func GenerateReport(provenance Map) *Report {
	report := &Report{Resources: make(map[string]ResourceProvenance)}

	for k, infos := range provenance {
		entity, key, field, ok := splitKey(k)
		if !ok {
			continue
		}
		resourceKey := fmt.Sprintf("%s:%s", entity, key)
		resource, exists := report.Resources[resourceKey]
		if !exists {
			resource = ResourceProvenance{
				Type:   entity,
				Key:    key,
				Fields: make(map[string]Field),
			}
		}

		history := append([]Provenance(nil), infos...)
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Timestamp.After(history[j].Timestamp)
		})

		f := Field{History: history}
		if len(history) > 0 {
			f.Current = history[0]
		}
		for _, h := range history {
			if h.Conflict {
				f.Conflicts++
			}
		}
		resource.Fields[field] = f
		report.Resources[resourceKey] = resource
	}
	return report
}

// Conflicts returns the number of conflicting decisions across all entities.
func (r *Report) Conflicts() int {
	n := 0
	for _, res := range r.Resources {
		for _, f := range res.Fields {
			n += f.Conflicts
		}
	}
	return n
}

// String generates a string representation of the provenance report.
func (r *Report) String() string {
	var sb strings.Builder

	sb.WriteString("Provenance Report\n")
	sb.WriteString("=================\n\n")

	resourceKeys := make([]string, 0, len(r.Resources))
	for key := range r.Resources {
		resourceKeys = append(resourceKeys, key)
	}
	sort.Strings(resourceKeys)

	for _, key := range resourceKeys {
		resource := r.Resources[key]
		fmt.Fprintf(&sb, "%s: %s\n", resource.Type, resource.Key)
		sb.WriteString(strings.Repeat("-", 40))
		sb.WriteString("\n")

		fieldKeys := make([]string, 0, len(resource.Fields))
		for field := range resource.Fields {
			fieldKeys = append(fieldKeys, field)
		}
		sort.Strings(fieldKeys)

		for _, field := range fieldKeys {
			f := resource.Fields[field]
			source := f.Current.Source.String()
			if source == "" {
				source = "default"
			}
			fmt.Fprintf(&sb, "  %s: %q (from %s)\n", field, f.Current.Value, source)
			if f.Conflicts > 0 {
				fmt.Fprintf(&sb, "    conflicts: %d, %s\n", f.Conflicts, f.Current.Reason)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// File is a provenance map stored on disk.
type File struct {
	RunID      string `yaml:"run_id,omitempty"`
	Provenance Map    `yaml:"provenance"`
}

// Save writes the map as YAML to path, creating parent directories.
func Save(path, runID string, m Map) error {
	data, err := yaml.Marshal(File{RunID: runID, Provenance: m})
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return errors.WrapIO("create", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// Load reads a provenance file. It returns nil, nil if the file does not
// exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from run configuration
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return &f, nil
}
