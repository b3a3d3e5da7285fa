// Package conflict picks a single value for a field when several sources
// provide candidates for the same entity.
//
// Candidates are ranked by the authority table, never by the order in which
// they were collected. The highest ranked usable value wins; when nothing is
// usable the field's declared default applies. Additive fields remember the
// first value they resolve to for the rest of the run. Booleans use OR
// semantics: any source asserting true wins.
package conflict

import (
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/lumea/pkg/authority"
	"github.com/agentstation/lumea/pkg/types"
)

// Kind describes how values of a field are compared.
type Kind int

const (
	// KindText is free text; blanks and placeholders are not usable.
	KindText Kind = iota
	// KindAdditive is text that may never be reset to blank once set.
	KindAdditive
	// KindBool is a boolean with OR semantics.
	KindBool
	// KindFloat is a coordinate; malformed and zero values are not usable.
	KindFloat
	// KindTime is a timestamp.
	KindTime
)

// FieldSpec declares a field of a canonical entity.
type FieldSpec struct {
	Name    string
	Kind    Kind
	Default string
}

// Candidate is one source's value for a field.
type Candidate struct {
	Source types.SourceID
	Value  string
}

// Resolution is the outcome of resolving one field.
type Resolution struct {
	// Value is the winning value in canonical form, or the default.
	Value string
	// Source is the winning source, empty when the default applied.
	Source types.SourceID
	// Priority of the winning source.
	Priority int
	// Defaulted is true when no candidate was usable.
	Defaulted bool
	// Conflict is true when usable candidates disagreed.
	Conflict bool
	// Reason explains the decision.
	Reason string
}

// Bool returns the resolution as a boolean.
func (r Resolution) Bool() bool {
	v, _ := ParseBool(r.Value)
	return v
}

// Float returns the resolution as a float; ok is false for an empty value.
func (r Resolution) Float() (float64, bool) {
	return ParseFloat(r.Value)
}

type memoryKey struct {
	entity types.EntityType
	key    string
	field  string
}

// Resolver resolves field conflicts. It is not safe for concurrent use; a
// run owns one resolver so additive memory spans the whole run.
type Resolver struct {
	authority    authority.Authority
	placeholders map[string]struct{}
	memory       map[memoryKey]Resolution
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPlaceholders replaces the set of values treated as "unknown".
func WithPlaceholders(values ...string) Option {
	return func(r *Resolver) {
		r.placeholders = make(map[string]struct{}, len(values))
		for _, v := range values {
			r.placeholders[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
		}
	}
}

// New creates a resolver over the given authority table.
func New(a authority.Authority, opts ...Option) *Resolver {
	if a == nil {
		a = authority.New()
	}
	r := &Resolver{
		authority: a,
		memory:    make(map[memoryKey]Resolution),
	}
	WithPlaceholders(defaultPlaceholders...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsPlaceholder reports whether v is a known "unknown" marker.
func (r *Resolver) IsPlaceholder(v string) bool {
	_, ok := r.placeholders[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// Rank returns candidates ordered by descending priority. Equal priorities
// keep their original order.
func (r *Resolver) Rank(entity types.EntityType, field string, candidates []Candidate) []Candidate {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return r.authority.Priority(entity, field, ranked[i].Source) >
			r.authority.Priority(entity, field, ranked[j].Source)
	})
	return ranked
}

// Resolve picks the value of spec for the entity identified by key.
func (r *Resolver) Resolve(entity types.EntityType, key string, spec FieldSpec, candidates []Candidate) Resolution {
	if spec.Kind == KindAdditive {
		mk := memoryKey{entity: entity, key: key, field: spec.Name}
		if remembered, ok := r.memory[mk]; ok {
			remembered.Reason = "kept first non-empty value"
			return remembered
		}
		res := r.resolveFirst(entity, spec, candidates)
		if !res.Defaulted && res.Value != "" {
			r.memory[mk] = res
		}
		return res
	}

	if spec.Kind == KindBool {
		return r.resolveBool(entity, spec, candidates)
	}
	return r.resolveFirst(entity, spec, candidates)
}

// usable returns the canonical form of v and whether it counts as a value.
func (r *Resolver) usable(kind Kind, v string) (string, bool) {
	v = strings.TrimSpace(v)
	switch kind {
	case KindFloat:
		f, ok := ParseFloat(v)
		if !ok || f == 0 {
			return "", false
		}
		return FormatFloat(f), true
	case KindTime:
		t, ok := ParseTime(v)
		if !ok {
			return "", false
		}
		return FormatTime(t), true
	case KindBool:
		b, ok := ParseBool(v)
		if !ok {
			return "", false
		}
		return strconv.FormatBool(b), true
	default:
		if v == "" || r.IsPlaceholder(v) {
			return "", false
		}
		return v, true
	}
}

func (r *Resolver) resolveFirst(entity types.EntityType, spec FieldSpec, candidates []Candidate) Resolution {
	var res Resolution
	found := false
	for _, c := range r.Rank(entity, spec.Name, candidates) {
		v, ok := r.usable(spec.Kind, c.Value)
		if !ok {
			continue
		}
		if !found {
			res = Resolution{
				Value:    v,
				Source:   c.Source,
				Priority: r.authority.Priority(entity, spec.Name, c.Source),
				Reason:   "highest priority value",
			}
			found = true
			continue
		}
		if v != res.Value {
			res.Conflict = true
		}
	}
	if !found {
		return Resolution{Value: spec.Default, Defaulted: true, Reason: "no usable candidate, default applied"}
	}
	return res
}

func (r *Resolver) resolveBool(entity types.EntityType, spec FieldSpec, candidates []Candidate) Resolution {
	var first *Resolution
	sawTrue, sawFalse := false, false
	for _, c := range r.Rank(entity, spec.Name, candidates) {
		b, ok := ParseBool(c.Value)
		if !ok {
			continue
		}
		if b {
			sawTrue = true
		} else {
			sawFalse = true
		}
		if b && (first == nil || first.Value == "false") {
			first = &Resolution{
				Value:    "true",
				Source:   c.Source,
				Priority: r.authority.Priority(entity, spec.Name, c.Source),
				Reason:   "a source asserted true",
			}
		}
		if !b && first == nil {
			first = &Resolution{
				Value:    "false",
				Source:   c.Source,
				Priority: r.authority.Priority(entity, spec.Name, c.Source),
				Reason:   "sources asserted false",
			}
		}
	}
	if first == nil {
		def := spec.Default
		if _, ok := ParseBool(def); !ok {
			def = "false"
		}
		b, _ := ParseBool(def)
		return Resolution{Value: strconv.FormatBool(b), Defaulted: true, Reason: "no usable candidate, default applied"}
	}
	first.Conflict = sawTrue && sawFalse
	return *first
}
