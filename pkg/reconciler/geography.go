package reconciler

import (
	"strconv"
	"strings"

	"github.com/agentstation/lumea/pkg/canonical"
	"github.com/agentstation/lumea/pkg/conflict"
	"github.com/agentstation/lumea/pkg/keys"
	"github.com/agentstation/lumea/pkg/report"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// Department and commune fields.
var (
	departmentName         = conflict.FieldSpec{Name: "name", Kind: conflict.KindText}
	departmentNameRegional = conflict.FieldSpec{Name: "name_regional", Kind: conflict.KindAdditive}

	communeName          = conflict.FieldSpec{Name: "name", Kind: conflict.KindText}
	communeNameRegional  = conflict.FieldSpec{Name: "name_regional", Kind: conflict.KindAdditive}
	communeHeritageLabel = conflict.FieldSpec{Name: "heritage_label", Kind: conflict.KindBool, Default: "false"}
	communeDepartment    = conflict.FieldSpec{Name: "department", Kind: conflict.KindText}
)

type departmentDraft struct {
	group *group
	value canonical.Department
}

type departmentSet struct {
	drafts []*departmentDraft
	index  map[keys.Key]*departmentDraft
	// byCode maps a department code ("29", "2A") to its key.
	byCode map[string]keys.Key
}

// name returns the display name of the department with key k.
func (s *departmentSet) name(k keys.Key) string {
	if d, ok := s.index[k]; ok {
		return d.value.Name
	}
	return ""
}

// byInsee derives a department from the code prefix of an INSEE code.
func (s *departmentSet) byInsee(insee string) (keys.Key, bool) {
	if len(insee) < 2 {
		return "", false
	}
	if strings.HasPrefix(insee, "97") && len(insee) >= 3 {
		if k, ok := s.byCode[normalizeCode(insee[:3])]; ok {
			return k, true
		}
	}
	k, ok := s.byCode[normalizeCode(insee[:2])]
	return k, ok
}

// normalizeCode strips leading zeros from numeric codes so "02" and "2"
// compare equal.
func normalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if n, err := strconv.Atoi(code); err == nil {
		return strconv.Itoa(n)
	}
	return code
}

// departments groups non-site rows by department key.
func (r *run) departments(records []*record) *departmentSet {
	gs := newGroups()
	set := &departmentSet{
		index:  make(map[keys.Key]*departmentDraft),
		byCode: make(map[string]keys.Key),
	}
	for _, rec := range records {
		if rec.role != roleDepartment && rec.role != roleCommune {
			continue
		}
		k, ok := keys.DepartmentKey(rec.row)
		if !ok {
			continue
		}
		gs.add(k, rec)
		if code := normalizeCode(rec.get(sources.ColDepartmentCode)); code != "" {
			if _, seen := set.byCode[code]; !seen {
				set.byCode[code] = k
			}
		}
	}

	for _, g := range gs.order {
		d := &departmentDraft{group: g}
		r.buildDepartment(d)
		set.drafts = append(set.drafts, d)
		set.index[g.key] = d
	}
	return set
}

func (r *run) buildDepartment(d *departmentDraft) {
	k := d.group.key
	d.value = canonical.Department{
		Key:          k,
		Name:         r.resolve(types.EntityDepartment, k, departmentName, d.group.candidates(sources.ColDepartmentName)).Value,
		NameRegional: r.resolve(types.EntityDepartment, k, departmentNameRegional, d.group.candidates(sources.ColDepartmentNameRegional)).Value,
	}
}

type communeDraft struct {
	group *group
	value canonical.Commune
}

// communeSet is the canonical commune table and the indexes sites use to
// find their commune.
type communeSet struct {
	drafts []*communeDraft
	index  map[keys.Key]*communeDraft

	byInsee    map[string]keys.Key
	byNameDept map[keys.Key]keys.Key
	// byName maps a normalized name to its commune; "" marks a name shared
	// by several communes.
	byName map[string]keys.Key
}

// lookup resolves the commune a row refers to: by INSEE code, then by
// (name, department), then by a name unique across all communes.
func (s *communeSet) lookup(rec *record) (keys.Key, bool) {
	if code := rec.get(sources.ColInseeCode); code != "" {
		if k, ok := s.byInsee[code]; ok {
			return k, true
		}
	}
	name := rec.get(sources.ColCommuneName)
	if name == "" {
		return "", false
	}
	if alias, ok := keys.CommuneByName(name, rec.get(sources.ColDepartmentName)); ok {
		if k, ok := s.byNameDept[alias]; ok {
			return k, true
		}
	}
	if k := s.byName[keys.Normalize(name)]; k != "" {
		return k, true
	}
	return "", false
}

func (s *communeSet) indexName(name string, k keys.Key) {
	n := keys.Normalize(name)
	if n == "" {
		return
	}
	if existing, seen := s.byName[n]; seen && existing != k {
		s.byName[n] = ""
		return
	}
	s.byName[n] = k
}

func (s *communeSet) indexAlias(alias, k keys.Key) {
	if _, seen := s.byNameDept[alias]; !seen {
		s.byNameDept[alias] = k
	}
}

// communes groups commune rows in two passes. Rows carrying an INSEE code
// are grouped first; rows without one then join an INSEE group sharing
// their (name, department), or their name when it is unambiguous, and
// otherwise form a group keyed on (name, department).
func (r *run) communes(records []*record, departments *departmentSet) *communeSet {
	gs := newGroups()
	aliases := make(map[keys.Key]keys.Key)
	unique := make(map[string]keys.Key)
	groupDepartments := make(map[keys.Key]map[keys.Key]struct{})

	var pending []*record
	for _, rec := range records {
		if rec.role != roleCommune {
			continue
		}
		k, ok := keys.CommuneByInsee(rec.get(sources.ColInseeCode))
		if !ok {
			pending = append(pending, rec)
			continue
		}
		gs.add(k, rec)

		name := rec.get(sources.ColCommuneName)
		if alias, ok := keys.CommuneByName(name, rec.get(sources.ColDepartmentName)); ok {
			if _, seen := aliases[alias]; !seen {
				aliases[alias] = k
			}
		}
		if n := keys.Normalize(name); n != "" {
			if existing, seen := unique[n]; seen && existing != k {
				unique[n] = ""
			} else {
				unique[n] = k
			}
		}
		if dk, ok := keys.DepartmentKey(rec.row); ok {
			if groupDepartments[k] == nil {
				groupDepartments[k] = make(map[keys.Key]struct{})
			}
			groupDepartments[k][dk] = struct{}{}
		}
	}

	for _, rec := range pending {
		k, ok := keys.CommuneKey(rec.row)
		if !ok {
			r.drop(rec, types.EntityCommune, report.ReasonMissingKey, "no name or insee code")
			continue
		}
		if target, ok := aliases[k]; ok {
			k = target
		} else if target := unique[keys.Normalize(rec.get(sources.ColCommuneName))]; target != "" {
			dk, hasDept := keys.DepartmentKey(rec.row)
			known := groupDepartments[target]
			if _, same := known[dk]; !hasDept || len(known) == 0 || same {
				k = target
			}
		}
		gs.add(k, rec)
	}

	set := &communeSet{
		index:      make(map[keys.Key]*communeDraft),
		byInsee:    make(map[string]keys.Key),
		byNameDept: make(map[keys.Key]keys.Key),
		byName:     make(map[string]keys.Key),
	}
	for _, g := range gs.order {
		d := &communeDraft{group: g}
		if reason := r.buildCommune(d, departments); reason != "" {
			for _, rec := range g.records {
				r.drop(rec, types.EntityCommune, reason, g.key.String())
			}
			continue
		}
		set.drafts = append(set.drafts, d)
		set.index[g.key] = d
	}
	set.reindex(departments)
	return set
}

// reindex rebuilds the lookup indexes from the drafts.
func (s *communeSet) reindex(departments *departmentSet) {
	s.byInsee = make(map[string]keys.Key)
	s.byNameDept = make(map[keys.Key]keys.Key)
	s.byName = make(map[string]keys.Key)
	for _, d := range s.drafts {
		k := d.value.Key
		if d.value.InseeCode != "" {
			s.byInsee[d.value.InseeCode] = k
		}
		if alias, ok := keys.CommuneByName(d.value.Name, departments.name(d.value.DepartmentRef)); ok {
			s.indexAlias(alias, k)
		}
		s.indexName(d.value.Name, k)
		for _, rec := range d.group.records {
			name := rec.get(sources.ColCommuneName)
			if alias, ok := keys.CommuneByName(name, rec.get(sources.ColDepartmentName)); ok {
				s.indexAlias(alias, k)
			}
			s.indexName(name, k)
		}
	}
}

// buildCommune resolves every commune field. It returns the drop reason
// when the commune has no name or no department can be attached.
func (r *run) buildCommune(d *communeDraft, departments *departmentSet) report.Reason {
	k := d.group.key
	insee := ""
	if k.IsInsee() {
		insee = strings.TrimPrefix(k.String(), "insee:")
	}

	var departmentRef keys.Key
	if res := r.resolve(types.EntityCommune, k, communeDepartment, d.group.candidates(sources.ColDepartmentName)); !res.Defaulted {
		departmentRef, _ = keys.Department(res.Value)
	}
	if departmentRef == "" && insee != "" {
		departmentRef, _ = departments.byInsee(insee)
	}
	if _, ok := departments.index[departmentRef]; !ok {
		return report.ReasonUnresolvedDepartment
	}

	name := r.resolve(types.EntityCommune, k, communeName, d.group.candidates(sources.ColCommuneName))
	if name.Defaulted {
		return report.ReasonMissingKey
	}

	d.value = canonical.Commune{
		Key:           k,
		Name:          name.Value,
		NameRegional:  r.resolve(types.EntityCommune, k, communeNameRegional, d.group.candidates(sources.ColCommuneNameRegional)).Value,
		InseeCode:     insee,
		HeritageLabel: r.resolve(types.EntityCommune, k, communeHeritageLabel, d.group.candidates(sources.ColHeritageLabel)).Bool(),
		DepartmentRef: departmentRef,
	}
	return ""
}
