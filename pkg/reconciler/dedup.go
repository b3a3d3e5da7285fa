package reconciler

import (
	"sort"

	"github.com/agentstation/lumea/pkg/canonical"
	"github.com/agentstation/lumea/pkg/keys"
)

// collapse merges items sharing a key. The first item of each key is kept
// and absorb merges a later duplicate into it. The returned map sends the
// identity of every absorbed item to the identity of its keeper.
func collapse[T any](items []T, key func(T) keys.Key, identity func(T) keys.Key, absorb func(keep, dup T)) ([]T, map[keys.Key]keys.Key) {
	kept := make([]T, 0, len(items))
	index := make(map[keys.Key]T, len(items))
	remap := make(map[keys.Key]keys.Key)
	for _, item := range items {
		k := key(item)
		if keep, ok := index[k]; ok {
			absorb(keep, item)
			remap[identity(item)] = identity(keep)
			continue
		}
		index[k] = item
		kept = append(kept, item)
	}
	return kept, remap
}

func follow(remap map[keys.Key]keys.Key, k keys.Key) keys.Key {
	if to, ok := remap[k]; ok {
		return to
	}
	return k
}

// dedup is the final pass. Entities are re-keyed from their resolved
// values; entities that now share a key keep the first one's identity and
// re-resolve their fields over the union of both groups' rows.
func (r *run) dedup(departments *departmentSet, communes *communeSet, sites []*siteDraft) *canonical.Dataset {
	deps, depRemap := collapse(departments.drafts,
		func(d *departmentDraft) keys.Key {
			k, _ := keys.Department(d.value.Name)
			return k
		},
		func(d *departmentDraft) keys.Key { return d.value.Key },
		func(keep, dup *departmentDraft) {
			keep.group.records = append(keep.group.records, dup.group.records...)
			r.buildDepartment(keep)
		})
	departments.drafts = deps
	departments.index = make(map[keys.Key]*departmentDraft, len(deps))
	for _, d := range deps {
		departments.index[d.value.Key] = d
	}

	for _, c := range communes.drafts {
		c.value.DepartmentRef = follow(depRemap, c.value.DepartmentRef)
	}
	comms, communeRemap := collapse(communes.drafts,
		func(c *communeDraft) keys.Key {
			k, _ := keys.Commune(c.value.InseeCode, c.value.Name, departments.name(c.value.DepartmentRef))
			return k
		},
		func(c *communeDraft) keys.Key { return c.value.Key },
		func(keep, dup *communeDraft) {
			keep.group.records = append(keep.group.records, dup.group.records...)
			// on failure the previous values stay in place
			r.buildCommune(keep, departments)
		})
	communes.drafts = comms
	communes.reindex(departments)

	for _, s := range sites {
		s.value.CommuneRef = follow(communeRemap, s.value.CommuneRef)
		s.value.Key = r.finalSiteKey(s)
	}
	kept, _ := collapse(sites,
		func(s *siteDraft) keys.Key { return s.value.Key },
		func(s *siteDraft) keys.Key { return s.value.Key },
		func(keep, dup *siteDraft) {
			r.mergeSites(keep, dup)
		})

	dataset := &canonical.Dataset{
		Departments: make([]canonical.Department, 0, len(deps)),
		Communes:    make([]canonical.Commune, 0, len(comms)),
		Sites:       make([]canonical.Site, 0, len(kept)),
	}
	for _, d := range deps {
		dataset.Departments = append(dataset.Departments, d.value)
	}
	for _, c := range comms {
		dataset.Communes = append(dataset.Communes, c.value)
	}
	for _, s := range kept {
		dataset.Sites = append(dataset.Sites, s.value)
	}

	sort.SliceStable(dataset.Departments, func(i, j int) bool { return dataset.Departments[i].Key < dataset.Departments[j].Key })
	sort.SliceStable(dataset.Communes, func(i, j int) bool { return dataset.Communes[i].Key < dataset.Communes[j].Key })
	sort.SliceStable(dataset.Sites, func(i, j int) bool { return dataset.Sites[i].Key < dataset.Sites[j].Key })
	return dataset
}

// finalSiteKey recomputes a site's identity from its resolved, possibly
// anonymized, values.
func (r *run) finalSiteKey(s *siteDraft) keys.Key {
	k, ok := keys.Site(s.value.Name, s.value.IsActivity, s.value.Coordinates, r.options.precision)
	if !ok {
		return s.group.key
	}
	return k
}

// mergeSites folds dup into keep. keep retains its identity, name and
// commune; every other field is re-resolved over both groups' rows.
func (r *run) mergeSites(keep, dup *siteDraft) {
	name, key, ref, activity := keep.value.Name, keep.value.Key, keep.value.CommuneRef, keep.value.IsActivity
	anonymized := keep.value.Anonymized || dup.value.Anonymized

	keep.group.records = append(keep.group.records, dup.group.records...)
	r.buildSite(keep)
	r.classifySite(keep)

	keep.value.Name = name
	keep.value.Key = key
	keep.value.CommuneRef = ref
	keep.value.IsActivity = activity
	if !activity && !keep.value.IsPlace {
		keep.value.IsPlace = true
	}
	keep.value.Anonymized = anonymized
	r.applyDetector(keep)
	r.result.Metadata.Stats.SitesMerged++
}
