package reconciler

import (
	"sort"
	"strconv"

	"github.com/agentstation/lumea/pkg/canonical"
	"github.com/agentstation/lumea/pkg/conflict"
	"github.com/agentstation/lumea/pkg/keys"
	"github.com/agentstation/lumea/pkg/provenance"
	"github.com/agentstation/lumea/pkg/report"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// Site fields.
var (
	siteName        = conflict.FieldSpec{Name: "name", Kind: conflict.KindText}
	siteDescription = conflict.FieldSpec{Name: "description", Kind: conflict.KindText}
	siteLatitude    = conflict.FieldSpec{Name: "latitude", Kind: conflict.KindFloat}
	siteLongitude   = conflict.FieldSpec{Name: "longitude", Kind: conflict.KindFloat}
	siteIsActivity  = conflict.FieldSpec{Name: "is_activity", Kind: conflict.KindBool, Default: "false"}
	siteIsPlace     = conflict.FieldSpec{Name: "is_place", Kind: conflict.KindBool, Default: "true"}
	siteProvider    = conflict.FieldSpec{Name: "provider_id", Kind: conflict.KindText}
	siteCreatedAt   = conflict.FieldSpec{Name: "created_at", Kind: conflict.KindTime}
	siteUpdatedAt   = conflict.FieldSpec{Name: "updated_at", Kind: conflict.KindTime}
)

// siteCommuneField is the authority field used to rank rows when they
// disagree on a site's commune.
const siteCommuneField = "commune"

type siteDraft struct {
	group *group
	value canonical.Site

	// activity is the flag the group was keyed with.
	activity bool
	// activityAsserted and placeAsserted are true when a source carried
	// the flag rather than leaving it to classification.
	activityAsserted bool
	placeAsserted    bool
	ordinal          int
}

// sites groups site rows by identity key, resolves their fields and
// attaches each group to a commune. Groups whose commune cannot be found
// are dropped.
func (r *run) sites(records []*record, communes *communeSet) []*siteDraft {
	gs := newGroups()
	flags := make(map[keys.Key]bool)
	for _, rec := range records {
		if rec.role != roleSite {
			continue
		}
		name := rec.get(sources.ColSiteName)
		activity := r.options.classifier.IsActivity(name)
		if rec.activity != nil {
			activity = *rec.activity
		}
		k, ok := keys.SiteKey(rec.row, activity, rec.point, r.options.precision)
		if !ok {
			r.drop(rec, types.EntitySite, report.ReasonMissingKey, "no usable name")
			continue
		}
		gs.add(k, rec)
		flags[k] = activity
	}

	drafts := make([]*siteDraft, 0, len(gs.order))
	for _, g := range gs.order {
		ref, ok := r.communeRef(g, communes)
		if !ok {
			for _, rec := range g.records {
				r.drop(rec, types.EntitySite, report.ReasonUnresolvedCommune, g.key.String())
			}
			continue
		}
		d := &siteDraft{group: g, activity: flags[g.key]}
		r.buildSite(d)
		d.value.CommuneRef = ref
		drafts = append(drafts, d)
	}
	return drafts
}

// communeRef returns the commune of the highest-priority row that can be
// resolved.
func (r *run) communeRef(g *group, communes *communeSet) (keys.Key, bool) {
	ranked := append([]*record(nil), g.records...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return r.options.authorities.Priority(types.EntitySite, siteCommuneField, ranked[i].source) >
			r.options.authorities.Priority(types.EntitySite, siteCommuneField, ranked[j].source)
	})
	for _, rec := range ranked {
		if k, ok := communes.lookup(rec); ok {
			return k, true
		}
	}
	return "", false
}

// buildSite resolves every site field except the commune reference.
// Flags that no source asserted are left to classify.
func (r *run) buildSite(d *siteDraft) {
	g := d.group
	k := g.key
	now := conflict.FormatTime(r.now)

	createdSpec, updatedSpec := siteCreatedAt, siteUpdatedAt
	createdSpec.Default, updatedSpec.Default = now, now

	site := canonical.Site{
		Key:         k,
		Name:        r.resolve(types.EntitySite, k, siteName, g.candidates(sources.ColSiteName)).Value,
		Description: r.resolve(types.EntitySite, k, siteDescription, g.candidates(sources.ColDescription)).Value,
		IsActivity:  d.activity,
		CommuneRef:  d.value.CommuneRef,
	}

	lat, latOK := r.resolve(types.EntitySite, k, siteLatitude, g.candidates(sources.ColLatitude)).Float()
	lon, lonOK := r.resolve(types.EntitySite, k, siteLongitude, g.candidates(sources.ColLongitude)).Float()
	if latOK && lonOK {
		site.Coordinates = canonical.NewPoint(lat, lon)
	}

	d.activityAsserted = false
	for _, rec := range g.records {
		if rec.activity != nil {
			d.activityAsserted = true
			break
		}
	}
	if d.activityAsserted {
		r.resolve(types.EntitySite, k, siteIsActivity, g.candidates(sources.ColIsActivity))
	}

	placeCandidates := g.candidates(sources.ColIsPlace)
	d.placeAsserted = false
	for _, c := range placeCandidates {
		if _, ok := conflict.ParseBool(c.Value); ok {
			d.placeAsserted = true
			break
		}
	}
	if d.placeAsserted {
		site.IsPlace = r.resolve(types.EntitySite, k, siteIsPlace, placeCandidates).Bool()
	}

	if res := r.resolve(types.EntitySite, k, siteProvider, g.candidates(sources.ColProviderID)); !res.Defaulted {
		if id, err := strconv.ParseInt(res.Value, 10, 64); err == nil && id > 0 {
			site.ProviderRef = &id
		}
	}

	if t, ok := conflict.ParseTime(r.resolve(types.EntitySite, k, createdSpec, g.candidates(sources.ColCreatedAt)).Value); ok {
		site.CreatedAt = t
	}
	if t, ok := conflict.ParseTime(r.resolve(types.EntitySite, k, updatedSpec, g.candidates(sources.ColUpdatedAt)).Value); ok {
		site.UpdatedAt = t
	}
	d.value = site
}

// classifySite derives the flags no source asserted. An unasserted
// is_activity comes from the site name; an unasserted is_place is the
// negation of is_activity. A site is never left neither activity nor place.
func (r *run) classifySite(d *siteDraft) bool {
	classified := false
	switch {
	case !d.activityAsserted:
		activity, place := r.options.classifier.Classify(d.value.Name)
		d.value.IsActivity = activity
		if !d.placeAsserted {
			d.value.IsPlace = place
		}
		classified = true
		r.tracker.Track(types.EntitySite, d.group.key.String(), siteIsActivity.Name, provenance.Provenance{
			Value:     boolString(d.value.IsActivity),
			Timestamp: r.now,
			Reason:    "classified from name",
		})
	case !d.placeAsserted:
		d.value.IsPlace = !d.value.IsActivity
	}
	if !d.value.IsActivity && !d.value.IsPlace {
		d.value.IsPlace = true
	}
	return classified
}

// classify applies the keyword heuristic to every site.
func (r *run) classify(drafts []*siteDraft) {
	for _, d := range drafts {
		if r.classifySite(d) {
			r.result.Metadata.Stats.SitesClassified++
		}
	}
}

// anonymize numbers sites in key order and replaces personal names with
// synthetic labels.
func (r *run) anonymize(drafts []*siteDraft) {
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].group.key < drafts[j].group.key
	})
	for i, d := range drafts {
		d.ordinal = i + 1
		r.applyDetector(d)
	}
}

func (r *run) applyDetector(d *siteDraft) {
	res := r.options.detector.Apply(d.value.Name, d.value.Description, d.value.IsActivity, d.ordinal)
	d.value.Description = res.Description
	if !res.Anonymized {
		return
	}
	if res.Name != d.value.Name {
		r.tracker.Track(types.EntitySite, d.group.key.String(), siteName.Name, provenance.Provenance{
			Value:     res.Name,
			Timestamp: r.now,
			Reason:    "anonymized personal name",
		})
	}
	d.value.Name = res.Name
	if !d.value.Anonymized {
		r.result.Metadata.Stats.SitesAnonymized++
	}
	d.value.Anonymized = true
}
