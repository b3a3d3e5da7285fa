package reconciler

import (
	"strings"

	"github.com/paulmach/orb"

	"github.com/agentstation/lumea/pkg/conflict"
	"github.com/agentstation/lumea/pkg/keys"
	"github.com/agentstation/lumea/pkg/report"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// role is the entity a row primarily describes.
type role int

const (
	roleNone role = iota
	roleDepartment
	roleCommune
	roleSite
)

// record is a normalized source row tagged with its origin.
type record struct {
	source  types.SourceID
	ordinal int // 1-based position in the source table
	row     sources.Row
	role    role

	// point holds the parsed coordinates, nil when unusable.
	point *orb.Point
	// activity is the asserted is_activity flag, nil when no source column
	// carried usable evidence.
	activity *bool
}

func (rec *record) get(col string) string {
	return rec.row.Get(col)
}

// collect validates and normalizes every table and returns the union of
// their rows. Unreadable tables are recorded and skipped.
func (r *run) collect(tables []*sources.Table) []*record {
	var records []*record
	for _, t := range tables {
		if t == nil {
			continue
		}
		normalized := t.Normalize()
		if err := normalized.Validate(); err != nil {
			r.logger.Warn().
				Err(err).
				Str("source", t.Source.String()).
				Msg("Skipping unreadable source")
			r.result.Errors = append(r.result.Errors, err)
			r.result.Report.SkipSource(t.Source, err)
			r.result.Metadata.Stats.SourcesSkipped++
			continue
		}

		status, _ := r.result.Report.Source(t.Source)
		status.Source = t.Source
		status.Rows += normalized.Len()
		r.result.Report.SetSource(status)
		r.result.Metadata.Sources = append(r.result.Metadata.Sources, t.Source)

		hasSites := normalized.HasColumn(sources.ColSiteName)
		hasCommunes := normalized.HasColumn(sources.ColCommuneName) || normalized.HasColumn(sources.ColInseeCode) ||
			normalized.HasColumn(sources.ColCommuneCombined)
		for i, row := range normalized.Rows {
			rec := r.prepare(t.Source, i+1, row.Clone(), hasSites)
			if rec.role == roleNone {
				entity := types.EntityDepartment
				switch {
				case hasSites:
					entity = types.EntitySite
				case hasCommunes:
					entity = types.EntityCommune
				}
				r.drop(rec, entity, report.ReasonMissingKey, "no name or code")
				continue
			}
			records = append(records, rec)
		}
		r.logger.Debug().
			Str("source", t.Source.String()).
			Int("rows", normalized.Len()).
			Msg("Collected source")
	}
	r.result.Metadata.Stats.RowsCollected = len(records)
	return records
}

// prepare applies the same-row fallbacks and decides the row's role.
func (r *run) prepare(source types.SourceID, ordinal int, row sources.Row, siteTable bool) *record {
	splitCombined(row)
	reduceSiteType(row)
	row[sources.ColInseeCode] = keys.NormalizeInsee(row.Get(sources.ColInseeCode))

	rec := &record{
		source:  source,
		ordinal: ordinal,
		row:     row,
		point:   coordinates(row),
	}
	rec.activity = r.assertedActivity(row)

	switch {
	case siteTable:
		if row.Has(sources.ColSiteName) {
			rec.role = roleSite
		}
	case row.Has(sources.ColCommuneName) || row.Has(sources.ColInseeCode):
		rec.role = roleCommune
	case row.Has(sources.ColDepartmentName):
		rec.role = roleDepartment
	}
	return rec
}

// splitCombined fills the INSEE code and commune name from an
// "insee#name" column when the row lacks them.
func splitCombined(row sources.Row) {
	combined := row.Get(sources.ColCommuneCombined)
	if combined == "" {
		return
	}
	code, name, found := strings.Cut(combined, "#")
	if !found {
		if !row.Has(sources.ColCommuneName) {
			row[sources.ColCommuneName] = strings.TrimSpace(combined)
		}
		return
	}
	if !row.Has(sources.ColInseeCode) {
		row[sources.ColInseeCode] = strings.TrimSpace(code)
	}
	if !row.Has(sources.ColCommuneName) {
		row[sources.ColCommuneName] = strings.TrimSpace(name)
	}
}

// reduceSiteType keeps the fragment of a type URL ("...#Plage" → "Plage").
func reduceSiteType(row sources.Row) {
	v := row.Get(sources.ColSiteType)
	if i := strings.LastIndex(v, "#"); i >= 0 {
		row[sources.ColSiteType] = strings.TrimSpace(v[i+1:])
	}
}

// coordinates parses the row's latitude and longitude. When either is
// missing, malformed or zero, the combined "lat,lon" point is used instead
// and written back to the row so conflict resolution sees it.
func coordinates(row sources.Row) *orb.Point {
	lat, latOK := conflict.ParseFloat(row.Get(sources.ColLatitude))
	lon, lonOK := conflict.ParseFloat(row.Get(sources.ColLongitude))
	if latOK && lonOK && lat != 0 && lon != 0 {
		return &orb.Point{lon, lat}
	}

	plat, plon, ok := parsePoint(row.Get(sources.ColPointGeo))
	if !ok {
		return nil
	}
	row[sources.ColLatitude] = conflict.FormatFloat(plat)
	row[sources.ColLongitude] = conflict.FormatFloat(plon)
	return &orb.Point{plon, plat}
}

// parsePoint parses "lat,lon", tolerating brackets and spaces.
func parsePoint(s string) (lat, lon float64, ok bool) {
	s = strings.Trim(strings.TrimSpace(s), "[]()")
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, latOK := conflict.ParseFloat(parts[0])
	lon, lonOK := conflict.ParseFloat(parts[1])
	if !latOK || !lonOK || lat == 0 || lon == 0 {
		return 0, 0, false
	}
	return lat, lon, true
}

// assertedActivity returns the row's activity evidence. An explicit flag
// wins; otherwise sport and culture category columns count as evidence,
// any non-empty category meaning the site is an activity. The derived flag
// is written back to the row.
func (r *run) assertedActivity(row sources.Row) *bool {
	if v, ok := conflict.ParseBool(row.Get(sources.ColIsActivity)); ok {
		return &v
	}

	asserted, activity := false, false
	for _, col := range []string{sources.ColSportCategory, sources.ColCultureCategory} {
		v := row.Get(col)
		if v == "" || r.resolver.IsPlaceholder(v) {
			continue
		}
		asserted = true
		if b, ok := conflict.ParseBool(v); ok && !b {
			continue
		}
		activity = true
	}
	if !asserted {
		return nil
	}
	row[sources.ColIsActivity] = boolString(activity)
	return &activity
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
