package canonical

import (
	"fmt"
	"strconv"
	"time"

	"github.com/agentstation/lumea/pkg/keys"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// Dataset is the canonical graph produced by one reconciliation run.
type Dataset struct {
	Departments []Department
	Communes    []Commune
	Sites       []Site
}

// Counts returns the number of rows per entity type.
func (d *Dataset) Counts() map[types.EntityType]int {
	return map[types.EntityType]int{
		types.EntityDepartment: len(d.Departments),
		types.EntityCommune:    len(d.Communes),
		types.EntitySite:       len(d.Sites),
	}
}

// Department returns the department with key k.
func (d *Dataset) Department(k keys.Key) (*Department, bool) {
	for i := range d.Departments {
		if d.Departments[i].Key == k {
			return &d.Departments[i], true
		}
	}
	return nil, false
}

// Commune returns the commune with key k.
func (d *Dataset) Commune(k keys.Key) (*Commune, bool) {
	for i := range d.Communes {
		if d.Communes[i].Key == k {
			return &d.Communes[i], true
		}
	}
	return nil, false
}

// Validate checks referential completeness, key uniqueness and INSEE
// uniqueness. It returns every violation found.
func (d *Dataset) Validate() []error {
	var errs []error

	departments := make(map[keys.Key]struct{}, len(d.Departments))
	for _, dep := range d.Departments {
		if _, dup := departments[dep.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate department key %s", dep.Key))
		}
		departments[dep.Key] = struct{}{}
	}

	communes := make(map[keys.Key]struct{}, len(d.Communes))
	insee := make(map[string]keys.Key)
	for _, c := range d.Communes {
		if _, dup := communes[c.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate commune key %s", c.Key))
		}
		communes[c.Key] = struct{}{}
		if _, ok := departments[c.DepartmentRef]; !ok {
			errs = append(errs, fmt.Errorf("commune %s references unknown department %s", c.Key, c.DepartmentRef))
		}
		if c.InseeCode != "" {
			if other, dup := insee[c.InseeCode]; dup {
				errs = append(errs, fmt.Errorf("insee code %s shared by %s and %s", c.InseeCode, other, c.Key))
			}
			insee[c.InseeCode] = c.Key
		}
	}

	sites := make(map[keys.Key]struct{}, len(d.Sites))
	for _, s := range d.Sites {
		if _, dup := sites[s.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate site key %s", s.Key))
		}
		sites[s.Key] = struct{}{}
		if _, ok := communes[s.CommuneRef]; !ok {
			errs = append(errs, fmt.Errorf("site %s references unknown commune %s", s.Key, s.CommuneRef))
		}
	}
	return errs
}

// Snapshot column sets.
var (
	departmentColumns = []string{"key", sources.ColDepartmentName, sources.ColDepartmentNameRegional}
	communeColumns    = []string{"key", sources.ColCommuneName, sources.ColCommuneNameRegional, sources.ColInseeCode, sources.ColHeritageLabel, "department_ref"}
	siteColumns       = []string{"key", sources.ColSiteName, sources.ColIsActivity, sources.ColIsPlace, sources.ColDescription,
		sources.ColLatitude, sources.ColLongitude, "commune_ref", sources.ColProviderID, "anonymized", sources.ColCreatedAt, sources.ColUpdatedAt}
)

// Tables renders the dataset as flat tables for staging snapshots, keyed by
// entity type.
func (d *Dataset) Tables() map[types.EntityType]*sources.Table {
	deps := sources.NewTable("", departmentColumns...)
	for _, dep := range d.Departments {
		deps.AppendValues(dep.Key.String(), dep.Name, dep.NameRegional)
	}

	communes := sources.NewTable("", communeColumns...)
	for _, c := range d.Communes {
		communes.AppendValues(c.Key.String(), c.Name, c.NameRegional, c.InseeCode, formatBool(c.HeritageLabel), c.DepartmentRef.String())
	}

	sites := sources.NewTable("", siteColumns...)
	for i := range d.Sites {
		s := &d.Sites[i]
		lat, lon := "", ""
		if v, ok := s.Latitude(); ok {
			lat = strconv.FormatFloat(v, 'f', -1, 64)
		}
		if v, ok := s.Longitude(); ok {
			lon = strconv.FormatFloat(v, 'f', -1, 64)
		}
		provider := ""
		if s.ProviderRef != nil {
			provider = strconv.FormatInt(*s.ProviderRef, 10)
		}
		sites.AppendValues(s.Key.String(), s.Name, formatBool(s.IsActivity), formatBool(s.IsPlace), s.Description,
			lat, lon, s.CommuneRef.String(), provider, formatBool(s.Anonymized),
			s.CreatedAt.UTC().Format(time.RFC3339), s.UpdatedAt.UTC().Format(time.RFC3339))
	}

	return map[types.EntityType]*sources.Table{
		types.EntityDepartment: deps,
		types.EntityCommune:    communes,
		types.EntitySite:       sites,
	}
}
