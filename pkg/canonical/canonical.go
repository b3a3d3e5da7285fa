// Package canonical holds the reconciled, source-agnostic entity graph.
// Foreign references are symbolic keys resolved inside the graph; database
// identifiers only appear at load time.
package canonical

import (
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/agentstation/lumea/pkg/keys"
)

// Department is a canonical department.
type Department struct {
	Key          keys.Key
	Name         string
	NameRegional string
}

// Commune is a canonical commune.
type Commune struct {
	Key           keys.Key
	Name          string
	NameRegional  string
	InseeCode     string
	HeritageLabel bool
	DepartmentRef keys.Key
}

// Site is a canonical tourist site or activity.
type Site struct {
	Key         keys.Key
	Name        string
	IsActivity  bool
	IsPlace     bool
	Description string
	// Coordinates is nil when no source located the site.
	Coordinates *orb.Point
	CommuneRef  keys.Key
	ProviderRef *int64
	Anonymized  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Latitude returns the site latitude, if known.
func (s *Site) Latitude() (float64, bool) {
	if s.Coordinates == nil {
		return 0, false
	}
	return s.Coordinates.Lat(), true
}

// Longitude returns the site longitude, if known.
func (s *Site) Longitude() (float64, bool) {
	if s.Coordinates == nil {
		return 0, false
	}
	return s.Coordinates.Lon(), true
}

// NewPoint builds a coordinate pair from latitude and longitude.
func NewPoint(lat, lon float64) *orb.Point {
	p := orb.Point{lon, lat}
	return &p
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}
