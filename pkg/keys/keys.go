// Package keys computes the identity keys used to decide that fragments
// from different sources describe the same Department, Commune or Site.
//
// All functions are pure. A key function returns ok=false when the row does
// not carry enough material to build a key; callers count such rows as
// dropped.
package keys

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/sources"
)

// Key is an opaque identity key.
type Key string

// String returns the string representation of a key.
func (k Key) String() string {
	return string(k)
}

// Key prefixes.
const (
	departmentPrefix  = "dept:"
	inseePrefix       = "insee:"
	communeNamePrefix = "name:"
	sitePrefix        = "site:"

	sep      = "|"
	noCoord  = "-"
	activity = "activity"
	place    = "place"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'", "`", "'")

// Normalize folds case and diacritics, unifies apostrophes and collapses
// whitespace. "  Côtes-d’Armor " and "COTES-D'ARMOR" normalize identically.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = apostrophes.Replace(folded)
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// NormalizeInsee trims an INSEE code and treats the "00000" filler as absent.
func NormalizeInsee(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == constants.UnknownInsee {
		return ""
	}
	return code
}

// Department returns the department key for a name.
func Department(name string) (Key, bool) {
	n := Normalize(name)
	if n == "" {
		return "", false
	}
	return Key(departmentPrefix + n), true
}

// CommuneByInsee returns the exact commune key for an INSEE code.
func CommuneByInsee(insee string) (Key, bool) {
	code := NormalizeInsee(insee)
	if code == "" {
		return "", false
	}
	return Key(inseePrefix + code), true
}

// CommuneByName returns the fallback commune key from a commune name and
// the name of its department. The department may be empty.
func CommuneByName(name, department string) (Key, bool) {
	n := Normalize(name)
	if n == "" {
		return "", false
	}
	return Key(communeNamePrefix + n + sep + Normalize(department)), true
}

// Commune returns the exact key when insee is usable and the fallback
// composite key otherwise.
func Commune(insee, name, department string) (Key, bool) {
	if k, ok := CommuneByInsee(insee); ok {
		return k, true
	}
	return CommuneByName(name, department)
}

// IsInsee reports whether k is an exact INSEE-based commune key.
func (k Key) IsInsee() bool {
	return strings.HasPrefix(string(k), inseePrefix)
}

// Site returns the site identity key. Coordinates are rounded to precision
// decimals; a nil point marks a site without coordinates.
func Site(name string, isActivity bool, point *orb.Point, precision int) (Key, bool) {
	n := Normalize(name)
	if n == "" {
		return "", false
	}

	kind := place
	if isActivity {
		kind = activity
	}

	lat, lon := noCoord, noCoord
	if point != nil {
		rounded := Round(*point, precision)
		lat = formatCoord(rounded.Lat(), precision)
		lon = formatCoord(rounded.Lon(), precision)
	}
	return Key(sitePrefix + n + sep + kind + sep + lat + sep + lon), true
}

// Round rounds both coordinates of p to precision decimals.
func Round(p orb.Point, precision int) orb.Point {
	if precision < 0 {
		precision = 0
	}
	factor := int(math.Pow10(precision))
	return orb.Round(p, factor).(orb.Point)
}

func formatCoord(v float64, precision int) string {
	s := strconv.FormatFloat(v, 'f', precision, 64)
	// -0.0000 and 0.0000 are the same coordinate
	if strings.Trim(s, "-0.") == "" {
		return strconv.FormatFloat(0, 'f', precision, 64)
	}
	return s
}

// DepartmentKey resolves the department key of a normalized source row.
func DepartmentKey(row sources.Row) (Key, bool) {
	return Department(row.Get(sources.ColDepartmentName))
}

// CommuneKey resolves the commune key of a normalized source row.
func CommuneKey(row sources.Row) (Key, bool) {
	return Commune(row.Get(sources.ColInseeCode), row.Get(sources.ColCommuneName), row.Get(sources.ColDepartmentName))
}

// SiteKey resolves the site key of a normalized source row whose
// coordinates are already parsed by the caller.
func SiteKey(row sources.Row, isActivity bool, point *orb.Point, precision int) (Key, bool) {
	return Site(row.Get(sources.ColSiteName), isActivity, point, precision)
}
