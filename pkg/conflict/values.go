package conflict

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/lumea/pkg/constants"
)

// defaultPlaceholders are values sources use to mean "unknown".
var defaultPlaceholders = []string{
	"inconnu",
	"inconnue",
	"nan",
	"none",
	"null",
	"n/a",
	"na",
	"-",
	constants.UnknownInsee,
	constants.DescriptionMissing,
	constants.DescriptionWithheld,
}

// ParseBool interprets the boolean spellings found across sources.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "vrai", "oui", "yes", "y", "x":
		return true, true
	case "0", "false", "f", "faux", "non", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// ParseFloat parses a decimal number, accepting a comma decimal separator.
// Malformed, infinite and NaN values report ok=false.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// timeLayouts are tried in order by ParseTime.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseTime parses the timestamp layouts found across sources. Values
// without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatTime renders a timestamp the way resolved values carry it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatFloat renders a float the way resolved values carry it.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
