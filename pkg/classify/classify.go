// Package classify decides whether a site is an activity from its name.
//
// Classification is a pure function of the normalized name and a declared
// keyword vocabulary; swapping the vocabulary never touches merge logic.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agentstation/lumea/pkg/keys"
)

// DefaultKeywords is the activity vocabulary. Entries are matched as whole
// words (or word sequences) against the normalized site name, so accents in
// the list are optional.
var DefaultKeywords = []string{
	"visite", "visites", "surf", "surfing", "canoe", "canoë", "kayak", "balade", "balades",
	"voile", "tennis", "piscine", "nautique", "nautic", "cyclotouriste",
	"cinéma", "cine", "climb", "escalade", "golf", "vélo", "vélos", "velo",
	"gym", "pilates", "karting", "rando", "randos", "randonnée", "concert",
	"théâtre", "spectacle", "expo", "exposition", "sortie", "sorties",
	"rencontres", "marche", "yoga", "relaxation", "soirée jeux", "contée",
	"vente directe", "handball", "stage", "soirée", "initiation pêche",
	"atelier cuisine", "journée immersion", "excursion", "excursions",
}

// Classifier matches site names against a keyword vocabulary.
type Classifier struct {
	pattern *regexp.Regexp
}

// New compiles a classifier for the given keywords. Keywords are normalized
// the same way as site names.
func New(keywords ...string) *Classifier {
	seen := make(map[string]struct{}, len(keywords))
	var normalized []string
	for _, kw := range keywords {
		n := keys.Normalize(kw)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	// longest first so multi-word entries win the alternation
	sort.SliceStable(normalized, func(i, j int) bool { return len(normalized[i]) > len(normalized[j]) })

	c := &Classifier{}
	if len(normalized) > 0 {
		quoted := make([]string, len(normalized))
		for i, kw := range normalized {
			quoted[i] = regexp.QuoteMeta(kw)
		}
		c.pattern = regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`)
	}
	return c
}

// Default returns a classifier over DefaultKeywords.
func Default() *Classifier {
	return New(DefaultKeywords...)
}

// IsActivity reports whether name contains an activity keyword.
func (c *Classifier) IsActivity(name string) bool {
	if c == nil || c.pattern == nil {
		return false
	}
	return c.pattern.MatchString(keys.Normalize(name))
}

// Classify returns the activity and place flags implied by name alone: a
// name with no activity keyword is a place.
func (c *Classifier) Classify(name string) (isActivity, isPlace bool) {
	isActivity = c.IsActivity(name)
	return isActivity, !isActivity
}
