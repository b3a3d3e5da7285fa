// Package anonymize replaces site names and descriptions that look like a
// personal name ("Capitalized-word Capitalized-word") with stable synthetic
// values.
package anonymize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
)

// DefaultPattern detects two consecutive capitalized words.
const DefaultPattern = `\p{Lu}\p{Ll}+\s+\p{Lu}\p{Ll}+`

// Detector flags text that looks like a personal name.
type Detector struct {
	pattern *regexp.Regexp
}

// New compiles a detector from a regular expression.
func New(pattern string) (*Detector, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.NewValidationError("pattern", pattern, err.Error())
	}
	return &Detector{pattern: re}, nil
}

// Default returns a detector using DefaultPattern.
func Default() *Detector {
	return &Detector{pattern: regexp.MustCompile(DefaultPattern)}
}

// Matches reports whether s looks like it contains a personal name.
func (d *Detector) Matches(s string) bool {
	if d == nil || d.pattern == nil {
		return false
	}
	return d.pattern.MatchString(s)
}

// Label returns the synthetic name for the n-th site.
func Label(isActivity bool, n int) string {
	if isActivity {
		return fmt.Sprintf("%s #%d", constants.ActivityLabel, n)
	}
	return fmt.Sprintf("%s #%d", constants.PlaceLabel, n)
}

// Result is the outcome of Apply.
type Result struct {
	Name        string
	Description string
	Anonymized  bool
}

// Apply anonymizes a site's name and description. ordinal numbers the
// synthetic label; callers pass a stable, 1-based position. An empty
// description is replaced by a placeholder without flagging the site.
func (d *Detector) Apply(name, description string, isActivity bool, ordinal int) Result {
	res := Result{Name: name, Description: strings.TrimSpace(description)}

	if d.Matches(name) {
		res.Name = Label(isActivity, ordinal)
		res.Anonymized = true
	}

	switch {
	case res.Description == "":
		res.Description = constants.DescriptionMissing
	case res.Description == constants.DescriptionMissing || res.Description == constants.DescriptionWithheld:
	case d.Matches(res.Description):
		res.Description = constants.DescriptionWithheld
		res.Anonymized = true
	}
	return res
}
