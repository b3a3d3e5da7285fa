package extract

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/agentstation/lumea/internal/transport"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// ScrapedDepartments is how many trailing list entries of the page name
// departments rather than communes.
const ScrapedDepartments = 4

// ScrapedPage extracts regional names from an HTML list of
// "name : regional name" entries.
type ScrapedPage struct {
	url         string
	client      *transport.Client
	departments int
}

// NewScrapedPage creates the scraped-page extractor. A nil hc selects the
// default HTTP client.
func NewScrapedPage(url string, hc *http.Client) *ScrapedPage {
	return &ScrapedPage{
		url:         url,
		client:      transport.New(types.ScrapedPage.String(), hc),
		departments: ScrapedDepartments,
	}
}

// Source implements Extractor.
func (s *ScrapedPage) Source() types.SourceID { return types.ScrapedPage }

// Extract implements Extractor.
func (s *ScrapedPage) Extract(ctx context.Context) (*sources.Table, error) {
	body, err := s.client.Get(ctx, s.url, "text/html")
	if err != nil {
		return nil, err
	}
	table, err := ParsePairs(body, s.departments)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug().
		Str("url", s.url).
		Int("rows", table.Len()).
		Msg("Page scraped")
	return table, nil
}

// ParsePairs reads every <li> of the page holding "name : regional name".
// The last departments entries are emitted as departments, the others as
// communes.
func ParsePairs(page []byte, departments int) (*sources.Table, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, errors.WrapParse("html", types.ScrapedPage.String(), err)
	}

	type pair struct{ name, regional string }
	var pairs []pair
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "li" {
			name, regional, ok := strings.Cut(text(n), ":")
			name, regional = strings.TrimSpace(name), strings.TrimSpace(regional)
			if ok && name != "" && regional != "" {
				pairs = append(pairs, pair{name, regional})
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	table := sources.NewTable(types.ScrapedPage,
		sources.ColCommuneName, sources.ColCommuneNameRegional,
		sources.ColDepartmentName, sources.ColDepartmentNameRegional)

	split := max(len(pairs)-departments, 0)
	for i, p := range pairs {
		if i < split {
			table.AppendValues(p.name, p.regional, "", "")
		} else {
			table.AppendValues("", "", p.name, p.regional)
		}
	}
	return table, nil
}

// text returns the visible text of n with whitespace collapsed.
func text(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
