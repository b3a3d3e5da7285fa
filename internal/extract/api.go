package extract

import (
	"context"
	"net/http"
	"strconv"

	"github.com/agentstation/lumea/internal/transport"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// CatalogAPIURL lists the "petites cités de caractère" of Brittany.
const CatalogAPIURL = "https://data.bretagne.bzh/api/records/1.0/search/?dataset=petites-cites-de-caractere-en-bretagne&rows=100"

// Raw catalog columns.
const (
	apiInsee    = "code_insee"
	apiName     = "nom"
	apiHeritage = "label_cite_caractere"
)

// catalogPayload accepts both the records/fields envelope and the flat
// results list of the newer API version.
type catalogPayload struct {
	Records []struct {
		Fields map[string]any `json:"fields"`
	} `json:"records"`
	Results []map[string]any `json:"results"`
}

// CatalogAPI extracts heritage-labelled communes from the remote catalog.
type CatalogAPI struct {
	url    string
	client *transport.Client
}

// NewCatalogAPI creates the catalog extractor. An empty url selects
// CatalogAPIURL and a nil hc the default HTTP client.
func NewCatalogAPI(url string, hc *http.Client) *CatalogAPI {
	if url == "" {
		url = CatalogAPIURL
	}
	return &CatalogAPI{
		url:    url,
		client: transport.New(types.CatalogAPI.String(), hc),
	}
}

// Source implements Extractor.
func (a *CatalogAPI) Source() types.SourceID { return types.CatalogAPI }

// Extract implements Extractor. Every commune of the catalog carries the
// heritage label.
func (a *CatalogAPI) Extract(ctx context.Context) (*sources.Table, error) {
	var payload catalogPayload
	if err := a.client.GetJSON(ctx, a.url, &payload); err != nil {
		return nil, err
	}

	items := payload.Results
	for _, r := range payload.Records {
		items = append(items, r.Fields)
	}

	table := sources.NewTable(types.CatalogAPI, apiInsee, apiName, apiHeritage)
	for _, fields := range items {
		table.AppendValues(stringify(fields[apiInsee]), stringify(fields[apiName]), strconv.FormatBool(true))
	}

	logging.FromContext(ctx).Debug().
		Str("url", a.url).
		Int("rows", table.Len()).
		Msg("Catalog fetched")
	return table, nil
}
