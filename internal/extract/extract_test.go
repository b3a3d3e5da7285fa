package extract_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/agentstation/lumea/internal/dbopen"
	"github.com/agentstation/lumea/internal/extract"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

const catalogResponse = `{
	"nhits": 2,
	"records": [
		{"recordid": "a1", "fields": {"code_insee": "29135", "nom": "Locronan", "population": 800}},
		{"recordid": "a2", "fields": {"code_insee": 56121, "nom": "Josselin"}}
	]
}`

func TestCatalogAPI(t *testing.T) {
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	const url = "https://catalog.example/api/records/1.0/search/"

	t.Run("records", func(t *testing.T) {
		httpmock.RegisterResponder("GET", url, httpmock.NewStringResponder(http.StatusOK, catalogResponse))

		api := extract.NewCatalogAPI(url, nil)
		assert.Equal(t, types.CatalogAPI, api.Source())

		table, err := api.Extract(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, table.Len())
		assert.Equal(t, []string{"code_insee", "nom", "label_cite_caractere"}, table.Columns)
		assert.Equal(t, "Locronan", table.Rows[0].Get("nom"))
		assert.Equal(t, "56121", table.Rows[1].Get("code_insee"))
		assert.Equal(t, "true", table.Rows[1].Get("label_cite_caractere"))

		normalized := table.Normalize()
		require.NoError(t, normalized.Validate())
		assert.Equal(t, "Josselin", normalized.Rows[1].Get(sources.ColCommuneName))
		assert.Equal(t, "true", normalized.Rows[1].Get(sources.ColHeritageLabel))
	})

	t.Run("results", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", url, httpmock.NewStringResponder(http.StatusOK,
			`{"results": [{"code_insee": "22162", "nom": "Moncontour"}]}`))

		table, err := extract.NewCatalogAPI(url, nil).Extract(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, table.Len())
		assert.Equal(t, "Moncontour", table.Rows[0].Get("nom"))
	})

	t.Run("unavailable", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", url, httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

		_, err := extract.NewCatalogAPI(url, nil).Extract(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrSourceUnavailable)
	})
}

func TestDocumentsTable(t *testing.T) {
	docs := []bson.M{
		{
			"_id":                        "665f",
			"nom_site":                   "Phare du Minou",
			"code_postal_et_nom_commune": "29019#Brest",
			"type_site":                  "https://schema.example/tourisme#PointOfInterest",
			"point_geo":                  "48.3376,-4.6152",
			"est_activite":               false,
			"prestataire_id":             int32(3),
		},
		{
			"nom_site":  "Base de Kerlouan",
			"latitude":  48.6452,
			"longitude": -4.3661,
			"point_geo": bson.M{"type": "Point", "coordinates": bson.A{-4.3661, 48.6452}},
		},
		{
			"nom_site":  "Menhir de Kerloas",
			"point_geo": bson.A{48.4411, -4.6664},
		},
	}

	table := extract.DocumentsTable(docs)
	require.Equal(t, 3, table.Len())
	assert.NotContains(t, table.Columns, "_id")

	first := table.Rows[0]
	assert.Equal(t, "29019#Brest", first.Get("code_postal_et_nom_commune"))
	assert.Equal(t, "false", first.Get("est_activite"))
	assert.Equal(t, "3", first.Get("prestataire_id"))
	assert.Equal(t, "48.3376,-4.6152", first.Get("point_geo"))

	assert.Equal(t, "48.6452,-4.3661", table.Rows[1].Get("point_geo"))
	assert.Equal(t, "48.6452", table.Rows[1].Get("latitude"))
	assert.Equal(t, "48.4411,-4.6664", table.Rows[2].Get("point_geo"))
	assert.Empty(t, table.Rows[2].Get("description"))

	normalized := table.Normalize()
	require.NoError(t, normalized.Validate())
	assert.True(t, normalized.HasColumn(sources.ColCommuneCombined))
}

func TestRelationalStaging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SQLite_data_brut.sqlite")
	db, err := dbopen.Open(path, dbopen.WithSchema(`
		CREATE TABLE Department (department_id INTEGER PRIMARY KEY, code_department TEXT, nom_department TEXT);
		CREATE TABLE Commune (commune_id INTEGER PRIMARY KEY, code_insee TEXT, nom_commune TEXT, department_id INTEGER);
		INSERT INTO Department VALUES (1, '29', 'Finistère'), (2, '56', 'Morbihan');
		INSERT INTO Commune VALUES (1, '29232', 'Quimper', 1), (2, '29019', 'Brest', 1), (3, '56260', 'Vannes', 2);`))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	staging := extract.NewRelationalStaging(path)
	assert.Equal(t, types.RelationalStaging, staging.Source())

	table, err := staging.Extract(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"code_insee", "nom_commune", "code_department", "nom_department"}, table.Columns)
	// ordered by department then commune name
	assert.Equal(t, "Brest", table.Rows[0].Get("nom_commune"))
	assert.Equal(t, "Quimper", table.Rows[1].Get("nom_commune"))
	assert.Equal(t, "Morbihan", table.Rows[2].Get("nom_department"))

	t.Run("missing tables", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "empty.sqlite")
		_, err := extract.NewRelationalStaging(empty).Extract(context.Background())
		assert.Error(t, err)
	})
}

func TestFlatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CSV_source.csv")
	content := "\ufeffSyndicObjectName;GmapLatitude;GmapLongitude;DetailIDENTADRESSEINSEE;DetailIDENTADRESSECOMMUNE;Updated\n" +
		"Kayak de mer;48,0123;-4,1234;29019;Brest;2024-03-01\n" +
		"Initiation pêche;47.9;-3.5;29232;Quimper;2024-03-02\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	flat := extract.NewFlatFile(path)
	assert.Equal(t, types.FlatFile, flat.Source())

	table, err := flat.Extract(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "SyndicObjectName", table.Columns[0])
	assert.Contains(t, table.Columns, "est_activite")
	assert.Equal(t, "48,0123", table.Rows[0].Get("GmapLatitude"))
	for _, row := range table.Rows {
		assert.Equal(t, "true", row.Get("est_activite"))
	}

	normalized := table.Normalize()
	require.NoError(t, normalized.Validate())
	assert.Equal(t, "Kayak de mer", normalized.Rows[0].Get(sources.ColSiteName))
	assert.Equal(t, "true", normalized.Rows[1].Get(sources.ColIsActivity))

	t.Run("missing file", func(t *testing.T) {
		_, err := extract.NewFlatFile(filepath.Join(t.TempDir(), "absent.csv")).Extract(context.Background())
		var ioErr *errors.IOError
		assert.ErrorAs(t, err, &ioErr)
	})
}

const scrapedPage = `<!doctype html>
<html><body>
<nav><ul><li><a href="/">Accueil</a></li></ul></nav>
<article>
<ul>
	<li>Brest : <strong>Brest</strong></li>
	<li>Quimper : Kemper</li>
	<li>Vannes : Gwened</li>
	<li>Sans traduction</li>
</ul>
<ul>
	<li>Côtes-d'Armor : Aodoù-an-Arvor</li>
	<li>Finistère : Penn-ar-Bed</li>
	<li>Ille-et-Vilaine : Il-ha-Gwilen</li>
	<li>Morbihan : Mor-Bihan</li>
</ul>
</article>
</body></html>`

func TestScrapedPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(scrapedPage))
	}))
	defer server.Close()

	page := extract.NewScrapedPage(server.URL, nil)
	assert.Equal(t, types.ScrapedPage, page.Source())

	table, err := page.Extract(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, table.Len())

	assert.Equal(t, "Brest", table.Rows[0].Get(sources.ColCommuneName))
	assert.Equal(t, "Brest", table.Rows[0].Get(sources.ColCommuneNameRegional))
	assert.Equal(t, "Kemper", table.Rows[1].Get(sources.ColCommuneNameRegional))
	assert.Empty(t, table.Rows[2].Get(sources.ColDepartmentName))

	for _, row := range table.Rows[3:] {
		assert.Empty(t, row.Get(sources.ColCommuneName))
		assert.NotEmpty(t, row.Get(sources.ColDepartmentName))
	}
	assert.Equal(t, "Mor-Bihan", table.Rows[6].Get(sources.ColDepartmentNameRegional))
	require.NoError(t, table.Normalize().Validate())
}

func TestParsePairsFewerThanDepartments(t *testing.T) {
	table, err := extract.ParsePairs([]byte(`<ul><li>Finistère : Penn-ar-Bed</li></ul>`), extract.ScrapedDepartments)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "Finistère", table.Rows[0].Get(sources.ColDepartmentName))
}

func TestUnconfigured(t *testing.T) {
	e := extract.Unconfigured(types.DocumentStore, "LUMEA_MONGO_URI is empty")
	assert.Equal(t, types.DocumentStore, e.Source())

	_, err := e.Extract(context.Background())
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "LUMEA_MONGO_URI")
}
