package loader_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lumea/internal/dbopen"
	"github.com/agentstation/lumea/pkg/canonical"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/keys"
	"github.com/agentstation/lumea/pkg/loader"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/report"
)

var ingestion = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newLoader(t *testing.T) (*loader.Loader, *sql.DB) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	l := loader.New(db, loader.WithLogger(logging.NewNopLogger()))
	require.NoError(t, l.EnsureSchema(context.Background()))
	return l, db
}

func department(t *testing.T, name, regional string) canonical.Department {
	t.Helper()
	k, ok := keys.Department(name)
	require.True(t, ok)
	return canonical.Department{Key: k, Name: name, NameRegional: regional}
}

func commune(t *testing.T, insee, name string, dep canonical.Department) canonical.Commune {
	t.Helper()
	k, ok := keys.Commune(insee, name, dep.Name)
	require.True(t, ok)
	return canonical.Commune{Key: k, Name: name, InseeCode: insee, DepartmentRef: dep.Key}
}

func site(t *testing.T, name string, lat, lon float64, c canonical.Commune) canonical.Site {
	t.Helper()
	p := canonical.NewPoint(lat, lon)
	k, ok := keys.Site(name, false, p, 4)
	require.True(t, ok)
	return canonical.Site{
		Key:         k,
		Name:        name,
		IsPlace:     true,
		Description: "Phare",
		Coordinates: p,
		CommuneRef:  c.Key,
		CreatedAt:   ingestion,
		UpdatedAt:   ingestion,
	}
}

func finistere(t *testing.T) *canonical.Dataset {
	t.Helper()
	dep := department(t, "Finistère", "Penn-ar-Bed")
	brest := commune(t, "29019", "Brest", dep)
	locronan := commune(t, "29135", "Locronan", dep)
	locronan.HeritageLabel = true
	return &canonical.Dataset{
		Departments: []canonical.Department{dep},
		Communes:    []canonical.Commune{brest, locronan},
		Sites: []canonical.Site{
			site(t, "Phare du Minou", 48.3376, -4.6152, brest),
			site(t, "Place de l'église", 48.0978, -4.2088, locronan),
		},
	}
}

func TestEnsureSchema(t *testing.T) {
	ctx := context.Background()
	l, db := newLoader(t)

	// second call is a no-op
	require.NoError(t, l.EnsureSchema(ctx))

	counts, err := l.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(loader.Roles), counts[loader.TableRole])
	assert.Equal(t, 1, counts[loader.TableDepartment])
	assert.Equal(t, 0, counts[loader.TableSite])

	var regional string
	require.NoError(t, db.QueryRow(
		`SELECT name_regional FROM department WHERE name = 'Côtes-d''Armor'`).Scan(&regional))
	assert.Equal(t, "Aodoù-an-Arvor", regional)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	l, db := newLoader(t)

	result, err := l.Load(ctx, finistere(t))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted[loader.TableDepartment])
	assert.Equal(t, 2, result.Inserted[loader.TableCommune])
	assert.Equal(t, 2, result.Inserted[loader.TableSite])
	assert.Equal(t, []string{"department", "commune", "site"}, result.Committed)
	assert.Empty(t, result.RolledBack)
	assert.Empty(t, result.Drops)

	// seeded Côtes-d'Armor plus Finistère
	assert.Equal(t, 2, result.Counts[loader.TableDepartment])
	assert.Equal(t, 2, result.Counts[loader.TableCommune])
	assert.Equal(t, 2, result.Counts[loader.TableSite])

	var heritage bool
	require.NoError(t, db.QueryRow(
		`SELECT heritage_label FROM commune WHERE insee_code = '29135'`).Scan(&heritage))
	assert.True(t, heritage)

	var lat float64
	var commune string
	require.NoError(t, db.QueryRow(
		`SELECT s.latitude, c.name FROM site s JOIN commune c ON c.id = s.commune_id
		 WHERE s.name = 'Phare du Minou'`).Scan(&lat, &commune))
	assert.InDelta(t, 48.3376, lat, 1e-9)
	assert.Equal(t, "Brest", commune)
}

func TestLoadIdempotent(t *testing.T) {
	ctx := context.Background()
	l, _ := newLoader(t)
	ds := finistere(t)

	first, err := l.Load(ctx, ds)
	require.NoError(t, err)

	second, err := l.Load(ctx, ds)
	require.NoError(t, err)

	assert.Equal(t, first.Counts, second.Counts)
	for _, table := range []string{"department", "commune", "site"} {
		assert.Zero(t, second.Inserted[table], table)
		assert.Zero(t, second.Updated[table], table)
	}
	assert.Equal(t, 1, second.Unchanged[loader.TableDepartment])
	assert.Equal(t, 2, second.Unchanged[loader.TableCommune])
	assert.Equal(t, 2, second.Unchanged[loader.TableSite])
}

func TestLoadCommuneWithoutInsee(t *testing.T) {
	ctx := context.Background()
	l, db := newLoader(t)

	dep := department(t, "Morbihan", "")
	hamlet := commune(t, "", "Kerhinet", dep)
	ds := &canonical.Dataset{
		Departments: []canonical.Department{dep},
		Communes:    []canonical.Commune{hamlet},
	}

	_, err := l.Load(ctx, ds)
	require.NoError(t, err)
	result, err := l.Load(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged[loader.TableCommune])

	var insee sql.NullString
	require.NoError(t, db.QueryRow(`SELECT insee_code FROM commune WHERE name = 'Kerhinet'`).Scan(&insee))
	assert.False(t, insee.Valid)
}

func TestLoadFillsEmptyValues(t *testing.T) {
	ctx := context.Background()
	l, db := newLoader(t)

	dep := department(t, "Finistère", "")
	brest := commune(t, "29019", "Brest", dep)
	_, err := l.Load(ctx, &canonical.Dataset{
		Departments: []canonical.Department{dep},
		Communes:    []canonical.Commune{brest},
	})
	require.NoError(t, err)

	dep.NameRegional = "Penn-ar-Bed"
	brest.NameRegional = "Brest"
	brest.HeritageLabel = true
	result, err := l.Load(ctx, &canonical.Dataset{
		Departments: []canonical.Department{dep},
		Communes:    []canonical.Commune{brest},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated[loader.TableDepartment])
	assert.Equal(t, 1, result.Updated[loader.TableCommune])

	// a stored regional name is never overwritten
	dep.NameRegional = "Penn ar Bed"
	result, err = l.Load(ctx, &canonical.Dataset{Departments: []canonical.Department{dep}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged[loader.TableDepartment])

	var regional string
	require.NoError(t, db.QueryRow(`SELECT name_regional FROM department WHERE name = 'Finistère'`).Scan(&regional))
	assert.Equal(t, "Penn-ar-Bed", regional)
}

func TestLoadMissingReference(t *testing.T) {
	ctx := context.Background()
	l, _ := newLoader(t)

	dep := department(t, "Finistère", "")
	ghost := department(t, "Ille-et-Vilaine", "")
	rennes := commune(t, "35238", "Rennes", ghost)
	brest := commune(t, "29019", "Brest", dep)

	ds := &canonical.Dataset{
		Departments: []canonical.Department{dep},
		Communes:    []canonical.Commune{brest, rennes},
		Sites: []canonical.Site{
			site(t, "Parlement de Bretagne", 48.1121, -1.6790, rennes),
			site(t, "Phare du Minou", 48.3376, -4.6152, brest),
		},
	}

	result, err := l.Load(ctx, ds)
	require.NoError(t, err)
	require.Len(t, result.Drops, 2)
	for _, d := range result.Drops {
		assert.Equal(t, report.ReasonMissingReference, d.Reason)
		assert.Equal(t, report.StageLoad, d.Stage)
		assert.Empty(t, d.Source)
	}
	assert.Equal(t, 1, result.Counts[loader.TableCommune])
	assert.Equal(t, 1, result.Counts[loader.TableSite])
}

func TestLoadStoredSpelling(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		dep    string
		stored string
	}{
		{"curly apostrophe", "Côtes-d’Armor", "Côtes-d'Armor"},
		{"without diacritics", "Cotes-d'Armor", "Côtes-d'Armor"},
		{"upper case", "CÔTES-D'ARMOR", "Côtes-d'Armor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, db := newLoader(t)

			dep := department(t, tt.dep, "")
			ds := &canonical.Dataset{
				Departments: []canonical.Department{dep},
				Communes:    []canonical.Commune{commune(t, "22278", "Saint-Brieuc", dep)},
			}
			result, err := l.Load(ctx, ds)
			require.NoError(t, err)
			assert.Zero(t, result.Inserted[loader.TableDepartment])
			assert.Equal(t, 1, result.Unchanged[loader.TableDepartment])
			assert.Equal(t, 1, result.Inserted[loader.TableCommune])
			assert.Equal(t, 1, result.Counts[loader.TableDepartment])

			var name string
			require.NoError(t, db.QueryRow(
				`SELECT d.name FROM commune c JOIN department d ON d.id = c.department_id
				 WHERE c.insee_code = '22278'`).Scan(&name))
			assert.Equal(t, tt.stored, name)
		})
	}

	t.Run("loaded twice under two spellings", func(t *testing.T) {
		l, _ := newLoader(t)

		_, err := l.Load(ctx, &canonical.Dataset{
			Departments: []canonical.Department{department(t, "Finistère", "")},
		})
		require.NoError(t, err)

		result, err := l.Load(ctx, &canonical.Dataset{
			Departments: []canonical.Department{department(t, "FINISTÈRE", "Penn-ar-Bed")},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Updated[loader.TableDepartment])
		assert.Equal(t, 2, result.Counts[loader.TableDepartment])
	})
}

func TestLoadIntegrityRollback(t *testing.T) {
	ctx := context.Background()
	l, _ := newLoader(t)

	ds := finistere(t)
	// neither a place nor an activity
	ds.Sites[1].IsPlace = false

	result, err := l.Load(ctx, ds)
	require.Error(t, err)
	assert.True(t, errors.IsLoadIntegrity(err))
	require.NotNil(t, result)
	assert.Empty(t, result.Committed)
	assert.Equal(t, []string{"department", "commune", "site"}, result.RolledBack)
	assert.Equal(t, 1, result.Counts[loader.TableDepartment])
	assert.Equal(t, 0, result.Counts[loader.TableCommune])
	assert.Equal(t, 0, result.Counts[loader.TableSite])
	assert.Contains(t, err.Error(), "rolled back: department, commune, site")
}

func TestLoadUnknownProvider(t *testing.T) {
	ctx := context.Background()
	l, db := newLoader(t)

	ds := finistere(t)
	ref := int64(7)
	ds.Sites[0].ProviderRef = &ref

	_, err := l.Load(ctx, ds)
	require.NoError(t, err)

	var provider sql.NullInt64
	require.NoError(t, db.QueryRow(`SELECT provider_id FROM site WHERE name = 'Phare du Minou'`).Scan(&provider))
	assert.False(t, provider.Valid)
}

func TestLoadNilDataset(t *testing.T) {
	l, _ := newLoader(t)
	_, err := l.Load(context.Background(), nil)
	assert.True(t, errors.IsValidationError(err))
}

func TestResultApply(t *testing.T) {
	l, _ := newLoader(t)
	result, err := l.Load(context.Background(), finistere(t))
	require.NoError(t, err)

	rep := report.New()
	result.Apply(rep)
	assert.Equal(t, 2, rep.Tables["site"])
	assert.Equal(t, []string{"department", "commune", "site"}, rep.Committed)
}
