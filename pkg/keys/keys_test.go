package keys_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lumea/pkg/keys"
	"github.com/agentstation/lumea/pkg/sources"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Côtes-d’Armor ", "cotes-d'armor"},
		{"COTES-D'ARMOR", "cotes-d'armor"},
		{"Finistère", "finistere"},
		{"Saint-Pol-de-Léon", "saint-pol-de-leon"},
		{"Plage   du\tPort", "plage du port"},
		{"Île-et-Vilaine", "ile-et-vilaine"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, keys.Normalize(tt.in))
		})
	}
}

func TestDepartmentKey(t *testing.T) {
	a, ok := keys.Department("Côtes-d'Armor")
	require.True(t, ok)
	b, ok := keys.Department("cotes-d’armor")
	require.True(t, ok)
	assert.Equal(t, a, b)

	_, ok = keys.Department("   ")
	assert.False(t, ok)
}

func TestCommuneKey(t *testing.T) {
	t.Run("insee wins", func(t *testing.T) {
		k, ok := keys.Commune(" 29021 ", "Brest", "Finistère")
		require.True(t, ok)
		assert.Equal(t, keys.Key("insee:29021"), k)
		assert.True(t, k.IsInsee())
	})

	t.Run("filler insee falls back to name", func(t *testing.T) {
		k, ok := keys.Commune("00000", "Brest", "Finistère")
		require.True(t, ok)
		assert.Equal(t, keys.Key("name:brest|finistere"), k)
		assert.False(t, k.IsInsee())
	})

	t.Run("name without department", func(t *testing.T) {
		k, ok := keys.Commune("", "Brest", "")
		require.True(t, ok)
		assert.Equal(t, keys.Key("name:brest|"), k)
	})

	t.Run("no material", func(t *testing.T) {
		_, ok := keys.Commune("", "", "Finistère")
		assert.False(t, ok)
	})

	t.Run("from row", func(t *testing.T) {
		row := sources.Row{
			sources.ColCommuneName:    "Quimper",
			sources.ColDepartmentName: "Finistère",
		}
		k, ok := keys.CommuneKey(row)
		require.True(t, ok)
		assert.Equal(t, keys.Key("name:quimper|finistere"), k)
	})
}

func TestSiteKey(t *testing.T) {
	p := func(lat, lon float64) *orb.Point {
		pt := orb.Point{lon, lat}
		return &pt
	}

	t.Run("activity flag is part of the key", func(t *testing.T) {
		a, _ := keys.Site("Golf de Brest", true, p(48.4, -4.5), 4)
		b, _ := keys.Site("Golf de Brest", false, p(48.4, -4.5), 4)
		assert.NotEqual(t, a, b)
	})

	t.Run("missing coordinates", func(t *testing.T) {
		k, ok := keys.Site("Phare", false, nil, 4)
		require.True(t, ok)
		assert.Equal(t, keys.Key("site:phare|place|-|-"), k)
	})

	t.Run("no name", func(t *testing.T) {
		_, ok := keys.SiteKey(sources.Row{}, false, p(1, 1), 4)
		assert.False(t, ok)
	})

	t.Run("negative zero", func(t *testing.T) {
		a, _ := keys.Site("x", false, p(0.00001, -0.00001), 4)
		b, _ := keys.Site("x", false, p(0, 0), 4)
		assert.Equal(t, a, b)
	})
}

// Rounding is to 4 decimals by default (about 11 m). Values on either side
// of the half-unit boundary must land in different buckets.
func TestSiteKeyRoundingBoundary(t *testing.T) {
	base := orb.Point{2.35, 48.85}
	key := func(lat float64) keys.Key {
		pt := orb.Point{base.Lon(), lat}
		k, _ := keys.Site("Plage du Port", false, &pt, 4)
		return k
	}

	tests := []struct {
		name string
		lat  float64
		same bool
	}{
		{"identical", 48.85, true},
		{"below half unit", 48.85004, true},
		{"below half unit negative side", 48.84996, true},
		{"above half unit", 48.85006, false},
		{"one unit away", 48.8501, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, key(tt.lat) == key(base.Lat()))
		})
	}

	t.Run("precision is configurable", func(t *testing.T) {
		a := orb.Point{2.35, 48.8501}
		b := orb.Point{2.35, 48.85}
		ka, _ := keys.Site("x", false, &a, 3)
		kb, _ := keys.Site("x", false, &b, 3)
		assert.Equal(t, ka, kb)
	})
}

func TestRound(t *testing.T) {
	got := keys.Round(orb.Point{2.349996, 48.850004}, 4)
	assert.InDelta(t, 2.35, got.Lon(), 1e-9)
	assert.InDelta(t, 48.85, got.Lat(), 1e-9)
}
