package anonymize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lumea/pkg/anonymize"
	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
)

func TestMatches(t *testing.T) {
	d := anonymize.Default()

	tests := []struct {
		text string
		want bool
	}{
		{"Jean Dupont", true},
		{"Chez Hélène Martin", true},
		{"Plage du Port", false},
		{"Plage du port de Brest", false},
		{"JEAN DUPONT", false},
		{"balade en kayak", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Matches(tt.text))
		})
	}
}

func TestApply(t *testing.T) {
	d := anonymize.Default()

	t.Run("personal name on a place", func(t *testing.T) {
		res := d.Apply("Jean Dupont", "Gîte tenu par la famille", false, 7)
		assert.Equal(t, "Lieu #7", res.Name)
		assert.True(t, res.Anonymized)
		assert.Equal(t, "Gîte tenu par la famille", res.Description)
	})

	t.Run("personal name on an activity", func(t *testing.T) {
		res := d.Apply("Marie Le Goff", "", true, 3)
		assert.Equal(t, "Activité #3", res.Name)
		assert.Equal(t, constants.DescriptionMissing, res.Description)
		assert.True(t, res.Anonymized)
	})

	t.Run("ordinary place", func(t *testing.T) {
		res := d.Apply("Plage du Port", "  ", false, 1)
		assert.Equal(t, "Plage du Port", res.Name)
		assert.Equal(t, constants.DescriptionMissing, res.Description)
		assert.False(t, res.Anonymized)
	})

	t.Run("description naming a person", func(t *testing.T) {
		res := d.Apply("Plage du Port", "Contactez Yann Kervella", false, 1)
		assert.Equal(t, constants.DescriptionWithheld, res.Description)
		assert.True(t, res.Anonymized)
	})

	t.Run("placeholders are left alone", func(t *testing.T) {
		res := d.Apply("Phare", constants.DescriptionMissing, false, 1)
		assert.Equal(t, constants.DescriptionMissing, res.Description)
		assert.False(t, res.Anonymized)
	})
}

func TestNew(t *testing.T) {
	d, err := anonymize.New(`[A-Z][a-z]+\s+[A-Z][a-z]+`)
	require.NoError(t, err)
	assert.False(t, d.Matches("Hélène Martin"))
	assert.True(t, d.Matches("Yann Martin"))

	_, err = anonymize.New(`(`)
	assert.True(t, errors.IsValidationError(err))
}
