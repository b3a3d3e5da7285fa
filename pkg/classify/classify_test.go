package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/lumea/pkg/classify"
)

func TestDefaultClassifier(t *testing.T) {
	c := classify.Default()

	tests := []struct {
		name     string
		activity bool
	}{
		{"Balade en kayak sur l'Aulne", true},
		{"Initiation Pêche en rivière", true},
		{"Cours de YOGA", true},
		{"Location de vélos", true},
		{"Théâtre de Cornouaille", true},
		{"Excursion aux îles", true},
		{"Plage du Port", false},
		{"Chapelle Notre-Dame", false},
		{"Golfe du Morbihan", false}, // "golf" must match a whole word
		{"Rue de la Visitation", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.activity, c.IsActivity(tt.name))
			isActivity, isPlace := c.Classify(tt.name)
			assert.Equal(t, tt.activity, isActivity)
			assert.Equal(t, !tt.activity, isPlace)
		})
	}
}

func TestCustomVocabulary(t *testing.T) {
	c := classify.New("Dégustation", "dégustation", " ", "fest noz")
	assert.True(t, c.IsActivity("DEGUSTATION"))
	assert.False(t, c.IsActivity("Pointe du Raz"), "blank keyword matches nothing")
	assert.False(t, c.IsActivity("Grand FEST-NOZ d'été"))
	assert.True(t, c.IsActivity("Fest noz du port"))
	assert.True(t, c.IsActivity("Dégustation d'huîtres"))
	assert.False(t, c.IsActivity("Balade en kayak"))
}

func TestEmptyVocabulary(t *testing.T) {
	c := classify.New()
	assert.False(t, c.IsActivity("Balade"))

	var nilClassifier *classify.Classifier
	assert.False(t, nilClassifier.IsActivity("Balade"))
}
