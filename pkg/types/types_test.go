package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/lumea/pkg/types"
)

func TestSourceIDIsValid(t *testing.T) {
	for _, id := range types.SourceIDs() {
		assert.True(t, id.IsValid(), id)
	}
	assert.False(t, types.SourceID("spreadsheet").IsValid())
	assert.Len(t, types.SourceIDs(), 5)
}

func TestEntityTypesOrder(t *testing.T) {
	assert.Equal(t, []types.EntityType{
		types.EntityDepartment,
		types.EntityCommune,
		types.EntitySite,
	}, types.EntityTypes())
	assert.Equal(t, "commune", types.EntityCommune.String())
}
