package docker

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBuildLabels(t *testing.T) {
	labels := BuildLabels("valley", "run-123", RoleBroker)

	assert.Equal(t, "true", labels[LabelProject])
	assert.Equal(t, "valley", labels[LabelSession])
	assert.Equal(t, "run-123", labels[LabelRunID])
	assert.Equal(t, RoleBroker, labels[LabelRole])
	assert.Len(t, labels, 4)
}

func TestBuildLabels_NoRole(t *testing.T) {
	labels := BuildLabels("valley", "run-456", "")

	assert.NotContains(t, labels, LabelRole)
	assert.Len(t, labels, 3)
}

func TestGenerateRunID(t *testing.T) {
	first := GenerateRunID()
	second := GenerateRunID()

	_, err := uuid.Parse(first)
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestResourceNames(t *testing.T) {
	assert.Equal(t, "retinue-network-valley", NetworkName("valley"))
	assert.Equal(t, "retinue-redis-valley", BrokerContainerName("valley"))
}

func TestFilters(t *testing.T) {
	args := BrokerFilter(LabelArg(LabelSession, "valley"))
	assert.ElementsMatch(t, []string{
		"retinue.project=true",
		"retinue.role=broker",
		"retinue.session=valley",
	}, args.Get("label"))

	assert.Equal(t, []string{"retinue.session=farm"}, SessionFilter("farm").Get("label"))
}
