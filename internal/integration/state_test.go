package integration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cityview/urbanimpact/internal/integration"
)

func TestPath(t *testing.T) {
	assert.Equal(t, []integration.State{
		integration.StateInit,
		integration.StateParseTraffic,
		integration.StateParseAQI,
		integration.StateFetchBaseline,
		integration.StateApplyTraffic,
		integration.StateSimulateFinal,
		integration.StateDone,
	}, integration.Path())
}

func TestState_Terminal(t *testing.T) {
	assert.True(t, integration.StateDone.Terminal())
	assert.True(t, integration.StateError.Terminal())
	assert.False(t, integration.StateInit.Terminal())

	assert.Equal(t, integration.StateDone, integration.StateDone.Next())
	assert.Equal(t, integration.StateError, integration.StateError.Next())
}
