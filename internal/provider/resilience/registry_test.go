package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityview/urbanimpact/internal/provider/resilience"
)

func newRegistered(t *testing.T, registry *resilience.Registry, name string) *resilience.Client {
	t.Helper()
	return resilience.NewClient(resilience.ClientConfig{Name: name, Registry: registry})
}

func TestRegistry_RegisterAndGetHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	client := newRegistered(t, registry, "waqi")

	assert.Equal(t, 1, registry.ProviderCount())
	assert.Equal(t, "waqi", client.Name())

	health := registry.GetHealth("waqi")
	require.NotNil(t, health)
	assert.Equal(t, "waqi", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	newRegistered(t, registry, "overpass")

	registry.RecordSuccess("overpass")
	registry.RecordFailure("overpass", errors.New("gateway timeout"))

	health := registry.GetHealth("overpass")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastFailureAt, time.Second)
	assert.Equal(t, "gateway timeout", health.LastError)
}

func TestRegistry_RecordFailureKeepsLastError(t *testing.T) {
	registry := resilience.NewRegistry()
	newRegistered(t, registry, "openai")

	registry.RecordFailure("openai", errors.New("first"))
	registry.RecordFailure("openai", nil)

	assert.Equal(t, "first", registry.GetHealth("openai").LastError)
}

func TestRegistry_GetAllHealthSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	newRegistered(t, registry, "waqi")
	newRegistered(t, registry, "openai")
	newRegistered(t, registry, "overpass")

	all := registry.GetAllHealth()
	require.Len(t, all, 3)
	assert.Equal(t, "openai", all[0].Name)
	assert.Equal(t, "overpass", all[1].Name)
	assert.Equal(t, "waqi", all[2].Name)
	assert.Equal(t, []string{"openai", "overpass", "waqi"}, registry.ProviderNames())
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := resilience.NewRegistry()

	registry.RecordSuccess("missing")
	registry.RecordFailure("missing", errors.New("boom"))

	assert.Nil(t, registry.GetHealth("missing"))
	assert.Empty(t, registry.GetAllHealth())
}

func TestProviderHealth_States(t *testing.T) {
	tests := []struct {
		state     gobreaker.State
		healthy   bool
		degraded  bool
		unhealthy bool
	}{
		{gobreaker.StateClosed, true, false, false},
		{gobreaker.StateHalfOpen, false, true, false},
		{gobreaker.StateOpen, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.healthy, h.IsHealthy())
			assert.Equal(t, tt.degraded, h.IsDegraded())
			assert.Equal(t, tt.unhealthy, h.IsUnhealthy())
		})
	}
}
