package integration_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/cache"
	"github.com/cityview/urbanimpact/internal/integration"
	"github.com/cityview/urbanimpact/internal/llm"
	"github.com/cityview/urbanimpact/internal/scenario"
)

const (
	bridgeTrafficReply      = `{"action": "add_infrastructure", "magnitude_percent": -15, "location": "SG Highway", "duration_months": 12}`
	bridgeConstructionReply = "```json\n{\"construction_type\": \"bridge\", \"location\": \"SG Highway\", \"duration_months\": 12}\n```"
)

type stubBaseline struct {
	aqi   float64
	err   error
	calls atomic.Int32
}

func (s *stubBaseline) BaselineAt(context.Context, float64, float64) (float64, error) {
	s.calls.Add(1)
	return s.aqi, s.err
}

type scriptedCompleter struct {
	traffic      string
	construction string
	err          error
	calls        atomic.Int32
}

func (s *scriptedCompleter) Complete(_ context.Context, system, _ string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(system, "traffic") {
		return s.traffic, nil
	}
	return s.construction, nil
}

func bridgeCompleter() *scriptedCompleter {
	return &scriptedCompleter{traffic: bridgeTrafficReply, construction: bridgeConstructionReply}
}

func newOrchestrator(completer llm.Completer, baseline integration.BaselineSource, c cache.Cache) *integration.Orchestrator {
	return integration.New(integration.Config{
		NewCompleter: func() (llm.Completer, error) { return completer, nil },
		Locations:    []string{"bopal", "paldi"},
		Baseline:     baseline,
		Cache:        c,
		Logger:       zerolog.New(io.Discard),
	})
}

func TestOrchestrator_Compute_Bridge(t *testing.T) {
	o := newOrchestrator(bridgeCompleter(), &stubBaseline{aqi: 200}, nil)

	res, err := o.Compute(context.Background(), 23.03, 72.58, "What if a bridge is built near SG Highway for 12 months?")
	require.NoError(t, err)

	assert.Empty(t, res.Error)
	assert.False(t, res.Degraded())
	assert.Equal(t, 200.0, res.BaselineAQI)

	assert.Equal(t, scenario.ActionAddInfrastructure, res.TrafficPrediction.Action)
	assert.Equal(t, scenario.SourceLLM, res.TrafficPrediction.Source)
	assert.Equal(t, 15.0, res.TrafficPrediction.MagnitudePercent)
	assert.Equal(t, -15.0, res.TrafficPrediction.TrafficImpact)

	assert.Equal(t, 0.5, res.BaseTrafficSignal)
	assert.InDelta(t, 0.425, res.NewTrafficSignal, 1e-12)
	assert.InDelta(t, -7.5, res.TrafficAQIShift, 1e-9)
	assert.InDelta(t, 192.5, res.AdjustedBaseAQI, 1e-9)

	assert.Equal(t, "bridge", res.AQIPrediction.ConstructionType)
	assert.Equal(t, 12, res.AQIPrediction.DurationMonths)
	assert.Equal(t, 6, res.ForecastHorizonMonths)

	// progress 0.5 on the bridge curve is +2.5%
	assert.InDelta(t, 197.31, res.FinalAQI, 1e-9)
	assert.Equal(t, airquality.CategorySevere, res.Category)
}

func TestOrchestrator_Compute_LongTerm(t *testing.T) {
	o := newOrchestrator(bridgeCompleter(), &stubBaseline{aqi: 200}, nil)

	res, err := o.Compute(context.Background(), 23.03, 72.58, "Long term effect of a bridge near SG Highway")
	require.NoError(t, err)

	assert.Equal(t, 24, res.ForecastHorizonMonths)
	// the project is complete after 24 months, so only the traffic shift remains
	assert.InDelta(t, 192.5, res.FinalAQI, 1e-9)
}

func TestOrchestrator_Compute_CredentialMissing(t *testing.T) {
	baseline := &stubBaseline{aqi: 90}
	o := integration.New(integration.Config{
		NewCompleter: func() (llm.Completer, error) { return llm.NewClient(llm.ClientConfig{}) },
		Baseline:     baseline,
		Logger:       zerolog.New(io.Discard),
	})

	res, err := o.Compute(context.Background(), 23.03, 72.58, "add a bridge")
	require.NoError(t, err)

	assert.Equal(t, integration.CodeCredentialMissing, res.Error)
	assert.Equal(t, 150.0, res.BaselineAQI)
	assert.Equal(t, 150.0, res.FinalAQI)
	assert.Equal(t, 0.0, res.TrafficPrediction.TrafficImpact)
	assert.Equal(t, scenario.ActionUnknown, res.TrafficPrediction.Action)
	assert.Equal(t, 0.5, res.BaseTrafficSignal)
	assert.Equal(t, 0.5, res.NewTrafficSignal)
	assert.Equal(t, 0.0, res.TrafficAQIShift)
	assert.Equal(t, 6, res.ForecastHorizonMonths)
	assert.Equal(t, "API key missing, using defaults", res.AQIPrediction.Reasoning)
	assert.Equal(t, int32(0), baseline.calls.Load())
}

func TestOrchestrator_Compute_NoFactory(t *testing.T) {
	o := integration.New(integration.Config{Logger: zerolog.New(io.Discard)})

	res, err := o.Compute(context.Background(), 23.03, 72.58, "add a bridge")
	require.NoError(t, err)
	assert.Equal(t, integration.CodeCredentialMissing, res.Error)
}

func TestOrchestrator_Compute_ClientInitError(t *testing.T) {
	o := integration.New(integration.Config{
		NewCompleter: func() (llm.Completer, error) {
			return llm.NewClient(llm.ClientConfig{APIKey: "key", BaseURL: "::not a url"})
		},
		Baseline: &stubBaseline{aqi: 90},
		Logger:   zerolog.New(io.Discard),
	})

	res, err := o.Compute(context.Background(), 23.03, 72.58, "add a bridge")
	require.NoError(t, err)
	assert.Equal(t, integration.CodeClientInit, res.Error)
	assert.Contains(t, res.Message, "base url")
}

func TestOrchestrator_Compute_ParserFallback(t *testing.T) {
	completer := &scriptedCompleter{traffic: "I think traffic drops", construction: "{not json"}
	o := newOrchestrator(completer, &stubBaseline{aqi: 120}, nil)

	res, err := o.Compute(context.Background(), 23.03, 72.58, "add a bridge near paldi")
	require.NoError(t, err)

	assert.Empty(t, res.Error)
	assert.True(t, res.Degraded())
	assert.ElementsMatch(t, []string{integration.DegradedTrafficParse, integration.DegradedConstructionParse}, res.Degradations)

	assert.Equal(t, scenario.SourceHeuristic, res.TrafficPrediction.Source)
	assert.Equal(t, scenario.ActionAddInfrastructure, res.TrafficPrediction.Action)
	assert.Equal(t, -15.0, res.TrafficPrediction.TrafficImpact)
	assert.Equal(t, "paldi", res.TrafficPrediction.Location)

	assert.Empty(t, res.AQIPrediction.ConstructionType)
	assert.Equal(t, 6, res.AQIPrediction.DurationMonths)
	assert.InDelta(t, res.AdjustedBaseAQI, res.FinalAQI, 1e-12)
}

func TestOrchestrator_Compute_TransportErrorFallsBack(t *testing.T) {
	completer := &scriptedCompleter{err: errors.New("connection reset")}
	o := newOrchestrator(completer, &stubBaseline{aqi: 120}, nil)

	res, err := o.Compute(context.Background(), 23.03, 72.58, "What if traffic reduces by 20%?")
	require.NoError(t, err)

	assert.Equal(t, scenario.ActionReduce, res.TrafficPrediction.Action)
	assert.Equal(t, 20.0, res.TrafficPrediction.MagnitudePercent)
	assert.Equal(t, -20.0, res.TrafficPrediction.TrafficImpact)
	assert.InDelta(t, 0.4, res.NewTrafficSignal, 1e-12)
	assert.InDelta(t, -6.0, res.TrafficAQIShift, 1e-9)
}

func TestOrchestrator_Compute_BaselineFallback(t *testing.T) {
	o := newOrchestrator(bridgeCompleter(), &stubBaseline{err: airquality.ErrProviderUnavailable}, nil)

	res, err := o.Compute(context.Background(), 23.03, 72.58, "add a bridge")
	require.NoError(t, err)

	assert.Equal(t, 150.0, res.BaselineAQI)
	assert.Contains(t, res.Degradations, integration.DegradedBaseline)
}

func TestOrchestrator_Compute_Idempotent(t *testing.T) {
	o := newOrchestrator(bridgeCompleter(), &stubBaseline{aqi: 175}, nil)
	text := "What if a bridge is built near SG Highway for 12 months?"

	first, err := o.Compute(context.Background(), 23.03, 72.58, text)
	require.NoError(t, err)
	second, err := o.Compute(context.Background(), 23.03, 72.58, text)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
}

func TestOrchestrator_Compute_UsesCache(t *testing.T) {
	completer := bridgeCompleter()
	baseline := &stubBaseline{aqi: 175}
	o := newOrchestrator(completer, baseline, cache.NewMemory(cache.MemoryConfig{Size: 8}))
	text := "What if a bridge is built near SG Highway for 12 months?"

	first, err := o.Compute(context.Background(), 23.03, 72.58, text)
	require.NoError(t, err)
	calls := completer.calls.Load()

	second, err := o.Compute(context.Background(), 23.03, 72.58, text)
	require.NoError(t, err)

	assert.Equal(t, calls, completer.calls.Load(), "cached run must not call the completer")
	assert.Equal(t, int32(1), baseline.calls.Load())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached result differs (-first +second):\n%s", diff)
	}
}

func TestOrchestrator_Compute_DegradedNotCached(t *testing.T) {
	baseline := &stubBaseline{err: errors.New("down")}
	o := newOrchestrator(bridgeCompleter(), baseline, cache.NewMemory(cache.MemoryConfig{Size: 8}))

	for i := 0; i < 2; i++ {
		_, err := o.Compute(context.Background(), 23.03, 72.58, "add a bridge")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), baseline.calls.Load())
}

func TestOrchestrator_Compute_InvalidInput(t *testing.T) {
	o := newOrchestrator(bridgeCompleter(), &stubBaseline{aqi: 100}, nil)

	tests := []struct {
		name  string
		lat   float64
		lon   float64
		text  string
		field string
	}{
		{name: "latitude", lat: 91, lon: 72.58, text: "add a bridge", field: "lat"},
		{name: "longitude", lat: 23.03, lon: -181, text: "add a bridge", field: "lon"},
		{name: "empty scenario", lat: 23.03, lon: 72.58, text: "   ", field: "scenario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Compute(context.Background(), tt.lat, tt.lon, tt.text)
			require.ErrorIs(t, err, integration.ErrInvalidInput)

			var verr *integration.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestOrchestrator_Compute_Cancelled(t *testing.T) {
	o := newOrchestrator(bridgeCompleter(), &stubBaseline{aqi: 100}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Compute(ctx, 23.03, 72.58, "add a bridge")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestrator_Compute_SpanPerState(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	o := integration.New(integration.Config{
		NewCompleter: func() (llm.Completer, error) { return bridgeCompleter(), nil },
		Baseline:     &stubBaseline{aqi: 100},
		Logger:       zerolog.New(io.Discard),
		Tracer:       tp.Tracer("test"),
	})

	_, err := o.Compute(context.Background(), 23.03, 72.58, "add a bridge")
	require.NoError(t, err)

	var names []string
	for _, span := range sr.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{
		"integration.INIT",
		"integration.PARSE_TRAFFIC",
		"integration.PARSE_AQI",
		"integration.FETCH_BASELINE",
		"integration.APPLY_TRAFFIC_COEFFICIENT",
		"integration.SIMULATE_FINAL",
	}, names)
}

func TestOrchestrator_NewWithParser(t *testing.T) {
	parser := scenario.NewParser(scenario.ParserConfig{Logger: zerolog.New(io.Discard)})
	o := integration.NewWithParser(parser, integration.Config{
		Baseline: &stubBaseline{aqi: 100},
		Logger:   zerolog.New(io.Discard),
	})

	res, err := o.Compute(context.Background(), 23.03, 72.58, "add a bridge")
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, scenario.SourceHeuristic, res.TrafficPrediction.Source)
}

func TestResult_Rounded(t *testing.T) {
	res := integration.Result{
		BaselineAQI:      150.123,
		FinalAQI:         197.3149,
		NewTrafficSignal: 0.42500000001,
		TrafficAQIShift:  -7.499999,
		AdjustedBaseAQI:  192.625,
	}

	got := res.Rounded()
	assert.Equal(t, 150.12, got.BaselineAQI)
	assert.Equal(t, 197.31, got.FinalAQI)
	assert.Equal(t, 0.43, got.NewTrafficSignal)
	assert.Equal(t, -7.5, got.TrafficAQIShift)
	assert.Equal(t, 150.123, res.BaselineAQI, "original is unchanged")
}

func TestHorizonFor(t *testing.T) {
	assert.Equal(t, 6, integration.HorizonFor("add a bridge"))
	assert.Equal(t, 24, integration.HorizonFor("What is the LONG TERM effect?"))
	assert.Equal(t, 6, integration.HorizonFor("long-term effect"))
}
