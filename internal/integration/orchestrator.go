// Package integration composes the scenario pipeline: traffic intent,
// construction intent, baseline AQI, the traffic to AQI coefficient and the
// construction curve, sequenced by an explicit state machine.
package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cityview/urbanimpact/internal/airquality"
	"github.com/cityview/urbanimpact/internal/cache"
	"github.com/cityview/urbanimpact/internal/coefficients"
	"github.com/cityview/urbanimpact/internal/construction"
	"github.com/cityview/urbanimpact/internal/llm"
	"github.com/cityview/urbanimpact/internal/metrics"
	"github.com/cityview/urbanimpact/internal/scenario"
	"github.com/cityview/urbanimpact/internal/traffic"
)

const tracerName = "github.com/cityview/urbanimpact/internal/integration"

// Run outcomes recorded in metrics.
const (
	outcomeOK       = "ok"
	outcomeDegraded = "degraded"
	outcomeFallback = "fallback"
	outcomeCached   = "cached"
	outcomeError    = "error"
)

// BaselineSource returns the current baseline AQI at a coordinate.
type BaselineSource interface {
	BaselineAt(ctx context.Context, lat, lon float64) (float64, error)
}

// ScenarioParser extracts traffic and construction intents.
type ScenarioParser interface {
	ExtractTraffic(ctx context.Context, text string) (scenario.Intent, error)
	Heuristic(text string) scenario.Intent
	ParseConstruction(ctx context.Context, text string) (scenario.ConstructionIntent, error)
}

// CompleterFactory builds the completion client. Returning an error wrapping
// llm.ErrMissingAPIKey selects the credential-missing fallback; any other
// error is reported as CLIENT_INIT_ERROR.
type CompleterFactory func() (llm.Completer, error)

// Config holds configuration for the orchestrator.
type Config struct {
	NewCompleter CompleterFactory

	// Locations are the known location names for the heuristic parser.
	Locations []string

	Baseline     BaselineSource
	Coefficients *coefficients.Set

	// Cache stores non-degraded results. Default: no caching.
	Cache cache.Cache

	// FallbackAQI replaces an unavailable baseline (default: 150).
	FallbackAQI float64

	Logger zerolog.Logger

	// Tracer creates one span per state. Default: the global tracer.
	Tracer trace.Tracer
}

// Orchestrator runs the scenario pipeline. It is safe for concurrent use;
// every run has its own state.
type Orchestrator struct {
	parser      ScenarioParser
	initErr     error
	baseline    BaselineSource
	coeffs      *coefficients.Set
	cache       cache.Cache
	fallbackAQI float64
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// New creates an orchestrator. The completion client is built once here.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		baseline:    cfg.Baseline,
		coeffs:      cfg.Coefficients,
		cache:       cfg.Cache,
		fallbackAQI: cfg.FallbackAQI,
		logger:      cfg.Logger,
		tracer:      cfg.Tracer,
	}
	if o.coeffs == nil {
		o.coeffs = coefficients.Defaults()
	}
	if o.cache == nil {
		o.cache = cache.Nop{}
	}
	if o.fallbackAQI <= 0 {
		o.fallbackAQI = DefaultFallbackAQI
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}

	var completer llm.Completer
	o.initErr = llm.ErrMissingAPIKey
	if cfg.NewCompleter != nil {
		completer, o.initErr = cfg.NewCompleter()
	}
	if o.initErr == nil {
		o.parser = scenario.NewParser(scenario.ParserConfig{
			Completer: completer,
			Locations: cfg.Locations,
			Logger:    cfg.Logger,
		})
	}
	return o
}

// NewWithParser creates an orchestrator around an existing parser.
func NewWithParser(parser ScenarioParser, cfg Config) *Orchestrator {
	cfg.NewCompleter = nil
	o := New(cfg)
	o.parser = parser
	o.initErr = nil
	return o
}

// run is the mutable state of one pipeline execution.
type run struct {
	id      string
	lat     float64
	lon     float64
	text    string
	logger  zerolog.Logger
	result  *Result
	traffic scenario.Intent
	build   scenario.ConstructionIntent
}

// Compute runs the pipeline for a scenario at (lat, lon). Invalid input and
// context cancellation are returned as errors; credential and client
// problems are reported through Result.Error.
func (o *Orchestrator) Compute(ctx context.Context, lat, lon float64, text string) (*Result, error) {
	if err := ValidateInput(lat, lon, text); err != nil {
		return nil, err
	}

	r := &run{
		id:   uuid.NewString(),
		lat:  lat,
		lon:  lon,
		text: text,
		result: &Result{
			BaseTrafficSignal:     traffic.BaseSignal,
			ForecastHorizonMonths: HorizonFor(text),
		},
	}
	r.logger = o.logger.With().Str("run_id", r.id).Logger()

	switch {
	case errors.Is(o.initErr, llm.ErrMissingAPIKey):
		r.logger.Warn().Msg("completion credential missing, serving fallback result")
		metrics.RecordRun(outcomeFallback)
		return FallbackResult(o.fallbackAQI), nil
	case o.initErr != nil:
		r.logger.Error().Err(o.initErr).Msg("completion client init failed")
		metrics.RecordRun(outcomeError)
		return &Result{Error: CodeClientInit, Message: o.initErr.Error()}, nil
	}

	key := cache.Fingerprint(text, lat, lon, r.result.ForecastHorizonMonths)
	if cached, ok := o.lookup(ctx, r, key); ok {
		metrics.RecordRun(outcomeCached)
		return cached, nil
	}

	state := StateInit
	for !state.Terminal() {
		next, err := o.step(ctx, r, state)
		if err != nil {
			r.logger.Error().Err(err).Str("state", string(state)).Msg("scenario run failed")
			metrics.RecordRun(outcomeError)
			return nil, fmt.Errorf("%s: %w", state, err)
		}
		state = next
	}

	outcome := outcomeOK
	if r.result.Degraded() {
		outcome = outcomeDegraded
	} else {
		o.store(ctx, r, key)
	}
	metrics.RecordRun(outcome)

	r.logger.Info().
		Float64("baseline_aqi", r.result.BaselineAQI).
		Float64("final_aqi", r.result.FinalAQI).
		Str("action", string(r.result.TrafficPrediction.Action)).
		Strs("degradations", r.result.Degradations).
		Msg("scenario run completed")

	return r.result, nil
}

// step executes one state inside its own span and returns the next state.
func (o *Orchestrator) step(ctx context.Context, r *run, state State) (State, error) {
	if err := ctx.Err(); err != nil {
		return StateError, err
	}

	ctx, span := o.tracer.Start(ctx, "integration."+string(state),
		trace.WithAttributes(attribute.String("run.id", r.id)))
	defer span.End()
	start := time.Now()

	var err error
	switch state {
	case StateInit:
	case StateParseTraffic:
		o.parseTraffic(ctx, r)
	case StateParseAQI:
		o.parseConstruction(ctx, r)
	case StateFetchBaseline:
		o.fetchBaseline(ctx, r)
	case StateApplyTraffic:
		o.applyTraffic(r)
	case StateSimulateFinal:
		o.simulateFinal(r)
	case StateDone, StateError:
		err = fmt.Errorf("step called on terminal state %s", state)
	}

	metrics.ObserveStage(string(state), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StateError, err
	}
	r.logger.Debug().Str("state", string(state)).Dur("duration", time.Since(start)).Msg("state completed")
	return state.Next(), nil
}

func (o *Orchestrator) parseTraffic(ctx context.Context, r *run) {
	intent, err := o.parser.ExtractTraffic(ctx, r.text)
	if err != nil {
		stage := "unavailable"
		var perr *scenario.ParseError
		if errors.As(err, &perr) {
			stage = string(perr.Stage)
		}
		r.logger.Warn().Err(err).Str("stage", stage).Msg("traffic extraction failed, using heuristic")
		metrics.RecordParserFallback(stage)
		intent = o.parser.Heuristic(r.text)
		r.result.Degradations = append(r.result.Degradations, DegradedTrafficParse)
	}

	r.traffic = intent
	r.result.TrafficPrediction = intent
	r.result.NewTrafficSignal = traffic.ApplyToSignal(traffic.BaseSignal, intent.TrafficImpact)
}

func (o *Orchestrator) parseConstruction(ctx context.Context, r *run) {
	intent, err := o.parser.ParseConstruction(ctx, r.text)
	if err != nil {
		r.logger.Warn().Err(err).Msg("construction extraction failed, using defaults")
		metrics.RecordParserFallback("construction")
		r.result.Degradations = append(r.result.Degradations, DegradedConstructionParse)
		intent = scenario.ConstructionIntent{}
	}
	if intent.ConstructionType == "" {
		intent.ConstructionType = r.traffic.ConstructionType
	}
	intent.DurationMonths = intent.DurationOrDefault()

	r.build = intent
	r.result.AQIPrediction = AQIPrediction{ConstructionIntent: intent}
}

func (o *Orchestrator) fetchBaseline(ctx context.Context, r *run) {
	baseline, err := o.baseline.BaselineAt(ctx, r.lat, r.lon)
	if err != nil {
		r.logger.Warn().Err(err).Float64("fallback_aqi", o.fallbackAQI).Msg("baseline unavailable, using fallback")
		metrics.ReadingFallbacksTotal.Inc()
		r.result.Degradations = append(r.result.Degradations, DegradedBaseline)
		baseline = o.fallbackAQI
	}
	r.result.BaselineAQI = baseline
}

func (o *Orchestrator) applyTraffic(r *run) {
	res := r.result
	res.TrafficAQIShift = (res.NewTrafficSignal - res.BaseTrafficSignal) * o.coeffs.Beta() * res.BaselineAQI
	res.AdjustedBaseAQI = res.BaselineAQI + res.TrafficAQIShift
}

func (o *Orchestrator) simulateFinal(r *run) {
	res := r.result
	res.FinalAQI = construction.Simulate(res.AdjustedBaseAQI, r.build.ConstructionType, r.build.DurationMonths, res.ForecastHorizonMonths)
	res.Category = airquality.CategoryFor(res.FinalAQI)
}

func (o *Orchestrator) lookup(ctx context.Context, r *run, key string) (*Result, bool) {
	data, err := o.cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		metrics.RecordCacheLookup(o.cache.Name(), "miss")
		return nil, false
	case err != nil:
		r.logger.Warn().Err(err).Msg("result cache lookup failed")
		metrics.RecordCacheLookup(o.cache.Name(), "error")
		return nil, false
	}

	var cached Result
	if err := json.Unmarshal(data, &cached); err != nil {
		r.logger.Warn().Err(err).Msg("discarding undecodable cached result")
		metrics.RecordCacheLookup(o.cache.Name(), "error")
		return nil, false
	}
	metrics.RecordCacheLookup(o.cache.Name(), "hit")
	r.logger.Debug().Msg("serving cached scenario result")
	return &cached, true
}

func (o *Orchestrator) store(ctx context.Context, r *run, key string) {
	data, err := json.Marshal(r.result)
	if err != nil {
		r.logger.Warn().Err(err).Msg("encode result for cache")
		return
	}
	if err := o.cache.Set(ctx, key, data); err != nil {
		r.logger.Warn().Err(err).Msg("result cache store failed")
	}
}
