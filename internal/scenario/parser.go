package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cityview/urbanimpact/internal/llm"
)

// Stage identifies where LLM extraction failed.
type Stage string

const (
	StageTransport Stage = "transport"
	StageDecode    Stage = "decode"
	StageSchema    Stage = "schema"
)

// ErrNoCompleter is returned when extraction is attempted without a completion client.
var ErrNoCompleter = errors.New("no completion client configured")

// ParseError describes a failed LLM extraction.
type ParseError struct {
	Stage Stage
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("scenario parse failed at %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

const trafficSystemPrompt = "You are an AI expert in urban traffic analytics. " +
	"Extract structured data from the user's 'What-If' scenario. " +
	"Return strictly valid JSON with keys: 'action', 'magnitude_percent' (number), 'location', 'duration_months' (number). " +
	"Default duration_months to 6 if not specified. " +
	"For 'bridge', action is 'add_infrastructure', magnitude_percent is -15 (traffic diversion)."

const constructionSystemPrompt = "You are an information extraction assistant. " +
	"Extract only explicitly stated information. " +
	"Do not infer or guess missing values. " +
	"Return valid JSON only."

// ParserConfig holds configuration for the parser.
type ParserConfig struct {
	// Completer is the text-completion client. Nil disables the LLM path.
	Completer llm.Completer

	// Locations are the known location names matched by the heuristic path.
	Locations []string

	Logger zerolog.Logger
}

// Parser extracts scenario intents.
type Parser struct {
	completer llm.Completer
	locations []string
	logger    zerolog.Logger
}

// NewParser creates a new parser.
func NewParser(cfg ParserConfig) *Parser {
	return &Parser{
		completer: cfg.Completer,
		locations: cfg.Locations,
		logger:    cfg.Logger,
	}
}

// HasCompleter reports whether the LLM path is available.
func (p *Parser) HasCompleter() bool {
	return p.completer != nil
}

// Heuristic runs the rule-based path with the parser's known locations.
func (p *Parser) Heuristic(text string) Intent {
	return Heuristic(text, p.locations)
}

// ParseTraffic returns the LLM intent, or the heuristic intent when the LLM
// path is unavailable or fails. It never fails.
func (p *Parser) ParseTraffic(ctx context.Context, text string) Intent {
	intent, err := p.ExtractTraffic(ctx, text)
	if err != nil {
		if !errors.Is(err, ErrNoCompleter) {
			p.logger.Warn().Err(err).Msg("llm traffic extraction failed, using heuristic")
		}
		return p.Heuristic(text)
	}
	return intent
}

type trafficPayload struct {
	Action           *string  `json:"action"`
	MagnitudePercent *float64 `json:"magnitude_percent"`
	Location         *string  `json:"location"`
	DurationMonths   *float64 `json:"duration_months"`
	TrafficImpact    *float64 `json:"traffic_impact"`
	ConstructionType *string  `json:"construction_type"`
}

// ExtractTraffic runs the LLM path only. Errors are *ParseError, or ErrNoCompleter.
func (p *Parser) ExtractTraffic(ctx context.Context, text string) (Intent, error) {
	var payload trafficPayload
	if err := p.extract(ctx, trafficSystemPrompt, trafficUserPrompt(text), &payload); err != nil {
		return Intent{}, err
	}

	if payload.Action == nil {
		return Intent{}, &ParseError{Stage: StageSchema, Err: errors.New("missing action")}
	}

	intent := DefaultIntent()
	intent.Source = SourceLLM
	intent.Action = ParseAction(*payload.Action)

	if payload.MagnitudePercent != nil {
		intent.MagnitudePercent = math.Abs(*payload.MagnitudePercent)
	}
	if payload.DurationMonths != nil && *payload.DurationMonths >= 1 {
		intent.DurationMonths = int(math.Round(*payload.DurationMonths))
	}
	if payload.Location != nil && strings.TrimSpace(*payload.Location) != "" {
		intent.Location = strings.ToLower(strings.TrimSpace(*payload.Location))
	}
	if payload.ConstructionType != nil {
		intent.ConstructionType = strings.ToLower(strings.TrimSpace(*payload.ConstructionType))
	}

	if payload.TrafficImpact != nil {
		intent.TrafficImpact = *payload.TrafficImpact
	} else {
		intent.TrafficImpact = intent.Action.Sign() * intent.MagnitudePercent
	}

	return intent, nil
}

type constructionPayload struct {
	ConstructionType   *string  `json:"construction_type"`
	Location           *string  `json:"location"`
	DurationMonths     *float64 `json:"duration_months"`
	ConstructionImpact *float64 `json:"construction_impact_score"`
	OperationalImpact  *float64 `json:"operational_impact_score"`
}

// ParseConstruction extracts a construction intent. There is no rule-based
// fallback: callers must tolerate an error or missing fields.
func (p *Parser) ParseConstruction(ctx context.Context, text string) (ConstructionIntent, error) {
	var payload constructionPayload
	if err := p.extract(ctx, constructionSystemPrompt, constructionUserPrompt(text), &payload); err != nil {
		return ConstructionIntent{}, err
	}

	var c ConstructionIntent
	if payload.ConstructionType != nil {
		c.ConstructionType = strings.ToLower(strings.TrimSpace(*payload.ConstructionType))
	}
	if payload.Location != nil {
		c.Location = strings.TrimSpace(*payload.Location)
	}
	if payload.DurationMonths != nil {
		if *payload.DurationMonths < 0 {
			return ConstructionIntent{}, &ParseError{Stage: StageSchema, Err: errors.New("negative duration_months")}
		}
		c.DurationMonths = int(math.Round(*payload.DurationMonths))
	}
	if payload.ConstructionImpact != nil {
		c.ConstructionImpact = *payload.ConstructionImpact
	}
	if payload.OperationalImpact != nil {
		c.OperationalImpact = *payload.OperationalImpact
	}
	return c, nil
}

// extract sends the prompts and decodes the fenced-or-bare JSON reply into v.
func (p *Parser) extract(ctx context.Context, system, user string, v any) error {
	if p.completer == nil {
		return ErrNoCompleter
	}

	raw, err := p.completer.Complete(ctx, system, user)
	if err != nil {
		return &ParseError{Stage: StageTransport, Err: err}
	}

	dec := json.NewDecoder(strings.NewReader(StripFences(raw)))
	if err := dec.Decode(v); err != nil {
		return &ParseError{Stage: StageDecode, Err: err}
	}
	if dec.More() {
		return &ParseError{Stage: StageDecode, Err: errors.New("trailing content after JSON object")}
	}
	return nil
}

// StripFences removes markdown code fences around a JSON reply.
func StripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func trafficUserPrompt(text string) string {
	return fmt.Sprintf("Scenario: %q\n\nOutput JSON:", text)
}

func constructionUserPrompt(text string) string {
	return fmt.Sprintf("Sentence:\n%q\n\nExtract the following fields:\nconstruction_type,\nlocation,\nduration_months", text)
}
