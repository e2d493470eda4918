// Package policy evaluates Rego escalation policies over finished
// classification results: given a decision and its confidence, what
// should happen next (auto-accept, notify, escalate to counsel).
// Evaluation is read-only; policies recommend, they never act.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geogate/geogate/telemetry"
	"github.com/geogate/geogate/types"
)

// Escalation actions, by increasing urgency.
const (
	ActionAutoAccept = "auto_accept"
	ActionNotify     = "notify"
	ActionEscalate   = "escalate"
)

// Input is the data handed to every policy evaluation.
type Input struct {
	Result    types.ConsensusResult `json:"result"`
	GeoTags   []string              `json:"geo_tags,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// Result is the aggregated outcome of policy evaluation.
type Result struct {
	Action     string   `json:"action"`
	Reason     string   `json:"reason"`
	Risk       string   `json:"risk"` // "high", "medium", "low"
	Confidence float64  `json:"confidence"`
	Policies   []string `json:"policies"`
}

// Engine evaluates compiled Rego policies against classification
// results.
type Engine struct {
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine creates an escalation policy engine.
func NewEngine() *Engine {
	return &Engine{
		logger:  telemetry.NewLogger("policy"),
		tracer:  otel.Tracer("policy"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// LoadPolicy compiles and registers a Rego policy.
func (e *Engine) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	ctx, span := e.tracer.Start(ctx, "policy.load",
		trace.WithAttributes(attribute.String("policy.name", name)))
	defer span.End()

	query := rego.New(
		rego.Query("data.geogate"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Info().
		Str("policy_name", name).
		Msg("policy loaded")
	return nil
}

// Evaluate runs all loaded policies and aggregates their outcomes by
// priority: the most urgent action and the highest risk win.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "policy.evaluate",
		trace.WithAttributes(
			attribute.String("feature.id", input.Result.FeatureID),
			attribute.String("decision", string(input.Result.Decision))))
	defer span.End()

	if input.Timestamp.IsZero() {
		input.Timestamp = time.Now().UTC()
	}

	var results []Result
	var matched []string

	for name, query := range e.queries {
		result, err := e.evaluatePolicy(ctx, name, query, input)
		if err != nil {
			e.logger.WithContext(ctx).Error().
				Err(err).
				Str("policy_name", name).
				Msg("policy evaluation failed")
			continue
		}
		if result.Action != "" {
			results = append(results, result)
			matched = append(matched, name)
		}
	}

	final := aggregate(results)
	final.Policies = matched

	e.logger.WithContext(ctx).Info().
		Str("feature_id", input.Result.FeatureID).
		Str("action", final.Action).
		Str("risk", final.Risk).
		Strs("matched_policies", matched).
		Msg("policy evaluation complete")

	return final, nil
}

func (e *Engine) evaluatePolicy(ctx context.Context, name string, query rego.PreparedEvalQuery, input Input) (Result, error) {
	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Result{}, fmt.Errorf("evaluation failed: %w", err)
	}
	if len(results) == 0 {
		return Result{}, nil // no match
	}

	result := Result{Policies: []string{name}}
	parseEvalResults(results, &result)
	return result, nil
}

func parseEvalResults(results rego.ResultSet, result *Result) {
	for _, res := range results {
		for key, value := range res.Bindings {
			bindValue(key, value, result)
		}
		if len(res.Expressions) > 0 {
			// OPA returns arbitrary JSON shaped by the policy at
			// runtime, so this boundary works on a raw map.
			if expr, ok := res.Expressions[0].Value.(map[string]interface{}); ok {
				for key, value := range expr {
					bindValue(key, value, result)
				}
			}
		}
	}
}

func bindValue(key string, value interface{}, result *Result) {
	if str, ok := value.(string); ok {
		switch key {
		case "action":
			result.Action = str
		case "reason":
			result.Reason = str
		case "risk":
			result.Risk = str
		}
		return
	}

	if key == "confidence" {
		switch v := value.(type) {
		case float64:
			result.Confidence = v
		case json.Number:
			if f, err := v.Float64(); err == nil {
				result.Confidence = f
			}
		case int:
			result.Confidence = float64(v)
		}
	}
}

func aggregate(results []Result) Result {
	if len(results) == 0 {
		return Result{
			Action:     ActionAutoAccept,
			Risk:       "low",
			Confidence: 1.0,
			Reason:     "no policies matched",
		}
	}

	priorityOrder := map[string]int{
		ActionEscalate:   3,
		ActionNotify:     2,
		ActionAutoAccept: 1,
	}
	riskOrder := map[string]int{
		"high":   3,
		"medium": 2,
		"low":    1,
	}

	final := Result{Action: ActionAutoAccept, Risk: "low"}
	maxPriority, maxRisk := 0, 0
	var reasons []string

	for _, r := range results {
		if p := priorityOrder[r.Action]; p > maxPriority {
			maxPriority = p
			final.Action = r.Action
		}
		if ri := riskOrder[r.Risk]; ri > maxRisk {
			maxRisk = ri
			final.Risk = r.Risk
		}
		if r.Confidence > final.Confidence {
			final.Confidence = r.Confidence
		}
		if r.Reason != "" {
			reasons = append(reasons, r.Reason)
		}
	}

	if len(reasons) > 0 {
		final.Reason = fmt.Sprintf("Multiple policies: %v", reasons)
		if len(reasons) == 1 {
			final.Reason = reasons[0]
		}
	}
	return final
}
