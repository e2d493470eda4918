// Package pipeline runs the grounded three-stage model consultation:
// Detector, Policy Mapper, then N independent Arbiter runs joined by a
// vote-and-calibrate barrier. Per-run failures are recovered locally
// and never escape the classification boundary.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geogate/geogate/grounding"
	"github.com/geogate/geogate/llm"
	"github.com/geogate/geogate/telemetry"
	"github.com/geogate/geogate/types"
)

// Options tune one pipeline instance.
type Options struct {
	// ArbiterRuns is the self-consistency fan-out width.
	ArbiterRuns int
	// Temperature for all stages; kept low for factual tasks.
	Temperature float32
	MaxTokens   int
	// CallTimeout bounds each model call; an expired call is a failed
	// run, not a failed classification.
	CallTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.ArbiterRuns <= 0 {
		o.ArbiterRuns = 3
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.1
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 1200
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 60 * time.Second
	}
	return o
}

// Result is the pipeline output before citation guarding.
type Result struct {
	Consensus types.ConsensusResult
	// RawOutputs holds the surviving raw arbiter payloads, in run
	// order, for audit hashing.
	RawOutputs []string
	// Degraded marks a result produced without any model consultation
	// (unconfigured capability or empty vote set).
	Degraded bool
}

// Pipeline consults the model capability against a grounding set.
type Pipeline struct {
	client llm.Client
	opts   Options
	logger *telemetry.Logger
	tracer trace.Tracer
}

// New creates a pipeline. A nil client is allowed: every call then
// degrades to REVIEW with an explicit tag.
func New(client llm.Client, opts Options) *Pipeline {
	return &Pipeline{
		client: client,
		opts:   opts.withDefaults(),
		logger: telemetry.NewLogger("pipeline"),
		tracer: otel.Tracer("pipeline"),
	}
}

// ModelID reports the backing model, or "none" when unconfigured.
func (p *Pipeline) ModelID() string {
	if p.client == nil {
		return "none"
	}
	return p.client.ModelID()
}

// Run executes Detector → Policy Mapper → Arbiter×N → vote for one
// feature. It always returns a well-formed result; worst case is
// REVIEW with an explanatory reasoning string.
func (p *Pipeline) Run(ctx context.Context, feature types.Feature, glossary string, gset *grounding.Set) Result {
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("feature.id", feature.ID)))
	defer span.End()

	if p.client == nil {
		p.logger.WithContext(ctx).Warn().
			Str("feature_id", feature.ID).
			Msg("model capability not configured, degrading to REVIEW")
		return Result{
			Consensus: p.fallback(feature,
				"[MODEL_NOT_CONFIGURED] No model access is configured; the feature needs human review."),
			Degraded: true,
		}
	}

	allowedIDs := joinIDs(gset)
	contextBlock := gset.ContextBlock()

	detectorJSON := p.runDetector(ctx, feature, glossary)
	mapperJSON := p.runMapper(ctx, detectorJSON, contextBlock, allowedIDs, gset)

	survivors, raws := p.runArbiters(ctx, detectorJSON, mapperJSON, contextBlock, allowedIDs)

	decision, ok := Vote(survivors)
	if !ok {
		p.logger.WithContext(ctx).Warn().
			Str("feature_id", feature.ID).
			Msg("all arbiter runs discarded, falling back to REVIEW")
		return Result{
			Consensus: p.fallback(feature, "Insufficient evidence."),
			Degraded:  true,
		}
	}

	confidence := Calibrate(survivors)
	rep := pickRepresentative(survivors, decision)

	p.logger.WithContext(ctx).Info().
		Str("feature_id", feature.ID).
		Str("decision", string(decision)).
		Float64("confidence", confidence).
		Int("surviving_runs", len(survivors)).
		Msg("pipeline vote complete")

	return Result{
		Consensus: types.ConsensusResult{
			FeatureID:        feature.ID,
			Decision:         decision,
			Confidence:       confidence,
			ReasoningSummary: rep.ReasoningSummary,
			Evidence:         rep.Evidence,
			Regulations:      rep.Regulations,
			ControlTypes:     rep.ControlTypes,
			TriggeredRules:   rep.TriggeredRules,
			Recommendations:  rep.Recommendations,
		},
		RawOutputs: raws,
	}
}

// runDetector returns the detector payload as JSON text, or "{}" when
// the stage fails. The arbiter stage tolerates an empty detector frame.
func (p *Pipeline) runDetector(ctx context.Context, feature types.Feature, glossary string) string {
	ctx, span := p.tracer.Start(ctx, "pipeline.detector")
	defer span.End()

	prompt := buildDetectorPrompt(glossary, splitClauses(feature.Text()))
	raw, err := p.complete(ctx, prompt)
	if err != nil {
		p.logger.LogModelCallFailed(ctx, "detector", err)
		telemetry.CountModelFailure(ctx, "detector")
		return "{}"
	}

	resp, err := ParseDetector(raw)
	if err != nil {
		p.logger.LogModelCallFailed(ctx, "detector", err)
		return "{}"
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// runMapper returns the policy-mapper payload as JSON text, or "{}".
// A run citing a regulation id outside the grounding set is discarded
// like any other malformed run.
func (p *Pipeline) runMapper(ctx context.Context, detectorJSON, contextBlock, allowedIDs string, gset *grounding.Set) string {
	ctx, span := p.tracer.Start(ctx, "pipeline.policy_mapper")
	defer span.End()

	var det DetectorResponse
	_ = json.Unmarshal([]byte(detectorJSON), &det)

	prompt := buildMapperPrompt(det.FeatureSpans, contextBlock, allowedIDs)
	raw, err := p.complete(ctx, prompt)
	if err != nil {
		p.logger.LogModelCallFailed(ctx, "policy_mapper", err)
		telemetry.CountModelFailure(ctx, "policy_mapper")
		return "{}"
	}

	resp, err := ParseMapper(raw)
	if err != nil {
		p.logger.LogModelCallFailed(ctx, "policy_mapper", err)
		return "{}"
	}

	for _, id := range resp.RegulationIDs {
		if !gset.Contains(id) {
			p.logger.LogModelCallFailed(ctx, "policy_mapper",
				fmt.Errorf("cited regulation %q is outside the grounding context", id))
			telemetry.CountCitationViolation(ctx)
			return "{}"
		}
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// runArbiters fans out N independent arbiter calls and joins them.
// A failed or malformed run is discarded without retry; it simply does
// not vote.
func (p *Pipeline) runArbiters(ctx context.Context, detectorJSON, mapperJSON, contextBlock, allowedIDs string) ([]*ArbiterResponse, []string) {
	ctx, span := p.tracer.Start(ctx, "pipeline.arbiter_fanout",
		trace.WithAttributes(attribute.Int("runs", p.opts.ArbiterRuns)))
	defer span.End()

	prompt := buildArbiterPrompt(detectorJSON, mapperJSON, contextBlock, allowedIDs)

	type runOutcome struct {
		resp *ArbiterResponse
		raw  string
	}
	outcomes := make([]runOutcome, p.opts.ArbiterRuns)

	var wg sync.WaitGroup
	for i := 0; i < p.opts.ArbiterRuns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			raw, err := p.complete(ctx, prompt)
			if err != nil {
				p.logger.LogModelCallFailed(ctx, "arbiter", err)
				telemetry.CountModelFailure(ctx, "arbiter")
				return
			}
			resp, err := ParseArbiter(raw)
			if err != nil {
				p.logger.LogModelCallFailed(ctx, "arbiter", err)
				telemetry.CountModelFailure(ctx, "arbiter")
				return
			}
			outcomes[i] = runOutcome{resp: resp, raw: raw}
		}(i)
	}
	wg.Wait()

	var survivors []*ArbiterResponse
	var raws []string
	for _, o := range outcomes {
		if o.resp != nil {
			survivors = append(survivors, o.resp)
			raws = append(raws, o.raw)
		}
	}
	return survivors, raws
}

func (p *Pipeline) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.CallTimeout)
	defer cancel()

	return p.client.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
		JSONOnly:    true,
	})
}

// fallback is the degraded result contract: REVIEW at 0.5 with the
// original feature description as evidence.
func (p *Pipeline) fallback(feature types.Feature, reason string) types.ConsensusResult {
	return types.ConsensusResult{
		FeatureID:        feature.ID,
		Decision:         types.DecisionReview,
		Confidence:       0.5,
		ReasoningSummary: reason,
		Evidence: types.Evidence{
			FeatureSpans: []string{feature.Description},
			RegSnippets:  []string{},
		},
		Regulations:  []string{},
		ControlTypes: []string{},
	}
}

func joinIDs(gset *grounding.Set) string {
	ids := gset.IDs()
	if len(ids) == 0 {
		return "None"
	}
	out := ids[0]
	for _, id := range ids[1:] {
		out += ", " + id
	}
	return out
}
