// Package classifier coordinates one classification call end to end:
// normalize → pre-filter → grounding → agent pipeline → citation
// guard → audit → scan persistence. It always returns a well-formed
// result; transport failures never reach the caller.
package classifier

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geogate/geogate/audit"
	"github.com/geogate/geogate/corpus"
	"github.com/geogate/geogate/grounding"
	"github.com/geogate/geogate/guard"
	"github.com/geogate/geogate/normalize"
	"github.com/geogate/geogate/pipeline"
	"github.com/geogate/geogate/prefilter"
	"github.com/geogate/geogate/storage"
	"github.com/geogate/geogate/telemetry"
	"github.com/geogate/geogate/types"
)

// Classifier owns the per-call pipeline wiring. The rule corpus is
// read-only after load and shared freely across concurrent calls; the
// audit log and database serialize their own writes.
type Classifier struct {
	corpus   *corpus.Store
	glossary normalize.Glossary
	filter   *prefilter.Filter
	pipe     *pipeline.Pipeline
	guard    *guard.Guard
	auditLog *audit.Log
	store    *storage.Store
	topK     int
	logger   *telemetry.Logger
	tracer   trace.Tracer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithStore attaches the feature/scan database.
func WithStore(s *storage.Store) Option {
	return func(c *Classifier) { c.store = s }
}

// WithTopK sets the grounding selection width.
func WithTopK(k int) Option {
	return func(c *Classifier) { c.topK = k }
}

// New creates a classifier.
func New(cs *corpus.Store, glossary normalize.Glossary, pipe *pipeline.Pipeline, auditLog *audit.Log, opts ...Option) *Classifier {
	c := &Classifier{
		corpus:   cs,
		glossary: glossary,
		filter:   prefilter.New(),
		pipe:     pipe,
		guard:    guard.New(),
		auditLog: auditLog,
		topK:     25,
		logger:   telemetry.NewLogger("classifier"),
		tracer:   otel.Tracer("classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify runs one feature through the full decision pipeline.
func (c *Classifier) Classify(ctx context.Context, feature types.Feature) types.ConsensusResult {
	ctx, span := c.tracer.Start(ctx, "classifier.classify",
		trace.WithAttributes(attribute.String("feature.id", feature.ID)))
	defer span.End()

	start := time.Now()

	feature = normalize.Feature(feature, c.glossary)
	ix := c.corpus.Index()
	gset := grounding.Select(ix, feature.Text(), c.topK)

	meta := types.Metadata{
		Retrieval: types.RetrievalInfo{
			GroundingIDs:         gset.IDs(),
			GroundingFingerprint: gset.Fingerprint,
			CorpusFingerprint:    ix.FingerprintHex(),
		},
		Runtime: types.RunInfo{
			PipelineVersion: pipeline.PipelineVersion,
			PromptVersion:   pipeline.PromptVersion,
			ModelID:         c.pipe.ModelID(),
			TimestampUTC:    time.Now().UTC(),
		},
	}

	// Confident pre-filter decisions are terminal: the agent pipeline
	// is bypassed entirely, never blended.
	if pf := c.filter.Label(feature.Description); pf.Terminal {
		result := c.prefilterResult(feature, pf, gset, meta)
		c.finish(ctx, feature, &result, audit.StatusPrefilter, nil, start, true)
		return result
	}

	pipeResult := c.pipe.Run(ctx, feature, c.glossary.Render(), gset)
	result := pipeResult.Consensus
	result.Metadata = meta

	c.guard.Validate(ctx, &result, gset)

	status := audit.StatusOK
	if pipeResult.Degraded {
		status = audit.StatusDegraded
	}
	c.finish(ctx, feature, &result, status, pipeResult.RawOutputs, start, false)
	return result
}

// prefilterResult builds the terminal weak-supervision answer without
// consulting the model.
func (c *Classifier) prefilterResult(feature types.Feature, pf prefilter.Result, gset *grounding.Set, meta types.Metadata) types.ConsensusResult {
	result := types.ConsensusResult{
		FeatureID:    feature.ID,
		Decision:     pf.Decision,
		Confidence:   pf.Confidence,
		Evidence:     types.Evidence{FeatureSpans: []string{feature.Description}, RegSnippets: []string{}},
		Regulations:  []string{},
		ControlTypes: []string{},
		Metadata:     meta,
	}

	switch pf.Decision {
	case types.DecisionNo:
		result.ReasoningSummary = "Business geofence detected (phrasebook cues)."
	case types.DecisionYes:
		result.ReasoningSummary = "Legal compliance obligation detected (phrasebook cues)."
		// Surface the top grounding rules as supporting citations.
		for i, r := range gset.Rules {
			if i == 2 {
				break
			}
			result.Evidence.RegSnippets = append(result.Evidence.RegSnippets, r.Summary)
			result.Regulations = append(result.Regulations, fmt.Sprintf("%s (%s)", r.Title, r.ID))
		}
	}
	return result
}

func (c *Classifier) finish(ctx context.Context, feature types.Feature, result *types.ConsensusResult, status string, rawOutputs []string, start time.Time, prefiltered bool) {
	auditID, err := c.auditLog.Append(status, c.pipe.ModelID(), rawOutputs, *result)
	if err != nil {
		c.logger.LogAuditError(ctx, feature.ID, err)
	}

	if c.store != nil && feature.ID != "" {
		snapshot := storage.FeatureRecord{
			ID:          feature.ID,
			Title:       feature.Title,
			Description: feature.Description,
			PRD:         feature.PRD,
			TRD:         feature.TRD,
		}
		if _, err := c.store.AppendScan(feature.ID, snapshot, *result, auditID); err != nil {
			c.logger.WithContext(ctx).Error().
				Err(err).
				Str("feature_id", feature.ID).
				Msg("scan persistence failed")
		}
	}

	telemetry.CountClassification(ctx, string(result.Decision), prefiltered, time.Since(start))

	c.logger.WithContext(ctx).Info().
		Str("feature_id", feature.ID).
		Str("decision", string(result.Decision)).
		Float64("confidence", result.Confidence).
		Str("status", status).
		Dur("duration", time.Since(start)).
		Msg("classification complete")
}
