// Package guard enforces citation closure: every legal citation in a
// consensus result must be traceable to the grounding set used for that
// specific call. Violations downgrade the decision to REVIEW rather
// than discard the result. This is the hallucination guard.
package guard

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geogate/geogate/grounding"
	"github.com/geogate/geogate/telemetry"
	"github.com/geogate/geogate/types"
)

// Guard validates consensus results against grounding sets.
type Guard struct {
	logger *telemetry.Logger
	tracer trace.Tracer
}

// New creates a citation guard.
func New() *Guard {
	return &Guard{
		logger: telemetry.NewLogger("guard"),
		tracer: otel.Tracer("guard"),
	}
}

// Validate checks every citation in result against the grounding set
// for this call (never the full corpus), drops violations, downgrades
// the decision on any violation, and rewrites accepted citations into
// presentation form. The result is modified in place and returned.
func (g *Guard) Validate(ctx context.Context, result *types.ConsensusResult, gset *grounding.Set) *types.ConsensusResult {
	ctx, span := g.tracer.Start(ctx, "guard.validate",
		trace.WithAttributes(attribute.String("feature.id", result.FeatureID)))
	defer span.End()

	var amendments []string

	g.checkRegulations(ctx, result, gset, &amendments)
	g.checkTriggeredRules(ctx, result, gset, &amendments)
	g.checkReasoningText(ctx, result, gset, &amendments)

	if len(amendments) > 0 {
		result.Decision = types.DecisionReview
		result.ReasoningSummary = strings.TrimSpace(
			result.ReasoningSummary + " " + strings.Join(amendments, " "))

		g.logger.WithContext(ctx).Warn().
			Str("feature_id", result.FeatureID).
			Int("violations", len(amendments)).
			Msg("citation violations forced decision to REVIEW")
	}

	span.SetAttributes(attribute.Int("violations", len(amendments)))
	return result
}

// checkRegulations enforces closure on the cited regulation ids and
// rewrites survivors as "Title (ID)".
func (g *Guard) checkRegulations(ctx context.Context, result *types.ConsensusResult, gset *grounding.Set, amendments *[]string) {
	kept := make([]string, 0, len(result.Regulations))
	for _, id := range result.Regulations {
		rule, ok := gset.Get(id)
		if !ok {
			g.logger.LogCitationViolation(ctx, result.FeatureID, id)
			telemetry.CountCitationViolation(ctx)
			*amendments = append(*amendments, fmt.Sprintf(
				"Cited regulation %q is not in the reference context; it was dropped and the decision set to REVIEW.", id))
			continue
		}
		kept = append(kept, fmt.Sprintf("%s (%s)", rule.Title, rule.ID))
	}
	result.Regulations = kept
}

// checkTriggeredRules drops per-rule verdicts citing unknown rules.
func (g *Guard) checkTriggeredRules(ctx context.Context, result *types.ConsensusResult, gset *grounding.Set, amendments *[]string) {
	kept := make([]types.TriggeredRule, 0, len(result.TriggeredRules))
	dropped := false
	for _, t := range result.TriggeredRules {
		if !gset.Contains(t.RuleID) {
			g.logger.LogCitationViolation(ctx, result.FeatureID, t.RuleID)
			telemetry.CountCitationViolation(ctx)
			dropped = true
			continue
		}
		kept = append(kept, t)
	}
	if dropped {
		*amendments = append(*amendments,
			"One or more triggered rules referenced regulations outside the reference context; they were dropped and the decision set to REVIEW.")
	}
	result.TriggeredRules = kept
}

// checkReasoningText scans the free-text reasoning for references to
// laws outside the grounding set and strips them.
func (g *Guard) checkReasoningText(ctx context.Context, result *types.ConsensusResult, gset *grounding.Set, amendments *[]string) {
	for _, ref := range externalReferences(result.ReasoningSummary) {
		if groundingMentions(gset, ref) {
			continue
		}
		g.logger.LogCitationViolation(ctx, result.FeatureID, ref)
		telemetry.CountCitationViolation(ctx)

		result.ReasoningSummary = strings.ReplaceAll(result.ReasoningSummary, ref, "[external reference removed]")
		*amendments = append(*amendments, fmt.Sprintf(
			"The reasoning referenced %q, which is outside the reference corpus; the mention was removed and the decision set to REVIEW.", ref))
	}
}

// groundingMentions reports whether ref corresponds to a grounding rule
// by id, title, jurisdiction, summary, or keyword.
func groundingMentions(gset *grounding.Set, ref string) bool {
	refLC := strings.ToLower(ref)
	for _, r := range gset.Rules {
		if strings.EqualFold(r.ID, ref) {
			return true
		}
		for _, field := range []string{r.Title, r.Jurisdiction, r.Summary} {
			if strings.Contains(strings.ToLower(field), refLC) {
				return true
			}
		}
		// A match like "The Utah Social Media Regulation Act" is longer
		// than the title it names; check containment both ways.
		if titleLC := strings.ToLower(r.Title); len(titleLC) > 6 && strings.Contains(refLC, titleLC) {
			return true
		}
		for _, kw := range r.Keywords {
			if strings.EqualFold(kw, ref) {
				return true
			}
		}
	}
	return false
}
