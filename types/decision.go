package types

import (
	"fmt"
	"time"
)

// Decision is the closed set of classification outcomes.
type Decision string

const (
	DecisionYes    Decision = "YES"    // geo-specific legal compliance logic required
	DecisionNo     Decision = "NO"     // business decision only
	DecisionReview Decision = "REVIEW" // ambiguous, needs human review
)

// NormalizeDecision maps loose model output onto the closed enumeration.
// MAYBE and UNSURE are historical aliases for REVIEW.
func NormalizeDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionYes, DecisionNo, DecisionReview:
		return Decision(s), true
	}
	switch s {
	case "UNSURE", "MAYBE":
		return DecisionReview, true
	}
	return DecisionReview, false
}

// Verdict describes how a single rule relates to a feature.
type Verdict string

const (
	VerdictViolated      Verdict = "violated"
	VerdictNotApplicable Verdict = "not_applicable"
	VerdictUnclear       Verdict = "unclear"
)

// ValidVerdict reports whether v is in the closed verdict set.
func ValidVerdict(v Verdict) bool {
	return v == VerdictViolated || v == VerdictNotApplicable || v == VerdictUnclear
}

// TriggeredRule records a per-rule verdict cited by the model.
type TriggeredRule struct {
	RuleID      string  `json:"rule_id"`
	Verdict     Verdict `json:"verdict"`
	Explanation string  `json:"explanation"`
}

// Evidence collects the quoted material backing a decision.
type Evidence struct {
	FeatureSpans []string `json:"feature_spans"`
	RegSnippets  []string `json:"reg_snippets"`
}

// RunInfo captures pipeline provenance for one classification call.
type RunInfo struct {
	PipelineVersion string    `json:"pipeline_version"`
	PromptVersion   string    `json:"prompt_version"`
	ModelID         string    `json:"model_id,omitempty"`
	TimestampUTC    time.Time `json:"timestamp_utc"`
}

// RetrievalInfo identifies the exact grounding used for one call.
type RetrievalInfo struct {
	GroundingIDs         []string `json:"grounding_ids"`
	GroundingFingerprint string   `json:"grounding_fingerprint"`
	CorpusFingerprint    string   `json:"corpus_fingerprint"`
}

// Metadata is attached to every consensus result.
type Metadata struct {
	Retrieval RetrievalInfo `json:"retrieval"`
	Runtime   RunInfo       `json:"runtime"`
}

// ConsensusResult is the majority-voted, calibrated, citation-validated
// output of one classification call. This is the unit persisted and
// returned to callers.
type ConsensusResult struct {
	FeatureID        string          `json:"feature_id"`
	Decision         Decision        `json:"decision"`
	Confidence       float64         `json:"confidence"`
	ReasoningSummary string          `json:"reasoning_summary"`
	Evidence         Evidence        `json:"evidence"`
	Regulations      []string        `json:"regulations"`
	ControlTypes     []string        `json:"control_type"`
	TriggeredRules   []TriggeredRule `json:"triggered_rules,omitempty"`
	Recommendations  []string        `json:"recommendations,omitempty"`
	Metadata         Metadata        `json:"metadata"`
}

// Validate ensures the result respects the output contract.
func (r *ConsensusResult) Validate() error {
	switch r.Decision {
	case DecisionYes, DecisionNo, DecisionReview:
	default:
		return fmt.Errorf("decision %q outside closed enumeration", r.Decision)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %f outside [0,1]", r.Confidence)
	}
	for _, t := range r.TriggeredRules {
		if !ValidVerdict(t.Verdict) {
			return fmt.Errorf("verdict %q outside closed enumeration", t.Verdict)
		}
	}
	return nil
}

// ClampConfidence forces a raw confidence into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
