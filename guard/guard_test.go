package guard

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/geogate/geogate/corpus"
	"github.com/geogate/geogate/grounding"
	"github.com/geogate/geogate/types"
)

func testGrounding() *grounding.Set {
	ix := corpus.NewIndex([]corpus.RuleEntry{
		{
			ID:           "UT-SMRA",
			Title:        "Utah Social Media Regulation Act",
			Jurisdiction: "US-UT",
			Severity:     "high",
			Summary:      "Curfew and parental consent requirements for minors.",
			Keywords:     []string{"utah", "curfew", "minor"},
		},
		{
			ID:           "EU-DSA",
			Title:        "EU Digital Services Act",
			Jurisdiction: "EU",
			Severity:     "critical",
			Summary:      "Notice-and-action duties for platforms.",
			Keywords:     []string{"dsa", "takedown"},
		},
	})
	return grounding.Select(ix, "curfew takedown", 0)
}

func TestGuard_AcceptsGroundedCitations(t *testing.T) {
	g := New()
	result := &types.ConsensusResult{
		FeatureID:        "f1",
		Decision:         types.DecisionYes,
		Confidence:       0.9,
		ReasoningSummary: "Curfew restriction for minors is required in Utah.",
		Regulations:      []string{"UT-SMRA"},
		TriggeredRules: []types.TriggeredRule{
			{RuleID: "UT-SMRA", Verdict: types.VerdictViolated, Explanation: "curfew"},
		},
	}

	g.Validate(context.Background(), result, testGrounding())

	if result.Decision != types.DecisionYes {
		t.Errorf("grounded citations must not downgrade: decision = %v", result.Decision)
	}
	// Accepted citations are rewritten into presentation form.
	want := []string{"Utah Social Media Regulation Act (UT-SMRA)"}
	if !reflect.DeepEqual(result.Regulations, want) {
		t.Errorf("regulations = %v, want %v", result.Regulations, want)
	}
	if len(result.TriggeredRules) != 1 {
		t.Errorf("triggered rules = %v, want kept", result.TriggeredRules)
	}
}

func TestGuard_DropsUngroundedRegulation(t *testing.T) {
	g := New()
	result := &types.ConsensusResult{
		FeatureID:        "f1",
		Decision:         types.DecisionYes,
		Confidence:       0.9,
		ReasoningSummary: "Data processing rules apply.",
		Regulations:      []string{"UT-SMRA", "BR-LGPD"},
	}

	g.Validate(context.Background(), result, testGrounding())

	if result.Decision != types.DecisionReview {
		t.Errorf("decision = %v, want REVIEW after a citation violation", result.Decision)
	}
	if len(result.Regulations) != 1 || !strings.Contains(result.Regulations[0], "UT-SMRA") {
		t.Errorf("regulations = %v, want only the grounded citation", result.Regulations)
	}
	if !strings.Contains(result.ReasoningSummary, "not in the reference context") {
		t.Errorf("reasoning must explain the drop: %q", result.ReasoningSummary)
	}
}

func TestGuard_StripsExternalLawFromReasoning(t *testing.T) {
	g := New()
	result := &types.ConsensusResult{
		FeatureID:        "f1",
		Decision:         types.DecisionYes,
		Confidence:       0.8,
		ReasoningSummary: "Brazil's LGPD requires explicit consent for this processing.",
		Regulations:      []string{},
	}

	g.Validate(context.Background(), result, testGrounding())

	if result.Decision != types.DecisionReview {
		t.Errorf("decision = %v, want REVIEW", result.Decision)
	}
	if strings.Contains(result.ReasoningSummary, "LGPD requires") {
		t.Errorf("external claim survived in reasoning: %q", result.ReasoningSummary)
	}
	if !strings.Contains(result.ReasoningSummary, "[external reference removed]") {
		t.Errorf("reasoning missing removal marker: %q", result.ReasoningSummary)
	}
	if !strings.Contains(result.ReasoningSummary, "outside the reference corpus") {
		t.Errorf("reasoning must state the law is outside the corpus: %q", result.ReasoningSummary)
	}
}

func TestGuard_KeepsGroundedLawMentions(t *testing.T) {
	g := New()
	// The named-law pattern matches the title of a grounding rule, so
	// the mention is legitimate and stays.
	result := &types.ConsensusResult{
		FeatureID:        "f1",
		Decision:         types.DecisionYes,
		Confidence:       0.9,
		ReasoningSummary: "The Utah Social Media Regulation Act mandates a curfew for minors.",
		Regulations:      []string{},
	}

	g.Validate(context.Background(), result, testGrounding())

	if result.Decision != types.DecisionYes {
		t.Errorf("decision = %v, grounded mention must not downgrade", result.Decision)
	}
	if !strings.Contains(result.ReasoningSummary, "Utah Social Media Regulation Act") {
		t.Errorf("grounded mention was stripped: %q", result.ReasoningSummary)
	}
}

func TestGuard_DropsUngroundedTriggeredRule(t *testing.T) {
	g := New()
	result := &types.ConsensusResult{
		FeatureID:  "f1",
		Decision:   types.DecisionYes,
		Confidence: 0.9,
		TriggeredRules: []types.TriggeredRule{
			{RuleID: "EU-DSA", Verdict: types.VerdictViolated},
			{RuleID: "XX-FAKE", Verdict: types.VerdictViolated},
		},
	}

	g.Validate(context.Background(), result, testGrounding())

	if result.Decision != types.DecisionReview {
		t.Errorf("decision = %v, want REVIEW", result.Decision)
	}
	if len(result.TriggeredRules) != 1 || result.TriggeredRules[0].RuleID != "EU-DSA" {
		t.Errorf("triggered rules = %v", result.TriggeredRules)
	}
}

func TestExternalReferences(t *testing.T) {
	text := "Per GDPR and the Utah Social Media Regulation Act, plus SB-976 and GDPR again."
	refs := externalReferences(text)

	want := map[string]bool{
		"GDPR":   true,
		"SB-976": true,
		"Utah Social Media Regulation Act": true,
	}
	if len(refs) != len(want) {
		t.Fatalf("refs = %v, want %d deduplicated references", refs, len(want))
	}
	for _, r := range refs {
		if !want[r] {
			t.Errorf("unexpected reference %q", r)
		}
	}
}
