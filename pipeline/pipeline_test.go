package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/geogate/geogate/corpus"
	"github.com/geogate/geogate/grounding"
	"github.com/geogate/geogate/llm"
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
	})
	return grounding.Select(ix, "curfew for minors", 0)
}

const (
	detectorJSON = `{"detector_decision":"YES","reason":"legal obligation","feature_spans":["curfew login restriction"]}`
	mapperJSON   = `{"control_type":["age_gate"],"regulations":["UT-SMRA"],"reg_snippets":[],"reason":"curfew"}`
	arbiterYES   = `{"decision":"YES","confidence":0.9,"reasoning_summary":"Curfew restriction is a legal obligation under UT-SMRA.","evidence":{"feature_spans":["curfew login restriction"],"reg_snippets":[]},"regulations":["UT-SMRA"],"control_type":["age_gate"]}`
	arbiterREV   = `{"decision":"REVIEW","confidence":0.5,"reasoning_summary":"Unclear.","regulations":[]}`
)

func testFeature() types.Feature {
	return types.Feature{
		ID:          "feat-1",
		Title:       "Curfew login blocker",
		Description: "Implement curfew login restriction for minors in Utah",
	}
}

func TestPipeline_Run_UnanimousVote(t *testing.T) {
	// Call order: detector, mapper, then three arbiters repeating the
	// last scripted response.
	mock := &llm.MockClient{Responses: []string{detectorJSON, mapperJSON, arbiterYES}}
	p := New(mock, Options{ArbiterRuns: 3})

	result := p.Run(context.Background(), testFeature(), "", testGrounding())

	if result.Degraded {
		t.Fatal("result should not be degraded")
	}
	if result.Consensus.Decision != types.DecisionYes {
		t.Errorf("decision = %v, want YES", result.Consensus.Decision)
	}
	if diff := result.Consensus.Confidence - 0.9; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want 0.9", result.Consensus.Confidence)
	}
	if len(result.Consensus.Regulations) != 1 || result.Consensus.Regulations[0] != "UT-SMRA" {
		t.Errorf("regulations = %v", result.Consensus.Regulations)
	}
	if len(result.RawOutputs) != 3 {
		t.Errorf("raw outputs = %d, want one per surviving arbiter", len(result.RawOutputs))
	}
	if len(mock.Calls) != 5 {
		t.Errorf("model calls = %d, want 5 (detector + mapper + 3 arbiters)", len(mock.Calls))
	}
}

func TestPipeline_Run_MajorityVote(t *testing.T) {
	// The three arbiter calls draw one response each from indexes 2-4;
	// the multiset {YES, YES, REVIEW} votes YES whatever the order.
	mock := &llm.MockClient{Responses: []string{detectorJSON, mapperJSON, arbiterYES, arbiterYES, arbiterREV}}
	p := New(mock, Options{ArbiterRuns: 3})

	result := p.Run(context.Background(), testFeature(), "", testGrounding())

	if result.Consensus.Decision != types.DecisionYes {
		t.Errorf("decision = %v, want YES from a 2-1 vote", result.Consensus.Decision)
	}
	// Calibrated confidence is the mean of the surviving runs.
	want := (0.9 + 0.9 + 0.5) / 3
	if diff := result.Consensus.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want %v", result.Consensus.Confidence, want)
	}
}

func TestPipeline_Run_AllArbitersFail(t *testing.T) {
	boom := errors.New("model unavailable")
	mock := &llm.MockClient{
		Responses: []string{detectorJSON, mapperJSON},
		Errs:      []error{nil, nil, boom, boom, boom},
	}
	p := New(mock, Options{ArbiterRuns: 3})

	feature := testFeature()
	result := p.Run(context.Background(), feature, "", testGrounding())

	if !result.Degraded {
		t.Fatal("result should be degraded when no arbiter survives")
	}
	if result.Consensus.Decision != types.DecisionReview {
		t.Errorf("decision = %v, want REVIEW", result.Consensus.Decision)
	}
	if result.Consensus.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", result.Consensus.Confidence)
	}
	if result.Consensus.ReasoningSummary != "Insufficient evidence." {
		t.Errorf("reasoning = %q", result.Consensus.ReasoningSummary)
	}
	if len(result.Consensus.Evidence.FeatureSpans) != 1 ||
		result.Consensus.Evidence.FeatureSpans[0] != feature.Description {
		t.Errorf("evidence spans = %v, want the original description", result.Consensus.Evidence.FeatureSpans)
	}
}

func TestPipeline_Run_EarlyStageFailureStillVotes(t *testing.T) {
	// Detector and mapper fail; arbiters still run against empty frames.
	boom := errors.New("model unavailable")
	mock := &llm.MockClient{
		Responses: []string{"", "", arbiterREV},
		Errs:      []error{boom, boom},
	}
	p := New(mock, Options{ArbiterRuns: 3})

	result := p.Run(context.Background(), testFeature(), "", testGrounding())

	if result.Degraded {
		t.Error("surviving arbiter runs must not mark the result degraded")
	}
	if result.Consensus.Decision != types.DecisionReview {
		t.Errorf("decision = %v, want REVIEW", result.Consensus.Decision)
	}
}

func TestPipeline_Run_MapperUngroundedCitationDiscarded(t *testing.T) {
	badMapper := `{"control_type":["age_gate"],"regulations":["BR-LGPD"],"reg_snippets":[],"reason":"guess"}`
	mock := &llm.MockClient{Responses: []string{detectorJSON, badMapper, arbiterYES}}
	p := New(mock, Options{ArbiterRuns: 1})

	result := p.Run(context.Background(), testFeature(), "", testGrounding())

	if len(mock.Calls) != 3 {
		t.Fatalf("model calls = %d, want 3", len(mock.Calls))
	}
	// The ungrounded mapper run is discarded; the arbiter sees an empty
	// mapper frame, never the fabricated citation.
	if strings.Contains(mock.Calls[2].Prompt, "BR-LGPD") {
		t.Error("arbiter prompt carries a regulation id outside the grounding context")
	}
	if result.Consensus.Decision != types.DecisionYes {
		t.Errorf("decision = %v, want YES from the surviving arbiter", result.Consensus.Decision)
	}
}

func TestPipeline_Run_NilClient(t *testing.T) {
	p := New(nil, Options{})

	result := p.Run(context.Background(), testFeature(), "", testGrounding())

	if !result.Degraded {
		t.Fatal("nil client must degrade")
	}
	if result.Consensus.Decision != types.DecisionReview {
		t.Errorf("decision = %v, want REVIEW", result.Consensus.Decision)
	}
	if !strings.Contains(result.Consensus.ReasoningSummary, "[MODEL_NOT_CONFIGURED]") {
		t.Errorf("reasoning = %q, want the not-configured tag", result.Consensus.ReasoningSummary)
	}
	if p.ModelID() != "none" {
		t.Errorf("ModelID() = %q, want none", p.ModelID())
	}
}

func TestPipeline_PromptsCarryGrounding(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{detectorJSON, mapperJSON, arbiterYES}}
	p := New(mock, Options{ArbiterRuns: 1})

	p.Run(context.Background(), testFeature(), "ASL: age-sensitive logic\n", testGrounding())

	if len(mock.Calls) != 3 {
		t.Fatalf("model calls = %d, want 3", len(mock.Calls))
	}

	// Detector sees the glossary; mapper and arbiter see the grounding
	// context and the allowed id list.
	if !strings.Contains(mock.Calls[0].Prompt, "age-sensitive logic") {
		t.Error("detector prompt missing glossary")
	}
	for _, call := range mock.Calls[1:] {
		if !strings.Contains(call.Prompt, "UT-SMRA") {
			t.Error("prompt missing grounding rule id")
		}
	}
	for _, call := range mock.Calls {
		if !call.JSONOnly {
			t.Error("every stage must request JSON-only output")
		}
	}
}
