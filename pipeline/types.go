package pipeline

import (
	"fmt"

	"github.com/geogate/geogate/types"
)

// DetectorResponse is the first-stage output: legal-compliance need
// versus business geofencing.
type DetectorResponse struct {
	Decision     types.Decision `json:"detector_decision"`
	Reason       string         `json:"reason"`
	FeatureSpans []string       `json:"feature_spans"`
}

// MapperResponse is the second-stage output: control types and the
// candidate regulations drawn from the grounding context.
type MapperResponse struct {
	ControlTypes  []string `json:"control_type"`
	RegulationIDs []string `json:"regulations"`
	RegSnippets   []string `json:"reg_snippets"`
	Reason        string   `json:"reason"`
}

// ArbiterResponse is one self-consistency run of the final stage.
type ArbiterResponse struct {
	Decision         types.Decision        `json:"decision"`
	Confidence       float64               `json:"confidence"`
	ReasoningSummary string                `json:"reasoning_summary"`
	Evidence         types.Evidence        `json:"evidence"`
	Regulations      []string              `json:"regulations"`
	ControlTypes     []string              `json:"control_type"`
	TriggeredRules   []types.TriggeredRule `json:"triggered_rules"`
	Recommendations  []string              `json:"recommendations"`
}

// validate enforces the closed schema on a parsed arbiter run. A run
// failing validation does not vote.
func (a *ArbiterResponse) validate() error {
	d, ok := types.NormalizeDecision(string(a.Decision))
	if !ok {
		return fmt.Errorf("decision %q outside closed enumeration", a.Decision)
	}
	a.Decision = d
	a.Confidence = types.ClampConfidence(a.Confidence)

	valid := a.TriggeredRules[:0]
	for _, t := range a.TriggeredRules {
		if types.ValidVerdict(t.Verdict) {
			valid = append(valid, t)
		}
	}
	a.TriggeredRules = valid
	return nil
}

func (d *DetectorResponse) validate() error {
	dec, ok := types.NormalizeDecision(string(d.Decision))
	if !ok {
		return fmt.Errorf("detector decision %q outside closed enumeration", d.Decision)
	}
	d.Decision = dec
	return nil
}
