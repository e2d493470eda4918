package pipeline

import (
	"github.com/geogate/geogate/types"
)

// Vote reduces surviving arbiter runs to a final decision. The decision
// is the mode of the surviving votes; if the maximum count is shared by
// more than one distinct decision, the result is REVIEW. This tie-break
// is deterministic across repeated runs regardless of vote order.
func Vote(runs []*ArbiterResponse) (types.Decision, bool) {
	if len(runs) == 0 {
		return types.DecisionReview, false
	}

	counts := make(map[types.Decision]int, 3)
	for _, r := range runs {
		counts[r.Decision]++
	}

	var winner types.Decision
	max, tied := 0, false
	for _, d := range []types.Decision{types.DecisionYes, types.DecisionNo, types.DecisionReview} {
		switch c := counts[d]; {
		case c > max:
			max, winner, tied = c, d, false
		case c == max && c > 0:
			tied = true
		}
	}

	if tied {
		return types.DecisionReview, true
	}
	return winner, true
}

// Calibrate combines per-run confidences into one normalized score:
// the mean of the surviving confidences, clamped to [0,1].
func Calibrate(runs []*ArbiterResponse) float64 {
	if len(runs) == 0 {
		return 0.5
	}
	var sum float64
	for _, r := range runs {
		sum += r.Confidence
	}
	return types.ClampConfidence(sum / float64(len(runs)))
}

// pickRepresentative selects the run whose evidence backs the final
// decision: the first surviving run (in run order) that voted for it,
// falling back to the first survivor.
func pickRepresentative(runs []*ArbiterResponse, decision types.Decision) *ArbiterResponse {
	for _, r := range runs {
		if r.Decision == decision {
			return r
		}
	}
	if len(runs) > 0 {
		return runs[0]
	}
	return nil
}
