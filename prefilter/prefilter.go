// Package prefilter is the weak-supervision fast path: fixed cue
// phrasebooks decide obvious cases without consulting the model.
// A confident YES or NO here is terminal and bypasses the agent
// pipeline; anything else falls through to the full pipeline.
package prefilter

import (
	"regexp"

	"github.com/geogate/geogate/types"
)

// Positive cues signal legal or compliance obligations.
var positiveCues = []string{
	"age gate", "age-gating", "underage", "minors", "parental consent",
	"curfew", "Jellybean", "Snowcap", "ASL",
	"report to NCMEC", "CSAM", "child sexual abuse",
	"data retention", "retention threshold", "DRT",
	"copyright blocking", "notice and action", "takedown",
	"local compliance policy", "geo-handler enforcement", "delivery constraint",
}

// Negative cues signal business experiments, not legal obligations.
var negativeCues = []string{
	"A/B test", "variant test", "market experiment", "trial run",
	"market trial", "layout test", "theme test",
	"creator fund payout", "leaderboard", "mood-based PF",
	"rewards", "engagement features",
}

// Result is the pre-filter's verdict on a feature description.
type Result struct {
	Decision   types.Decision
	Confidence float64
	// Terminal marks a confident decision that short-circuits the
	// agent pipeline.
	Terminal bool
}

// Filter matches cue phrasebooks with word boundaries, case-insensitive.
type Filter struct {
	positive []*regexp.Regexp
	negative []*regexp.Regexp
}

// New compiles the built-in phrasebooks.
func New() *Filter {
	return &Filter{
		positive: compileCues(positiveCues),
		negative: compileCues(negativeCues),
	}
}

func compileCues(cues []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(cues))
	for _, cue := range cues {
		compiled = append(compiled, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(cue)+`\b`))
	}
	return compiled
}

// Label classifies a feature description from its cue phrases alone.
// Negative-only text is a business decision at 0.95, positive-only text
// is a legal obligation at 0.85, and anything mixed or silent stays
// REVIEW at 0.5 for the pipeline to resolve.
func (f *Filter) Label(text string) Result {
	pos := matchAny(f.positive, text)
	neg := matchAny(f.negative, text)

	switch {
	case neg && !pos:
		return Result{Decision: types.DecisionNo, Confidence: 0.95, Terminal: true}
	case pos && !neg:
		return Result{Decision: types.DecisionYes, Confidence: 0.85, Terminal: true}
	default:
		return Result{Decision: types.DecisionReview, Confidence: 0.5}
	}
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
