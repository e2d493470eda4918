// Package grounding selects the rule-corpus subset that grounds one
// classification call and fingerprints it so any later audit can prove
// exactly which legal text the decision was based on.
package grounding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/geogate/geogate/corpus"
)

// Set is the ordered rule subset grounding one classification call.
// Citations are only valid if contained in it.
type Set struct {
	Rules       []corpus.RuleEntry
	Fingerprint string
}

// IDs returns the grounding rule ids in selection order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, len(s.Rules))
	for _, r := range s.Rules {
		ids = append(ids, r.ID)
	}
	return ids
}

// Contains reports whether id is part of the grounding set.
func (s *Set) Contains(id string) bool {
	for _, r := range s.Rules {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Get looks up a grounding rule by id.
func (s *Set) Get(id string) (corpus.RuleEntry, bool) {
	for _, r := range s.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return corpus.RuleEntry{}, false
}

// ContextBlock renders the grounding rules as prompt context, one line
// per rule: [id] title (jurisdiction, severity): summary
func (s *Set) ContextBlock() string {
	lines := make([]string, 0, len(s.Rules))
	for _, r := range s.Rules {
		lines = append(lines, fmt.Sprintf("[%s] %s (%s, %s): %s",
			r.ID, r.Title, r.Jurisdiction, r.Severity, r.Summary))
	}
	return strings.Join(lines, "\n")
}

// Score computes the relevance of a rule to the feature text:
// 2 per keyword hit, 1 per id/title substring hit, plus a small
// severity bias so graver rules win score ties.
func Score(rule corpus.RuleEntry, text string) float64 {
	textLC := strings.ToLower(text)

	hits := 0
	for _, kw := range rule.Keywords {
		if kw != "" && strings.Contains(textLC, strings.ToLower(kw)) {
			hits += 2
		}
	}
	for _, field := range []string{rule.ID, rule.Title} {
		if field != "" && strings.Contains(textLC, strings.ToLower(field)) {
			hits++
		}
	}

	return float64(hits) + 0.1*float64(corpus.SeverityWeight(rule.Severity))
}

// Select ranks the corpus by relevance to the feature text and returns
// the top-K grounding set. K <= 0 or K >= corpus size selects the whole
// corpus in rank order. The fingerprint is deterministic for identical
// corpus and selection.
func Select(ix *corpus.Index, featureText string, topK int) *Set {
	entries := ix.Entries()

	ranked := make([]corpus.RuleEntry, len(entries))
	copy(ranked, entries)

	scores := make(map[string]float64, len(ranked))
	for _, r := range ranked {
		scores[r.ID] = Score(r, featureText)
	}
	// Stable sort keeps corpus order among equal scores, so identical
	// inputs always produce identical selections.
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] > scores[ranked[j].ID]
	})

	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}

	return &Set{
		Rules:       ranked,
		Fingerprint: corpus.Fingerprint(ranked),
	}
}
