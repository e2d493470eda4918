package pipeline

import (
	"fmt"
	"strings"
)

// Prompt versions travel with every audit record so a decision can be
// traced to the exact prompt text that produced it.
const (
	PipelineVersion = "0.2.0"
	PromptVersion   = "0.2.0"
)

func buildDetectorPrompt(glossary string, featureClauses []string) string {
	return fmt.Sprintf(`You determine if a feature implies geo-specific LEGAL compliance logic (not business geofencing).
Use the glossary and the feature clauses. Distinguish legal obligations from business decisions.

Glossary:
%s
Feature clauses:
%s

Return ONLY a single JSON object:
{"detector_decision":"YES|NO|REVIEW","reason":"1-2 sentences citing a short feature quote","feature_spans":["..."]}`,
		glossary, strings.Join(featureClauses, "\n"))
}

func buildMapperPrompt(featureSpans []string, contextBlock, allowedIDs string) string {
	return fmt.Sprintf(`Map the feature evidence to compliance control types and likely regulations.
Use ONLY the reference legal context below. Quote exact snippets.
The only valid regulation identifiers are: %s.

Feature evidence:
%s

REFERENCE LEGAL CONTEXT:
%s

Return ONLY a single JSON object:
{"control_type":["..."],"regulations":["allowed ids only"],"reg_snippets":["exact quotes with rule ids"],"reason":"1-2 sentences"}`,
		allowedIDs, strings.Join(featureSpans, "\n"), contextBlock)
}

func buildArbiterPrompt(detectorJSON, mapperJSON, contextBlock, allowedIDs string) string {
	return fmt.Sprintf(`Produce the final decision with confidence.
Consider the Detector and Policy Mapper outputs. If evidence is weak or conflicting, set decision to REVIEW.

STRICT CONSTRAINTS (follow exactly):
1) Base your reasoning and any regulation citation ONLY on the REFERENCE LEGAL CONTEXT.
2) Do NOT invent or reference any law or regulation that is not present in the context.
3) If the feature explicitly mentions a law that is NOT in the context, decision MUST be REVIEW
   and your reasoning MUST state that a potential legal requirement was found but is not in the knowledge base.
4) When you cite a rule, use its id exactly as given. The only valid rule identifiers are: %s.

Detector: %s
PolicyMapper: %s

REFERENCE LEGAL CONTEXT:
%s

Return ONLY a single JSON object:
{
 "decision": "YES|NO|REVIEW",
 "confidence": 0.0,
 "reasoning_summary": "1-3 sentences referencing quoted evidence",
 "evidence": {"feature_spans": ["..."], "reg_snippets": ["..."]},
 "regulations": ["allowed ids only"],
 "control_type": ["..."],
 "triggered_rules": [{"rule_id": "allowed id", "verdict": "violated|not_applicable|unclear", "explanation": "..."}],
 "recommendations": ["..."]
}`,
		allowedIDs, detectorJSON, mapperJSON, contextBlock)
}

// splitClauses breaks a description into sentence-level clauses for the
// detector stage.
func splitClauses(text string) []string {
	parts := strings.Split(text, ".")
	clauses := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			clauses = append(clauses, s)
		}
	}
	if len(clauses) == 0 {
		clauses = []string{text}
	}
	return clauses
}
