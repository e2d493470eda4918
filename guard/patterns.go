package guard

import "regexp"

// knownAcronyms are regulatory shorthands the model is prone to citing
// from memory. Any occurrence that does not resolve to a grounding rule
// is a hallucinated external reference.
var knownAcronyms = []string{
	"GDPR", "LGPD", "CCPA", "CPRA", "COPPA", "HIPAA", "DMCA", "FERPA",
	"GLBA", "PIPEDA", "KOSA", "NetzDG", "PDPA", "POPIA",
}

var (
	acronymPattern = buildAcronymPattern()

	// Statute and bill numbers: "HB 311", "SB-152", "AB 2273".
	statutePattern = regexp.MustCompile(`\b(?:HB|SB|AB)[ -]?\d+\b`)

	// Named instruments: "Utah Social Media Regulation Act",
	// "Digital Services Regulation", "Children's Code".
	namedLawPattern = regexp.MustCompile(`\b(?:[A-Z][a-z']+ )+(?:Act|Regulation|Code|Directive)\b`)
)

func buildAcronymPattern() *regexp.Regexp {
	expr := `\b(?:` + knownAcronyms[0]
	for _, a := range knownAcronyms[1:] {
		expr += `|` + a
	}
	return regexp.MustCompile(expr + `)\b`)
}

// externalReferences extracts every phrase in text resembling a legal
// reference, in order of appearance, deduplicated.
func externalReferences(text string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, p := range []*regexp.Regexp{acronymPattern, statutePattern, namedLawPattern} {
		for _, m := range p.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				refs = append(refs, m)
			}
		}
	}
	return refs
}
