// Package normalize prepares raw feature input for classification:
// glossary expansion of internal shorthand and geography tagging.
package normalize

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/geogate/geogate/types"
)

// Glossary maps internal abbreviations and codenames to expansions.
type Glossary map[string]string

// LoadGlossary reads a terminology YAML file.
func LoadGlossary(path string) (Glossary, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}

	var g Glossary
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to parse glossary: %w", err)
	}
	return g, nil
}

// Render formats the glossary as prompt context, one term per line,
// in deterministic order.
func (g Glossary) Render() string {
	terms := make([]string, 0, len(g))
	for t := range g {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	var b strings.Builder
	for _, t := range terms {
		fmt.Fprintf(&b, "%s: %s\n", t, g[t])
	}
	return b.String()
}

// Expand annotates every glossary term occurrence with its expansion,
// so the model never has to guess at internal codenames.
func (g Glossary) Expand(text string) string {
	terms := make([]string, 0, len(g))
	for t := range g {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	for _, t := range terms {
		if strings.Contains(text, t) {
			text = strings.ReplaceAll(text, t, fmt.Sprintf("%s (%s)", t, g[t]))
		}
	}
	return text
}

// geoEntities are the geography markers we tag on features.
var geoEntities = []string{"EU", "EEA", "France", "CA", "FL", "UT", "KR", "US", "BR"}

// Markers match on word boundaries only, so "US" never tags "USB".
// Two-letter codes stay case-sensitive; "us" the pronoun is not a
// jurisdiction.
var geoPatterns = compileGeoPatterns()

func compileGeoPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(geoEntities))
	for _, g := range geoEntities {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(g)+`\b`))
	}
	return patterns
}

// TagGeography extracts geography markers mentioned in the text.
func TagGeography(text string) []string {
	var found []string
	for i, p := range geoPatterns {
		if p.MatchString(text) {
			found = append(found, geoEntities[i])
		}
	}
	return found
}

// Feature returns a copy of f with glossary-expanded description and
// geo tags filled in. The input feature is not modified.
func Feature(f types.Feature, g Glossary) types.Feature {
	out := f
	out.Description = g.Expand(f.Description)
	out.GeoTags = TagGeography(out.Text())
	return out
}
