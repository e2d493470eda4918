package grounding

import (
	"math"
	"strings"
	"testing"

	"github.com/geogate/geogate/corpus"
)

func testIndex() *corpus.Index {
	return corpus.NewIndex([]corpus.RuleEntry{
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
			Keywords:     []string{"dsa", "illegal content", "takedown"},
		},
		{
			ID:           "KR-YPRA",
			Title:        "Korea Youth Protection Revision Act",
			Jurisdiction: "KR",
			Severity:     "medium",
			Summary:      "Youth protection duties for online services.",
			Keywords:     []string{"korea", "youth"},
		},
	})
}

func TestScore(t *testing.T) {
	rule := corpus.RuleEntry{
		ID:       "UT-SMRA",
		Title:    "Utah Social Media Regulation Act",
		Severity: "high",
		Keywords: []string{"utah", "curfew"},
	}

	// Two keyword hits (2 each) + title substring (1) + id substring (1)
	// + 0.1 * severity weight 3.
	text := "To comply with the Utah Social Media Regulation Act (UT-SMRA), add a curfew."
	if got, want := Score(rule, text), 6.3; math.Abs(got-want) > 1e-9 {
		t.Errorf("Score() = %v, want %v", got, want)
	}

	// No hits leaves only the severity bias.
	if got, want := Score(rule, "unrelated text"), 0.3; math.Abs(got-want) > 1e-9 {
		t.Errorf("Score() = %v, want %v", got, want)
	}
}

func TestSelect_RanksAndTruncates(t *testing.T) {
	ix := testIndex()
	text := "Implement a curfew login restriction for minors in Utah."

	gset := Select(ix, text, 1)
	if len(gset.Rules) != 1 {
		t.Fatalf("Select(topK=1) returned %d rules", len(gset.Rules))
	}
	if gset.Rules[0].ID != "UT-SMRA" {
		t.Errorf("top rule = %s, want UT-SMRA", gset.Rules[0].ID)
	}
}

func TestSelect_TopKBounds(t *testing.T) {
	ix := testIndex()

	// K <= 0 and K >= corpus size both select everything.
	for _, k := range []int{0, -1, 3, 100} {
		gset := Select(ix, "anything", k)
		if len(gset.Rules) != ix.Len() {
			t.Errorf("Select(topK=%d) returned %d rules, want %d", k, len(gset.Rules), ix.Len())
		}
	}
}

func TestSelect_Deterministic(t *testing.T) {
	ix := testIndex()
	text := "takedown flow for illegal content"

	a := Select(ix, text, 2)
	b := Select(ix, text, 2)

	if a.Fingerprint != b.Fingerprint {
		t.Error("identical inputs must produce identical grounding fingerprints")
	}
	if strings.Join(a.IDs(), ",") != strings.Join(b.IDs(), ",") {
		t.Errorf("selection order differs: %v vs %v", a.IDs(), b.IDs())
	}
}

func TestSet_Lookups(t *testing.T) {
	gset := Select(testIndex(), "curfew", 2)

	if !gset.Contains(gset.Rules[0].ID) {
		t.Error("Contains() should find a selected rule")
	}
	if gset.Contains("BR-LGPD") {
		t.Error("Contains() must not find rules outside the set")
	}
	if _, ok := gset.Get("BR-LGPD"); ok {
		t.Error("Get() must not find rules outside the set")
	}
}

func TestSet_ContextBlock(t *testing.T) {
	gset := Select(testIndex(), "curfew for minors in utah", 1)
	block := gset.ContextBlock()

	if !strings.Contains(block, "[UT-SMRA]") {
		t.Errorf("context block missing rule id: %s", block)
	}
	if !strings.Contains(block, "Curfew and parental consent requirements") {
		t.Errorf("context block missing summary: %s", block)
	}
}
