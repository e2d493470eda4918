// Package corpus holds the versioned jurisdiction rule set that grounds
// every classification. The index is loaded once at startup and never
// mutated in place; a reload builds a new index and swaps the pointer.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/geogate/geogate/telemetry"
)

// Severity levels for rule entries.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// RuleEntry is one jurisdiction rule in the reference corpus.
type RuleEntry struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Jurisdiction string   `json:"jurisdiction"`
	Severity     string   `json:"severity"`
	Summary      string   `json:"summary"`
	Keywords     []string `json:"keywords,omitempty"`
}

// SeverityWeight maps severity to its relevance weight.
func SeverityWeight(severity string) int {
	switch strings.ToLower(severity) {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 2
	}
}

// Index is an immutable in-memory view of the rule corpus.
type Index struct {
	entries     []RuleEntry
	byID        map[string]RuleEntry
	fingerprint string
}

// NewIndex builds an index from entries. Duplicate ids resolve
// last-write-wins in input order.
func NewIndex(entries []RuleEntry) *Index {
	byID := make(map[string]RuleEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		e = normalizeEntry(e)
		if e.ID == "" {
			continue
		}
		if _, seen := byID[e.ID]; !seen {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}

	deduped := make([]RuleEntry, 0, len(order))
	for _, id := range order {
		deduped = append(deduped, byID[id])
	}

	return &Index{
		entries:     deduped,
		byID:        byID,
		fingerprint: Fingerprint(deduped),
	}
}

func normalizeEntry(e RuleEntry) RuleEntry {
	e.ID = strings.TrimSpace(e.ID)
	if e.Title == "" {
		e.Title = e.ID
	}
	if e.Jurisdiction == "" {
		e.Jurisdiction = "unspecified"
	}
	e.Severity = strings.ToLower(e.Severity)
	switch e.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		e.Severity = SeverityMedium
	}
	return e
}

// Entries returns the corpus rules in stable input order.
func (ix *Index) Entries() []RuleEntry { return ix.entries }

// Get looks up a rule by id.
func (ix *Index) Get(id string) (RuleEntry, bool) {
	e, ok := ix.byID[id]
	return e, ok
}

// Len returns the number of rules in the corpus.
func (ix *Index) Len() int { return len(ix.entries) }

// FingerprintHex returns the content fingerprint of the whole corpus.
func (ix *Index) FingerprintHex() string { return ix.fingerprint }

// Fingerprint computes a deterministic content hash over the canonical
// id|title|jurisdiction|severity|summary tuples, sorted by id. Identical
// rule sets always produce identical fingerprints.
func Fingerprint(entries []RuleEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, strings.Join([]string{
			e.ID, e.Title, e.Jurisdiction, e.Severity, e.Summary,
		}, "|"))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Store owns the live corpus index and supports atomic reload.
type Store struct {
	current atomic.Pointer[Index]
	path    string
	logger  *telemetry.Logger
}

// OpenStore loads the corpus from path and returns a store holding it.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path, logger: telemetry.NewLogger("corpus")}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Index returns the current immutable index. Safe for concurrent use.
func (s *Store) Index() *Index { return s.current.Load() }

// Reload re-reads the corpus file and atomically swaps the index.
func (s *Store) Reload() error {
	entries, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	ix := NewIndex(entries)
	if dupes := len(entries) - ix.Len(); dupes > 0 {
		s.logger.Warn().
			Int("duplicates", dupes).
			Str("path", s.path).
			Msg("duplicate rule ids resolved last-write-wins")
	}
	s.current.Store(ix)
	telemetry.RecordCorpusSize(context.Background(), ix.Len())
	s.logger.Info().
		Int("rules", ix.Len()).
		Str("fingerprint", ix.FingerprintHex()).
		Msg("corpus loaded")
	return nil
}

// LoadFile reads a corpus file. Both shapes are accepted: a JSON array
// of rule objects, or a JSON object keyed by rule id.
func LoadFile(path string) ([]RuleEntry, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}
	return Parse(data)
}

// Parse normalizes raw corpus JSON into a list of rule entries.
func Parse(data []byte) ([]RuleEntry, error) {
	var list []RuleEntry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var keyed map[string]RuleEntry
	if err := json.Unmarshal(data, &keyed); err != nil {
		return nil, fmt.Errorf("corpus is neither a rule list nor a keyed map: %w", err)
	}

	ids := make([]string, 0, len(keyed))
	for id := range keyed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list = make([]RuleEntry, 0, len(keyed))
	for _, id := range ids {
		e := keyed[id]
		if e.ID == "" {
			e.ID = id
		}
		list = append(list, e)
	}
	return list, nil
}
