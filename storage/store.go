// Package storage persists the feature and scan collections consumed
// by the external dashboard. Writes replace the whole file atomically;
// readers never observe a partial database.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geogate/geogate/types"
)

// FeatureRecord is one stored feature definition.
type FeatureRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PRD         string `json:"prd,omitempty"`
	TRD         string `json:"trd,omitempty"`
}

// ScanRecord is one classification of a feature at a point in time.
type ScanRecord struct {
	ScanID          string                `json:"scan_id"`
	FeatureID       string                `json:"feature_id"`
	TimestampUTC    time.Time             `json:"timestamp_utc"`
	Version         string                `json:"version"`
	FeatureSnapshot FeatureRecord         `json:"feature_snapshot"`
	Analysis        types.ConsensusResult `json:"analysis"`
	AuditID         string                `json:"audit_id,omitempty"`
}

// Database is the on-disk shape: two collections.
type Database struct {
	Features []FeatureRecord `json:"features"`
	Scans    []ScanRecord    `json:"scans"`
}

// Store owns the database file. All mutations go through one writer
// lock and end in an atomic whole-file replace.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the whole database. A missing or corrupt file yields an
// empty database rather than an error, matching dashboard expectations.
func (s *Store) Load() *Database {
	data, err := os.ReadFile(s.path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return &Database{}
	}
	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		return &Database{}
	}
	return &db
}

// save writes the database atomically: temp file then rename.
func (s *Store) save(db *Database) error {
	if db.Features == nil {
		db.Features = []FeatureRecord{}
	}
	if db.Scans == nil {
		db.Scans = []ScanRecord{}
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal database: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp database: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}
	return nil
}

// UpsertFeature adds a new feature or replaces an existing one by id.
// Returns the feature id (generated for new features).
func (s *Store) UpsertFeature(f FeatureRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.Load()

	if f.ID != "" {
		for i, existing := range db.Features {
			if existing.ID == f.ID {
				db.Features[i] = f
				return f.ID, s.save(db)
			}
		}
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	db.Features = append(db.Features, f)
	return f.ID, s.save(db)
}

// DeleteFeatures removes features by id along with their scans.
// Returns the deleted feature and scan counts.
func (s *Store) DeleteFeatures(ids []string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	db := s.Load()

	features := db.Features[:0]
	for _, f := range db.Features {
		if !idSet[f.ID] {
			features = append(features, f)
		}
	}
	deletedFeatures := len(db.Features) - len(features)
	db.Features = features

	scans := db.Scans[:0]
	for _, sc := range db.Scans {
		if !idSet[sc.FeatureID] {
			scans = append(scans, sc)
		}
	}
	deletedScans := len(db.Scans) - len(scans)
	db.Scans = scans

	return deletedFeatures, deletedScans, s.save(db)
}

// AppendScan records one classification against a feature snapshot.
func (s *Store) AppendScan(featureID string, snapshot FeatureRecord, analysis types.ConsensusResult, auditID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.Load()

	scan := ScanRecord{
		ScanID:          uuid.NewString(),
		FeatureID:       featureID,
		TimestampUTC:    time.Now().UTC(),
		Version:         "v1",
		FeatureSnapshot: snapshot,
		Analysis:        analysis,
		AuditID:         auditID,
	}
	db.Scans = append(db.Scans, scan)

	if err := s.save(db); err != nil {
		return "", err
	}
	return scan.ScanID, nil
}

// ScansForFeature returns a feature's scans, newest first.
func (s *Store) ScansForFeature(featureID string) []ScanRecord {
	db := s.Load()

	var scans []ScanRecord
	for _, sc := range db.Scans {
		if sc.FeatureID == featureID {
			scans = append(scans, sc)
		}
	}
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].TimestampUTC.After(scans[j].TimestampUTC)
	})
	return scans
}
