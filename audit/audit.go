// Package audit provides the immutable, append-only record of every
// classification: enough fingerprints and hashes to reconstruct why a
// decision was reached without re-running the model.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geogate/geogate/types"
)

// Status values for audit records.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusPrefilter = "prefilter"
)

// Record is one immutable audit entry. Once written it is never
// rewritten.
type Record struct {
	AuditID              string                `json:"audit_id"`
	Sequence             int64                 `json:"sequence"`
	Status               string                `json:"status"`
	ModelID              string                `json:"model_id"`
	RawOutputHash        string                `json:"raw_output_hash"`
	CorpusFingerprint    string                `json:"corpus_fingerprint"`
	GroundingIDs         []string              `json:"grounding_ids"`
	GroundingFingerprint string                `json:"grounding_fingerprint"`
	TimestampUTC         time.Time             `json:"timestamp_utc"`
	Decision             types.ConsensusResult `json:"decision_payload"`
}

// HashRawOutputs produces the content hash stored in place of the raw
// model text.
func HashRawOutputs(raws []string) string {
	h := sha256.New()
	for _, r := range raws {
		h.Write([]byte(r))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Log is an append-only audit log. Appends are atomic with respect to
// concurrent writers: one mutex, one line per record, flush and sync
// before returning.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates or opens an audit log in the specified directory.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	// Timestamped filename for rotation
	filename := fmt.Sprintf("geogate-%s.audit", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	l := &Log{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}
	l.sequence = lastSequence(dir)

	return l, nil
}

// Close flushes and closes the log.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Flush(); err != nil {
		return err
	}
	return l.file.Close()
}

// Append writes one immutable record for a finished classification and
// returns the assigned audit id.
func (l *Log) Append(status, modelID string, rawOutputs []string, result types.ConsensusResult) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence++

	rec := Record{
		AuditID:              uuid.NewString(),
		Sequence:             l.sequence,
		Status:               status,
		ModelID:              modelID,
		RawOutputHash:        HashRawOutputs(rawOutputs),
		CorpusFingerprint:    result.Metadata.Retrieval.CorpusFingerprint,
		GroundingIDs:         result.Metadata.Retrieval.GroundingIDs,
		GroundingFingerprint: result.Metadata.Retrieval.GroundingFingerprint,
		TimestampUTC:         time.Now().UTC(),
		Decision:             result,
	}

	if err := l.writeRecord(rec); err != nil {
		return "", err
	}
	return rec.AuditID, nil
}

func (l *Log) writeRecord(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if _, err := l.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if _, err := l.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Flush immediately for durability
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return l.file.Sync()
}

// lastSequence scans existing audit files for the highest sequence so
// appends continue monotonically across restarts.
func lastSequence(dir string) int64 {
	files, err := filepath.Glob(filepath.Join(dir, "geogate-*.audit"))
	if err != nil {
		return 0
	}

	var max int64
	for _, f := range files {
		r, err := NewReader(f)
		if err != nil {
			continue
		}
		for {
			rec, err := r.Next()
			if err != nil {
				break
			}
			if rec.Sequence > max {
				max = rec.Sequence
			}
		}
		_ = r.Close()
	}
	return max
}

// Reader replays audit records from one file.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader creates a reader for the specified audit file.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	return &Reader{
		scanner: bufio.NewScanner(file),
		file:    file,
	}, nil
}

// Next reads the next record.
func (r *Reader) Next() (*Record, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var rec Record
	if err := json.Unmarshal(r.scanner.Bytes(), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Replay walks every audit record in dir written after since.
func Replay(dir string, since time.Time, handler func(*Record) error) error {
	files, err := filepath.Glob(filepath.Join(dir, "geogate-*.audit"))
	if err != nil {
		return fmt.Errorf("failed to list audit files: %w", err)
	}

	for _, file := range files {
		reader, err := NewReader(file)
		if err != nil {
			return err
		}

		for {
			rec, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				_ = reader.Close()
				return err
			}

			if rec.TimestampUTC.After(since) {
				if err := handler(rec); err != nil {
					_ = reader.Close()
					return err
				}
			}
		}
		_ = reader.Close()
	}

	return nil
}
