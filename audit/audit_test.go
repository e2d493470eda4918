package audit

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geogate/geogate/types"
)

func testResult() types.ConsensusResult {
	return types.ConsensusResult{
		FeatureID:  "feat-1",
		Decision:   types.DecisionYes,
		Confidence: 0.9,
		Metadata: types.Metadata{
			Retrieval: types.RetrievalInfo{
				GroundingIDs:         []string{"UT-SMRA"},
				GroundingFingerprint: "ground-fp",
				CorpusFingerprint:    "corpus-fp",
			},
		},
	}
}

func TestLog_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	log, err := Open(dir)
	require.NoError(t, err)

	id1, err := log.Append(StatusOK, "mock", []string{"raw-1"}, testResult())
	require.NoError(t, err)
	id2, err := log.Append(StatusPrefilter, "mock", nil, testResult())
	require.NoError(t, err)
	require.NoError(t, log.Close())

	assert.NotEqual(t, id1, id2)

	var records []*Record
	err = Replay(dir, time.Time{}, func(rec *Record) error {
		records = append(records, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, id1, first.AuditID)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, StatusOK, first.Status)
	assert.Equal(t, "mock", first.ModelID)
	assert.Equal(t, "corpus-fp", first.CorpusFingerprint)
	assert.Equal(t, "ground-fp", first.GroundingFingerprint)
	assert.Equal(t, []string{"UT-SMRA"}, first.GroundingIDs)
	assert.Equal(t, HashRawOutputs([]string{"raw-1"}), first.RawOutputHash)
	assert.Equal(t, types.DecisionYes, first.Decision.Decision)

	assert.Equal(t, int64(2), records[1].Sequence)
	assert.Equal(t, StatusPrefilter, records[1].Status)
}

func TestLog_SequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	log, err := Open(dir)
	require.NoError(t, err)
	_, err = log.Append(StatusOK, "mock", nil, testResult())
	require.NoError(t, err)
	_, err = log.Append(StatusOK, "mock", nil, testResult())
	require.NoError(t, err)
	require.NoError(t, log.Close())

	// A reopened log keeps counting; history is never rewritten.
	log2, err := Open(dir)
	require.NoError(t, err)
	_, err = log2.Append(StatusDegraded, "mock", nil, testResult())
	require.NoError(t, err)
	require.NoError(t, log2.Close())

	var sequences []int64
	err = Replay(dir, time.Time{}, func(rec *Record) error {
		sequences = append(sequences, rec.Sequence)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, sequences, 3)
	assert.Contains(t, sequences, int64(3))
}

func TestReplay_SinceFilter(t *testing.T) {
	dir := t.TempDir()

	log, err := Open(dir)
	require.NoError(t, err)
	_, err = log.Append(StatusOK, "mock", nil, testResult())
	require.NoError(t, err)
	require.NoError(t, log.Close())

	count := 0
	err = Replay(dir, time.Now().Add(time.Hour), func(*Record) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, count, "records older than the cutoff must not replay")
}

func TestHashRawOutputs(t *testing.T) {
	a := HashRawOutputs([]string{"one", "two"})
	b := HashRawOutputs([]string{"one", "two"})
	c := HashRawOutputs([]string{"two", "one"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "hash must be order-sensitive")
	assert.NotEmpty(t, HashRawOutputs(nil))
}

func TestReader_EOF(t *testing.T) {
	dir := t.TempDir()

	log, err := Open(dir)
	require.NoError(t, err)
	_, err = log.Append(StatusOK, "mock", nil, testResult())
	require.NoError(t, err)
	require.NoError(t, log.Close())

	files, err := filepath.Glob(filepath.Join(dir, "geogate-*.audit"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	r, err := NewReader(files[0])
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}
