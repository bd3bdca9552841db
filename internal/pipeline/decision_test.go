package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geovector-labs/aedesmap/internal/state"
)

func newTestStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	s := state.NewSQLiteStore(nil)
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.InitSchema())
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCandidateDecision(runID string) *CandidateDecision {
	return &CandidateDecision{
		RunID:      runID,
		Checkpoint: CheckpointCandidate,
		Candidates: []CandidateRow{
			{ID: "m_1_lq", AICc: 412.3, Omission: 0.04, NParams: 9, Qualifies: true},
			{ID: "m_2_lqp", AICc: 415.8, Omission: 0.02, NParams: 7, Qualifies: true},
			{ID: "m_0.5_lqph", AICc: 409.1, Omission: 0.22, NParams: 18, Qualifies: false},
		},
	}
}

func TestCandidateDecisionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candidate.yaml")

	d := sampleCandidateDecision("run-1")
	require.NoError(t, WriteDecision(path, d))

	loaded, err := LoadCandidateDecision(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	require.Len(t, loaded.Candidates, 3)
	assert.Equal(t, "m_1_lq", loaded.Candidates[0].ID)
	assert.Empty(t, loaded.Chosen)
}

func TestLoadCandidateDecision_WrongCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threshold.yaml")
	require.NoError(t, WriteDecision(path, &ThresholdDecision{Checkpoint: CheckpointThreshold}))

	_, err := LoadCandidateDecision(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a candidate decision")
}

func TestResolveCandidate(t *testing.T) {
	store := newTestStore(t)
	run, err := store.CreateRun("recife")
	require.NoError(t, err)

	d := sampleCandidateDecision(run.ID)

	// undecided
	err = ResolveCandidate(store, d, "candidate.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidate chosen")

	// unknown candidate id
	d.Chosen = "m_9_x"
	err = ResolveCandidate(store, d, "candidate.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the ranked list")

	// unknown run
	d.Chosen = "m_2_lqp"
	bad := *d
	bad.RunID = "no-such-run"
	require.Error(t, ResolveCandidate(store, &bad, "candidate.yaml"))

	// valid choice is recorded
	require.NoError(t, ResolveCandidate(store, d, "candidate.yaml"))
	rec, err := store.GetDecision(run.ID, CheckpointCandidate)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "m_2_lqp", rec.Choice)
}

func TestResolveThreshold(t *testing.T) {
	store := newTestStore(t)
	run, err := store.CreateRun("recife")
	require.NoError(t, err)

	d := &ThresholdDecision{
		RunID:      run.ID,
		Checkpoint: CheckpointThreshold,
		Rules: []ThresholdRow{
			{Rule: "max_sens_spec", Threshold: 0.31, Sensitivity: 0.9, Specificity: 0.85, Accuracy: 0.87},
			{Rule: "percent_omission", Threshold: 0.18, Sensitivity: 0.95, Specificity: 0.7, Accuracy: 0.78},
		},
	}

	_, err = ResolveThreshold(store, d, "threshold.yaml")
	require.Error(t, err)

	d.ChosenRule = "nope"
	_, err = ResolveThreshold(store, d, "threshold.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the rule table")

	d.ChosenRule = "max_sens_spec"
	threshold, err := ResolveThreshold(store, d, "threshold.yaml")
	require.NoError(t, err)
	assert.Equal(t, 0.31, threshold)

	rec, err := store.GetDecision(run.ID, CheckpointThreshold)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "max_sens_spec", rec.Choice)
}
