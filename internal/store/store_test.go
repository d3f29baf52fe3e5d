package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedtap/internal/actions"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func outcome(action string, success bool) actions.Outcome {
	return actions.Outcome{
		RunID:      uuid.NewString(),
		DeviceID:   "dev-1",
		Action:     action,
		Target:     "https://x.com/user/status/1",
		Success:    success,
		X:          540,
		Y:          930,
		Confidence: 0.9,
		RetryCount: 1,
		StartedAt:  time.Now().UTC(),
		DurationMs: 12000,
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := memStore(t)
	batch := uuid.NewString()

	require.NoError(t, s.Append(batch, outcome("like", true)))
	require.NoError(t, s.Append(batch, outcome("retweet", false)))

	recs, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "retweet", recs[0].Action, "newest first")
	assert.Equal(t, "like", recs[1].Action)
	assert.Equal(t, batch, recs[0].BatchID)
}

func TestBatchQueryScopesByID(t *testing.T) {
	s := memStore(t)

	require.NoError(t, s.Append("batch-a", outcome("like", true)))
	require.NoError(t, s.Append("batch-b", outcome("follow", true)))
	require.NoError(t, s.Append("batch-a", outcome("comment", false)))

	recs, err := s.Batch("batch-a")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "like", recs[0].Action, "insertion order")
	assert.Equal(t, "comment", recs[1].Action)
}

func TestAppendRejectsDuplicateRunID(t *testing.T) {
	s := memStore(t)
	out := outcome("like", true)

	require.NoError(t, s.Append("batch", out))
	assert.Error(t, s.Append("batch", out))
}

func TestOutcomeFieldsRoundTrip(t *testing.T) {
	s := memStore(t)
	out := outcome("comment", false)
	out.Error = actions.InputFailed
	out.Comment = "いいですね！"

	require.NoError(t, s.Append("batch", out))

	recs, err := s.Recent(1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, string(actions.InputFailed), recs[0].Error)
	assert.Equal(t, "いいですね！", recs[0].Comment)
	assert.False(t, recs[0].Success)
	assert.EqualValues(t, 0.9, recs[0].Confidence)
}
