package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRunRoundTrip(t *testing.T) {
	j := openTemp(t)
	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	info := RunInfo{ID: NewRunID(), Suite: "smoke", Started: start}
	require.NoError(t, j.PutRun(info))
	require.NoError(t, j.Append(Record{RunID: info.ID, Scenario: "server-seed", Status: "pass", Started: start, Duration: time.Second}))
	require.NoError(t, j.Append(Record{RunID: info.ID, Scenario: "dragons-wrath-damage", Status: "fail", Message: "health 20 not < 20"}))

	info.Passed, info.Failed = 1, 1
	info.Finished = start.Add(5 * time.Second)
	require.NoError(t, j.PutRun(info))

	got, recs, err := j.Run(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, "smoke", got.Suite)
	require.Len(t, recs, 2)
	assert.Equal(t, "server-seed", recs[0].Scenario)
	assert.Equal(t, "fail", recs[1].Status)
}

func TestRunsNewestFirst(t *testing.T) {
	j := openTemp(t)
	var ids []string
	for i := 0; i < 3; i++ {
		id := NewRunID()
		ids = append(ids, id)
		require.NoError(t, j.PutRun(RunInfo{ID: id}))
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := j.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = j.Runs(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestHistoryAcrossRuns(t *testing.T) {
	j := openTemp(t)
	statuses := []string{"pass", "fail", "pass"}
	for _, s := range statuses {
		id := NewRunID()
		require.NoError(t, j.PutRun(RunInfo{ID: id}))
		require.NoError(t, j.Append(Record{RunID: id, Scenario: "wing-burst-push", Status: s}))
		require.NoError(t, j.Append(Record{RunID: id, Scenario: "other", Status: "pass"}))
		time.Sleep(2 * time.Millisecond)
	}

	hist, err := j.History("wing-burst-push", 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "pass", hist[0].Status)
	assert.Equal(t, "fail", hist[1].Status)

	hist, err = j.History("wing-burst-push", 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestUnknownRun(t *testing.T) {
	j := openTemp(t)
	_, _, err := j.Run("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = j.Append(Record{RunID: "nope", Scenario: "x"})
	assert.True(t, errors.Is(err, ErrRunNotFound))
}
