package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavarest/elemental-dragon/internal/harness"
	"github.com/cavarest/elemental-dragon/internal/journal"
	"github.com/cavarest/elemental-dragon/internal/metrics"
	"github.com/cavarest/elemental-dragon/internal/scenario"
)

func noop(ctx context.Context, h *harness.Context) error { return nil }

func newTestServer(t *testing.T) (*Server, *journal.Journal, string) {
	t.Helper()
	reg := scenario.NewRegistry()
	reg.MustRegister(
		scenario.Scenario{Name: "server-seed", Story: "server", Description: "seed", Tags: []string{"smoke"}, Run: noop},
		scenario.Scenario{Name: "dread-gaze", Story: "corrupted", Description: "gaze", NeedsPlayer: true, Run: noop},
	)

	j, err := journal.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	id := journal.NewRunID()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.PutRun(journal.RunInfo{ID: id, Started: start, Passed: 1, Failed: 1}))
	require.NoError(t, j.Append(journal.Record{RunID: id, Scenario: "server-seed", Status: "pass", Started: start}))
	require.NoError(t, j.Append(journal.Record{RunID: id, Scenario: "dread-gaze", Status: "fail", Message: "health unchanged", Started: start}))

	m := metrics.New()
	m.SetLastRunFailures(1)
	return NewServer(reg, j, m.Handler(), nil), j, id
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestScenarios(t *testing.T) {
	s, _, _ := newTestServer(t)

	var infos []ScenarioInfo
	rec := get(t, s, "/api/scenarios")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "server-seed", infos[0].Name)
	assert.True(t, infos[1].NeedsPlayer)

	rec = get(t, s, "/api/scenarios?story=corrupted")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "dread-gaze", infos[0].Name)
}

func TestRuns(t *testing.T) {
	s, _, id := newTestServer(t)

	var runs []journal.RunInfo
	rec := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 1, runs[0].Failed)

	var detail RunDetail
	rec = get(t, s, "/api/runs/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, id, detail.ID)
	require.Len(t, detail.Results, 2)
	assert.Equal(t, "health unchanged", detail.Results[1].Message)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs/nope").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/runs?limit=-3").Code)
}

func TestHistory(t *testing.T) {
	s, _, _ := newTestServer(t)

	var recs []journal.Record
	rec := get(t, s, "/api/history/dread-gaze")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "fail", recs[0].Status)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/history/unknown").Code)
}

func TestMetrics(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "edtest_last_run_failures 1")
}

func TestDisabledBackends(t *testing.T) {
	s := NewServer(nil, nil, nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/api/runs").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s, "/metrics").Code)

	rec := get(t, s, "/api/scenarios")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestJournalOnlyServerHasNoMetrics(t *testing.T) {
	_, j, id := newTestServer(t)
	s := NewServer(scenario.NewRegistry(), j, nil, nil)

	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "metrics disabled")
	assert.NotContains(t, rec.Body.String(), "edtest_")

	assert.Equal(t, http.StatusOK, get(t, s, "/api/runs/"+id).Code)
}
