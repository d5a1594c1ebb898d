package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.ObserveCommand("rcon", 20*time.Millisecond, nil)
	m.ObserveCommand("rcon", time.Second, errors.New("timeout"))
	m.ObserveAssertion("approx", true)
	m.ObserveAssertion("approx", false)
	m.ObserveAssertion("approx", false)
	m.ObserveScenario("pass", 3*time.Second)
	m.SetLastRunFailures(2)

	if got := testutil.ToFloat64(m.assertionsTotal.WithLabelValues("approx", "fail")); got != 2 {
		t.Errorf("assertion failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.scenariosTotal.WithLabelValues("pass")); got != 1 {
		t.Errorf("passed scenarios = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastRunFailures); got != 2 {
		t.Errorf("last run failures = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"edtest_command_duration_seconds_bucket",
		`outcome="error"`,
		"edtest_assertions_total",
		"edtest_scenario_duration_seconds",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
