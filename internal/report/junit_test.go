package report

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavarest/elemental-dragon/internal/scenario"
)

func sample() scenario.Summary {
	return scenario.Summary{
		Suite:    "nightly",
		Duration: 4 * time.Second,
		Results: []scenario.Result{
			{Scenario: "server-seed", Story: "server", Status: scenario.StatusPass, Duration: time.Second},
			{Scenario: "dragons-wrath-damage", Story: "burning", Status: scenario.StatusFail, Message: "health 20 not below 20", Duration: 2 * time.Second},
			{Scenario: "wing-burst-push", Story: "agility", Status: scenario.StatusSkip, Message: "spawned too close"},
			{Scenario: "player-join", Story: "server", Status: scenario.StatusError, Message: "connection refused"},
		},
	}
}

func TestJUnitStructure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JUnit(&buf, sample()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, xml.Header))

	var doc testSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 4, doc.Tests)
	assert.Equal(t, 1, doc.Failures)
	assert.Equal(t, 1, doc.Errors)
	assert.Equal(t, 1, doc.Skipped)
	assert.Equal(t, "4.000", doc.Time)

	require.Len(t, doc.Suites, 3)
	assert.Equal(t, []string{"agility", "burning", "server"},
		[]string{doc.Suites[0].Name, doc.Suites[1].Name, doc.Suites[2].Name})

	server := doc.Suites[2]
	assert.Equal(t, 2, server.Tests)
	assert.Equal(t, 1, server.Errors)
	require.NotNil(t, server.Cases[1].Error)
	assert.Equal(t, "connection refused", server.Cases[1].Error.Message)
	assert.Equal(t, "edtest.server", server.Cases[0].Classname)

	burning := doc.Suites[1]
	require.NotNil(t, burning.Cases[0].Failure)
	assert.Equal(t, "2.000", burning.Time)
}

func TestWriteJUnitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xml")
	require.NoError(t, WriteJUnitFile(path, sample()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<testcase name="wing-burst-push"`)
}
