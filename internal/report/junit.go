// Package report renders run summaries for CI systems.
package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/cavarest/elemental-dragon/internal/scenario"
)

type testSuites struct {
	XMLName  xml.Name    `xml:"testsuites"`
	Name     string      `xml:"name,attr,omitempty"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Skipped  int         `xml:"skipped,attr"`
	Time     string      `xml:"time,attr"`
	Suites   []testSuite `xml:"testsuite"`
}

type testSuite struct {
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Skipped   int        `xml:"skipped,attr"`
	Time      string     `xml:"time,attr"`
	Timestamp string     `xml:"timestamp,attr,omitempty"`
	Cases     []testCase `xml:"testcase"`
}

type testCase struct {
	Name      string   `xml:"name,attr"`
	Classname string   `xml:"classname,attr"`
	Time      string   `xml:"time,attr"`
	Failure   *message `xml:"failure,omitempty"`
	Error     *message `xml:"error,omitempty"`
	Skipped   *message `xml:"skipped,omitempty"`
}

type message struct {
	Message string `xml:"message,attr,omitempty"`
	Body    string `xml:",chardata"`
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// JUnit writes sum as JUnit XML, one testsuite per story.
func JUnit(w io.Writer, sum scenario.Summary) error {
	doc := testSuites{
		Name:     sum.Suite,
		Tests:    len(sum.Results),
		Failures: sum.Count(scenario.StatusFail),
		Errors:   sum.Count(scenario.StatusError),
		Skipped:  sum.Count(scenario.StatusSkip),
		Time:     seconds(sum.Duration),
	}

	byStory := map[string]*testSuite{}
	var stories []string
	for _, r := range sum.Results {
		story := r.Story
		if story == "" {
			story = "default"
		}
		ts, ok := byStory[story]
		if !ok {
			ts = &testSuite{Name: story}
			if !r.Started.IsZero() {
				ts.Timestamp = r.Started.UTC().Format(time.RFC3339)
			}
			byStory[story] = ts
			stories = append(stories, story)
		}
		tc := testCase{Name: r.Scenario, Classname: "edtest." + story, Time: seconds(r.Duration)}
		switch r.Status {
		case scenario.StatusFail:
			tc.Failure = &message{Message: r.Message, Body: r.Message}
			ts.Failures++
		case scenario.StatusError:
			tc.Error = &message{Message: r.Message, Body: r.Message}
			ts.Errors++
		case scenario.StatusSkip:
			tc.Skipped = &message{Message: r.Message}
			ts.Skipped++
		}
		ts.Tests++
		ts.Cases = append(ts.Cases, tc)
	}

	sort.Strings(stories)
	for _, s := range stories {
		ts := byStory[s]
		var total time.Duration
		for _, r := range sum.Results {
			if r.Story == s || (r.Story == "" && s == "default") {
				total += r.Duration
			}
		}
		ts.Time = seconds(total)
		doc.Suites = append(doc.Suites, *ts)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode junit: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteJUnitFile writes the report to path.
func WriteJUnitFile(path string, sum scenario.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create junit report: %w", err)
	}
	if err := JUnit(f, sum); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
