// Package parse extracts structured values from free-text server responses.
//
// The server has printed the same quantities in several encodings over its
// lifetime. Each extractor tries the known encodings in a fixed order and
// fails with a *ParseError carrying the raw text when none of them match;
// it never falls back to a zero value.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cavarest/elemental-dragon/internal/world"
)

// ParseError reports response text that matched no known encoding.
type ParseError struct {
	Quantity string
	Text     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: no known encoding in %q", e.Quantity, e.Text)
}

// NotFoundError reports that a selector resolved to nothing.
type NotFoundError struct {
	Selector string
	Text     string
}

func (e *NotFoundError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("not found: %q", e.Text)
	}
	return fmt.Sprintf("%s not found: %q", e.Selector, e.Text)
}

// RejectedError means the server refused to run a command at all, so its
// reply says nothing about the world.
type RejectedError struct {
	Command string
	Text    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("server rejected %q: %s", e.Command, e.Text)
}

const num = `(-?\d+(?:\.\d+)?(?:[eE][-+]?\d+)?)`

type positionPattern struct {
	name string
	re   *regexp.Regexp
}

// positionPatterns is ordered by specificity; the first match wins.
var positionPatterns = []positionPattern{
	{"labeled", regexp.MustCompile(`(?i)\bx:\s*` + num + `d?\s*,\s*y:\s*` + num + `d?\s*,\s*z:\s*` + num + `d?`)},
	{"brace", regexp.MustCompile(`(?i)\{\s*x\s*:\s*` + num + `d?\s*,\s*y\s*:\s*` + num + `d?\s*,\s*z\s*:\s*` + num + `d?\s*\}`)},
	{"bracket", regexp.MustCompile(`\[\s*` + num + `d\s*,\s*` + num + `d\s*,\s*` + num + `d\s*\]`)},
}

// Position extracts a coordinate triple.
func Position(text string) (world.Position, error) {
	for _, p := range positionPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var v [3]float64
		for i := range v {
			f, err := strconv.ParseFloat(m[i+1], 64)
			if err != nil {
				return world.Position{}, &ParseError{Quantity: "position", Text: text}
			}
			v[i] = f
		}
		return world.Pos(v[0], v[1], v[2]), nil
	}
	return world.Position{}, &ParseError{Quantity: "position", Text: text}
}

var floatToken = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Float extracts the first floating-point-looking token.
func Float(text string) (float64, error) {
	tok := floatToken.FindString(text)
	if tok == "" {
		return 0, &ParseError{Quantity: "number", Text: text}
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, &ParseError{Quantity: "number", Text: text}
	}
	return f, nil
}

const entityDataPrefix = "has the following entity data:"

// EntityData extracts a scalar from a "data get entity" response. Text after
// the entity-data prefix is preferred so digits in an entity's name are
// skipped; other text falls back to Float.
func EntityData(text string) (float64, error) {
	if i := strings.Index(text, entityDataPrefix); i >= 0 {
		f, err := Float(text[i+len(entityDataPrefix):])
		if err != nil {
			return 0, &ParseError{Quantity: "entity data", Text: text}
		}
		return f, nil
	}
	return Float(text)
}

var removedCount = regexp.MustCompile(`Removed (\d+) item`)

// Count extracts the number of items removed by a clear command.
func Count(text string) (int, error) {
	if strings.Contains(text, "No items were found") {
		return 0, nil
	}
	m := removedCount.FindStringSubmatch(text)
	if m == nil {
		return 0, &ParseError{Quantity: "item count", Text: text}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &ParseError{Quantity: "item count", Text: text}
	}
	return n, nil
}

var cooldownRemaining = regexp.MustCompile(`(\d+) seconds? remaining`)

// Cooldown extracts the seconds left from an on-cooldown reply. ok is false
// when text carries no cooldown notice.
func Cooldown(text string) (seconds int, ok bool) {
	m := cooldownRemaining.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

var notFoundPhrases = []string{
	"No entity was found",
	"No player was found",
	"Found no elements matching",
}

// NotFound reports whether the response says a selector or path matched nothing.
func NotFound(text string) bool {
	for _, p := range notFoundPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

var rejectedPhrases = []string{
	"Unknown or incomplete command",
	"Incorrect argument for command",
	"Unable to summon entity",
	"Unknown entity",
	"Unknown item",
	"Unknown effect",
	"<--[HERE]",
}

// Rejected reports whether the server refused to run the command at all.
func Rejected(text string) bool {
	for _, p := range rejectedPhrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// HasMarker reports whether marker appears in the response.
func HasMarker(text, marker string) bool {
	return marker != "" && strings.Contains(text, marker)
}
