// Package world holds the value types and game constants shared by the
// harness: positions in world space and the ability numbers the server
// plugin is expected to honour.
package world

import (
	"fmt"
	"math"
	"strconv"
)

// Position is a point in world space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pos is shorthand for a Position literal.
func Pos(x, y, z float64) Position {
	return Position{X: x, Y: y, Z: z}
}

// Add returns p offset by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y, Z: p.Z + d.Z}
}

// DistanceTo is the Euclidean distance between p and q.
func (p Position) DistanceTo(q Position) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HorizontalDistanceTo ignores the vertical axis.
func (p Position) HorizontalDistanceTo(q Position) float64 {
	dx, dz := p.X-q.X, p.Z-q.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Command formats p as the "x y z" argument triple used by summon and tp.
func (p Position) Command() string {
	return FormatNumber(p.X) + " " + FormatNumber(p.Y) + " " + FormatNumber(p.Z)
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// FormatNumber renders v without a trailing ".0" for whole numbers.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
