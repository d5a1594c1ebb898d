package parse

import (
	"errors"
	"testing"

	"github.com/cavarest/elemental-dragon/internal/world"
)

func TestPositionEncodingsAgree(t *testing.T) {
	want := world.Pos(0.5, 64, -10.25)
	samples := []struct {
		name string
		text string
	}{
		{"labeled", "Zombie has position x: 0.5d, y: 64.0d, z: -10.25d"},
		{"labeled upper", "X: 0.5d, Y: 64.0d, Z: -10.25d"},
		{"brace", "Zombie has the following entity data: {x: 0.5d, y: 64.0d, z: -10.25d}"},
		{"bracket", "Zombie has the following entity data: [0.5d, 64.0d, -10.25d]"},
		{"bracket no spaces", "[0.5d,64.0d,-10.25d]"},
	}
	for _, s := range samples {
		t.Run(s.name, func(t *testing.T) {
			got, err := Position(s.text)
			if err != nil {
				t.Fatalf("Position(%q): %v", s.text, err)
			}
			if got != want {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestPositionMalformed(t *testing.T) {
	inputs := []string{
		"",
		"No entity was found",
		"[0.5d, 64.0d]",
		"[1, 2, 3]",
		"x: 1d, y: 2d",
		"Zombie has the following entity data: 20.0f",
	}
	for _, in := range inputs {
		got, err := Position(in)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Position(%q) = %v, %v; want ParseError", in, got, err)
			continue
		}
		if pe.Text != in {
			t.Errorf("ParseError lost raw text: %q", pe.Text)
		}
		if got != (world.Position{}) {
			t.Errorf("Position(%q) returned non-zero value on error", in)
		}
	}
}

func TestFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"20.0f", 20},
		{"Zombie has the following entity data: 12.5f", 12.5},
		{"-3", -3},
		{"health 7 of 20", 7},
	}
	for _, c := range cases {
		got, err := Float(c.in)
		if err != nil || got != c.want {
			t.Errorf("Float(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
	}

	var pe *ParseError
	if _, err := Float("no digits here"); !errors.As(err, &pe) {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestEntityDataSkipsNameDigits(t *testing.T) {
	got, err := EntityData("Player2 has the following entity data: 18.0f")
	if err != nil || got != 18 {
		t.Errorf("EntityData = %v, %v; want 18", got, err)
	}
	if _, err := EntityData("Player2 has the following entity data: {}"); err == nil {
		t.Error("expected error for non-numeric entity data")
	}
}

func TestCount(t *testing.T) {
	if n, err := Count("Removed 3 item(s) from player TestPlayer"); err != nil || n != 3 {
		t.Errorf("Count = %d, %v", n, err)
	}
	if n, err := Count("No items were found on player TestPlayer"); err != nil || n != 0 {
		t.Errorf("Count = %d, %v", n, err)
	}
	if _, err := Count("Seed: [1]"); err == nil {
		t.Error("expected ParseError")
	}
}

func TestPredicates(t *testing.T) {
	if !NotFound("No entity was found") {
		t.Error("NotFound should match selector miss")
	}
	if !NotFound("Found no elements matching Pos") {
		t.Error("NotFound should match path miss")
	}
	if NotFound("Summoned new Zombie") {
		t.Error("NotFound false positive")
	}
	if !Rejected("Unknown or incomplete command, see below for error") {
		t.Error("Rejected should match unknown command")
	}
	if !Rejected("summon minecraft:zombi<--[HERE]") {
		t.Error("Rejected should match parse cursor")
	}
	if Rejected("Summoned new Zombie") {
		t.Error("Rejected false positive")
	}
	if !HasMarker("[Rcon] ENTITY_FOUND_ab12", "ENTITY_FOUND_ab12") {
		t.Error("HasMarker miss")
	}
	if HasMarker("anything", "") {
		t.Error("empty marker must never match")
	}
}

func TestCooldown(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"Ability on cooldown! 38 seconds remaining.", 38, true},
		{"Ability on cooldown! 1 second remaining.", 1, true},
		{"Used Dragon's Wrath!", 0, false},
	}
	for _, tt := range tests {
		got, ok := Cooldown(tt.text)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Cooldown(%q) = %d, %v; want %d, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}
