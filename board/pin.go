package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

type PinType string

const (
	LED    PinType = "LED"
	BUTTON PinType = "BUTTON"
)

var (
	ErrUnknownType  = errors.New("unknown component type")
	ErrUnknownColor = errors.New("unknown color")
)

// ParsePinType accepts the type names case-insensitively.
func ParsePinType(s string) (PinType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(LED):
		return LED, nil
	case string(BUTTON):
		return BUTTON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// PinConfig describes one component wired to a digital pin. Color is
// only meaningful for LEDs.
type PinConfig struct {
	Pin   int     `yaml:"Pin" toml:"Pin" json:"pin"`
	Type  PinType `yaml:"Type" toml:"Type" json:"type"`
	Color string  `yaml:"Color,omitempty" toml:"Color" json:"color,omitempty"`
}

// PinState is the logical level of one pin: 0 is OFF/RELEASED, 1 is
// ON/PRESSED.
type PinState struct {
	Pin   int `json:"pin"`
	State int `json:"state"`
}

// Step holds the given pin states for DurationMs milliseconds. Pins
// not listed keep the level they had before.
type Step struct {
	States     []PinState `json:"states"`
	DurationMs int        `json:"durationMs"`
}

// Sequence is played in a loop, after the last step comes the first.
type Sequence []Step

// Palette maps the color names offered in the configuration to RGB.
var Palette = map[string]string{
	"red":    "#ef4444",
	"green":  "#22c55e",
	"blue":   "#3b82f6",
	"yellow": "#eab308",
	"purple": "#a855f7",
	"cyan":   "#06b6d4",
	"white":  "#ffffff",
}

// ColorNames lists the palette in the order it is offered.
var ColorNames = []string{"red", "green", "blue", "yellow", "purple", "cyan", "white"}

const DefaultLEDColor = "yellow"

// ParseColor resolves a palette name or a #rrggbb value. An empty color
// falls back to red, the first palette entry shown in the setup.
func ParseColor(name string) (colorful.Color, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "red"
	}
	if hex, ok := Palette[name]; ok {
		name = hex
	}
	c, err := colorful.Hex(name)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%w: %q", ErrUnknownColor, name)
	}
	return c, nil
}

// Validate checks a single pin entry.
func (p PinConfig) Validate() error {
	if p.Pin < 0 {
		return fmt.Errorf("pin number %d must be non-negative", p.Pin)
	}
	if _, err := ParsePinType(string(p.Type)); err != nil {
		return err
	}
	if p.Type == LED {
		if _, err := ParseColor(p.Color); err != nil {
			return err
		}
	}
	return nil
}

// DefaultPins is the hardware setup a fresh session starts with.
func DefaultPins() []PinConfig {
	return []PinConfig{
		{Pin: 13, Type: LED, Color: "red"},
		{Pin: 12, Type: LED, Color: "green"},
		{Pin: 8, Type: LED, Color: "blue"},
		{Pin: 2, Type: BUTTON},
	}
}
