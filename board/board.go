package board

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"
)

// MaxComponents is the most parts the simulated breadboard holds.
const MaxComponents = 8

var (
	ErrBoardFull = errors.New("board is full")
	ErrLastPin   = errors.New("cannot remove the last component")
	ErrNoSuchPin = errors.New("no component at index")
)

// Board is the editable pin list of a session. It is safe for
// concurrent use.
type Board struct {
	mu   sync.Mutex
	pins []PinConfig
}

func NewBoard(pins []PinConfig) *Board {
	b := &Board{}
	b.pins = make([]PinConfig, len(pins))
	copy(b.pins, pins)
	return b
}

// Pins returns a copy of the current configuration in display order.
func (b *Board) Pins() []PinConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	ret := make([]PinConfig, len(b.pins))
	copy(ret, b.pins)
	return ret
}

// Replace swaps in a whole new configuration, e.g. after a config reload.
func (b *Board) Replace(pins []PinConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pins = make([]PinConfig, len(pins))
	copy(b.pins, pins)
}

// AddComponent appends a part on the next free pin number after the
// highest one in use.
func (b *Board) AddComponent(t PinType) (PinConfig, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pins) >= MaxComponents {
		return PinConfig{}, ErrBoardFull
	}
	highest := 1
	for _, p := range b.pins {
		highest = max(highest, p.Pin)
	}
	pc := PinConfig{Pin: highest + 1, Type: t}
	if t == LED {
		pc.Color = DefaultLEDColor
	}
	b.pins = append(b.pins, pc)
	return pc, nil
}

func (b *Board) RemovePin(index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.pins) {
		return fmt.Errorf("%w %d", ErrNoSuchPin, index)
	}
	if len(b.pins) <= 1 {
		return ErrLastPin
	}
	b.pins = slices.Delete(b.pins, index, index+1)
	return nil
}

// UpdatePin changes pin number and color of the component at index.
// Duplicated pin numbers are allowed here, see Duplicates.
func (b *Board) UpdatePin(index int, pin int, color string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.pins) {
		return fmt.Errorf("%w %d", ErrNoSuchPin, index)
	}
	pc := b.pins[index]
	pc.Pin = pin
	if pc.Type == LED {
		pc.Color = color
	}
	if err := pc.Validate(); err != nil {
		return err
	}
	b.pins[index] = pc
	return nil
}

// Duplicates returns the pin numbers used by more than one component,
// sorted ascending.
func (b *Board) Duplicates() []int {
	return Duplicates(b.Pins())
}

func Duplicates(pins []PinConfig) []int {
	seen := make(map[int]int, len(pins))
	var dups []int
	for _, p := range pins {
		seen[p.Pin]++
		if seen[p.Pin] == 2 {
			dups = append(dups, p.Pin)
		}
	}
	slices.Sort(dups)
	return dups
}

// PinsOfType filters pins by type keeping their order.
func PinsOfType(pins []PinConfig, t PinType) []int {
	var ret []int
	for _, p := range pins {
		if p.Type == t {
			ret = append(ret, p.Pin)
		}
	}
	return ret
}
