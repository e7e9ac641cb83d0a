package generator

import (
	"fmt"
	"strconv"
	"strings"

	"lautenbacher.net/ledfx/board"
)

const DefaultTargetBoard = "Arduino Uno R3"

const promptTemplate = `
You are an expert embedded systems engineer.
Task: Create an Arduino C++ script for an %s.

Hardware Configuration:
- LEDs (Output) on digital pins: %s.
- Push Buttons (Input) on digital pins: %s.

Goal: Create a sketch that implements: "%s"

Requirements:
1. Generate valid, commented Arduino C++ code using standard logic (digitalWrite, digitalRead).
2. Use proper input modes (e.g. INPUT_PULLUP for buttons is recommended to avoid external resistors).
3. Create a "simulation sequence" that represents this pattern visually frame-by-frame.
4. The simulation sequence should loop seamlessly.
5. If buttons are present, simulate a scenario where the button is pressed to demonstrate the functionality (e.g. show the state changing).
6. For the simulation data: Use state 1 to represent LED ON or Button PRESSED. Use state 0 for LED OFF or Button RELEASED.
`

// BuildPrompt renders the request text for the given hardware setup.
func BuildPrompt(pins []board.PinConfig, description, targetBoard string) string {
	if targetBoard == "" {
		targetBoard = DefaultTargetBoard
	}
	return fmt.Sprintf(promptTemplate,
		targetBoard,
		joinPins(board.PinsOfType(pins, board.LED)),
		joinPins(board.PinsOfType(pins, board.BUTTON)),
		strings.TrimSpace(description),
	)
}

func joinPins(pins []int) string {
	if len(pins) == 0 {
		return "None"
	}
	parts := make([]string, len(pins))
	for i, p := range pins {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
