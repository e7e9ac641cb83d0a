package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"lautenbacher.net/ledfx/board"
)

// OfflineModel selects the built-in patterns instead of a remote
// service.
const OfflineModel = "offline"

const offlineStepMs = 150

var (
	ledLine    = regexp.MustCompile(`LEDs \(Output\) on digital pins: ([^\n]*)\.`)
	buttonLine = regexp.MustCompile(`Push Buttons \(Input\) on digital pins: ([^\n]*)\.`)
	goalLine   = regexp.MustCompile(`(?s)implements: "(.*)"\s*Requirements:`)
)

// OfflineBackend answers from a small set of built-in patterns chosen by
// keywords of the description. It reads the pins from the prompt so it
// can stand in for a real service anywhere a Backend is expected.
type OfflineBackend struct{}

func (OfflineBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	leds := pinsFromPrompt(ledLine, prompt)
	buttons := pinsFromPrompt(buttonLine, prompt)
	goal := ""
	if m := goalLine.FindStringSubmatch(prompt); m != nil {
		goal = strings.ToLower(m[1])
	}

	var resp Response
	switch {
	case containsAny(goal, "cylon", "knight", "scanner", "sweep", "chase"):
		resp = scannerPattern(leds)
	case containsAny(goal, "alternat", "police", "wig"):
		resp = alternatePattern(leds)
	default:
		resp = blinkPattern(leds)
	}
	if len(buttons) > 0 {
		resp.SimulationSequence = withButtonPress(resp.SimulationSequence, buttons[0])
	}
	resp.CppCode = sketch(leds, buttons, resp.SimulationSequence)

	out, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewBackend returns the backend for opts.Model.
func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	if strings.EqualFold(opts.Model, OfflineModel) {
		return OfflineBackend{}, nil
	}
	return NewGeminiBackend(ctx, opts)
}

func pinsFromPrompt(re *regexp.Regexp, prompt string) []int {
	m := re.FindStringSubmatch(prompt)
	if m == nil || strings.TrimSpace(m[1]) == "None" {
		return nil
	}
	var pins []int
	for _, f := range strings.Split(m[1], ",") {
		if p, err := strconv.Atoi(strings.TrimSpace(f)); err == nil {
			pins = append(pins, p)
		}
	}
	return pins
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func frameOf(leds []int, lit func(i int) bool) board.Step {
	st := board.Step{DurationMs: offlineStepMs, States: make([]board.PinState, len(leds))}
	for i, p := range leds {
		level := 0
		if lit(i) {
			level = 1
		}
		st.States[i] = board.PinState{Pin: p, State: level}
	}
	return st
}

func blinkPattern(leds []int) Response {
	on := frameOf(leds, func(int) bool { return true })
	off := frameOf(leds, func(int) bool { return false })
	on.DurationMs, off.DurationMs = 500, 500
	return Response{
		PatternName:        "Blink",
		Explanation:        "All LEDs switch on and off together every half second.",
		SimulationSequence: board.Sequence{on, off},
	}
}

func alternatePattern(leds []int) Response {
	even := frameOf(leds, func(i int) bool { return i%2 == 0 })
	odd := frameOf(leds, func(i int) bool { return i%2 == 1 })
	even.DurationMs, odd.DurationMs = 300, 300
	return Response{
		PatternName:        "Alternate",
		Explanation:        "Neighbouring LEDs take turns, like a railway crossing.",
		SimulationSequence: board.Sequence{even, odd},
	}
}

// scannerPattern moves a single lit LED to the end of the row and back
// again. The end positions are shown once per pass so the loop has no
// visible stop.
func scannerPattern(leds []int) Response {
	var seq board.Sequence
	x, direction := 0, 1
	for range max(2*len(leds)-2, 1) {
		pos := x
		seq = append(seq, frameOf(leds, func(i int) bool { return i == pos }))
		if x+direction < 0 || x+direction > len(leds)-1 {
			direction = -direction
		}
		x += direction
	}
	return Response{
		PatternName:        "Scanner",
		Explanation:        "One LED runs from the first to the last pin and back, like a cylon eye.",
		SimulationSequence: seq,
	}
}

// withButtonPress shows the button pressed during the first frame and
// released afterwards.
func withButtonPress(seq board.Sequence, button int) board.Sequence {
	out := make(board.Sequence, len(seq))
	for i, st := range seq {
		level := 0
		if i == 0 {
			level = 1
		}
		states := append([]board.PinState(nil), st.States...)
		out[i] = board.Step{DurationMs: st.DurationMs, States: append(states, board.PinState{Pin: button, State: level})}
	}
	return out
}

// sketch writes a straightforward Arduino program replaying seq.
func sketch(leds, buttons []int, seq board.Sequence) string {
	var buf strings.Builder
	buf.WriteString("// Generated offline, replays the simulation frame by frame.\n")
	fmt.Fprintf(&buf, "const int ledPins[] = {%s};\n", joinInts(leds))
	fmt.Fprintf(&buf, "const int ledCount = %d;\n", len(leds))
	if len(buttons) > 0 {
		fmt.Fprintf(&buf, "const int buttonPin = %d;\n", buttons[0])
	}
	buf.WriteString("\nvoid setup() {\n  for (int i = 0; i < ledCount; i++) {\n    pinMode(ledPins[i], OUTPUT);\n  }\n")
	if len(buttons) > 0 {
		buf.WriteString("  pinMode(buttonPin, INPUT_PULLUP);\n")
	}
	buf.WriteString("}\n\nvoid loop() {\n")
	for i, st := range seq {
		fmt.Fprintf(&buf, "  // frame %d\n", i)
		for _, ps := range st.States {
			if slices.Contains(buttons, ps.Pin) {
				continue
			}
			level := "LOW"
			if ps.State != 0 {
				level = "HIGH"
			}
			fmt.Fprintf(&buf, "  digitalWrite(%d, %s);\n", ps.Pin, level)
		}
		fmt.Fprintf(&buf, "  delay(%d);\n", st.DurationMs)
	}
	buf.WriteString("}\n")
	return buf.String()
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
