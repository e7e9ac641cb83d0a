package platform

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/playback"
)

const (
	wire       = "────"
	ledLit     = "(●)"
	ledDark    = "(○)"
	buttonDown = "[◉]"
	buttonUp   = "[○]"
	traceHigh  = "█"
	traceLow   = "▁"

	pressColor   = "#06b6d4"
	wireOnColor  = "#94a3b8"
	wireOffColor = "#334155"
	groundColor  = "#475569"
)

var black = colorful.Color{}

// RenderBoard draws one row per pin in configuration order followed by
// the history trace of the pin. With colors set the result contains
// tview color tags.
//
//	DIGITAL ~13 ──── (●) ▁▁██▁▁ GND
func RenderBoard(pins []board.PinConfig, frame playback.Frame, history map[int][]int, colors bool) string {
	var buf strings.Builder
	buf.WriteString(statusLine(frame, colors))
	buf.WriteString("\n\n")

	for _, p := range pins {
		active := frame.Snapshot.Active(p.Pin)
		label := fmt.Sprintf("DIGITAL ~%-3d", p.Pin)

		var part, marker, partColor string
		if p.Type == board.BUTTON {
			part, partColor = buttonUp, wireOffColor
			marker = "     "
			if active {
				part, partColor = buttonDown, pressColor
				marker = "PRESS"
			}
		} else {
			lit, dim := ledColors(p.Color)
			part, partColor = ledDark, dim
			if active {
				part, partColor = ledLit, lit
			}
		}
		trace := renderTrace(history[p.Pin])

		if !colors {
			fmt.Fprintf(&buf, " %s %s %s%s %s GND\n", label, wire, part, padMarker(marker), trace)
			continue
		}
		wireColor := wireOffColor
		if active {
			wireColor = wireOnColor
		}
		traceColor, _ := ledColors(p.Color)
		if p.Type == board.BUTTON {
			traceColor = pressColor
		}
		fmt.Fprintf(&buf, " [white]%s [%s]%s [%s]%s[-]%s [%s]%s [%s]GND[-]\n",
			label, wireColor, wire, partColor, part, padMarker(marker), traceColor, trace, groundColor)
	}
	return buf.String()
}

func padMarker(marker string) string {
	if marker == "" {
		return ""
	}
	return " " + marker
}

func statusLine(frame playback.Frame, colors bool) string {
	var state string
	if frame.State == playback.Running {
		state = fmt.Sprintf("RUNNING  frame %d/%d", frame.Cursor+1, frame.Length)
	} else if frame.Length == 0 {
		state = "HALTED  no sequence"
	} else {
		state = fmt.Sprintf("HALTED  frame %d/%d", frame.Cursor+1, frame.Length)
	}
	if !colors {
		return " " + state
	}
	dot := "[#ef4444]●[-]"
	if frame.State == playback.Running {
		dot = "[#22c55e]●[-]"
	}
	return " " + dot + " " + state
}

// RenderCompact puts the whole board on one line, used by the headless
// platform.
func RenderCompact(pins []board.PinConfig, frame playback.Frame) string {
	parts := make([]string, 0, len(pins)+1)
	parts = append(parts, statusLine(frame, false)[1:])
	for _, p := range pins {
		part := ledDark
		if p.Type == board.BUTTON {
			part = buttonUp
		}
		if frame.Snapshot.Active(p.Pin) {
			part = ledLit
			if p.Type == board.BUTTON {
				part = buttonDown
			}
		}
		parts = append(parts, fmt.Sprintf("%d%s", p.Pin, part))
	}
	return strings.Join(parts, " | ")
}

func renderTrace(levels []int) string {
	var buf strings.Builder
	for _, l := range levels {
		if l != 0 {
			buf.WriteString(traceHigh)
		} else {
			buf.WriteString(traceLow)
		}
	}
	return buf.String()
}

// ledColors returns the lit and the dimmed tag color for an LED color
// name. Unknown names fall back to the default red.
func ledColors(name string) (string, string) {
	c, err := board.ParseColor(name)
	if err != nil {
		c, _ = board.ParseColor("")
	}
	return c.Hex(), c.BlendRgb(black, 0.7).Clamped().Hex()
}
