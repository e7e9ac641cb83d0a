package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/playback"
)

func TestRenderBoard_Plain(t *testing.T) {
	frame := playback.Frame{
		Snapshot: playback.Snapshot{13: 1, 2: 1},
		Cursor:   1,
		State:    playback.Running,
		Length:   4,
	}
	history := map[int][]int{13: {0, 0, 1, 1}}
	out := RenderBoard(board.DefaultPins(), frame, history, false)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Len(t, lines, 6)
	assert.Equal(t, " RUNNING  frame 2/4", lines[0])
	assert.Equal(t, " DIGITAL ~13  ──── (●) ▁▁██ GND", lines[2])
	assert.Equal(t, " DIGITAL ~12  ──── (○)  GND", lines[3])
	assert.Equal(t, " DIGITAL ~8   ──── (○)  GND", lines[4])
	assert.Equal(t, " DIGITAL ~2   ──── [◉] PRESS  GND", lines[5])
}

func TestRenderBoard_Halted(t *testing.T) {
	out := RenderBoard(board.DefaultPins(), playback.Frame{}, nil, false)
	assert.True(t, strings.HasPrefix(out, " HALTED  no sequence\n"))
	assert.Contains(t, out, "[○]        GND", "a released button shows no marker")

	out = RenderBoard(board.DefaultPins(), playback.Frame{Cursor: 2, Length: 3}, nil, false)
	assert.True(t, strings.HasPrefix(out, " HALTED  frame 3/3\n"))
}

func TestRenderBoard_Colors(t *testing.T) {
	frame := playback.Frame{Snapshot: playback.Snapshot{13: 1}, State: playback.Running, Length: 1}
	out := RenderBoard(board.DefaultPins(), frame, nil, true)

	assert.Contains(t, out, "[#22c55e]●[-] RUNNING")
	assert.Contains(t, out, "[#ef4444](●)", "lit LED uses its own color")
	lit, dim := ledColors("green")
	assert.Equal(t, "#22c55e", lit)
	assert.Contains(t, out, "["+dim+"](○)", "dark LED uses the dimmed color")
	assert.NotEqual(t, lit, dim)
}

func TestLedColorsFallback(t *testing.T) {
	lit, _ := ledColors("bg-nonsense")
	assert.Equal(t, board.Palette["red"], lit)
	lit, _ = ledColors("#123456")
	assert.Equal(t, "#123456", lit)
}

func TestRenderCompact(t *testing.T) {
	frame := playback.Frame{Snapshot: playback.Snapshot{12: 1}, State: playback.Running, Cursor: 0, Length: 2}
	assert.Equal(t, "RUNNING  frame 1/2 | 13(○) | 12(●) | 8(○) | 2[○]", RenderCompact(board.DefaultPins(), frame))
}

func TestRenderTrace(t *testing.T) {
	assert.Equal(t, "", renderTrace(nil))
	assert.Equal(t, "▁█▁", renderTrace([]int{0, 1, 0}))
}
