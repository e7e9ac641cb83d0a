package platform

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/generator"
	"lautenbacher.net/ledfx/playback"
)

func TestHeadlessStart(t *testing.T) {
	var out bytes.Buffer
	h := NewHeadlessPlatform(board.DefaultPins(), 8, &out, "  knight rider ")
	require.NoError(t, h.Start())
	require.NoError(t, h.Start())

	<-h.Ready()
	cmd := <-h.Commands()
	assert.Equal(t, Command{Kind: CmdGenerate, Description: "knight rider"}, cmd)
	assert.Empty(t, h.Commands(), "the prompt is generated once")
	h.Stop()
}

func TestHeadlessNoPrompt(t *testing.T) {
	h := NewHeadlessPlatform(board.DefaultPins(), 8, &bytes.Buffer{}, "")
	require.NoError(t, h.Start())
	<-h.Ready()
	assert.Empty(t, h.Commands())
}

func TestHeadlessOutput(t *testing.T) {
	var out bytes.Buffer
	h := NewHeadlessPlatform(board.DefaultPins(), 8, &out, "blink")

	h.DisplayStatus(Status{Loading: true})
	h.DisplayResult(&generator.Response{
		PatternName: "Blink",
		CppCode:     "void loop() {}",
		Explanation: "Blinks pin 13.",
	})
	frame := playback.Frame{Snapshot: playback.Snapshot{13: 1}, State: playback.Running, Length: 2}
	h.DisplayFrame(frame)
	h.DisplayFrame(frame)
	h.DisplayStatus(Status{Err: errors.New("quota exceeded")})

	text := out.String()
	assert.Contains(t, text, "-- Generating...\n")
	assert.Contains(t, text, "== Blink ==\nBlinks pin 13.\n\nvoid loop() {}\n")
	assert.Contains(t, text, " HALTED  no sequence", "the board is printed with the result")
	assert.Equal(t, 1, strings.Count(text, "RUNNING  frame 1/2 | 13(●)"), "unchanged frames are printed once")
	assert.Contains(t, text, "-- Error: quota exceeded\n")
	assert.Equal(t, []int{1}, h.History(13))
}
