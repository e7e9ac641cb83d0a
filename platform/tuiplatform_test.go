package platform

import (
	"errors"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/generator"
)

func TestCommandForKey(t *testing.T) {
	s := NewTUIPlatform(board.DefaultPins(), 8, "", "")
	assert.Equal(t, generator.DefaultTargetBoard, s.targetBoard)

	tests := []struct {
		key  tcell.Key
		want Command
	}{
		{tcell.KeyCtrlC, Command{Kind: CmdQuit}},
		{tcell.KeyCtrlQ, Command{Kind: CmdQuit}},
		{tcell.KeyCtrlP, Command{Kind: CmdTogglePlay}},
		{tcell.KeyCtrlL, Command{Kind: CmdAddLED}},
		{tcell.KeyCtrlB, Command{Kind: CmdAddButton}},
		{tcell.KeyCtrlD, Command{Kind: CmdRemovePin, Index: 3}},
		{tcell.KeyCtrlS, Command{Kind: CmdSave}},
		{tcell.KeyCtrlR, Command{Kind: CmdReload}},
	}
	for _, tt := range tests {
		got, ok := s.commandForKey(tt.key)
		assert.True(t, ok, "key %v", tt.key)
		assert.Equal(t, tt.want, got)
	}

	_, ok := s.commandForKey(tcell.KeyEnter)
	assert.False(t, ok, "Enter belongs to the prompt field")
}

func TestDisplayBeforeStart(t *testing.T) {
	s := NewTUIPlatform(board.DefaultPins(), 8, "blink", "Arduino Nano")
	// nothing is drawn without a running application
	s.DisplayStatus(Status{Loading: true})
	s.DisplayResult(&generator.Response{PatternName: "Blink"})
	resp, st := s.currentResult()
	assert.Equal(t, "Blink", resp.PatternName)
	assert.True(t, st.Loading)
}

func TestInfoText(t *testing.T) {
	assert.Contains(t, infoText(nil, Status{}), "Describe an effect")

	resp := &generator.Response{PatternName: "Police [lights]", Explanation: "Red and blue."}
	text := infoText(resp, Status{Loading: true})
	assert.Contains(t, text, "Police [lights[]", "tags in model output are escaped")
	assert.Contains(t, text, "Red and blue.")
	assert.Contains(t, text, "[#eab308]Generating...[-]")

	text = infoText(resp, Status{Err: errors.New("no answer")})
	assert.Contains(t, text, "[#ef4444]Error: no answer[-]")
}

func TestEditorHelpers(t *testing.T) {
	pins := []board.PinConfig{
		{Pin: 13, Type: board.LED, Color: "red"},
		{Pin: 2, Type: board.BUTTON},
	}
	assert.Equal(t, []string{"1: LED on pin 13 (red)", "2: BUTTON on pin 2"}, pinLabels(pins))

	assert.Equal(t, board.ColorNames, colorOptions("Red"))
	assert.Equal(t, board.ColorNames, colorOptions(""))
	custom := colorOptions("#102030")
	assert.Len(t, custom, len(board.ColorNames)+1)
	assert.Equal(t, "#102030", custom[len(custom)-1], "a custom color stays selectable")

	cmd, err := updateCommand(1, " 7 ", "cyan")
	assert.NoError(t, err)
	assert.Equal(t, Command{Kind: CmdUpdatePin, Index: 1, Pin: 7, Color: "cyan"}, cmd)
	assert.Equal(t, "UPDATE_PIN", cmd.Kind.String())

	_, err = updateCommand(1, "", "cyan")
	assert.Error(t, err)
}

func TestStartupCommand(t *testing.T) {
	cmd, ok := startupCommand("  blink the red LED \n")
	assert.True(t, ok)
	assert.Equal(t, Command{Kind: CmdGenerate, Description: "blink the red LED"}, cmd)

	_, ok = startupCommand(" \t")
	assert.False(t, ok, "an empty prompt generates nothing")
}

func TestIntroMentionsEditor(t *testing.T) {
	s := NewTUIPlatform(board.DefaultPins(), 8, "", "")
	assert.Contains(t, s.getIntroText(), "Ctrl-E[-] edit or remove pins")
}
