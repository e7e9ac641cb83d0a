package platform

import (
	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/generator"
	"lautenbacher.net/ledfx/playback"
)

// Platform is the user facing side of the application: it shows the
// simulated board and the generated sketch and turns user input into
// commands.
type Platform interface {
	// Start opens the UI. Ready is closed once it can show output.
	Start() error
	Stop()
	Ready() <-chan bool

	// Commands delivers user requests to the application loop.
	Commands() <-chan Command

	SetPins(pins []board.PinConfig)
	DisplayFrame(frame playback.Frame)
	DisplayResult(resp *generator.Response)
	DisplayStatus(st Status)
}

type CommandKind int

const (
	CmdGenerate CommandKind = iota
	CmdTogglePlay
	CmdAddLED
	CmdAddButton
	CmdRemovePin
	CmdUpdatePin
	CmdSave
	CmdReload
	CmdQuit
)

var commandNames = [...]string{"GENERATE", "TOGGLE_PLAY", "ADD_LED", "ADD_BUTTON", "REMOVE_PIN", "UPDATE_PIN", "SAVE", "RELOAD", "QUIT"}

func (k CommandKind) String() string {
	if k < 0 || int(k) >= len(commandNames) {
		return "UNKNOWN"
	}
	return commandNames[k]
}

// Command is a user request. Description is set for CmdGenerate, Index
// for CmdRemovePin and CmdUpdatePin, which also carries the new Pin
// number and Color.
type Command struct {
	Kind        CommandKind
	Description string
	Index       int
	Pin         int
	Color       string
}

// Status is shown next to the result, e.g. while a generation runs or
// after it failed.
type Status struct {
	Loading bool
	Message string
	Err     error
}

func (st Status) String() string {
	switch {
	case st.Err != nil:
		return "Error: " + st.Err.Error()
	case st.Loading && st.Message == "":
		return "Generating..."
	}
	return st.Message
}
