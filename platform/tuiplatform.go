package platform

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"golang.org/x/exp/slices"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/generator"
	"lautenbacher.net/ledfx/logging"
	"lautenbacher.net/ledfx/playback"
)

const (
	mainPage   = "main"
	editorPage = "editor"
)

type TUIPlatform struct {
	*AbstractPlatform
	tviewapp     *tview.Application
	pages        *tview.Pages
	intro        *tview.TextView
	boardView    *tview.TextView
	infoView     *tview.TextView
	codeView     *tview.TextView
	promptField  *tview.InputField
	logView      *tview.TextView
	prompt       string
	targetBoard  string
	logFlushOnce sync.Once
	stopOnce     sync.Once
	stopped      atomic.Bool
	editing      atomic.Bool
}

func NewTUIPlatform(pins []board.PinConfig, historyLen int, prompt, targetBoard string) *TUIPlatform {
	if targetBoard == "" {
		targetBoard = generator.DefaultTargetBoard
	}
	return &TUIPlatform{
		AbstractPlatform: newAbstractPlatform(pins, historyLen),
		prompt:           prompt,
		targetBoard:      targetBoard,
	}
}

func (s *TUIPlatform) Start() error {
	s.initTUI()
	go func() {
		if err := s.tviewapp.Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.sendCommand(Command{Kind: CmdQuit})
		}
	}()
	return nil
}

func (s *TUIPlatform) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		if s.tviewapp != nil {
			s.tviewapp.Stop()
		}
		// the log pane is gone, keep the rest for Close
		logging.BufferOutput()
	})
}

func (s *TUIPlatform) SetPins(pins []board.PinConfig) {
	s.AbstractPlatform.SetPins(pins)
	s.redrawBoard()
}

func (s *TUIPlatform) DisplayFrame(frame playback.Frame) {
	s.recordFrame(frame)
	s.redrawBoard()
}

func (s *TUIPlatform) DisplayResult(resp *generator.Response) {
	s.recordResult(resp)
	s.redrawInfo()
}

func (s *TUIPlatform) DisplayStatus(st Status) {
	s.recordStatus(st)
	s.redrawInfo()
}

// redraws are dropped once the application loop has ended, it would
// never drain the update queue again
func (s *TUIPlatform) redrawBoard() {
	if s.tviewapp == nil || s.stopped.Load() {
		return
	}
	text := s.boardText(true)
	s.tviewapp.QueueUpdateDraw(func() {
		s.boardView.SetText(text)
	})
}

func (s *TUIPlatform) redrawInfo() {
	if s.tviewapp == nil || s.stopped.Load() {
		return
	}
	resp, st := s.currentResult()
	info := infoText(resp, st)
	code := ""
	if resp != nil {
		code = resp.CppCode
	}
	s.tviewapp.QueueUpdateDraw(func() {
		s.infoView.SetText(info)
		if resp != nil {
			s.codeView.SetText(code).ScrollToBeginning()
		}
	})
}

func infoText(resp *generator.Response, st Status) string {
	var buf strings.Builder
	if resp == nil {
		buf.WriteString("[#94a3b8]Describe an effect below and hit Enter.[-]\n")
	} else {
		fmt.Fprintf(&buf, "[yellow::b]%s[-::-]\n\n%s\n", tview.Escape(resp.PatternName), tview.Escape(resp.Explanation))
	}
	if line := st.String(); line != "" {
		color := "#94a3b8"
		if st.Err != nil {
			color = "#ef4444"
		} else if st.Loading {
			color = "#eab308"
		}
		fmt.Fprintf(&buf, "\n[%s]%s[-]", color, tview.Escape(line))
	}
	return buf.String()
}

func (s *TUIPlatform) getIntroText() string {
	line1 := "[#ff0000]Enter[-] generate, [#ff0000]Ctrl-P[-] play/pause, [#ff0000]Ctrl-R[-] reload, [#ff0000]Ctrl-S[-] save board"
	line2 := "[#ff0000]Ctrl-L[-] add LED, [#ff0000]Ctrl-B[-] add button, [#ff0000]Ctrl-E[-] edit or remove pins, [#ff0000]Ctrl-D[-] remove last pin"
	line3 := "[#ff0000]Ctrl-Q[-] to exit, [#ff0000]Up/Down[-] to scroll logs, [#ff0000]PgUp/PgDn[-] to scroll the sketch"
	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) initTUI() {
	s.tviewapp = tview.NewApplication()

	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" LED FX Generator ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	s.boardView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.boardView.SetBorder(true).SetTitle(" " + s.targetBoard + " Sim ").SetTitleColor(tcell.ColorLightBlue)
	s.boardView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))
	s.boardView.SetText(s.boardText(true))

	s.infoView = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true)
	s.infoView.SetBorder(true).SetTitle(" Pattern ").SetTitleColor(tcell.ColorLightBlue)
	s.infoView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))
	resp, st := s.currentResult()
	s.infoView.SetText(infoText(resp, st))

	s.codeView = tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true)
	s.codeView.SetBorder(true).SetTitle(" Sketch ").SetTitleColor(tcell.ColorLightBlue)
	s.codeView.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	s.promptField = tview.NewInputField().
		SetLabel("Effect: ").
		SetText(s.prompt).
		SetFieldBackgroundColor(tcell.NewRGBColor(50, 50, 50))
	s.promptField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		desc := strings.TrimSpace(s.promptField.GetText())
		if desc == "" {
			slog.Info("Nothing to generate, the description is empty")
			return
		}
		s.sendCommand(Command{Kind: CmdGenerate, Description: desc})
	})
	s.promptField.SetBorder(true)

	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.infoView, 0, 1, false).
		AddItem(s.codeView, 0, 2, false)
	boardHeight := board.MaxComponents + 5
	middle := tview.NewFlex().
		AddItem(s.boardView, 0, 1, false).
		AddItem(right, 0, 1, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(middle, 0, 1, false).
		AddItem(s.promptField, 3, 0, true).
		AddItem(s.logView, boardHeight, 0, false)

	s.pages = tview.NewPages().AddPage(mainPage, layout, true, true)

	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logging.SetOutput(tview.ANSIWriter(s.logView))
			close(s.readyChan)
			if cmd, ok := startupCommand(s.prompt); ok {
				s.sendCommand(cmd)
			}
		})
	})

	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if s.editing.Load() {
			// the editor form gets all keys but quit
			if cmd, ok := s.commandForKey(event.Key()); ok && cmd.Kind == CmdQuit {
				s.sendCommand(cmd)
				return nil
			}
			return event
		}
		if event.Key() == tcell.KeyCtrlE {
			s.openEditor()
			return nil
		}
		if cmd, ok := s.commandForKey(event.Key()); ok {
			s.sendCommand(cmd)
			return nil
		}
		switch event.Key() {
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		case tcell.KeyPgUp:
			row, col := s.codeView.GetScrollOffset()
			s.codeView.ScrollTo(max(row-10, 0), col)
			return nil
		case tcell.KeyPgDn:
			row, col := s.codeView.GetScrollOffset()
			s.codeView.ScrollTo(row+10, col)
			return nil
		}
		return event
	})

	s.tviewapp.SetRoot(s.pages, true).SetFocus(s.promptField)
}

// openEditor shows a form to renumber, recolor or remove one component.
// It starts on the last component.
func (s *TUIPlatform) openEditor() {
	pins := s.Pins()
	if len(pins) == 0 {
		return
	}
	index := len(pins) - 1

	pinField := tview.NewInputField().
		SetLabel("Pin").
		SetFieldWidth(6).
		SetAcceptanceFunc(tview.InputFieldInteger)
	colorField := tview.NewDropDown().SetLabel("Color")
	component := tview.NewDropDown().SetLabel("Component")
	component.SetOptions(pinLabels(pins), func(_ string, i int) {
		if i < 0 || i >= len(pins) {
			return
		}
		index = i
		pinField.SetText(strconv.Itoa(pins[i].Pin))
		options := colorOptions(pins[i].Color)
		colorField.SetOptions(options, nil)
		colorField.SetCurrentOption(max(slices.Index(options, normColor(pins[i].Color)), 0))
	})
	component.SetCurrentOption(index)

	form := tview.NewForm().
		AddFormItem(component).
		AddFormItem(pinField).
		AddFormItem(colorField)
	form.AddButton("Apply", func() {
		_, color := colorField.GetCurrentOption()
		cmd, err := updateCommand(index, pinField.GetText(), color)
		if err != nil {
			slog.Warn("Pin not changed", "error", err)
			return
		}
		s.sendCommand(cmd)
		s.closeEditor()
	})
	form.AddButton("Remove", func() {
		s.sendCommand(Command{Kind: CmdRemovePin, Index: index})
		s.closeEditor()
	})
	form.AddButton("Cancel", s.closeEditor)
	form.SetCancelFunc(s.closeEditor)
	form.SetBorder(true).SetTitle(" Edit components ").SetTitleColor(tcell.ColorLightBlue)

	s.editing.Store(true)
	s.pages.AddPage(editorPage, centered(form, 48, 11), true, true)
	s.tviewapp.SetFocus(form)
}

func (s *TUIPlatform) closeEditor() {
	s.pages.RemovePage(editorPage)
	s.editing.Store(false)
	s.tviewapp.SetFocus(s.promptField)
}

func centered(p tview.Primitive, width, height int) tview.Primitive {
	column := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(p, height, 0, true).
		AddItem(nil, 0, 1, false)
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(column, width, 0, true).
		AddItem(nil, 0, 1, false)
}

// pinLabels names the components for the editor, in board order.
func pinLabels(pins []board.PinConfig) []string {
	labels := make([]string, len(pins))
	for i, p := range pins {
		labels[i] = fmt.Sprintf("%d: %s on pin %d", i+1, p.Type, p.Pin)
		if p.Type == board.LED && p.Color != "" {
			labels[i] += " (" + p.Color + ")"
		}
	}
	return labels
}

func normColor(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// colorOptions is the palette plus current when that is a custom color.
func colorOptions(current string) []string {
	options := slices.Clone(board.ColorNames)
	if c := normColor(current); c != "" && !slices.Contains(options, c) {
		options = append(options, c)
	}
	return options
}

func updateCommand(index int, pinText, color string) (Command, error) {
	pin, err := strconv.Atoi(strings.TrimSpace(pinText))
	if err != nil {
		return Command{}, fmt.Errorf("pin number %q: %w", pinText, err)
	}
	return Command{Kind: CmdUpdatePin, Index: index, Pin: pin, Color: color}, nil
}

// commandForKey maps the global shortcuts to commands.
func (s *TUIPlatform) commandForKey(key tcell.Key) (Command, bool) {
	switch key {
	case tcell.KeyCtrlC, tcell.KeyCtrlQ:
		return Command{Kind: CmdQuit}, true
	case tcell.KeyCtrlP:
		return Command{Kind: CmdTogglePlay}, true
	case tcell.KeyCtrlL:
		return Command{Kind: CmdAddLED}, true
	case tcell.KeyCtrlB:
		return Command{Kind: CmdAddButton}, true
	case tcell.KeyCtrlD:
		return Command{Kind: CmdRemovePin, Index: len(s.Pins()) - 1}, true
	case tcell.KeyCtrlS:
		return Command{Kind: CmdSave}, true
	case tcell.KeyCtrlR:
		return Command{Kind: CmdReload}, true
	}
	return Command{}, false
}
