package platform

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gammazero/deque"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/generator"
	"lautenbacher.net/ledfx/playback"
)

const commandQueueSize = 16

// AbstractPlatform keeps what every platform shows: the pin list, the
// latest frame with a short level history per pin, the latest result
// and status.
type AbstractPlatform struct {
	mu         sync.Mutex
	pins       []board.PinConfig
	history    map[int]*deque.Deque[int]
	historyLen int
	frame      playback.Frame
	result     *generator.Response
	status     Status

	commands  chan Command
	readyChan chan bool
}

func newAbstractPlatform(pins []board.PinConfig, historyLen int) *AbstractPlatform {
	s := &AbstractPlatform{
		historyLen: max(historyLen, 0),
		commands:   make(chan Command, commandQueueSize),
		readyChan:  make(chan bool),
	}
	s.SetPins(pins)
	return s
}

func (s *AbstractPlatform) Commands() <-chan Command {
	return s.commands
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

// sendCommand never blocks the UI thread; a full queue drops the command.
func (s *AbstractPlatform) sendCommand(cmd Command) bool {
	select {
	case s.commands <- cmd:
		return true
	default:
		slog.Warn("Command queue full, dropping command", "command", cmd.Kind)
		return false
	}
}

// startupCommand is the generation a platform asks for once it is
// ready, nothing for an empty prompt.
func startupCommand(prompt string) (Command, bool) {
	desc := strings.TrimSpace(prompt)
	if desc == "" {
		return Command{}, false
	}
	return Command{Kind: CmdGenerate, Description: desc}, true
}

// SetPins replaces the pin list. History is kept for pins that remain.
func (s *AbstractPlatform) SetPins(pins []board.PinConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pins = make([]board.PinConfig, len(pins))
	copy(s.pins, pins)

	old := s.history
	s.history = make(map[int]*deque.Deque[int], len(pins))
	for _, p := range pins {
		if q, ok := old[p.Pin]; ok {
			s.history[p.Pin] = q
			continue
		}
		q := new(deque.Deque[int])
		q.Grow(s.historyLen)
		s.history[p.Pin] = q
	}
}

// SetHistoryLength changes how many levels are kept per pin.
func (s *AbstractPlatform) SetHistoryLength(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historyLen = max(n, 0)
	for _, q := range s.history {
		for q.Len() > s.historyLen {
			q.PopFront()
		}
	}
}

func (s *AbstractPlatform) Pins() []board.PinConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]board.PinConfig, len(s.pins))
	copy(ret, s.pins)
	return ret
}

// recordFrame stores frame as the latest one and appends the level of
// every configured pin to its history. Stopped frames freeze the trace.
func (s *AbstractPlatform) recordFrame(frame playback.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = frame
	if frame.State != playback.Running || s.historyLen == 0 {
		return
	}
	for pin, q := range s.history {
		if q.Len() == s.historyLen {
			q.PopFront()
		}
		q.PushBack(frame.Snapshot[pin])
	}
}

func (s *AbstractPlatform) recordResult(resp *generator.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = resp
}

func (s *AbstractPlatform) recordStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// History returns the recorded levels of pin, oldest first.
func (s *AbstractPlatform) History(pin int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked(pin)
}

func (s *AbstractPlatform) historyLocked(pin int) []int {
	q, ok := s.history[pin]
	if !ok {
		return nil
	}
	ret := make([]int, q.Len())
	for i := range q.Len() {
		ret[i] = q.At(i)
	}
	return ret
}

// boardText renders the current state of the board.
func (s *AbstractPlatform) boardText(colors bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := make(map[int][]int, len(s.history))
	for pin := range s.history {
		hist[pin] = s.historyLocked(pin)
	}
	return RenderBoard(s.pins, s.frame, hist, colors)
}

func (s *AbstractPlatform) currentResult() (*generator.Response, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.status
}
