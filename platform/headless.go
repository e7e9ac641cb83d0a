package platform

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/generator"
	"lautenbacher.net/ledfx/playback"
)

// HeadlessPlatform writes results and a one line trace per frame to an
// io.Writer. It issues a single generation for the prompt it was
// started with; everything else comes from the application.
type HeadlessPlatform struct {
	*AbstractPlatform
	out       io.Writer
	outMu     sync.Mutex
	prompt    string
	startOnce sync.Once
	lastLine  string
}

func NewHeadlessPlatform(pins []board.PinConfig, historyLen int, out io.Writer, prompt string) *HeadlessPlatform {
	return &HeadlessPlatform{
		AbstractPlatform: newAbstractPlatform(pins, historyLen),
		out:              out,
		prompt:           strings.TrimSpace(prompt),
	}
}

func (s *HeadlessPlatform) Start() error {
	s.startOnce.Do(func() {
		close(s.readyChan)
		if cmd, ok := startupCommand(s.prompt); ok {
			s.sendCommand(cmd)
		} else {
			slog.Warn("No prompt given, nothing to generate")
		}
	})
	return nil
}

func (s *HeadlessPlatform) Stop() {}

func (s *HeadlessPlatform) DisplayFrame(frame playback.Frame) {
	s.recordFrame(frame)
	line := RenderCompact(s.Pins(), frame)

	s.outMu.Lock()
	defer s.outMu.Unlock()
	if line == s.lastLine {
		return
	}
	s.lastLine = line
	fmt.Fprintln(s.out, line)
	slog.Debug("Frame", "cursor", frame.Cursor, "state", frame.State, "board", line)
}

func (s *HeadlessPlatform) DisplayResult(resp *generator.Response) {
	s.recordResult(resp)
	if resp == nil {
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, "== %s ==\n%s\n\n%s\n\n", resp.PatternName, resp.Explanation, resp.CppCode)
	fmt.Fprintln(s.out, s.boardText(false))
}

func (s *HeadlessPlatform) DisplayStatus(st Status) {
	s.recordStatus(st)
	if line := st.String(); line != "" {
		s.outMu.Lock()
		defer s.outMu.Unlock()
		fmt.Fprintf(s.out, "-- %s\n", line)
	}
}
