package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"lautenbacher.net/ledfx/board"
)

// Session allows one generation in flight. Starting a new one cancels
// the previous request, whose late answer is then discarded so it can
// never overwrite a newer result.
type Session struct {
	mu       sync.Mutex
	gen      Generator
	cancel   context.CancelFunc
	seq      uint64
	loading  bool
	current  *Response
	inflight int
	retired  []io.Closer
	closed   bool
}

func NewSession(gen Generator) *Session {
	return &Session{gen: gen}
}

// SetGenerator replaces the generator used by later requests. The
// previous one is closed once no request is running on it any more.
func (s *Session) SetGenerator(gen Generator) {
	s.mu.Lock()
	old := s.gen
	s.gen = gen
	if c, ok := old.(io.Closer); ok {
		if cur, _ := gen.(io.Closer); cur != c {
			s.retired = append(s.retired, c)
		}
	}
	closers := s.releaseLocked()
	s.mu.Unlock()
	closeAll(closers)
}

// releaseLocked hands out the retired generators when nothing runs.
func (s *Session) releaseLocked() []io.Closer {
	if s.inflight > 0 {
		return nil
	}
	closers := s.retired
	s.retired = nil
	return closers
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			slog.Warn("Closing generator failed", "error", err)
		}
	}
}

func (s *Session) Generate(ctx context.Context, pins []board.PinConfig, description string) (*Response, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	mySeq := s.seq
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loading = true
	s.inflight++
	gen := s.gen
	s.mu.Unlock()
	defer cancel()

	id := uuid.NewString()
	slog.Info("Generating pattern", "request", id, "pins", len(pins), "description", description)
	resp, err := gen.Generate(ctx, pins, description)

	s.mu.Lock()
	s.inflight--
	closers := s.releaseLocked()
	defer closeAll(closers)
	defer s.mu.Unlock()
	if mySeq != s.seq {
		slog.Info("Discarding superseded generation", "request", id)
		return nil, fmt.Errorf("request %s: %w", id, ErrSuperseded)
	}
	s.cancel = nil
	s.loading = false
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("Generation cancelled", "request", id)
		} else {
			slog.Error("Generation failed", "request", id, "error", err)
		}
		return nil, err
	}
	s.current = resp
	slog.Info("Generation finished", "request", id, "pattern", resp.PatternName, "frames", len(resp.SimulationSequence))
	return resp, nil
}

// Cancel aborts the request in flight, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Close cancels the request in flight and closes the current and all
// retired generators. A request still running keeps its generator open
// until it returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if c, ok := s.gen.(io.Closer); ok {
		s.retired = append(s.retired, c)
	}
	closers := s.releaseLocked()
	s.mu.Unlock()
	closeAll(closers)
}

// Current is the latest successful result or nil.
func (s *Session) Current() *Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}
