package playback

import (
	"log/slog"
	"sync"
	"time"

	"lautenbacher.net/ledfx/board"
	"lautenbacher.net/ledfx/util"
)

const DefaultMinFrameDelay = 10 * time.Millisecond

type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "RUNNING"
	}
	return "STOPPED"
}

// Frame is what a renderer needs to draw one moment of the animation.
// Snapshot must not be modified.
type Frame struct {
	Snapshot Snapshot
	Cursor   int
	State    State
	Length   int
}

// Engine plays a looping sequence of timed pin-state frames. Exactly one
// advance is scheduled while running. Every schedule carries the token
// that was current when it was made; bumping the token invalidates it,
// so a callback that lost a race with a stop or a sequence switch never
// applies its frame.
type Engine struct {
	mu       sync.Mutex
	clock    Clock
	minDelay time.Duration
	known    map[int]struct{}

	seq      board.Sequence
	steps    []step
	problems []error
	reported map[string]struct{}
	playing  bool
	state    State
	cursor   int
	snapshot Snapshot
	token    uint64
	timer    Timer
	closed   bool

	changes *util.AtomicEvent[Frame]
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMinFrameDelay sets the delay used for frames without a positive
// duration. Values below one millisecond are ignored.
func WithMinFrameDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= time.Millisecond {
			e.minDelay = d
		}
	}
}

func WithPins(pins []board.PinConfig) Option {
	return func(e *Engine) { e.known = pinSet(pins) }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock:    RealClock{},
		minDelay: DefaultMinFrameDelay,
		snapshot: Snapshot{},
		changes:  util.NewAtomicEvent[Frame](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func pinSet(pins []board.PinConfig) map[int]struct{} {
	known := make(map[int]struct{}, len(pins))
	for _, p := range pins {
		known[p.Pin] = struct{}{}
	}
	return known
}

// SetSequence replaces the sequence, resets the cursor and clears the
// snapshot. If playing is on, playback restarts at frame 0.
func (e *Engine) SetSequence(seq board.Sequence) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.cancelLocked()
	e.seq = append(board.Sequence(nil), seq...)
	e.steps, e.problems = prepare(e.seq, e.known, e.minDelay)
	e.reported = make(map[string]struct{}, len(e.problems))
	e.reportLocked()
	e.cursor = 0
	e.snapshot = Snapshot{}
	e.state = Stopped

	if e.playing && len(e.steps) > 0 {
		e.state = Running
		e.enterLocked(0)
		return
	}
	e.publishLocked()
}

// SetPlaying switches between RUNNING and STOPPED. Starting with an
// empty sequence does nothing. Stopping keeps the snapshot.
func (e *Engine) SetPlaying(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.playing = on
	if !on {
		if e.state == Running {
			e.cancelLocked()
			e.state = Stopped
			e.publishLocked()
		}
		return
	}
	if e.state == Running || len(e.steps) == 0 {
		return
	}
	e.state = Running
	e.enterLocked(e.cursor)
}

// SetPins changes the set of configured pins. The current sequence is
// prepared again without disturbing the cursor or the pending advance.
// Only problems that were not there before are logged.
func (e *Engine) SetPins(pins []board.PinConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.known = pinSet(pins)
	if len(e.seq) == 0 {
		return
	}
	e.steps, e.problems = prepare(e.seq, e.known, e.minDelay)
	e.reportLocked()
}

// SetMinFrameDelay applies to sequences set afterwards.
func (e *Engine) SetMinFrameDelay(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d >= time.Millisecond {
		e.minDelay = d
	}
}

// enterLocked applies frame i and schedules the move to the next one.
func (e *Engine) enterLocked(i int) {
	e.cancelLocked()
	s := e.steps[i]
	e.cursor = i
	e.snapshot = e.snapshot.Merge(s.states)
	token := e.token
	e.timer = e.clock.AfterFunc(s.delay, func() { e.advance(token) })
	e.publishLocked()
}

func (e *Engine) advance(token uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if token != e.token || e.state != Running || len(e.steps) == 0 {
		return
	}
	e.timer = nil
	e.enterLocked((e.cursor + 1) % len(e.steps))
}

func (e *Engine) cancelLocked() {
	e.token++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) publishLocked() {
	e.changes.Send(e.frameLocked())
}

func (e *Engine) frameLocked() Frame {
	return Frame{
		Snapshot: e.snapshot,
		Cursor:   e.cursor,
		State:    e.state,
		Length:   len(e.steps),
	}
}

// reportLocked logs every problem once per sequence.
func (e *Engine) reportLocked() {
	if e.reported == nil {
		e.reported = make(map[string]struct{}, len(e.problems))
	}
	for _, err := range e.problems {
		key := err.Error()
		if _, ok := e.reported[key]; ok {
			continue
		}
		e.reported[key] = struct{}{}
		slog.Warn("Malformed frame data", "error", err)
	}
}

// Snapshot returns a copy of the current pin levels.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot.Clone()
}

func (e *Engine) Frame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	f := e.frameLocked()
	f.Snapshot = f.Snapshot.Clone()
	return f
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Playing reports the requested flag, which may be on while the engine
// is STOPPED because the sequence is empty.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

func (e *Engine) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

func (e *Engine) Sequence() board.Sequence {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(board.Sequence(nil), e.seq...)
}

// Problems returns what was repaired in the current sequence.
func (e *Engine) Problems() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]error(nil), e.problems...)
}

// Changes signals that a new frame is available via LastFrame.
func (e *Engine) Changes() <-chan struct{} {
	return e.changes.Channel()
}

// LastFrame is the most recently published frame.
func (e *Engine) LastFrame() Frame {
	return e.changes.Value()
}

// Close cancels the pending advance. The engine ignores all later calls.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.state = Stopped
	e.closed = true
}
