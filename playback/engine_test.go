package playback

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lautenbacher.net/ledfx/board"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func blink() board.Sequence {
	return board.Sequence{
		{DurationMs: 500, States: []board.PinState{{Pin: 13, State: 1}}},
		{DurationMs: 500, States: []board.PinState{{Pin: 13, State: 0}}},
	}
}

func newTestEngine(opts ...Option) (*Engine, *ManualClock) {
	clock := NewManualClock(time.Unix(0, 0))
	e := NewEngine(append([]Option{WithClock(clock)}, opts...)...)
	return e, clock
}

func TestInitialState(t *testing.T) {
	e, clock := newTestEngine()
	assert.Equal(t, Stopped, e.State())
	assert.Empty(t, e.Snapshot())
	assert.False(t, e.Playing())
	assert.Zero(t, clock.Pending())
}

func TestBlinkScenario(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(blink())
	assert.Zero(t, clock.Pending(), "SetSequence must not start playback")

	e.SetPlaying(true)
	assert.Equal(t, Running, e.State())
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot(), "first frame is applied immediately")

	clock.Advance(499 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot())

	clock.Advance(1 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 0}, e.Snapshot())
	assert.Equal(t, 1, e.Cursor())

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot(), "sequence loops back to frame 0")
	assert.Equal(t, 0, e.Cursor())

	for i := 0; i < 10; i++ {
		clock.Advance(1000 * time.Millisecond)
		assert.Equal(t, Snapshot{13: 1}, e.Snapshot())
		assert.Equal(t, 1, clock.Pending())
	}
}

func TestSparseMerge(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(board.Sequence{
		{DurationMs: 100, States: []board.PinState{{Pin: 13, State: 0}, {Pin: 12, State: 1}}},
		{DurationMs: 100, States: []board.PinState{{Pin: 13, State: 1}}},
	})
	e.SetPlaying(true)
	assert.Equal(t, Snapshot{13: 0, 12: 1}, e.Snapshot())

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 1, 12: 1}, e.Snapshot(), "pin 12 must be untouched")
}

func TestLoopingAppliesEveryFrameOnce(t *testing.T) {
	e, clock := newTestEngine()
	seq := board.Sequence{
		{DurationMs: 10, States: []board.PinState{{Pin: 1, State: 1}}},
		{DurationMs: 20, States: []board.PinState{{Pin: 2, State: 1}}},
		{DurationMs: 30, States: []board.PinState{{Pin: 1, State: 0}, {Pin: 2, State: 0}}},
	}
	e.SetSequence(seq)
	e.SetPlaying(true)

	var cursors []int
	elapsed := 0
	for elapsed < 120 {
		clock.Advance(time.Millisecond)
		elapsed++
		if c := e.Cursor(); len(cursors) == 0 || cursors[len(cursors)-1] != c {
			cursors = append(cursors, c)
		}
	}
	// t=10 -> 1, t=30 -> 2, t=60 -> 0, t=70 -> 1, t=90 -> 2, t=120 -> 0
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, cursors)
	assert.Equal(t, 1, clock.Pending())
}

func TestStopKeepsSnapshotAndCancels(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(blink())
	e.SetPlaying(true)
	clock.Advance(500 * time.Millisecond)

	e.SetPlaying(false)
	assert.Equal(t, Stopped, e.State())
	assert.Zero(t, clock.Pending(), "pending advance must be cancelled")
	assert.Equal(t, Snapshot{13: 0}, e.Snapshot(), "snapshot is kept on stop")

	clock.Advance(5 * time.Second)
	assert.Equal(t, Snapshot{13: 0}, e.Snapshot())
}

func TestStopRestartNeverDoublesTimers(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(blink())
	for i := 0; i < 20; i++ {
		e.SetPlaying(true)
		e.SetPlaying(false)
		e.SetPlaying(true)
		assert.Equal(t, 1, clock.Pending())
		e.SetPlaying(true)
		assert.Equal(t, 1, clock.Pending(), "a second start while running must not schedule again")
	}
	e.SetPlaying(false)
	assert.Zero(t, clock.Pending())
}

func TestResumeContinuesAtCursor(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(blink())
	e.SetPlaying(true)
	clock.Advance(700 * time.Millisecond)
	e.SetPlaying(false)
	assert.Equal(t, 1, e.Cursor())

	e.SetPlaying(true)
	assert.Equal(t, 1, e.Cursor())
	assert.Equal(t, Snapshot{13: 0}, e.Snapshot())
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot(), "resumed frame gets its full duration")
}

func TestSetSequenceWhileRunning(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(blink())
	e.SetPlaying(true)
	clock.Advance(600 * time.Millisecond)
	require.Equal(t, 1, e.Cursor())

	next := board.Sequence{
		{DurationMs: 300, States: []board.PinState{{Pin: 8, State: 1}}},
		{DurationMs: 300, States: []board.PinState{{Pin: 8, State: 0}}},
	}
	e.SetSequence(next)
	assert.Equal(t, Running, e.State())
	assert.Equal(t, 0, e.Cursor())
	assert.Equal(t, Snapshot{8: 1}, e.Snapshot(), "snapshot is rebuilt from scratch")
	assert.Equal(t, 1, clock.Pending(), "only the new schedule may be pending")

	for i := 0; i < 30; i++ {
		clock.Advance(100 * time.Millisecond)
		_, stale := e.Snapshot()[13]
		assert.False(t, stale, "no frame of the old sequence may be applied")
	}
}

func TestSetSequenceWhileStopped(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(blink())
	e.SetPlaying(true)
	e.SetPlaying(false)

	e.SetSequence(board.Sequence{{DurationMs: 10, States: []board.PinState{{Pin: 2, State: 1}}}})
	assert.Equal(t, Stopped, e.State())
	assert.Empty(t, e.Snapshot())
	assert.Equal(t, 0, e.Cursor())
	assert.Zero(t, clock.Pending())
}

func TestEmptySequence(t *testing.T) {
	e, clock := newTestEngine()
	e.SetPlaying(true)
	assert.Equal(t, Stopped, e.State())
	assert.Empty(t, e.Snapshot())
	assert.Zero(t, clock.Pending(), "no timer may be created")

	e.SetSequence(board.Sequence{})
	assert.Equal(t, Stopped, e.State())
	assert.Zero(t, clock.Pending())

	// the flag stays on, a real sequence starts right away
	e.SetSequence(blink())
	assert.Equal(t, Running, e.State())
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot())

	e.SetSequence(nil)
	assert.Equal(t, Stopped, e.State())
	assert.Empty(t, e.Snapshot())
	assert.Zero(t, clock.Pending())
}

func TestNegativeDurationIsClamped(t *testing.T) {
	e, clock := newTestEngine(WithMinFrameDelay(25 * time.Millisecond))
	e.SetSequence(board.Sequence{
		{DurationMs: -5, States: []board.PinState{{Pin: 13, State: 1}}},
		{DurationMs: 0, States: []board.PinState{{Pin: 13, State: 0}}},
	})
	e.SetPlaying(true)
	require.Len(t, e.Problems(), 2)
	for _, err := range e.Problems() {
		assert.ErrorIs(t, err, ErrMalformedFrame)
	}

	clock.Advance(24 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot())
	clock.Advance(1 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 0}, e.Snapshot())
	clock.Advance(25 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot())
	assert.Equal(t, 1, clock.Pending())
}

func TestUnknownPinsAreIgnored(t *testing.T) {
	e, clock := newTestEngine(WithPins(board.DefaultPins()))
	e.SetSequence(board.Sequence{
		{DurationMs: 100, States: []board.PinState{{Pin: 13, State: 1}, {Pin: 42, State: 1}}},
		{DurationMs: 100, States: []board.PinState{{Pin: 12, State: 255}}},
	})
	e.SetPlaying(true)
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot())
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 1, 12: 1}, e.Snapshot(), "non-binary levels are read as on")

	var mfe *MalformedFrameError
	require.Len(t, e.Problems(), 2)
	require.ErrorAs(t, e.Problems()[0], &mfe)
	assert.Equal(t, 0, mfe.Frame)
	assert.Equal(t, 42, mfe.Pin)
	assert.Equal(t, "frame 0, pin 42: state for unconfigured pin ignored", mfe.Error())

	// after adding pin 42 the state is no longer dropped
	e.SetPins(append(board.DefaultPins(), board.PinConfig{Pin: 42, Type: board.LED, Color: "white"}))
	assert.Len(t, e.Problems(), 1)
	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, Snapshot{13: 1, 12: 1, 42: 1}, e.Snapshot())
}

func TestChangesNotification(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(blink())
	<-e.Changes()

	e.SetPlaying(true)
	select {
	case <-e.Changes():
	default:
		t.Fatal("starting must publish a frame")
	}
	f := e.LastFrame()
	assert.Equal(t, Running, f.State)
	assert.Equal(t, 2, f.Length)
	assert.Equal(t, Snapshot{13: 1}, f.Snapshot)

	clock.Advance(500 * time.Millisecond)
	<-e.Changes()
	assert.Equal(t, 1, e.LastFrame().Cursor)

	e.SetPlaying(false)
	<-e.Changes()
	assert.Equal(t, Stopped, e.LastFrame().State)
}

func TestSnapshotIsACopy(t *testing.T) {
	e, _ := newTestEngine()
	e.SetSequence(blink())
	e.SetPlaying(true)
	snap := e.Snapshot()
	snap[13] = 0
	snap[99] = 1
	assert.Equal(t, Snapshot{13: 1}, e.Snapshot())
}

func TestSequenceIsCopied(t *testing.T) {
	e, _ := newTestEngine()
	seq := blink()
	e.SetSequence(seq)
	seq[0].DurationMs = 1
	assert.Equal(t, 500, e.Sequence()[0].DurationMs)
}

func TestClose(t *testing.T) {
	e, clock := newTestEngine()
	e.SetSequence(blink())
	e.SetPlaying(true)
	e.Close()
	assert.Zero(t, clock.Pending())
	assert.Equal(t, Stopped, e.State())

	e.SetPlaying(true)
	e.SetSequence(blink())
	assert.Zero(t, clock.Pending(), "a closed engine schedules nothing")
}

func TestRealClock(t *testing.T) {
	e := NewEngine()
	defer e.Close()
	e.SetSequence(board.Sequence{
		{DurationMs: 5, States: []board.PinState{{Pin: 13, State: 1}}},
		{DurationMs: 5, States: []board.PinState{{Pin: 13, State: 0}}},
	})
	e.SetPlaying(true)

	seenOff := false
	assert.Eventually(t, func() bool {
		if e.Snapshot()[13] == 0 {
			seenOff = true
		}
		return seenOff && e.Snapshot()[13] == 1
	}, time.Second, time.Millisecond)

	e.SetPlaying(false)
	frozen := e.Snapshot()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, frozen, e.Snapshot())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "STOPPED", Stopped.String())
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestProblemsLoggedOncePerSequence(t *testing.T) {
	logs := captureLog(t)
	e, _ := newTestEngine(WithPins(board.DefaultPins()))
	e.SetSequence(board.Sequence{
		{DurationMs: 0, States: []board.PinState{{Pin: 42, State: 1}}},
	})
	assert.Equal(t, 2, strings.Count(logs.String(), "Malformed frame data"))

	e.SetPins(append(board.DefaultPins(), board.PinConfig{Pin: 7, Type: board.BUTTON}))
	e.SetPins(board.DefaultPins())
	assert.Equal(t, 2, strings.Count(logs.String(), "Malformed frame data"), "pin edits repeat no warning")

	// a pin edit that uncovers a new problem logs only that one
	e.SetSequence(board.Sequence{
		{DurationMs: 100, States: []board.PinState{{Pin: 13, State: 1}}},
	})
	logs.Reset()
	e.SetPins([]board.PinConfig{{Pin: 12, Type: board.LED, Color: "green"}})
	assert.Equal(t, 1, strings.Count(logs.String(), "Malformed frame data"))
	assert.Contains(t, logs.String(), "pin 13: state for unconfigured pin ignored")

	// a new sequence reports its problems again
	logs.Reset()
	e.SetSequence(board.Sequence{
		{DurationMs: 100, States: []board.PinState{{Pin: 13, State: 1}}},
	})
	assert.Equal(t, 1, strings.Count(logs.String(), "Malformed frame data"))
}
