package playback

import (
	"errors"
	"fmt"
	"time"

	"lautenbacher.net/ledfx/board"
)

var ErrMalformedFrame = errors.New("malformed frame data")

// MalformedFrameError describes a problem in one step of a sequence.
// The engine never stops on these, it repairs the step and reports it.
// Pin is -1 when the problem concerns the whole step.
type MalformedFrameError struct {
	Frame  int
	Pin    int
	Reason string
}

func (e *MalformedFrameError) Error() string {
	if e.Pin < 0 {
		return fmt.Sprintf("frame %d: %s", e.Frame, e.Reason)
	}
	return fmt.Sprintf("frame %d, pin %d: %s", e.Frame, e.Pin, e.Reason)
}

func (e *MalformedFrameError) Is(target error) bool {
	return target == ErrMalformedFrame
}

// step is a sequence entry ready for playback.
type step struct {
	states []board.PinState
	delay  time.Duration
}

// prepare turns a sequence into playable steps. Durations below one
// millisecond are raised to minDelay, states for pins outside known are
// dropped (when known is not empty) and levels are normalised to 0/1.
func prepare(seq board.Sequence, known map[int]struct{}, minDelay time.Duration) ([]step, []error) {
	steps := make([]step, 0, len(seq))
	var problems []error
	for i, s := range seq {
		delay := time.Duration(s.DurationMs) * time.Millisecond
		if s.DurationMs <= 0 {
			problems = append(problems, &MalformedFrameError{
				Frame:  i,
				Pin:    -1,
				Reason: fmt.Sprintf("duration %dms clamped to %s", s.DurationMs, minDelay),
			})
			delay = minDelay
		}
		states := make([]board.PinState, 0, len(s.States))
		for _, ps := range s.States {
			if len(known) > 0 {
				if _, ok := known[ps.Pin]; !ok {
					problems = append(problems, &MalformedFrameError{
						Frame:  i,
						Pin:    ps.Pin,
						Reason: "state for unconfigured pin ignored",
					})
					continue
				}
			}
			if ps.State != 0 && ps.State != 1 {
				problems = append(problems, &MalformedFrameError{
					Frame:  i,
					Pin:    ps.Pin,
					Reason: fmt.Sprintf("level %d read as 1", ps.State),
				})
				ps.State = 1
			}
			states = append(states, ps)
		}
		steps = append(steps, step{states: states, delay: delay})
	}
	return steps, problems
}

// TotalDuration is the length of one loop after clamping.
func TotalDuration(seq board.Sequence, minDelay time.Duration) time.Duration {
	steps, _ := prepare(seq, nil, minDelay)
	var total time.Duration
	for _, s := range steps {
		total += s.delay
	}
	return total
}
