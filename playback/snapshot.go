package playback

import (
	"maps"

	"lautenbacher.net/ledfx/board"
)

// Snapshot maps a pin number to its current logical level. Values are
// treated as immutable: Merge returns a new map.
type Snapshot map[int]int

// Merge overlays states onto the snapshot. Pins not named in states keep
// their level.
func (s Snapshot) Merge(states []board.PinState) Snapshot {
	ret := make(Snapshot, len(s)+len(states))
	maps.Copy(ret, s)
	for _, st := range states {
		ret[st.Pin] = st.State
	}
	return ret
}

func (s Snapshot) Clone() Snapshot {
	ret := make(Snapshot, len(s))
	maps.Copy(ret, s)
	return ret
}

// Active reports whether pin is ON/PRESSED. Unknown pins are off.
func (s Snapshot) Active(pin int) bool {
	return s[pin] == 1
}
