package morse

import "github.com/morsekb/firmware-core/event"

// Hand is which half of a split (or conceptually split) board a
// matrix position belongs to, used by UnilateralTap and ChordalHold.
type Hand uint8

const (
	HandLeft Hand = iota
	HandRight
)

// Hands is the positional L/R config table spec §4.E calls for:
// "Hand mapping comes from a positional config table (L/R per key)."
type Hands map[event.Pos]Hand

// Of returns the hand assigned to pos, and ok=false if pos has no
// entry (e.g. a position that's never the "other key" side of a
// unilateral/chordal decision, such as an encoder).
func (h Hands) Of(pos event.Pos) (Hand, bool) {
	hand, ok := h[pos]
	return hand, ok
}
