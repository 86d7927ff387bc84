package combo

import (
	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/keycode"
)

// Combo is one N-key chord: Members must all become simultaneously
// pressed within the engine's timeout, with no foreign key-down in
// between, for Output to fire.
type Combo struct {
	Members []event.Pos
	Output  keycode.Action
}

// containsPos reports whether pos is one of c's members.
func (c Combo) containsPos(pos event.Pos) bool {
	for _, m := range c.Members {
		if m == pos {
			return true
		}
	}
	return false
}

// supersetOf reports whether c.Members contains every position in
// held (held may be a proper subset).
func (c Combo) supersetOf(held map[event.Pos]bool) bool {
	if len(c.Members) < len(held) {
		return false
	}
	for pos := range held {
		if !c.containsPos(pos) {
			return false
		}
	}
	return true
}

// equalsSet reports whether c.Members and held describe the same set
// of positions.
func (c Combo) equalsSet(held map[event.Pos]bool) bool {
	return len(c.Members) == len(held) && c.supersetOf(held)
}

// Table is the fixed set of combo entries, in priority order (lowest
// index wins ties per spec §4.F).
type Table []Combo
