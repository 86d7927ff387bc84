package morse

import "github.com/morsekb/firmware-core/keycode"

// Mode selects how a morse entry reacts to another key being pressed
// while it is still held and undecided.
type Mode uint8

const (
	// Normal resolves to Hold at timeout and to Tap on release before
	// timeout; another key press has no special effect.
	Normal Mode = iota
	// HoldOnOtherPress resolves to Hold immediately when any other key
	// is pressed while this key is still held, instead of waiting for
	// the timeout.
	HoldOnOtherPress
	// PermissiveHold only ever resolves to Hold at timeout, and only
	// if the key is still held at that instant; other key presses
	// never trigger an early resolution.
	PermissiveHold
)

// TapHoldPair is the tap and hold action for one multi-tap count.
type TapHoldPair struct {
	Tap  keycode.Action
	Hold keycode.Action
}

// Entry is one morse table row: a tap-hold/tap-dance binding.
// Actions[n-1] is the pair used when the key has been tapped n times
// in a row within Timeout of each other.
type Entry struct {
	Mode    Mode
	Timeout uint32 // milliseconds
	Actions []TapHoldPair

	// UnilateralTap suppresses Hold, resolving to Tap instead, when the
	// interrupting key is on the same hand as this one.
	UnilateralTap bool
	// ChordalHold forces Hold when the interrupting key is on the
	// opposite hand, and Tap otherwise.
	ChordalHold bool
}

// pair returns the tap/hold pair for tapCount, clamping to the last
// defined arity if the key was tapped more times than the table
// defines actions for.
func (e Entry) pair(tapCount int) TapHoldPair {
	if tapCount < 1 {
		tapCount = 1
	}
	if tapCount > len(e.Actions) {
		tapCount = len(e.Actions)
	}
	return e.Actions[tapCount-1]
}

// maxTaps returns the highest tap count the entry defines actions for.
func (e Entry) maxTaps() int { return len(e.Actions) }

// Table is the fixed set of morse entries a keymap's TriggerMorse
// actions index into.
type Table []Entry

// Get returns entry idx, and ok=false if idx is out of range.
func (t Table) Get(idx uint16) (Entry, bool) {
	if int(idx) >= len(t) {
		return Entry{}, false
	}
	return t[idx], true
}
