package keycode

// KeyAction is the value stored in a keymap cell. It is one of three
// shapes: a plain Single action resolved immediately, a Tap action
// that auto-releases, or an indirect Morse reference into the morse
// table resolved by the morse engine.
type KeyAction struct {
	kind  keyActionKind
	inner Action
	morse uint16
}

type keyActionKind uint8

const (
	kindSingle keyActionKind = iota
	kindTap
	kindMorse
)

// Single wraps a directly-resolved action.
func Single(a Action) KeyAction { return KeyAction{kind: kindSingle, inner: a} }

// Tap wraps an action that is pressed and immediately released by the
// keyboard core, regardless of how long the physical key is held.
func Tap(a Action) KeyAction { return KeyAction{kind: kindTap, inner: a} }

// Morse references morse table entry idx; the morse engine decides
// the eventual action.
func Morse(idx uint16) KeyAction { return KeyAction{kind: kindMorse, morse: idx} }

// IsSingle reports whether ka is a Single action.
func (ka KeyAction) IsSingle() bool { return ka.kind == kindSingle }

// IsTap reports whether ka is a Tap action.
func (ka KeyAction) IsTap() bool { return ka.kind == kindTap }

// IsMorse reports whether ka references a morse table entry.
func (ka KeyAction) IsMorse() bool { return ka.kind == kindMorse }

// Action returns the wrapped action for Single/Tap KeyActions, and
// ok=false for Morse KeyActions.
func (ka KeyAction) Action() (a Action, ok bool) {
	if ka.kind == kindMorse {
		return Action{}, false
	}
	return ka.inner, true
}

// MorseIndex returns the morse table index for a Morse KeyAction.
func (ka KeyAction) MorseIndex() (idx uint16, ok bool) {
	if ka.kind != kindMorse {
		return 0, false
	}
	return ka.morse, true
}

// NoAction is the canonical "does nothing" keymap cell.
var NoAction = Single(No)

// TransparentAction is the canonical "fall through to lower layer"
// keymap cell.
var TransparentAction = Single(Transparent)
