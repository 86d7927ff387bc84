package keycode

// Action is a closed sum type describing what a resolved key position
// does. The zero value of Action is No (no-op), matching the zero
// value of the underlying tag.
type Action struct {
	tag      actionTag
	key      KeyCode
	mods     ModifierCombination
	layer    uint8
	morseIdx uint16
	comboIdx uint16
	macroIdx uint8
}

type actionTag uint8

const (
	tagNo actionTag = iota
	tagTransparent
	tagKey
	tagKeyWithModifier
	tagLayerOn
	tagLayerOff
	tagLayerToggle
	tagLayerOnWithModifier
	tagModifier
	tagMacro
	tagMouseKey
	tagTriggerMorse
	tagTriggerCombo
)

// No is the no-op action: the key position does nothing.
var No = Action{tag: tagNo}

// Transparent falls through to the next-lower activated layer during
// keymap lookup.
var Transparent = Action{tag: tagTransparent}

// Key returns a plain keypress action.
func Key(kc KeyCode) Action { return Action{tag: tagKey, key: kc} }

// KeyWithModifier returns a keypress action that also asserts mods for
// the duration of the key.
func KeyWithModifier(kc KeyCode, mods ModifierCombination) Action {
	return Action{tag: tagKeyWithModifier, key: kc, mods: mods}
}

// LayerOn activates layer for as long as the key is held.
func LayerOn(layer uint8) Action { return Action{tag: tagLayerOn, layer: layer} }

// LayerOff deactivates layer for as long as the key is held.
func LayerOff(layer uint8) Action { return Action{tag: tagLayerOff, layer: layer} }

// LayerToggle flips layer's activation bit on each press.
func LayerToggle(layer uint8) Action { return Action{tag: tagLayerToggle, layer: layer} }

// LayerOnWithModifier activates layer and asserts mods while held.
func LayerOnWithModifier(layer uint8, mods ModifierCombination) Action {
	return Action{tag: tagLayerOnWithModifier, layer: layer, mods: mods}
}

// Modifier asserts mods for as long as the key is held, without any
// accompanying keycode.
func Modifier(mods ModifierCombination) Action { return Action{tag: tagModifier, mods: mods} }

// Macro plays back macro idx.
func Macro(idx uint8) Action { return Action{tag: tagMacro, macroIdx: idx} }

// MouseKey emits mouse-emulation activity for kc (movement/button/wheel).
func MouseKey(kc KeyCode) Action { return Action{tag: tagMouseKey, key: kc} }

// TriggerMorse routes resolution through morse table entry idx.
func TriggerMorse(idx uint16) Action { return Action{tag: tagTriggerMorse, morseIdx: idx} }

// TriggerCombo routes resolution through combo table entry idx.
func TriggerCombo(idx uint16) Action { return Action{tag: tagTriggerCombo, comboIdx: idx} }

// IsNo reports whether a is the No sentinel.
func (a Action) IsNo() bool { return a.tag == tagNo }

// IsTransparent reports whether a is the Transparent sentinel.
func (a Action) IsTransparent() bool { return a.tag == tagTransparent }

// KeyCode returns the keycode carried by Key, KeyWithModifier or
// MouseKey actions, and ok=false for every other variant.
func (a Action) KeyCode() (kc KeyCode, ok bool) {
	switch a.tag {
	case tagKey, tagKeyWithModifier, tagMouseKey:
		return a.key, true
	}
	return 0, false
}

// Modifiers returns the modifier bits carried by KeyWithModifier,
// LayerOnWithModifier or Modifier actions, and ok=false otherwise.
func (a Action) Modifiers() (mods ModifierCombination, ok bool) {
	switch a.tag {
	case tagKeyWithModifier, tagLayerOnWithModifier, tagModifier:
		return a.mods, true
	}
	return 0, false
}

// Layer returns the layer index carried by LayerOn, LayerOff,
// LayerToggle or LayerOnWithModifier actions, and ok=false otherwise.
func (a Action) Layer() (layer uint8, ok bool) {
	switch a.tag {
	case tagLayerOn, tagLayerOff, tagLayerToggle, tagLayerOnWithModifier:
		return a.layer, true
	}
	return 0, false
}

// IsLayerOn reports whether a is a LayerOn or LayerOnWithModifier action.
func (a Action) IsLayerOn() bool { return a.tag == tagLayerOn || a.tag == tagLayerOnWithModifier }

// IsLayerOff reports whether a is a LayerOff action.
func (a Action) IsLayerOff() bool { return a.tag == tagLayerOff }

// IsLayerToggle reports whether a is a LayerToggle action.
func (a Action) IsLayerToggle() bool { return a.tag == tagLayerToggle }

// IsModifierOnly reports whether a is a bare Modifier action.
func (a Action) IsModifierOnly() bool { return a.tag == tagModifier }

// MacroIndex returns the macro index carried by a Macro action.
func (a Action) MacroIndex() (idx uint8, ok bool) {
	if a.tag == tagMacro {
		return a.macroIdx, true
	}
	return 0, false
}

// IsMouseKey reports whether a is a MouseKey action.
func (a Action) IsMouseKey() bool { return a.tag == tagMouseKey }

// MorseIndex returns the morse-table index carried by a TriggerMorse
// action.
func (a Action) MorseIndex() (idx uint16, ok bool) {
	if a.tag == tagTriggerMorse {
		return a.morseIdx, true
	}
	return 0, false
}

// ComboIndex returns the combo-table index carried by a TriggerCombo
// action.
func (a Action) ComboIndex() (idx uint16, ok bool) {
	if a.tag == tagTriggerCombo {
		return a.comboIdx, true
	}
	return 0, false
}

// Equal reports whether a and other describe the same action.
func (a Action) Equal(other Action) bool { return a == other }
