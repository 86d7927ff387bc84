// Package keycode defines the 16-bit keycode space, modifier bitfield,
// LED indicator bitfield and the Action/KeyAction sum types that the
// keymap, morse, combo and fork engines all operate on.
package keycode

// KeyCode is a 16-bit tagged value spanning USB-HID usages (letters,
// numbers, modifiers, media, system) plus firmware-private codes for
// layer ops, mouse emulation, macros, user-defined codes and the
// Transparent/No sentinels. It round-trips through a 16-bit encoding
// for Vial wire compatibility.
type KeyCode uint16

// Sentinels.
const (
	KcNo          KeyCode = 0x0000
	KcTransparent KeyCode = 0x0001
)

// Letters A-Z (USB-HID keyboard/keypad usage page).
const (
	KcA KeyCode = 0x04 + iota
	KcB
	KcC
	KcD
	KcE
	KcF
	KcG
	KcH
	KcI
	KcJ
	KcK
	KcL
	KcM
	KcN
	KcO
	KcP
	KcQ
	KcR
	KcS
	KcT
	KcU
	KcV
	KcW
	KcX
	KcY
	KcZ
)

// Top-row numbers 1-0.
const (
	Kc1 KeyCode = 0x1E + iota
	Kc2
	Kc3
	Kc4
	Kc5
	Kc6
	Kc7
	Kc8
	Kc9
	Kc0
)

// Common control keys.
const (
	KcEnter KeyCode = 0x28 + iota
	KcEscape
	KcBackspace
	KcTab
	KcSpace
	KcMinus
	KcEqual
	KcLeftBracket
	KcRightBracket
	KcBackslash
	KcNonUsHash
	KcSemicolon
	KcQuote
	KcGrave
	KcComma
	KcDot
	KcSlash
	KcCapsLock
)

// Function keys F1-F12.
const (
	KcF1 KeyCode = 0x3A + iota
	KcF2
	KcF3
	KcF4
	KcF5
	KcF6
	KcF7
	KcF8
	KcF9
	KcF10
	KcF11
	KcF12
)

// Navigation cluster.
const (
	KcPrintScreen KeyCode = 0x46 + iota
	KcScrollLock
	KcPause
	KcInsert
	KcHome
	KcPageUp
	KcDelete
	KcEnd
	KcPageDown
	KcRight
	KcLeft
	KcDown
	KcUp
)

// Modifier keycodes (also representable as ModifierCombination bits).
const (
	KcLeftCtrl KeyCode = 0xE0 + iota
	KcLeftShift
	KcLeftAlt
	KcLeftGui
	KcRightCtrl
	KcRightShift
	KcRightAlt
	KcRightGui
)

// Firmware-private code ranges. They start at 0x5000; codes below that
// decode as plain keys. A code in these ranges is a tagged value consumed
// only by the keymap/morse/keyboardcore layer, never sent to the host
// directly as a HID usage.
const (
	rangeLayerOn      KeyCode = 0x5000
	rangeLayerOff     KeyCode = 0x5100
	rangeLayerToggle  KeyCode = 0x5200
	rangeMacro        KeyCode = 0x5300
	rangeMouseKey     KeyCode = 0x5400
	rangeTriggerMorse KeyCode = 0x5500
	rangeTriggerCombo KeyCode = 0x5700
	rangeUser         KeyCode = 0x5900
)

// LayerOnCode encodes a LayerOn(layer) action as a raw KeyCode for the
// Vial wire format.
func LayerOnCode(layer uint8) KeyCode { return rangeLayerOn + KeyCode(layer) }

// LayerOffCode encodes a LayerOff(layer) action as a raw KeyCode.
func LayerOffCode(layer uint8) KeyCode { return rangeLayerOff + KeyCode(layer) }

// LayerToggleCode encodes a LayerToggle(layer) action as a raw KeyCode.
func LayerToggleCode(layer uint8) KeyCode { return rangeLayerToggle + KeyCode(layer) }

// MacroCode encodes a Macro(idx) action as a raw KeyCode.
func MacroCode(idx uint8) KeyCode { return rangeMacro + KeyCode(idx) }

// MouseKeyCode encodes a MouseKey(code) action as a raw KeyCode.
func MouseKeyCode(code KeyCode) KeyCode { return rangeMouseKey + code }

// TriggerMorseCode encodes a TriggerMorse(idx) action as a raw KeyCode.
func TriggerMorseCode(idx uint16) KeyCode { return rangeTriggerMorse + KeyCode(idx) }

// TriggerComboCode encodes a TriggerCombo(idx) action as a raw KeyCode.
func TriggerComboCode(idx uint16) KeyCode { return rangeTriggerCombo + KeyCode(idx) }

// UserCode encodes a user-defined keycode.
func UserCode(idx uint8) KeyCode { return rangeUser + KeyCode(idx) }

// IsModifier reports whether kc is one of the eight single-modifier
// keycodes.
func (kc KeyCode) IsModifier() bool {
	return kc >= KcLeftCtrl && kc <= KcRightGui
}

// IsBasic reports whether kc falls in the plain USB-HID usage range
// that a HID report key array can carry directly.
func (kc KeyCode) IsBasic() bool {
	return kc >= KcA && kc < rangeLayerOn
}
