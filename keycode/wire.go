package keycode

// Wire-format ranges for actions that carry an auxiliary modifier or
// mask byte alongside their base value. Each packs the auxiliary byte
// into bits 8-15 and the base value into bits 0-7 above a tag range,
// so the (tag, aux, base) triple still round-trips through a single
// 16-bit KeyCode for Vial's DynamicKeymapGetKeyCode/SetKeyCode wire
// format.
const (
	rangeKeyWithModifier     KeyCode = 0x8000
	rangeLayerOnWithModifier KeyCode = 0x9000
	rangeModifierOnly        KeyCode = 0xA000
)

// KeyWithModifierCode encodes a KeyWithModifier(kc, mods) action.
func KeyWithModifierCode(kc KeyCode, mods ModifierCombination) KeyCode {
	return rangeKeyWithModifier | KeyCode(mods)<<8 | (kc & 0xFF)
}

// LayerOnWithModifierCode encodes a LayerOnWithModifier(layer, mods) action.
func LayerOnWithModifierCode(layer uint8, mods ModifierCombination) KeyCode {
	return rangeLayerOnWithModifier | KeyCode(mods)<<8 | KeyCode(layer)
}

// ModifierOnlyCode encodes a bare Modifier(mods) action.
func ModifierOnlyCode(mods ModifierCombination) KeyCode {
	return rangeModifierOnly | KeyCode(mods)
}

// EncodeAction returns a's 16-bit Vial wire keycode.
func EncodeAction(a Action) KeyCode {
	switch {
	case a.IsNo():
		return KcNo
	case a.IsTransparent():
		return KcTransparent
	case a.IsLayerOn():
		layer, _ := a.Layer()
		if mods, ok := a.Modifiers(); ok {
			return LayerOnWithModifierCode(layer, mods)
		}
		return LayerOnCode(layer)
	case a.IsLayerOff():
		layer, _ := a.Layer()
		return LayerOffCode(layer)
	case a.IsLayerToggle():
		layer, _ := a.Layer()
		return LayerToggleCode(layer)
	case a.IsModifierOnly():
		mods, _ := a.Modifiers()
		return ModifierOnlyCode(mods)
	case a.IsMouseKey():
		kc, _ := a.KeyCode()
		return MouseKeyCode(kc)
	}
	if idx, ok := a.MorseIndex(); ok {
		return TriggerMorseCode(idx)
	}
	if idx, ok := a.ComboIndex(); ok {
		return TriggerComboCode(idx)
	}
	if idx, ok := a.MacroIndex(); ok {
		return MacroCode(idx)
	}
	if kc, ok := a.KeyCode(); ok {
		if mods, ok := a.Modifiers(); ok {
			return KeyWithModifierCode(kc, mods)
		}
		return kc
	}
	return KcNo
}

// DecodeAction recovers the Action a raw 16-bit wire keycode encodes.
func DecodeAction(kc KeyCode) Action {
	switch {
	case kc == KcNo:
		return No
	case kc == KcTransparent:
		return Transparent
	case kc >= rangeModifierOnly:
		return Modifier(ModifierCombination(kc - rangeModifierOnly))
	case kc >= rangeLayerOnWithModifier:
		rel := kc - rangeLayerOnWithModifier
		return LayerOnWithModifier(uint8(rel&0xFF), ModifierCombination(rel>>8))
	case kc >= rangeKeyWithModifier:
		rel := kc - rangeKeyWithModifier
		return KeyWithModifier(rel&0xFF, ModifierCombination(rel>>8))
	case kc >= rangeUser:
		return Key(kc)
	case kc >= rangeTriggerCombo:
		return TriggerCombo(uint16(kc - rangeTriggerCombo))
	case kc >= rangeTriggerMorse:
		return TriggerMorse(uint16(kc - rangeTriggerMorse))
	case kc >= rangeMouseKey:
		return MouseKey(kc - rangeMouseKey)
	case kc >= rangeMacro:
		return Macro(uint8(kc - rangeMacro))
	case kc >= rangeLayerToggle:
		return LayerToggle(uint8(kc - rangeLayerToggle))
	case kc >= rangeLayerOff:
		return LayerOff(uint8(kc - rangeLayerOff))
	case kc >= rangeLayerOn:
		return LayerOn(uint8(kc - rangeLayerOn))
	default:
		return Key(kc)
	}
}

// EncodeKeyAction returns ka's 16-bit Vial wire keycode. A Morse
// KeyAction shares the TriggerMorse wire range with Action's own
// TriggerMorse variant — there is no separate wire tag for "this cell
// indirects through the morse table" versus "this nested action
// indirects through the morse table", so both decode the same way.
func EncodeKeyAction(ka KeyAction) KeyCode {
	if idx, ok := ka.MorseIndex(); ok {
		return TriggerMorseCode(idx)
	}
	a, _ := ka.Action()
	return EncodeAction(a)
}

// DecodeKeyAction recovers the KeyAction a raw wire keycode encodes. A
// code in the TriggerMorse range decodes to a Morse KeyAction (the
// common shape for tap-hold/tap-dance keymap cells); everything else
// decodes to a Single KeyAction. The Tap/Single distinction isn't
// representable on the wire and doesn't need to be: Vial only ever
// downloads/uploads what a keymap cell resolves to, and Tap cells are
// authored through the morse table, not as bare wire keycodes.
func DecodeKeyAction(kc KeyCode) KeyAction {
	if kc >= rangeTriggerMorse && kc < rangeTriggerCombo {
		return Morse(uint16(kc - rangeTriggerMorse))
	}
	return Single(DecodeAction(kc))
}
