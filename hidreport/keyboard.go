package hidreport

import "github.com/morsekb/firmware-core/keycode"

// BootKeyboardReport is the 8-byte boot-protocol keyboard report:
// 1 modifier byte, 1 reserved byte, 6 simultaneously-pressed keycodes.
type BootKeyboardReport struct {
	Modifiers keycode.ModifierCombination
	Keys      [6]keycode.KeyCode
}

// Encode serializes the report to its 8-byte wire layout.
func (r BootKeyboardReport) Encode() []byte {
	out := make([]byte, 8)
	out[0] = byte(r.Modifiers)
	// out[1] is the reserved byte, always zero.
	for i, kc := range r.Keys {
		out[2+i] = byte(kc)
	}
	return out
}

// Set returns a copy of r with pressed set to the keycodes given,
// truncated to the first 6 and padded with KcNo. Order is preserved
// so tests can assert on deterministic report bytes.
func (r BootKeyboardReport) Set(pressed []keycode.KeyCode) BootKeyboardReport {
	var keys [6]keycode.KeyCode
	n := len(pressed)
	if n > 6 {
		n = 6
	}
	copy(keys[:n], pressed[:n])
	r.Keys = keys
	return r
}

// Equal reports whether two boot keyboard reports carry identical
// modifier and key state.
func (r BootKeyboardReport) Equal(other BootKeyboardReport) bool {
	return r == other
}

// NkroKeyReportBits is the size in bytes of the 256-bit key bitmap
// used by the N-key-rollover report (32 bytes = 256 bits, one per
// USB-HID keyboard usage code 0x00-0xFF).
const NkroKeyReportBits = 32

// NkroKeyboardReport is the full N-key-rollover keyboard report: one
// modifier byte, one reserved byte, and a 256-bit bitmap of currently
// pressed keycodes.
type NkroKeyboardReport struct {
	Modifiers keycode.ModifierCombination
	Bitmap    [NkroKeyReportBits]byte
}

// Encode serializes the report to its 34-byte wire layout.
func (r NkroKeyboardReport) Encode() []byte {
	out := make([]byte, 2+NkroKeyReportBits)
	out[0] = byte(r.Modifiers)
	copy(out[2:], r.Bitmap[:])
	return out
}

// SetPressed sets or clears the bit for kc in the bitmap. Codes
// outside the basic USB-HID usage range (>= 0x100) are ignored: the
// bitmap only has room for one bit per usage 0x00-0xFF.
func (r *NkroKeyboardReport) SetPressed(kc keycode.KeyCode, pressed bool) {
	if kc >= 0x100 {
		return
	}
	byteIdx := kc / 8
	bitIdx := kc % 8
	if pressed {
		r.Bitmap[byteIdx] |= 1 << bitIdx
	} else {
		r.Bitmap[byteIdx] &^= 1 << bitIdx
	}
}

// IsPressed reports whether kc's bit is set in the bitmap.
func (r NkroKeyboardReport) IsPressed(kc keycode.KeyCode) bool {
	if kc >= 0x100 {
		return false
	}
	return r.Bitmap[kc/8]&(1<<(kc%8)) != 0
}

// PressedKeys returns the set of keycodes currently marked pressed,
// in ascending usage-code order.
func (r NkroKeyboardReport) PressedKeys() []keycode.KeyCode {
	var out []keycode.KeyCode
	for i := 0; i < NkroKeyReportBits*8; i++ {
		kc := keycode.KeyCode(i)
		if r.IsPressed(kc) {
			out = append(out, kc)
		}
	}
	return out
}
