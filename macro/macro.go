// Package macro implements the Vial dynamic-macro buffer: a flat,
// fixed-size byte space holding every macro slot back to back,
// NUL-delimited, addressed by DynamicKeymapMacroGetBuffer/SetBuffer
// offsets per spec §4.J/§6. Grounded on spec §6's "raw bytes with
// in-band delimiters" description; original_source's dynamic macro
// support (rmk has none — Vial macros are a VIA-era feature rmk only
// partially carries) doesn't cover this, so the slot format here is a
// direct, minimal reading of the documented QMK/Vial wire convention:
// plain keycode bytes tap in sequence, and a pair of control bytes
// wraps a span to be held together.
package macro

import "github.com/morsekb/firmware-core/keycode"

// Control bytes bracketing a held (as opposed to tapped) span.
const (
	ctrlDown byte = 0x01
	ctrlUp   byte = 0x02
)

// Buffer is the macro bytecode space, sized MACRO_SPACE_SIZE at
// construction.
type Buffer struct {
	space []byte
}

// NewBuffer returns a zeroed Buffer of size bytes.
func NewBuffer(size int) *Buffer { return &Buffer{space: make([]byte, size)} }

// Len reports the buffer's fixed size.
func (b *Buffer) Len() int { return len(b.space) }

// ReadAt copies len(buf) bytes starting at offset into buf.
func (b *Buffer) ReadAt(offset int, buf []byte) { copy(buf, b.space[offset:]) }

// WriteAt writes data into the buffer starting at offset.
func (b *Buffer) WriteAt(offset int, data []byte) { copy(b.space[offset:], data) }

// Bytes returns the whole buffer, for persisting as a MacroBlob record.
func (b *Buffer) Bytes() []byte { return b.space }

// Load replaces the buffer's contents with data, zero-padding any
// remainder, for restoring a MacroBlob record at boot.
func (b *Buffer) Load(data []byte) {
	n := copy(b.space, data)
	for i := n; i < len(b.space); i++ {
		b.space[i] = 0
	}
}

// Count reports how many NUL-delimited slots are in use, for the
// DynamicKeymapMacroGetCount opcode.
func (b *Buffer) Count() int {
	n := 0
	inSlot := false
	for _, c := range b.space {
		if c == 0 {
			inSlot = false
			continue
		}
		if !inSlot {
			n++
			inSlot = true
		}
	}
	return n
}

// Play decodes macro slot idx into the ordered Actions the keyboard
// core should apply, and satisfies keyboardcore.MacroPlayer. Plain
// bytes tap Key(kc) one at a time; a ctrlDown/ctrlUp-wrapped byte taps
// the same way, since this engine applies a macro as a flat action
// list rather than a real press/release timeline. Returns nil if idx
// has no recorded slot.
func (b *Buffer) Play(idx uint8) []keycode.Action {
	slot := b.slot(int(idx))
	if slot == nil {
		return nil
	}
	var out []keycode.Action
	for i := 0; i < len(slot); i++ {
		switch slot[i] {
		case ctrlDown, ctrlUp:
			i++
			if i < len(slot) {
				out = append(out, keycode.Key(keycode.KeyCode(slot[i])))
			}
		default:
			out = append(out, keycode.Key(keycode.KeyCode(slot[i])))
		}
	}
	return out
}

func (b *Buffer) slot(idx int) []byte {
	start, cur := 0, 0
	for start < len(b.space) {
		end := start
		for end < len(b.space) && b.space[end] != 0 {
			end++
		}
		if end > start {
			if cur == idx {
				return b.space[start:end]
			}
			cur++
		}
		start = end + 1
	}
	return nil
}
