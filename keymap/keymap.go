// Package keymap implements the layered action table spec §3/§4.D
// describes: a stack of layers, each ROW x COL grid of KeyActions,
// with a bitmask of which layers currently contribute to lookups.
// Lookup walks layers from the highest activated index down, and
// Transparent falls through to the next one.
//
// Grounded on the teacher's mutex-guarded in-RAM state pattern
// (device/keyboard.Keyboard.UpdateInputState / stateMu): the keymap is
// mutated only by the single executor goroutine that owns it (the
// keyboard core and the Vial service run on the same executor per
// spec §5), so the mutex here exists purely to let tests and
// diagnostics read a consistent snapshot from another goroutine, not
// to arbitrate concurrent writers.
package keymap

import (
	"sync"

	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/keycode"
)

// EncoderAction describes what a rotary encoder tick does on a given
// layer.
type EncoderAction struct {
	Clockwise        keycode.KeyAction
	CounterClockwise keycode.KeyAction
}

// KeyMap is the full layered table: layers[layer][row][col], an
// activation bitmask, a default layer index, and per-layer encoder
// actions.
type KeyMap struct {
	mu sync.RWMutex

	rows, cols, numLayers int
	layers                [][][]keycode.KeyAction
	layerState            []bool
	defaultLayer          uint8
	encoders              [][]EncoderAction // [layer][encoderIdx]

	onSet func(layer uint8, row, col int, ka keycode.KeyAction)
}

// New returns a KeyMap sized numLayers x rows x cols, every cell
// initialized to keycode.NoAction, with only defaultLayer active.
// onSet, if non-nil, is invoked after every SetAction call so callers
// can enqueue a coalesced storage write per spec §4.D.
func New(numLayers, rows, cols, numEncoders int, defaultLayer uint8, onSet func(layer uint8, row, col int, ka keycode.KeyAction)) *KeyMap {
	layers := make([][][]keycode.KeyAction, numLayers)
	encoders := make([][]EncoderAction, numLayers)
	for l := range layers {
		layers[l] = make([][]keycode.KeyAction, rows)
		for r := range layers[l] {
			layers[l][r] = make([]keycode.KeyAction, cols)
			for c := range layers[l][r] {
				layers[l][r][c] = keycode.NoAction
			}
		}
		encoders[l] = make([]EncoderAction, numEncoders)
	}

	layerState := make([]bool, numLayers)
	layerState[defaultLayer] = true

	return &KeyMap{
		rows: rows, cols: cols, numLayers: numLayers,
		layers: layers, layerState: layerState, defaultLayer: defaultLayer,
		encoders: encoders, onSet: onSet,
	}
}

// GetAction resolves pos against the currently activated layers,
// walking from the highest activated layer index down to the lowest,
// returning the first non-Transparent entry. If every activated layer
// (down through layer 0) is Transparent, the lookup terminates as
// keycode.NoAction per spec §4.D.
func (k *KeyMap) GetAction(pos event.Pos) keycode.KeyAction {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if pos.IsEncoder {
		return k.getEncoderAction(pos)
	}

	for l := k.numLayers - 1; l >= 0; l-- {
		if !k.layerState[l] {
			continue
		}
		ka := k.layers[l][pos.Row][pos.Col]
		if !isTransparent(ka) {
			return ka
		}
	}
	return keycode.NoAction
}

func (k *KeyMap) getEncoderAction(pos event.Pos) keycode.KeyAction {
	for l := k.numLayers - 1; l >= 0; l-- {
		if !k.layerState[l] {
			continue
		}
		if pos.EncoderID < 0 || pos.EncoderID >= len(k.encoders[l]) {
			continue
		}
		ea := k.encoders[l][pos.EncoderID]
		ka := ea.Clockwise
		if pos.Direction == event.CounterClockwise {
			ka = ea.CounterClockwise
		}
		if !isTransparent(ka) {
			return ka
		}
	}
	return keycode.NoAction
}

func isTransparent(ka keycode.KeyAction) bool {
	a, ok := ka.Action()
	return ok && a.IsTransparent()
}

// SetAction writes a new KeyAction into layer/row/col and invokes
// onSet so the caller can coalesce a storage write. It is the host's
// only entry point for live keymap edits (via the Vial service).
func (k *KeyMap) SetAction(layer uint8, row, col int, ka keycode.KeyAction) {
	k.mu.Lock()
	k.layers[layer][row][col] = ka
	k.mu.Unlock()

	if k.onSet != nil {
		k.onSet(layer, row, col, ka)
	}
}

// SetEncoderAction writes a new encoder action into layer/encoderIdx.
func (k *KeyMap) SetEncoderAction(layer uint8, encoderIdx int, ea EncoderAction) {
	k.mu.Lock()
	k.encoders[layer][encoderIdx] = ea
	k.mu.Unlock()
}

// ActionAt reads the raw cell at layer/row/col, bypassing layer
// activation/Transparent fallthrough. Used by the Vial service's
// dynamic keymap download, which must show every layer's own bindings
// regardless of which layers are currently active.
func (k *KeyMap) ActionAt(layer uint8, row, col int) keycode.KeyAction {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.layers[layer][row][col]
}

// EncoderActionAt reads the raw encoder binding at layer/encoderIdx.
func (k *KeyMap) EncoderActionAt(layer uint8, encoderIdx int) EncoderAction {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.encoders[layer][encoderIdx]
}

// Reset clears every layer's cells back to keycode.NoAction and every
// encoder binding to its zero value, for the Vial DynamicKeymapReset
// opcode. This KeyMap doesn't retain a separate compiled-in default
// keymap snapshot to restore, so a reset clears to blank rather than
// reverting to firmware-default bindings.
func (k *KeyMap) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for l := range k.layers {
		for r := range k.layers[l] {
			for c := range k.layers[l][r] {
				k.layers[l][r][c] = keycode.NoAction
			}
		}
		for e := range k.encoders[l] {
			k.encoders[l][e] = EncoderAction{}
		}
	}
}

// ActivateLayer sets layer's activation bit.
func (k *KeyMap) ActivateLayer(layer uint8) {
	k.mu.Lock()
	k.layerState[layer] = true
	k.mu.Unlock()
}

// DeactivateLayer clears layer's activation bit. The default layer can
// never be deactivated: spec §3 invariant "exactly one default
// layer".
func (k *KeyMap) DeactivateLayer(layer uint8) {
	if layer == k.defaultLayer {
		return
	}
	k.mu.Lock()
	k.layerState[layer] = false
	k.mu.Unlock()
}

// ToggleLayer flips layer's activation bit.
func (k *KeyMap) ToggleLayer(layer uint8) {
	k.mu.Lock()
	k.layerState[layer] = !k.layerState[layer]
	k.mu.Unlock()
}

// ActiveLayers returns the set of currently activated layer indices,
// highest first.
func (k *KeyMap) ActiveLayers() []uint8 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	var out []uint8
	for l := k.numLayers - 1; l >= 0; l-- {
		if k.layerState[l] {
			out = append(out, uint8(l))
		}
	}
	return out
}

// DefaultLayer returns the keymap's invariant default layer index.
func (k *KeyMap) DefaultLayer() uint8 { return k.defaultLayer }

// Dimensions returns (numLayers, rows, cols).
func (k *KeyMap) Dimensions() (int, int, int) { return k.numLayers, k.rows, k.cols }

// NumEncoders returns the per-layer encoder count.
func (k *KeyMap) NumEncoders() int {
	if len(k.encoders) == 0 {
		return 0
	}
	return len(k.encoders[0])
}
