// Package keyboardcore implements the orchestrator spec §4.H
// describes: it owns all externally-visible HID output state, routes
// every KeyboardEvent through the morse, combo and fork engines, and
// publishes one HID report per externally-visible state change.
//
// Grounded on teacher `device/keyboard.Keyboard.HandleTransfer`'s "own
// the state, serialize a report on demand" shape, turned inside out:
// the teacher's HandleTransfer is pull-based (the USB-IP host asks for
// a report on every IN transfer); Core is push-based, a consumer of
// eventbus channels per spec §4.H/§5 that emits a report the instant
// its state changes rather than waiting to be polled.
package keyboardcore

import (
	"time"

	"github.com/morsekb/firmware-core/combo"
	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/fork"
	"github.com/morsekb/firmware-core/hidreport"
	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/keymap"
	"github.com/morsekb/firmware-core/morse"
)

// MacroPlayer plays back macro idx as a sequence of actions to apply
// in order. Macro bytecode format is a Vial-wire concern (spec §6)
// outside this package's scope; callers inject whatever decodes the
// stored hidreport.Encoder-independent macro blob.
type MacroPlayer interface {
	Play(idx uint8) []keycode.Action
}

// Core owns the live HID output state and the morse/combo/fork
// pipeline that feeds it.
type Core struct {
	km    *keymap.KeyMap
	morse *morse.Engine
	combo *combo.Engine
	forks fork.Table
	macro MacroPlayer

	modRefs [8]int // per-bit holder count, so overlapping mod keys release correctly
	mods    keycode.ModifierCombination
	leds    keycode.LedIndicator

	pressed map[keycode.KeyCode]bool

	// activeKA caches the KeyAction a position resolved to at press
	// time, so its later release reuses the same resolution instead of
	// re-querying the keymap — a layer change between press and
	// release must not change which key the release affects.
	activeKA map[event.Pos]keycode.KeyAction

	heldMods   map[event.Pos]keycode.ModifierCombination
	heldLayers map[event.Pos]heldLayerOp

	mouse    hidreport.MouseReport
	consumer hidreport.ConsumerReport
	system   hidreport.SystemReport

	nkro bool

	now time.Time // stamp of the event or tick being handled, forwarded to the morse engine
}

type heldLayerOp struct {
	layer    uint8
	activate bool // true: release deactivates; false: release reactivates (LayerOff)
}

// Option configures a Core at construction.
type Option func(*Core)

// WithNKRO selects NKRO-bitmap keyboard reports instead of the 6-key
// boot report.
func WithNKRO() Option { return func(c *Core) { c.nkro = true } }

// WithMacroPlayer installs the macro playback backend Macro actions
// invoke.
func WithMacroPlayer(p MacroPlayer) Option { return func(c *Core) { c.macro = p } }

// New returns a Core wired to km, the morse/combo engines and the fork
// table an instance's keymap was built with.
func New(km *keymap.KeyMap, morseEngine *morse.Engine, comboEngine *combo.Engine, forks fork.Table, opts ...Option) *Core {
	c := &Core{
		km: km, morse: morseEngine, combo: comboEngine, forks: forks,
		pressed:    make(map[keycode.KeyCode]bool),
		activeKA:   make(map[event.Pos]keycode.KeyAction),
		heldMods:   make(map[event.Pos]keycode.ModifierCombination),
		heldLayers: make(map[event.Pos]heldLayerOp),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetLeds updates the LED indicator state the host reports (caps
// lock, num lock, ...), consulted by fork resolution.
func (c *Core) SetLeds(leds keycode.LedIndicator) { c.leds = leds }

// Mods returns the live asserted modifier state, consulted by the
// Vial service when it needs to reflect current fork-match state back
// to the host.
func (c *Core) Mods() keycode.ModifierCombination { return c.mods }

// Leds returns the live LED indicator state.
func (c *Core) Leds() keycode.LedIndicator { return c.leds }

// KeyMap returns the live keymap the core resolves keys against, for
// the Vial service's dynamic keymap get/set opcodes.
func (c *Core) KeyMap() *keymap.KeyMap { return c.km }

// SetForkTable replaces the live fork table wholesale, for the Vial
// service's dynamic fork-entry CRUD. Fork resolution is stateless
// (fork.Table.Resolve takes no receiver state beyond the table
// itself), so this is safe to call at any point between HandleEvent
// calls.
func (c *Core) SetForkTable(forks fork.Table) { c.forks = forks }

// ComboEngine returns the live combo engine, for the Vial service's
// dynamic combo-entry CRUD (via its SetTable method).
func (c *Core) ComboEngine() *combo.Engine { return c.combo }

// MorseEngine returns the live morse engine, for the Vial service's
// dynamic tap-dance-entry CRUD (via its SetTable method).
func (c *Core) MorseEngine() *morse.Engine { return c.morse }

// HandleEvent is the keyboard core's single inbound gate. Per spec
// §4.H's ordering guarantee, every report this call returns must be
// published before the next inbound event is consumed by the caller.
func (c *Core) HandleEvent(ev event.KeyboardEvent) []hidreport.Encoder {
	c.now = ev.Stamp
	var ka keycode.KeyAction
	if ev.Pressed {
		ka = c.km.GetAction(ev.Pos)
		c.activeKA[ev.Pos] = ka
	} else if cached, ok := c.activeKA[ev.Pos]; ok {
		ka = cached
		delete(c.activeKA, ev.Pos)
	} else {
		ka = c.km.GetAction(ev.Pos)
	}

	var reports []hidreport.Encoder
	for _, res := range c.combo.HandleEvent(ev, ka) {
		reports = append(reports, c.applyComboResolution(res)...)
	}
	return reports
}

// applyComboResolution routes a combo.Resolution through the morse
// engine (since a combo's own output, or a passthrough replay, may
// itself be a tap-hold binding) before finally applying it.
func (c *Core) applyComboResolution(res combo.Resolution) []hidreport.Encoder {
	morseEv := event.KeyboardEvent{Pos: res.Pos, Pressed: res.Pressed, Stamp: c.now}
	var reports []hidreport.Encoder
	for _, mres := range c.morse.HandleEvent(morseEv, res.KeyAction) {
		reports = append(reports, c.applyMorseResolution(mres)...)
	}
	return reports
}

func (c *Core) applyMorseResolution(res morse.Resolution) []hidreport.Encoder {
	if res.KeyAction.IsTap() {
		a, _ := res.KeyAction.Action()
		var reports []hidreport.Encoder
		reports = append(reports, c.applyAction(res.Pos, a, true)...)
		reports = append(reports, c.applyAction(res.Pos, a, false)...)
		return reports
	}
	if a, ok := res.KeyAction.Action(); ok {
		return c.applyAction(res.Pos, a, res.Pressed)
	}
	return nil
}

// applyAction executes a single resolved Action at pos, after running
// it through the fork engine, and returns whatever HID reports its
// externally-visible state change produces.
func (c *Core) applyAction(pos event.Pos, a keycode.Action, pressed bool) []hidreport.Encoder {
	a = c.forks.Resolve(a, c.mods, c.leds)

	if idx, ok := a.MorseIndex(); ok {
		// A fork-substituted action can itself be a nested morse
		// reference; feed it back through the morse engine exactly as
		// a fresh key event rather than applying it directly.
		morseEv := event.KeyboardEvent{Pos: pos, Pressed: pressed, Stamp: c.now}
		var reports []hidreport.Encoder
		for _, res := range c.morse.HandleEvent(morseEv, keycode.Morse(idx)) {
			reports = append(reports, c.applyMorseResolution(res)...)
		}
		return reports
	}
	if _, ok := a.ComboIndex(); ok {
		return nil // combo-as-output chaining is not exercised by this firmware's keymap
	}

	switch {
	case a.IsNo() || a.IsTransparent():
		return nil
	case a.IsModifierOnly():
		mods, _ := a.Modifiers()
		return c.applyMods(pos, mods, pressed)
	case a.IsLayerOn():
		return c.applyLayerOn(pos, a, pressed)
	case a.IsLayerOff():
		return c.applyLayerOff(pos, a, pressed)
	case a.IsLayerToggle():
		return c.applyLayerToggle(a, pressed)
	case a.IsMouseKey():
		return c.applyMouseKey(pos, a, pressed)
	default:
		if idx, ok := a.MacroIndex(); ok {
			return c.applyMacro(idx, pressed)
		}
		return c.applyKey(pos, a, pressed)
	}
}

func (c *Core) applyKey(pos event.Pos, a keycode.Action, pressed bool) []hidreport.Encoder {
	kc, ok := a.KeyCode()
	if !ok {
		return nil
	}
	var reports []hidreport.Encoder

	if mods, hasMods := a.Modifiers(); hasMods && pressed {
		reports = append(reports, c.applyMods(pos, mods, true)...)
	}

	if pressed {
		c.pressed[kc] = true
	} else {
		delete(c.pressed, kc)
	}
	reports = append(reports, c.keyboardReport())

	if mods, hasMods := a.Modifiers(); hasMods && !pressed {
		reports = append(reports, c.applyMods(pos, mods, false)...)
	}
	return reports
}

func (c *Core) applyMods(pos event.Pos, mods keycode.ModifierCombination, pressed bool) []hidreport.Encoder {
	if pressed {
		c.heldMods[pos] = mods
		c.addMods(mods)
	} else {
		mods = c.heldMods[pos]
		delete(c.heldMods, pos)
		c.removeMods(mods)
	}
	return []hidreport.Encoder{c.keyboardReport()}
}

func (c *Core) addMods(mods keycode.ModifierCombination) {
	for i := 0; i < 8; i++ {
		bit := keycode.ModifierCombination(1 << i)
		if mods&bit != 0 {
			c.modRefs[i]++
		}
	}
	c.recomputeMods()
}

func (c *Core) removeMods(mods keycode.ModifierCombination) {
	for i := 0; i < 8; i++ {
		bit := keycode.ModifierCombination(1 << i)
		if mods&bit != 0 && c.modRefs[i] > 0 {
			c.modRefs[i]--
		}
	}
	c.recomputeMods()
}

func (c *Core) recomputeMods() {
	var m keycode.ModifierCombination
	for i := 0; i < 8; i++ {
		if c.modRefs[i] > 0 {
			m |= 1 << i
		}
	}
	c.mods = m
}

func (c *Core) applyLayerOn(pos event.Pos, a keycode.Action, pressed bool) []hidreport.Encoder {
	layer, _ := a.Layer()
	mods, hasMods := a.Modifiers()

	if pressed {
		c.km.ActivateLayer(layer)
		c.heldLayers[pos] = heldLayerOp{layer: layer, activate: true}
		if hasMods {
			return c.applyMods(pos, mods, true)
		}
		return nil
	}
	c.km.DeactivateLayer(layer)
	delete(c.heldLayers, pos)
	if hasMods {
		return c.applyMods(pos, mods, false)
	}
	return nil
}

func (c *Core) applyLayerOff(pos event.Pos, a keycode.Action, pressed bool) []hidreport.Encoder {
	layer, _ := a.Layer()
	if pressed {
		c.km.DeactivateLayer(layer)
		c.heldLayers[pos] = heldLayerOp{layer: layer, activate: false}
		return nil
	}
	c.km.ActivateLayer(layer)
	delete(c.heldLayers, pos)
	return nil
}

func (c *Core) applyLayerToggle(a keycode.Action, pressed bool) []hidreport.Encoder {
	if !pressed {
		return nil
	}
	layer, _ := a.Layer()
	c.km.ToggleLayer(layer)
	return nil
}

func (c *Core) applyMacro(idx uint8, pressed bool) []hidreport.Encoder {
	if !pressed || c.macro == nil {
		return nil
	}
	var reports []hidreport.Encoder
	for _, a := range c.macro.Play(idx) {
		reports = append(reports, c.applyAction(event.Pos{}, a, true)...)
		reports = append(reports, c.applyAction(event.Pos{}, a, false)...)
	}
	return reports
}

// applyMouseKey maps the low byte of the mouse keycode to a button bit
// when it falls in the button range, and otherwise ignores it: discrete
// key-down/up edges can't carry a movement delta without a polling
// loop, which is out of scope for this firmware core.
func (c *Core) applyMouseKey(_ event.Pos, a keycode.Action, pressed bool) []hidreport.Encoder {
	kc, ok := a.KeyCode()
	if !ok {
		return nil
	}
	bit := byte(kc)
	if bit >= 8 {
		return nil
	}
	button := hidreport.MouseButtons(1 << bit)
	if pressed {
		c.mouse.Buttons |= button
	} else {
		c.mouse.Buttons &^= button
	}
	return []hidreport.Encoder{c.mouse}
}

// keyboardReport snapshots current mods+pressed into whichever report
// shape this Core was configured for.
func (c *Core) keyboardReport() hidreport.Encoder {
	if c.nkro {
		var r hidreport.NkroKeyboardReport
		r.Modifiers = c.mods
		for kc := range c.pressed {
			r.SetPressed(kc, true)
		}
		return r
	}
	keys := make([]keycode.KeyCode, 0, len(c.pressed))
	for kc := range c.pressed {
		keys = append(keys, kc)
	}
	r := hidreport.BootKeyboardReport{Modifiers: c.mods}
	return r.Set(keys)
}

// Tick advances the morse and combo engines' timers, returning any
// reports their resolutions produce. Call with the current time
// whenever the earlier of morse.NextDeadline/combo.NextDeadline
// elapses.
func (c *Core) Tick(now time.Time) []hidreport.Encoder {
	c.now = now
	var reports []hidreport.Encoder
	for _, res := range c.combo.Tick(now) {
		reports = append(reports, c.applyComboResolution(res)...)
	}
	for _, res := range c.morse.Tick(now) {
		reports = append(reports, c.applyMorseResolution(res)...)
	}
	return reports
}

// Cancel implements the "clear all pressed" intervention (host resume,
// protocol mode switch): reverts morse/combo state to Idle, drops
// every held modifier/layer/key, and returns the all-zeros HID report
// spec §4.E requires.
func (c *Core) Cancel() []hidreport.Encoder {
	c.morse.Cancel()
	c.combo.Cancel()

	c.pressed = make(map[keycode.KeyCode]bool)
	c.activeKA = make(map[event.Pos]keycode.KeyAction)
	c.heldMods = make(map[event.Pos]keycode.ModifierCombination)
	for pos, op := range c.heldLayers {
		if op.activate {
			c.km.DeactivateLayer(op.layer)
		} else {
			c.km.ActivateLayer(op.layer)
		}
		delete(c.heldLayers, pos)
	}
	c.modRefs = [8]int{}
	c.mods = 0
	c.mouse = hidreport.MouseReport{}

	return []hidreport.Encoder{c.keyboardReport(), c.mouse}
}
