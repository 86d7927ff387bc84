// Package combo implements N-key chord recognition: spec §4.F.
// Grounded on spec §4.F directly (original_source's combo handling
// was filtered out of the retrieval pack); its state-machine shape
// mirrors the morse package's candidate-buffer-then-resolve idiom for
// consistency within this codebase, since both engines solve the same
// underlying problem — delay commitment until an ambiguous input
// window closes, then replay whatever didn't end up consumed.
package combo

import (
	"time"

	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/keycode"
)

// Resolution is an action the combo engine has decided to execute.
// Combo fires are always Single-kind (held until a member releases);
// replayed passthroughs carry the KeyAction the position originally
// resolved to.
type Resolution struct {
	Pos       event.Pos
	KeyAction keycode.KeyAction
	Pressed   bool
}

type bufferedEvent struct {
	ev event.KeyboardEvent
	ka keycode.KeyAction
}

type firedCombo struct {
	combo    Combo
	released bool
}

// Engine tracks which keys are candidate combo members, the
// still-viable combos given what's currently held, and any combo
// currently fired and awaiting a member release.
type Engine struct {
	table   Table
	timeout time.Duration

	held      map[event.Pos]bool
	buffer    []bufferedEvent
	deadline  time.Time
	bestSoFar *Combo

	fired map[event.Pos]*firedCombo
}

// New returns an Engine for table, resolving a candidate window within
// timeout of its first member's down-edge.
func New(table Table, timeout time.Duration) *Engine {
	return &Engine{
		table:   table,
		timeout: timeout,
		fired:   make(map[event.Pos]*firedCombo),
	}
}

// SetTable replaces the combo table wholesale, for the Vial service's
// dynamic combo-entry CRUD. Callers must only invoke this between
// resolved windows (no candidate buffer in flight), the same
// single-executor discipline HandleEvent itself relies on.
func (e *Engine) SetTable(table Table) {
	e.table = table
}

// Pending reports whether a combo candidate window is open.
func (e *Engine) Pending() bool { return len(e.held) > 0 }

// NextDeadline returns the open candidate window's deadline.
func (e *Engine) NextDeadline() (time.Time, bool) {
	if len(e.held) == 0 {
		return time.Time{}, false
	}
	return e.deadline, true
}

// HandleEvent is the gate every KeyboardEvent passes through. ka is
// the KeyAction ev.Pos resolves to outside of any combo, used to
// replay the event unmodified if its combo candidacy fails.
func (e *Engine) HandleEvent(ev event.KeyboardEvent, ka keycode.KeyAction) []Resolution {
	if fc, ok := e.fired[ev.Pos]; ok {
		if !ev.Pressed {
			delete(e.fired, ev.Pos)
			if !fc.released {
				fc.released = true
				return []Resolution{{Pos: fc.combo.Members[0], KeyAction: keycode.Single(fc.combo.Output), Pressed: false}}
			}
		}
		return nil
	}

	if !ev.Pressed {
		if e.held[ev.Pos] {
			return e.fail(ev, ka, true)
		}
		return e.passthrough(ev, ka)
	}

	if len(e.held) == 0 {
		viable := e.combosContaining(ev.Pos)
		if len(viable) == 0 {
			return e.passthrough(ev, ka)
		}
		e.held = map[event.Pos]bool{ev.Pos: true}
		e.buffer = []bufferedEvent{{ev: ev, ka: ka}}
		e.deadline = ev.Stamp.Add(e.timeout)
		e.bestSoFar = e.bestExactMatch(viable, e.held)
		return nil
	}

	newHeld := make(map[event.Pos]bool, len(e.held)+1)
	for p := range e.held {
		newHeld[p] = true
	}
	newHeld[ev.Pos] = true

	viable := e.viableCombos(newHeld)
	if len(viable) == 0 {
		return e.fail(ev, ka, false)
	}

	e.held[ev.Pos] = true
	e.buffer = append(e.buffer, bufferedEvent{ev: ev, ka: ka})
	e.bestSoFar = e.bestExactMatch(viable, e.held)

	if !e.hasLongerCandidate(viable, e.held) && e.bestSoFar != nil {
		return e.fire(*e.bestSoFar)
	}
	return nil
}

// Tick resolves an open candidate window whose deadline has passed:
// fires bestSoFar if one exists, otherwise fails and replays every
// buffered press untouched.
func (e *Engine) Tick(now time.Time) []Resolution {
	if len(e.held) == 0 || now.Before(e.deadline) {
		return nil
	}
	if e.bestSoFar != nil {
		return e.fire(*e.bestSoFar)
	}
	return e.failAll()
}

func (e *Engine) passthrough(ev event.KeyboardEvent, ka keycode.KeyAction) []Resolution {
	return []Resolution{{Pos: ev.Pos, KeyAction: ka, Pressed: ev.Pressed}}
}

func (e *Engine) combosContaining(pos event.Pos) []Combo {
	var out []Combo
	for _, c := range e.table {
		if c.containsPos(pos) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) viableCombos(held map[event.Pos]bool) []Combo {
	var out []Combo
	for _, c := range e.table {
		if c.supersetOf(held) {
			out = append(out, c)
		}
	}
	return out
}

// bestExactMatch returns the highest-priority combo among viable whose
// member set exactly equals held: longest member count wins, ties
// broken by lowest table index (viable/e.table preserve table order).
func (e *Engine) bestExactMatch(viable []Combo, held map[event.Pos]bool) *Combo {
	var best *Combo
	for i := range viable {
		c := viable[i]
		if !c.equalsSet(held) {
			continue
		}
		if best == nil || len(c.Members) > len(best.Members) {
			b := c
			best = &b
		}
	}
	return best
}

func (e *Engine) hasLongerCandidate(viable []Combo, held map[event.Pos]bool) bool {
	for _, c := range viable {
		if len(c.Members) > len(held) {
			return true
		}
	}
	return false
}

// fire emits combo's output press, suppresses its members' pending
// key-ups by moving them into e.fired, and replays any buffered
// non-member presses that were held alongside it untouched.
func (e *Engine) fire(c Combo) []Resolution {
	consumed := make(map[event.Pos]bool, len(c.Members))
	fc := &firedCombo{combo: c}
	for _, pos := range c.Members {
		consumed[pos] = true
		e.fired[pos] = fc
	}

	var leftover []bufferedEvent
	for _, b := range e.buffer {
		if !consumed[b.ev.Pos] {
			leftover = append(leftover, b)
		}
	}
	e.reset()

	out := []Resolution{{Pos: c.Members[0], KeyAction: keycode.Single(c.Output), Pressed: true}}
	for _, b := range leftover {
		out = append(out, e.HandleEvent(b.ev, b.ka)...)
	}
	return out
}

// fail ends the current candidate window without any combo firing,
// replaying every buffered press untouched. If includeEv, ev is the
// release that broke candidacy and is appended as-is; otherwise ev is
// the non-member press that broke candidacy and is re-routed through
// HandleEvent fresh.
func (e *Engine) fail(ev event.KeyboardEvent, ka keycode.KeyAction, includeEv bool) []Resolution {
	out := e.failAll()
	if includeEv {
		out = append(out, Resolution{Pos: ev.Pos, KeyAction: ka, Pressed: false})
	} else {
		out = append(out, e.HandleEvent(ev, ka)...)
	}
	return out
}

func (e *Engine) failAll() []Resolution {
	buffer := e.buffer
	e.reset()
	out := make([]Resolution, 0, len(buffer))
	for _, b := range buffer {
		out = append(out, Resolution{Pos: b.ev.Pos, KeyAction: b.ka, Pressed: true})
	}
	return out
}

func (e *Engine) reset() {
	e.held = nil
	e.buffer = nil
	e.bestSoFar = nil
}

// Cancel reverts the engine to its idle state, dropping any open
// candidate window and any live fired combos, mirroring morse.Cancel
// for the same "clear all pressed" intervention.
func (e *Engine) Cancel() []event.Pos {
	var held []event.Pos
	for pos := range e.fired {
		held = append(held, pos)
	}
	e.reset()
	e.fired = make(map[event.Pos]*firedCombo)
	return held
}
