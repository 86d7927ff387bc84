// Package morse implements the tap/hold/tap-dance decision engine:
// spec §4.E, the algorithmic heart of the keyboard core. No teacher
// file models this directly (the teacher has no tap-hold concept at
// all); grounded on original_source rmk/tests/common/morse.rs (the
// `mt!`/`lt!` test macros imply a per-key morse-entry table keyed by
// index) and rmk-config/src/api/behavior.rs for the mode/timeout field
// names, built in the teacher's mutex-guarded-state-struct idiom (see
// device/keyboard.Keyboard).
//
// A single Engine instance owns every pending decision. Per spec §5
// ("single executor, no lock needed"), it is driven synchronously by
// the keyboard core's own goroutine — HandleEvent and Tick are not
// safe for concurrent use, by design, the same way Keyboard.stateMu in
// the teacher exists only because two goroutines touched it; here only
// one ever does, so no mutex is carried at all.
package morse

import (
	"time"

	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/keycode"
)

// MaxBuffer is the bounded replay-buffer size spec §4.E fixes at 8:
// "bounded queue, default 8... If the buffer would overflow, the
// pending key is force-resolved to Tap (safe default) and the queue
// is drained."
const MaxBuffer = 8

// phase is WaitingDecision's sub-state: whether the key is currently
// physically held or was released and is waiting out the multi-tap
// window.
type phase uint8

const (
	phaseHeld phase = iota
	phaseReleased
)

// bufferedEvent is a KeyboardEvent plus the KeyAction its keymap
// position resolved to, captured so it can be replayed through
// HandleEvent once the key ahead of it in the queue resolves.
type bufferedEvent struct {
	ev event.KeyboardEvent
	ka keycode.KeyAction
}

// pending is one key's WaitingDecision state.
type pending struct {
	pos      event.Pos
	idx      uint16
	entry    Entry
	tapCount int
	phase    phase
	deadline time.Time
	buffer   []bufferedEvent
}

// Resolution is an action the morse engine has decided to execute.
// KeyAction.IsTap() resolutions execute and release in the same
// instant regardless of Pressed; KeyAction.IsSingle() resolutions
// press on Pressed=true and must be paired with a later Pressed=false
// release of the same Pos.
type Resolution struct {
	Pos       event.Pos
	KeyAction keycode.KeyAction
	Pressed   bool
}

// Engine holds every currently-pending morse decision plus the
// positions whose resolution is a live Hold awaiting physical release.
type Engine struct {
	table Table
	hands Hands

	// stack is the nested-pending LIFO: the most recently started,
	// still-undecided key is always last. Nesting happens when a
	// second morse key is pressed while a first is still pending; it
	// is buffered against the first and, on replay, may itself become
	// pending beneath whatever was already resolved.
	stack []*pending

	// activeHold tracks positions currently executing a Hold action,
	// so their physical key-up can be paired with a release of that
	// same action instead of re-entering the decision machinery.
	activeHold map[event.Pos]keycode.Action
}

// New returns an Engine for the given morse table and hand map.
func New(table Table, hands Hands) *Engine {
	return &Engine{
		table:      table,
		hands:      hands,
		activeHold: make(map[event.Pos]keycode.Action),
	}
}

// SetTable replaces the morse table wholesale, for the Vial service's
// dynamic tap-dance entry CRUD. Callers must only invoke this with no
// decision pending (e.Pending() == false).
func (e *Engine) SetTable(table Table) {
	e.table = table
}

// Pending reports whether any key is currently undecided.
func (e *Engine) Pending() bool { return len(e.stack) > 0 }

// NextDeadline returns the deadline of the innermost pending decision
// and ok=true, so the keyboard core can schedule its next wake-up.
func (e *Engine) NextDeadline() (time.Time, bool) {
	if len(e.stack) == 0 {
		return time.Time{}, false
	}
	top := e.stack[len(e.stack)-1]
	return top.deadline, true
}

// HandleEvent is the single gate every KeyboardEvent passes through.
// ka is the KeyAction the keymap resolved for ev.Pos (looked up by the
// caller before invoking HandleEvent, since only the keymap knows
// Transparent fallthrough and layer activation). If ev.Pos has a live
// Hold in progress, a release of the Hold action is returned directly.
// Otherwise, if no decision is pending, a Morse-kind ka presses a new
// pending entry (returning nothing yet) and any other kind passes
// straight through as a Resolution. If a decision IS pending, ev is
// routed into the decision machinery for the innermost pending key.
func (e *Engine) HandleEvent(ev event.KeyboardEvent, ka keycode.KeyAction) []Resolution {
	if hold, held := e.activeHold[ev.Pos]; held && !ev.Pressed {
		delete(e.activeHold, ev.Pos)
		return []Resolution{{Pos: ev.Pos, KeyAction: keycode.Single(hold), Pressed: false}}
	}

	if len(e.stack) == 0 {
		if idx, ok := ka.MorseIndex(); ok && ev.Pressed {
			entry, ok := e.table.Get(idx)
			if !ok {
				return nil
			}
			e.stack = append(e.stack, &pending{
				pos: ev.Pos, idx: idx, entry: entry,
				tapCount: 1, phase: phaseHeld,
				deadline: ev.Stamp.Add(time.Duration(entry.Timeout) * time.Millisecond),
			})
			return nil
		}
		return e.passthrough(ev, ka)
	}

	top := e.stack[len(e.stack)-1]
	if ev.Pos == top.pos {
		return e.handleOwnEvent(top, ev)
	}
	return e.handleInterruption(top, ev, ka)
}

// passthrough turns a non-morse event with nothing pending directly
// into a Resolution.
func (e *Engine) passthrough(ev event.KeyboardEvent, ka keycode.KeyAction) []Resolution {
	return []Resolution{{Pos: ev.Pos, KeyAction: ka, Pressed: ev.Pressed}}
}

// handleOwnEvent processes a press or release of the pending key
// itself: multi-tap accumulation per spec §4.E ("successive tap/release
// pairs within timeout_ms increment tap_count; each release restarts
// the timer").
func (e *Engine) handleOwnEvent(top *pending, ev event.KeyboardEvent) []Resolution {
	switch {
	case ev.Pressed && top.phase == phaseReleased:
		if top.tapCount < top.entry.maxTaps() {
			top.tapCount++
		}
		top.phase = phaseHeld
		top.deadline = ev.Stamp.Add(time.Duration(top.entry.Timeout) * time.Millisecond)
		return nil

	case !ev.Pressed && top.phase == phaseHeld:
		top.phase = phaseReleased
		top.deadline = ev.Stamp.Add(time.Duration(top.entry.Timeout) * time.Millisecond)
		return nil
	}
	return nil
}

// handleInterruption handles a different key's event arriving while
// top is pending: unilateral_tap/chordal_hold hand rules, then mode's
// HoldOnOtherPress early resolution, then plain buffering.
func (e *Engine) handleInterruption(top *pending, ev event.KeyboardEvent, ka keycode.KeyAction) []Resolution {
	if ev.Pressed {
		if res, resolved := e.resolveOnInterruption(top, ev.Pos); resolved {
			e.popResolved()
			out := res
			out = append(out, e.HandleEvent(ev, ka)...)
			return out
		}
	}
	return e.bufferOrOverflow(top, ev, ka)
}

// resolveOnInterruption applies the hand-based overrides and
// HoldOnOtherPress, per spec §9's documented precedence: unilateral_tap
// wins when the interrupter is same-hand; otherwise chordal_hold's
// opposite-hand rule applies. HoldOnOtherPress only fires while top is
// still physically held (phaseHeld): once the key has been released
// and is sitting in the multi-tap accumulation window, its physical
// key is already up, so resolving to Hold here would assert a hold
// that can never be released by a matching physical release.
func (e *Engine) resolveOnInterruption(top *pending, interrupter event.Pos) ([]Resolution, bool) {
	ownHand, haveOwn := e.hands.Of(top.pos)
	otherHand, haveOther := e.hands.Of(interrupter)
	sameHand := haveOwn && haveOther && ownHand == otherHand
	oppositeHand := haveOwn && haveOther && ownHand != otherHand

	switch {
	case top.entry.UnilateralTap && sameHand:
		return e.resolveTap(top), true
	case top.entry.ChordalHold && oppositeHand:
		return e.resolveHold(top), true
	case top.entry.Mode == HoldOnOtherPress && top.phase == phaseHeld:
		return e.resolveHold(top), true
	}
	return nil, false
}

// bufferOrOverflow appends ev to top's replay buffer, force-resolving
// top to Tap and draining the buffer if it would overflow MaxBuffer.
func (e *Engine) bufferOrOverflow(top *pending, ev event.KeyboardEvent, ka keycode.KeyAction) []Resolution {
	if len(top.buffer) >= MaxBuffer {
		e.popResolved()
		out := e.resolveTap(top)
		for _, buffered := range top.buffer {
			out = append(out, e.HandleEvent(buffered.ev, buffered.ka)...)
		}
		out = append(out, e.HandleEvent(ev, ka)...)
		return out
	}
	top.buffer = append(top.buffer, bufferedEvent{ev: ev, ka: ka})
	return nil
}

// Tick resolves the innermost pending decision if now is at or past
// its deadline, replaying its buffer afterward. Returns nil if nothing
// was due yet.
func (e *Engine) Tick(now time.Time) []Resolution {
	if len(e.stack) == 0 {
		return nil
	}
	top := e.stack[len(e.stack)-1]
	if now.Before(top.deadline) {
		return nil
	}

	e.popResolved()
	var out []Resolution
	if top.phase == phaseHeld {
		out = e.resolveHold(top)
	} else {
		out = e.resolveTap(top)
	}
	for _, buffered := range top.buffer {
		out = append(out, e.HandleEvent(buffered.ev, buffered.ka)...)
	}
	return out
}

// resolveHold emits top's hold action as a press, recording it in
// activeHold so the eventual physical release pairs correctly.
func (e *Engine) resolveHold(top *pending) []Resolution {
	pair := top.entry.pair(top.tapCount)
	e.activeHold[top.pos] = pair.Hold
	return []Resolution{{Pos: top.pos, KeyAction: keycode.Single(pair.Hold), Pressed: true}}
}

// resolveTap emits top's tap action as a self-contained tap.
func (e *Engine) resolveTap(top *pending) []Resolution {
	pair := top.entry.pair(top.tapCount)
	return []Resolution{{Pos: top.pos, KeyAction: keycode.Tap(pair.Tap), Pressed: true}}
}

// popResolved removes the innermost pending entry from the stack.
func (e *Engine) popResolved() {
	e.stack = e.stack[:len(e.stack)-1]
}

// Cancel reverts every pending decision to Idle and clears every live
// Hold, dropping all buffered events, per spec §4.E's "clear all
// pressed" cancellation: "all per-key states revert to Idle; buffered
// events are dropped." Returns the positions that had a live Hold, so
// the caller can confirm their release alongside the all-zeros HID
// report it emits.
func (e *Engine) Cancel() []event.Pos {
	var held []event.Pos
	for pos := range e.activeHold {
		held = append(held, pos)
	}
	e.stack = nil
	e.activeHold = make(map[event.Pos]keycode.Action)
	return held
}
