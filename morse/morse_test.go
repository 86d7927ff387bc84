package morse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/morse"
)

var (
	posA = event.Key(0, 0) // morse-bound
	posB = event.Key(0, 1) // plain key, same hand as posA
	posC = event.Key(1, 0) // plain key, opposite hand
)

func hands() morse.Hands {
	return morse.Hands{
		posA: morse.HandLeft,
		posB: morse.HandLeft,
		posC: morse.HandRight,
	}
}

func simpleTable(mode morse.Mode, unilateral, chordal bool) morse.Table {
	return morse.Table{{
		Mode:    mode,
		Timeout: 200,
		Actions: []morse.TapHoldPair{
			{Tap: keycode.Key(keycode.KcA), Hold: keycode.Modifier(keycode.ModLeftShift)},
			{Tap: keycode.Key(keycode.KcB), Hold: keycode.Modifier(keycode.ModLeftCtrl)},
		},
		UnilateralTap: unilateral,
		ChordalHold:   chordal,
	}}
}

func morseDown(t0 time.Time) event.KeyboardEvent {
	return event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: t0}
}

func TestTapOnReleaseBeforeTimeout(t *testing.T) {
	e := morse.New(simpleTable(morse.Normal, false, false), hands())
	now := time.Now()

	res := e.HandleEvent(morseDown(now), keycode.Morse(0))
	assert.Empty(t, res)
	assert.True(t, e.Pending())

	res = e.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(10 * time.Millisecond)}, keycode.KeyAction{})
	assert.Empty(t, res)

	// Timeout fires with the key released: resolves to Tap(1).
	res = e.Tick(now.Add(250 * time.Millisecond))
	assert.Len(t, res, 1)
	assert.True(t, res[0].KeyAction.IsTap())
	a, _ := res[0].KeyAction.Action()
	kc, _ := a.KeyCode()
	assert.Equal(t, keycode.KcA, kc)
	assert.False(t, e.Pending())
}

func TestHoldAtTimeoutWhileStillHeld(t *testing.T) {
	e := morse.New(simpleTable(morse.Normal, false, false), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	res := e.Tick(now.Add(250 * time.Millisecond))
	assert.Len(t, res, 1)
	assert.True(t, res[0].Pressed)
	assert.True(t, res[0].KeyAction.IsSingle())

	// Physical release now pairs with the hold.
	res = e.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(260 * time.Millisecond)}, keycode.KeyAction{})
	assert.Len(t, res, 1)
	assert.False(t, res[0].Pressed)
}

func TestMultiTapAccumulatesCount(t *testing.T) {
	e := morse.New(simpleTable(morse.Normal, false, false), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	e.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(5 * time.Millisecond)}, keycode.KeyAction{})
	e.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now.Add(20 * time.Millisecond)}, keycode.Morse(0))
	e.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(30 * time.Millisecond)}, keycode.KeyAction{})

	res := e.Tick(now.Add(300 * time.Millisecond))
	assert.Len(t, res, 1)
	a, _ := res[0].KeyAction.Action()
	kc, _ := a.KeyCode()
	assert.Equal(t, keycode.KcB, kc) // second tap's action
}

func TestHoldOnOtherPressResolvesImmediately(t *testing.T) {
	e := morse.New(simpleTable(morse.HoldOnOtherPress, false, false), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	res := e.HandleEvent(event.KeyboardEvent{Pos: posC, Pressed: true, Stamp: now.Add(5 * time.Millisecond)}, keycode.Single(keycode.Key(keycode.KcC)))

	// First resolution is the hold; second is posC's own passthrough.
	assert.Len(t, res, 2)
	assert.True(t, res[0].KeyAction.IsSingle())
	assert.Equal(t, posA, res[0].Pos)
	assert.Equal(t, posC, res[1].Pos)
	assert.False(t, e.Pending())
}

func TestHoldOnOtherPressDuringMultiTapWindowDoesNotStickHold(t *testing.T) {
	e := morse.New(simpleTable(morse.HoldOnOtherPress, false, false), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	res := e.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(5 * time.Millisecond)}, keycode.KeyAction{})
	assert.Empty(t, res)
	assert.True(t, e.Pending())

	// posA is now physically up, waiting out the multi-tap window.
	// An unrelated key press must not resolve posA to Hold: there is
	// no future physical release of posA to pair it with.
	res = e.HandleEvent(event.KeyboardEvent{Pos: posC, Pressed: true, Stamp: now.Add(10 * time.Millisecond)}, keycode.Single(keycode.Key(keycode.KcC)))
	for _, r := range res {
		assert.False(t, r.Pos == posA && r.Pressed && r.KeyAction.IsSingle(), "posA must not resolve to a stuck Hold while released")
	}

	// Timeout still resolves posA to Tap(1), same as the undisturbed case.
	res = e.Tick(now.Add(260 * time.Millisecond))
	if assert.NotEmpty(t, res) {
		assert.True(t, res[0].KeyAction.IsTap())
		assert.Equal(t, posA, res[0].Pos)
	}
	assert.False(t, e.Pending())
}

func TestUnilateralTapResolvesTapOnSameHandInterrupt(t *testing.T) {
	e := morse.New(simpleTable(morse.Normal, true, false), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	res := e.HandleEvent(event.KeyboardEvent{Pos: posB, Pressed: true, Stamp: now.Add(5 * time.Millisecond)}, keycode.Single(keycode.Key(keycode.KcD)))

	assert.Len(t, res, 2)
	assert.True(t, res[0].KeyAction.IsTap())
	assert.Equal(t, posA, res[0].Pos)
}

func TestChordalHoldForcesHoldOnOppositeHandInterrupt(t *testing.T) {
	e := morse.New(simpleTable(morse.Normal, false, true), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	res := e.HandleEvent(event.KeyboardEvent{Pos: posC, Pressed: true, Stamp: now.Add(5 * time.Millisecond)}, keycode.Single(keycode.Key(keycode.KcC)))

	assert.Len(t, res, 2)
	assert.True(t, res[0].KeyAction.IsSingle())
	assert.Equal(t, posA, res[0].Pos)
}

func TestInterruptionWithoutEarlyResolveIsBuffered(t *testing.T) {
	e := morse.New(simpleTable(morse.Normal, false, false), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	res := e.HandleEvent(event.KeyboardEvent{Pos: posB, Pressed: true, Stamp: now.Add(5 * time.Millisecond)}, keycode.Single(keycode.Key(keycode.KcD)))
	assert.Empty(t, res, "buffered, not yet resolved")
	assert.True(t, e.Pending())

	// Timeout: still held -> Hold, then the buffered posB press replays.
	res = e.Tick(now.Add(250 * time.Millisecond))
	assert.Len(t, res, 2)
	assert.Equal(t, posA, res[0].Pos)
	assert.Equal(t, posB, res[1].Pos)
}

func TestBufferOverflowForceResolvesToTap(t *testing.T) {
	e := morse.New(simpleTable(morse.Normal, false, false), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	for i := 0; i < morse.MaxBuffer; i++ {
		res := e.HandleEvent(event.KeyboardEvent{Pos: posB, Pressed: true, Stamp: now.Add(time.Duration(i) * time.Millisecond)}, keycode.Single(keycode.Key(keycode.KcD)))
		assert.Empty(t, res)
	}

	// The (MaxBuffer+1)-th interruption overflows: force-resolve to Tap,
	// then drain the 8 buffered presses, then handle this one.
	res := e.HandleEvent(event.KeyboardEvent{Pos: posB, Pressed: true, Stamp: now.Add(50 * time.Millisecond)}, keycode.Single(keycode.Key(keycode.KcD)))
	assert.Len(t, res, morse.MaxBuffer+2)
	assert.True(t, res[0].KeyAction.IsTap())
	assert.Equal(t, posA, res[0].Pos)
	assert.False(t, e.Pending())
}

func TestCancelClearsPendingAndActiveHolds(t *testing.T) {
	e := morse.New(simpleTable(morse.Normal, false, false), hands())
	now := time.Now()

	e.HandleEvent(morseDown(now), keycode.Morse(0))
	e.Tick(now.Add(250 * time.Millisecond)) // resolves to Hold, held active

	held := e.Cancel()
	assert.Contains(t, held, posA)
	assert.False(t, e.Pending())

	// A subsequent release of posA is no longer treated as a hold
	// release; with nothing pending it passes straight through.
	res := e.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(300 * time.Millisecond)}, keycode.NoAction)
	assert.Len(t, res, 1)
	assert.True(t, res[0].KeyAction.IsSingle())
}
