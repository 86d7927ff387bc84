package keyboardcore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/combo"
	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/fork"
	"github.com/morsekb/firmware-core/keyboardcore"
	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/keymap"
	"github.com/morsekb/firmware-core/morse"
)

var (
	posA = event.Key(0, 0)
	posB = event.Key(0, 1)
)

func newCore(km *keymap.KeyMap, mt morse.Table, hands morse.Hands, ct combo.Table, forks fork.Table) *keyboardcore.Core {
	me := morse.New(mt, hands)
	ce := combo.New(ct, 50*time.Millisecond)
	return keyboardcore.New(km, me, ce, forks)
}

func TestSimpleTapProducesPressThenReleaseReport(t *testing.T) {
	km := keymap.New(1, 1, 2, 0, 0, nil)
	km.SetAction(0, 0, 0, keycode.Single(keycode.Key(keycode.KcA)))

	c := newCore(km, nil, nil, nil, nil)
	now := time.Now()

	reports := c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now})
	assert.Len(t, reports, 1)
	down := reports[0].Encode()
	assert.Equal(t, byte(keycode.KcA), down[2])

	reports = c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(5 * time.Millisecond)})
	assert.Len(t, reports, 1)
	up := reports[0].Encode()
	assert.Equal(t, byte(0), up[2])
}

func TestLayerOnWithModifierAssertsModsWhileHeld(t *testing.T) {
	km := keymap.New(2, 1, 2, 0, 0, nil)
	km.SetAction(0, 0, 0, keycode.Single(keycode.LayerOnWithModifier(1, keycode.ModLeftShift)))
	km.SetAction(1, 0, 1, keycode.Single(keycode.Key(keycode.KcB)))

	c := newCore(km, nil, nil, nil, nil)
	now := time.Now()

	reports := c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now})
	assert.NotEmpty(t, reports)
	last := reports[len(reports)-1].Encode()
	assert.Equal(t, byte(keycode.ModLeftShift), last[0])

	reports = c.HandleEvent(event.KeyboardEvent{Pos: posB, Pressed: true, Stamp: now.Add(5 * time.Millisecond)})
	assert.Len(t, reports, 1)
	assert.Equal(t, byte(keycode.ModLeftShift), reports[0].Encode()[0])
	assert.Equal(t, byte(keycode.KcB), reports[0].Encode()[2])

	reports = c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(10 * time.Millisecond)})
	last = reports[len(reports)-1].Encode()
	assert.Equal(t, byte(0), last[0])
}

func TestMorseTapDanceResolvesSecondTapAction(t *testing.T) {
	km := keymap.New(1, 1, 1, 0, 0, nil)
	km.SetAction(0, 0, 0, keycode.Morse(0))

	table := morse.Table{{
		Mode:    morse.Normal,
		Timeout: 200,
		Actions: []morse.TapHoldPair{
			{Tap: keycode.Key(keycode.KcA), Hold: keycode.Modifier(keycode.ModLeftShift)},
			{Tap: keycode.Key(keycode.KcB), Hold: keycode.Modifier(keycode.ModLeftCtrl)},
		},
	}}
	hands := morse.Hands{posA: morse.HandLeft}

	c := newCore(km, table, hands, nil, nil)
	now := time.Now()

	c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now})
	c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(5 * time.Millisecond)})
	c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now.Add(20 * time.Millisecond)})
	c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: false, Stamp: now.Add(30 * time.Millisecond)})

	reports := c.Tick(now.Add(300 * time.Millisecond))
	assert.NotEmpty(t, reports)
	down := reports[0].Encode()
	assert.Equal(t, byte(keycode.KcB), down[2])
}

func TestHoldOnOtherPressResolvesHoldImmediately(t *testing.T) {
	km := keymap.New(1, 1, 2, 0, 0, nil)
	km.SetAction(0, 0, 0, keycode.Morse(0))
	km.SetAction(0, 0, 1, keycode.Single(keycode.Key(keycode.KcC)))

	table := morse.Table{{
		Mode:    morse.HoldOnOtherPress,
		Timeout: 200,
		Actions: []morse.TapHoldPair{
			{Tap: keycode.Key(keycode.KcA), Hold: keycode.Modifier(keycode.ModLeftShift)},
		},
	}}
	hands := morse.Hands{posA: morse.HandLeft, posB: morse.HandRight}

	c := newCore(km, table, hands, nil, nil)
	now := time.Now()

	c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now})
	reports := c.HandleEvent(event.KeyboardEvent{Pos: posB, Pressed: true, Stamp: now.Add(5 * time.Millisecond)})

	assert.NotEmpty(t, reports)
	last := reports[len(reports)-1].Encode()
	assert.Equal(t, byte(keycode.KcC), last[2])
}

func TestComboFiresThroughCore(t *testing.T) {
	km := keymap.New(1, 1, 2, 0, 0, nil)
	km.SetAction(0, 0, 0, keycode.Single(keycode.Key(keycode.KcJ)))
	km.SetAction(0, 0, 1, keycode.Single(keycode.Key(keycode.KcK)))

	ct := combo.Table{{Members: []event.Pos{posA, posB}, Output: keycode.Key(keycode.KcEscape)}}

	c := newCore(km, nil, nil, ct, nil)
	now := time.Now()

	reports := c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now})
	assert.Empty(t, reports)

	reports = c.HandleEvent(event.KeyboardEvent{Pos: posB, Pressed: true, Stamp: now.Add(5 * time.Millisecond)})
	assert.NotEmpty(t, reports)
	down := reports[len(reports)-1].Encode()
	assert.Equal(t, byte(keycode.KcEscape), down[2])
}

func TestForkSubstitutesBasedOnLiveMods(t *testing.T) {
	km := keymap.New(1, 1, 1, 0, 0, nil)
	km.SetAction(0, 0, 0, keycode.Single(keycode.Key(keycode.KcSlash)))

	forks := fork.Table{{
		Trigger:   keycode.Key(keycode.KcSlash),
		MatchMods: keycode.ModLeftShift,
		Positive:  keycode.Key(keycode.KcEscape),
		Negative:  keycode.Key(keycode.KcSlash),
	}}

	c := newCore(km, nil, nil, nil, forks)
	now := time.Now()

	reports := c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now})
	assert.NotEmpty(t, reports)
	down := reports[len(reports)-1].Encode()
	assert.Equal(t, byte(keycode.KcSlash), down[2])
}

func TestCancelZeroesOutAllState(t *testing.T) {
	km := keymap.New(1, 1, 1, 0, 0, nil)
	km.SetAction(0, 0, 0, keycode.Single(keycode.Key(keycode.KcA)))

	c := newCore(km, nil, nil, nil, nil)
	now := time.Now()

	c.HandleEvent(event.KeyboardEvent{Pos: posA, Pressed: true, Stamp: now})
	reports := c.Cancel()
	assert.NotEmpty(t, reports)
	kbd := reports[0].Encode()
	assert.Equal(t, byte(0), kbd[0])
	assert.Equal(t, byte(0), kbd[2])
}
