package keymap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/keymap"
)

func TestGetActionFallsThroughTransparentLayers(t *testing.T) {
	km := keymap.New(3, 1, 1, 0, 0, nil)

	km.SetAction(0, 0, 0, keycode.Single(keycode.Key(keycode.KcA)))
	km.SetAction(1, 0, 0, keycode.TransparentAction)
	km.SetAction(2, 0, 0, keycode.TransparentAction)
	km.ActivateLayer(2)
	km.ActivateLayer(1)

	// Layers 1 and 2 are transparent at (0,0): lookup should fall
	// through to layer 0's Key(KcA).
	got := km.GetAction(event.Key(0, 0))
	a, ok := got.Action()
	assert.True(t, ok)
	kc, ok := a.KeyCode()
	assert.True(t, ok)
	assert.Equal(t, keycode.KcA, kc)
}

func TestGetActionStopsAtHighestNonTransparentLayer(t *testing.T) {
	km := keymap.New(2, 1, 1, 0, 0, nil)

	km.SetAction(0, 0, 0, keycode.Single(keycode.Key(keycode.KcA)))
	km.SetAction(1, 0, 0, keycode.Single(keycode.Key(keycode.KcB)))
	km.ActivateLayer(1)

	got := km.GetAction(event.Key(0, 0))
	a, _ := got.Action()
	kc, _ := a.KeyCode()
	assert.Equal(t, keycode.KcB, kc)
}

func TestDefaultLayerCannotBeDeactivated(t *testing.T) {
	km := keymap.New(2, 1, 1, 0, 0, nil)
	km.DeactivateLayer(0)
	assert.Contains(t, km.ActiveLayers(), uint8(0))
}

func TestSetActionInvokesCallback(t *testing.T) {
	var gotLayer uint8
	var gotRow, gotCol int
	km := keymap.New(1, 2, 2, 0, 0, func(layer uint8, row, col int, ka keycode.KeyAction) {
		gotLayer, gotRow, gotCol = layer, row, col
	})

	km.SetAction(0, 1, 1, keycode.Single(keycode.Key(keycode.KcB)))
	assert.Equal(t, uint8(0), gotLayer)
	assert.Equal(t, 1, gotRow)
	assert.Equal(t, 1, gotCol)
}

func TestEncoderActionResolvesByDirection(t *testing.T) {
	km := keymap.New(1, 1, 1, 1, 0, nil)
	km.SetEncoderAction(0, 0, keymap.EncoderAction{
		Clockwise:        keycode.Single(keycode.Key(keycode.KcUp)),
		CounterClockwise: keycode.Single(keycode.Key(keycode.KcDown)),
	})

	cw := km.GetAction(event.RotaryEncoder(0, event.Clockwise))
	a, _ := cw.Action()
	kc, _ := a.KeyCode()
	assert.Equal(t, keycode.KcUp, kc)

	ccw := km.GetAction(event.RotaryEncoder(0, event.CounterClockwise))
	a, _ = ccw.Action()
	kc, _ = a.KeyCode()
	assert.Equal(t, keycode.KcDown, kc)
}
