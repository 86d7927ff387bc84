package keycode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/keycode"
)

func TestEncodeDecodeActionRoundTrip(t *testing.T) {
	cases := []keycode.Action{
		keycode.No,
		keycode.Transparent,
		keycode.Key(keycode.KcA),
		keycode.KeyWithModifier(keycode.KcA, keycode.ModLeftShift),
		keycode.LayerOn(3),
		keycode.LayerOnWithModifier(3, keycode.ModLeftGui),
		keycode.LayerOff(2),
		keycode.LayerToggle(1),
		keycode.Modifier(keycode.ModLeftCtrl.Union(keycode.ModLeftShift)),
		keycode.Macro(5),
		keycode.MouseKey(keycode.KcA),
		keycode.TriggerMorse(7),
		keycode.TriggerCombo(9),
	}
	for _, a := range cases {
		wire := keycode.EncodeAction(a)
		assert.Equal(t, a, keycode.DecodeAction(wire), "round trip for %+v via wire 0x%04X", a, wire)
	}
}

func TestEncodeDecodeKeyActionRoundTrip(t *testing.T) {
	single := keycode.Single(keycode.Key(keycode.KcB))
	wire := keycode.EncodeKeyAction(single)
	got := keycode.DecodeKeyAction(wire)
	assert.True(t, got.IsSingle())
	a, _ := got.Action()
	assert.Equal(t, keycode.Key(keycode.KcB), a)

	morse := keycode.Morse(4)
	wire = keycode.EncodeKeyAction(morse)
	got = keycode.DecodeKeyAction(wire)
	assert.True(t, got.IsMorse())
	idx, ok := got.MorseIndex()
	assert.True(t, ok)
	assert.EqualValues(t, 4, idx)
}

func TestBasicKeycodesRoundTripAsThemselves(t *testing.T) {
	wire := keycode.EncodeAction(keycode.Key(keycode.KcEnter))
	assert.Equal(t, keycode.KcEnter, wire)
}
