package keycode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/keycode"
)

func TestActionAccessors(t *testing.T) {
	a := keycode.KeyWithModifier(keycode.KcA, keycode.ModLeftShift)
	kc, ok := a.KeyCode()
	assert.True(t, ok)
	assert.Equal(t, keycode.KcA, kc)

	mods, ok := a.Modifiers()
	assert.True(t, ok)
	assert.Equal(t, keycode.ModLeftShift, mods)

	_, ok = keycode.No.KeyCode()
	assert.False(t, ok)
}

func TestActionSentinels(t *testing.T) {
	assert.True(t, keycode.No.IsNo())
	assert.True(t, keycode.Transparent.IsTransparent())
	assert.False(t, keycode.Key(keycode.KcA).IsNo())
}

func TestKeyActionKinds(t *testing.T) {
	single := keycode.Single(keycode.Key(keycode.KcA))
	assert.True(t, single.IsSingle())
	a, ok := single.Action()
	assert.True(t, ok)
	assert.Equal(t, keycode.KcA, mustKeyCode(t, a))

	tap := keycode.Tap(keycode.Key(keycode.KcB))
	assert.True(t, tap.IsTap())

	m := keycode.Morse(3)
	assert.True(t, m.IsMorse())
	idx, ok := m.MorseIndex()
	assert.True(t, ok)
	assert.EqualValues(t, 3, idx)

	_, ok = m.Action()
	assert.False(t, ok)
}

func mustKeyCode(t *testing.T, a keycode.Action) keycode.KeyCode {
	t.Helper()
	kc, ok := a.KeyCode()
	assert.True(t, ok)
	return kc
}
