package fork_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/fork"
	"github.com/morsekb/firmware-core/keycode"
)

func TestResolveSubstitutesPositiveWhenModsAndLedsMatch(t *testing.T) {
	table := fork.Table{{
		Trigger:   keycode.Key(keycode.KcSlash),
		MatchMods: keycode.ModShift,
		Positive:  keycode.Key(keycode.KcEscape),
		Negative:  keycode.Key(keycode.KcSlash),
	}}

	got := table.Resolve(keycode.Key(keycode.KcSlash), keycode.ModShift, 0)
	kc, _ := got.KeyCode()
	assert.Equal(t, keycode.KcEscape, kc)
}

func TestResolveSubstitutesNegativeWhenModsDontMatch(t *testing.T) {
	table := fork.Table{{
		Trigger:   keycode.Key(keycode.KcSlash),
		MatchMods: keycode.ModShift,
		Positive:  keycode.Key(keycode.KcEscape),
		Negative:  keycode.Key(keycode.KcSlash),
	}}

	got := table.Resolve(keycode.Key(keycode.KcSlash), 0, 0)
	kc, _ := got.KeyCode()
	assert.Equal(t, keycode.KcSlash, kc)
}

func TestResolvePassesThroughUnmatchedTrigger(t *testing.T) {
	table := fork.Table{{
		Trigger:  keycode.Key(keycode.KcSlash),
		Positive: keycode.Key(keycode.KcEscape),
		Negative: keycode.Key(keycode.KcSlash),
	}}

	raw := keycode.Key(keycode.KcA)
	got := table.Resolve(raw, 0, 0)
	assert.True(t, got.Equal(raw))
}

func TestResolveIsIdempotent(t *testing.T) {
	table := fork.Table{{
		Trigger:   keycode.Key(keycode.KcSlash),
		MatchMods: keycode.ModShift,
		Positive:  keycode.Key(keycode.KcEscape),
		Negative:  keycode.Key(keycode.KcSlash),
	}}

	once := table.Resolve(keycode.Key(keycode.KcSlash), keycode.ModShift, 0)
	twice := table.Resolve(once, keycode.ModShift, 0)
	assert.True(t, once.Equal(twice))
}
