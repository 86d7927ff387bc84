// Package fork implements conditional action substitution: spec §4.G.
// Directly grounded on spec §4.G's formula; a pure function needing no
// external grounding beyond keycode.ModifierCombination/LedIndicator's
// bitfield Contains method.
package fork

import "github.com/morsekb/firmware-core/keycode"

// Entry substitutes Positive for Trigger when the live modifier and
// LED state satisfy MatchMods/MatchLeds, and Negative otherwise.
type Entry struct {
	Trigger   keycode.Action
	MatchMods keycode.ModifierCombination
	MatchLeds keycode.LedIndicator

	Positive keycode.Action
	Negative keycode.Action
}

// matches reports whether mods and leds satisfy e's match condition:
// "(mods & match_mods) == match_mods and LED mask matches" per spec
// §4.G.
func (e Entry) matches(mods keycode.ModifierCombination, leds keycode.LedIndicator) bool {
	return mods.Contains(e.MatchMods) && leds.Contains(e.MatchLeds)
}

// Table is the fixed set of fork entries a resolved Action is checked
// against, in priority order (first match wins).
type Table []Entry

// Resolve transforms raw at resolve time: if raw equals some entry's
// Trigger, substitute its Positive or Negative action per the live
// mods/leds state; otherwise raw passes through unchanged. Idempotent
// and side-effect-free, as spec §4.G requires.
func (t Table) Resolve(raw keycode.Action, mods keycode.ModifierCombination, leds keycode.LedIndicator) keycode.Action {
	for _, e := range t {
		if !e.Trigger.Equal(raw) {
			continue
		}
		if e.matches(mods, leds) {
			return e.Positive
		}
		return e.Negative
	}
	return raw
}
