package vial

import (
	"github.com/morsekb/firmware-core/combo"
	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/fork"
	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/morse"
	"github.com/morsekb/firmware-core/storage"
)

// Bootstrap replays every persisted keymap/combo/fork/macro record
// from the storage engine into the live keymap and engine tables,
// restoring the state spec §4.K's "replayed newest-record-per-key at
// boot" describes. Callers invoke it once, immediately after New,
// before serving any Vial requests or matrix events.
func (s *Service) Bootstrap() {
	km := s.core.KeyMap()
	var combos combo.Table
	var forks fork.Table
	var morses morse.Table

	for _, rec := range s.store.Records() {
		switch rec.Tag {
		case storage.TagKeymapKey:
			kk, ok := storage.DecodeKeymapKey(rec.Payload)
			if !ok {
				continue
			}
			ka := keycode.DecodeKeyAction(keycode.KeyCode(kk.Action))
			km.SetAction(kk.Layer, int(kk.Row), int(kk.Col), ka)

		case storage.TagComboData:
			cd, ok := storage.DecodeComboData(rec.Payload)
			if !ok {
				continue
			}
			for len(combos) <= int(cd.Idx) {
				combos = append(combos, combo.Combo{})
			}
			members := make([]event.Pos, len(cd.Members))
			for i, m := range cd.Members {
				members[i] = unpackPos(m)
			}
			combos[cd.Idx] = combo.Combo{
				Members: members,
				Output:  keycode.DecodeAction(keycode.KeyCode(cd.Output)),
			}

		case storage.TagForkData:
			fd, ok := storage.DecodeForkData(rec.Payload)
			if !ok {
				continue
			}
			for len(forks) <= int(fd.Idx) {
				forks = append(forks, fork.Entry{})
			}
			forks[fd.Idx] = fork.Entry{
				Trigger:   keycode.DecodeAction(keycode.KeyCode(fd.Trigger)),
				MatchMods: keycode.ModifierCombination(fd.MatchMods),
				MatchLeds: keycode.LedIndicator(fd.MatchLeds),
				Positive:  keycode.DecodeAction(keycode.KeyCode(fd.Positive)),
				Negative:  keycode.DecodeAction(keycode.KeyCode(fd.Negative)),
			}

		case storage.TagMorseData:
			md, ok := storage.DecodeMorseData(rec.Payload)
			if !ok {
				continue
			}
			for len(morses) <= int(md.Idx) {
				morses = append(morses, morse.Entry{})
			}
			pairs := make([]morse.TapHoldPair, len(md.Taps)/2)
			for i := range pairs {
				pairs[i] = morse.TapHoldPair{
					Tap:  keycode.DecodeAction(keycode.KeyCode(md.Taps[2*i])),
					Hold: keycode.DecodeAction(keycode.KeyCode(md.Taps[2*i+1])),
				}
			}
			morses[md.Idx] = morse.Entry{
				Mode: morse.Mode(md.Mode), Timeout: md.Timeout,
				UnilateralTap: md.UnilateralTap, ChordalHold: md.ChordalHold,
				Actions: pairs,
			}

		case storage.TagMacroBlob:
			s.macroBuf.Load(rec.Payload)

		case storage.TagLayoutOption:
			lo, ok := storage.DecodeLayoutOption(rec.Payload)
			if ok {
				s.layoutOpts = lo.Value
			}
		}
	}

	if combos != nil {
		s.SetComboTable(combos)
	}
	if forks != nil {
		s.SetForkTable(forks)
	}
	if morses != nil {
		s.SetMorseTable(morses)
	}
}
