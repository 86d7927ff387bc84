package vial

import (
	"encoding/binary"
	"log/slog"

	"github.com/morsekb/firmware-core/combo"
	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/fork"
	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/morse"
	"github.com/morsekb/firmware-core/storage"
)

// handleVial dispatches the OpVial sub-namespace: payload[0] selects
// a VialOpcode, the rest is that sub-command's own payload. This
// module's own opcode table (see protocol.go's VialOpcode block),
// since the upstream vial.rs sub-command list was filtered from the
// retrieval pack.
func (s *Service) handleVial(req *Request, res *Response, logger *slog.Logger) error {
	if len(req.Payload) < 1 {
		return ErrBadRequest("missing vial sub-opcode")
	}
	sub := VialOpcode(req.Payload[0])
	inner := &Request{Opcode: req.Opcode, Payload: req.Payload[1:]}

	switch sub {
	case VialGetKeyboardID:
		out := make([]byte, 10)
		copy(out[0:8], s.keyboardID[:])
		binary.BigEndian.PutUint16(out[8:], ProtocolVersion)
		res.Payload = out
		return nil
	case VialGetSize:
		// xz-compressed keyboard definition blob generation is a
		// compile-time, out-of-scope concern per spec §6; report an
		// empty definition until one is wired in by the build.
		res.Payload = be32(0)
		return nil
	case VialGetUnlockStatus:
		return s.handleVialGetUnlockStatus(res)
	case VialUnlockStart:
		s.unlock.Start(s.now)
		return nil
	case VialUnlockPoll:
		return s.handleVialUnlockPoll(res)
	case VialLock:
		s.unlock.Lock()
		return nil
	case VialComboGet:
		return s.handleComboGet(inner, res)
	case VialComboSet:
		return s.handleComboSet(inner)
	case VialTapDanceGet:
		return s.handleTapDanceGet(inner, res)
	case VialTapDanceSet:
		return s.handleTapDanceSet(inner)
	case VialForkGet:
		return s.handleForkGet(inner, res)
	case VialForkSet:
		return s.handleForkSet(inner)
	}
	return ErrUnknownCommand("unknown vial sub-opcode")
}

func (s *Service) handleVialGetUnlockStatus(res *Response) error {
	out := make([]byte, 0, 2)
	if s.unlock.IsUnlocked() {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, byte(s.unlock.KeyCount()))
	res.Payload = out
	return nil
}

func (s *Service) handleVialUnlockPoll(res *Response) error {
	counter := s.unlock.Poll(s.now, s.held)
	out := []byte{byte(counter)}
	if counter == 0 {
		digest := s.unlock.Digest([]byte("unlock"))
		out = append(out, digest[:16]...)
	}
	res.Payload = out
	return nil
}

// packPos encodes an event.Pos as row<<8|col for the fixed-size combo
// wire record, matching storage.ComboData's member packing.
func packPos(pos event.Pos) uint16 { return uint16(pos.Row)<<8 | uint16(pos.Col) }

func unpackPos(v uint16) event.Pos { return event.Key(int(v>>8), int(v&0xFF)) }

func (s *Service) handleComboGet(req *Request, res *Response) error {
	if len(req.Payload) < 2 {
		return ErrBadRequest("short combo-get payload")
	}
	idx := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	if idx < 0 || idx >= len(s.comboTable) {
		return ErrNotFound("combo index out of range")
	}
	c := s.comboTable[idx]
	out := make([]byte, 2*ComboMaxLength+2)
	for i := 0; i < ComboMaxLength; i++ {
		if i < len(c.Members) {
			binary.BigEndian.PutUint16(out[2*i:], packPos(c.Members[i]))
		}
	}
	binary.BigEndian.PutUint16(out[2*ComboMaxLength:], uint16(keycode.EncodeAction(c.Output)))
	res.Payload = out
	return nil
}

func (s *Service) handleComboSet(req *Request) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if len(req.Payload) < 2+2*ComboMaxLength+2 {
		return ErrBadRequest("short combo-set payload")
	}
	idx := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	if idx < 0 || idx >= ComboMaxNum {
		return ErrNotFound("combo index out of range")
	}
	body := req.Payload[2:]
	var members []event.Pos
	for i := 0; i < ComboMaxLength; i++ {
		v := binary.BigEndian.Uint16(body[2*i:])
		if v != 0 {
			members = append(members, unpackPos(v))
		}
	}
	output := keycode.DecodeAction(keycode.KeyCode(binary.BigEndian.Uint16(body[2*ComboMaxLength:])))

	for len(s.comboTable) <= idx {
		s.comboTable = append(s.comboTable, combo.Combo{})
	}
	s.comboTable[idx] = combo.Combo{Members: members, Output: output}
	s.core.ComboEngine().SetTable(s.comboTable)

	return s.persistCombo(idx, s.comboTable[idx])
}

func (s *Service) persistCombo(idx int, c combo.Combo) error {
	members := make([]uint16, len(c.Members))
	for i, m := range c.Members {
		members[i] = packPos(m)
	}
	rec := storage.ComboData{Idx: uint16(idx), Members: members, Output: uint16(keycode.EncodeAction(c.Output))}
	if err := s.store.WriteComboData(rec); err != nil {
		return ErrInternal(err.Error())
	}
	return nil
}

func (s *Service) handleTapDanceGet(req *Request, res *Response) error {
	if len(req.Payload) < 2 {
		return ErrBadRequest("short tap-dance-get payload")
	}
	idx := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	entry, ok := s.morseEntry(idx)
	if !ok {
		return ErrNotFound("tap-dance index out of range")
	}
	res.Payload = encodeTapDanceEntry(entry)
	return nil
}

func (s *Service) handleTapDanceSet(req *Request) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if len(req.Payload) < 2+3+2*TapDanceMaxTap*2 {
		return ErrBadRequest("short tap-dance-set payload")
	}
	idx := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	if idx < 0 || idx >= TapDanceMaxNum {
		return ErrNotFound("tap-dance index out of range")
	}
	entry := decodeTapDanceEntry(req.Payload[2:])

	for len(s.morseTable) <= idx {
		s.morseTable = append(s.morseTable, morse.Entry{})
	}
	s.morseTable[idx] = entry
	s.core.MorseEngine().SetTable(s.morseTable)

	return s.persistMorse(idx, entry)
}

func (s *Service) persistMorse(idx int, e morse.Entry) error {
	taps := make([]uint16, 2*len(e.Actions))
	for i, p := range e.Actions {
		taps[2*i] = uint16(keycode.EncodeAction(p.Tap))
		taps[2*i+1] = uint16(keycode.EncodeAction(p.Hold))
	}
	rec := storage.MorseData{
		Idx: uint16(idx), Mode: uint8(e.Mode), Timeout: e.Timeout,
		UnilateralTap: e.UnilateralTap, ChordalHold: e.ChordalHold,
		Taps: taps,
	}
	if err := s.store.WriteMorseData(rec); err != nil {
		return ErrInternal(err.Error())
	}
	return nil
}

func (s *Service) morseEntry(idx int) (morse.Entry, bool) {
	if idx < 0 || idx >= len(s.morseTable) {
		return morse.Entry{}, false
	}
	return s.morseTable[idx], true
}

func encodeTapDanceEntry(e morse.Entry) []byte {
	out := make([]byte, 3+2+2*TapDanceMaxTap*2)
	out[0] = byte(e.Mode)
	if e.UnilateralTap {
		out[1] = 1
	}
	if e.ChordalHold {
		out[2] = 1
	}
	binary.BigEndian.PutUint16(out[3:], uint16(e.Timeout))
	for i := 0; i < TapDanceMaxTap; i++ {
		base := 5 + i*4
		if i < len(e.Actions) {
			binary.BigEndian.PutUint16(out[base:], uint16(keycode.EncodeAction(e.Actions[i].Tap)))
			binary.BigEndian.PutUint16(out[base+2:], uint16(keycode.EncodeAction(e.Actions[i].Hold)))
		}
	}
	return out
}

func decodeTapDanceEntry(payload []byte) morse.Entry {
	e := morse.Entry{
		Mode:          morse.Mode(payload[0]),
		UnilateralTap: payload[1] != 0,
		ChordalHold:   payload[2] != 0,
		Timeout:       uint32(binary.BigEndian.Uint16(payload[3:5])),
	}
	for i := 0; i < TapDanceMaxTap; i++ {
		base := 5 + i*4
		tap := keycode.DecodeAction(keycode.KeyCode(binary.BigEndian.Uint16(payload[base:])))
		hold := keycode.DecodeAction(keycode.KeyCode(binary.BigEndian.Uint16(payload[base+2:])))
		if tap.IsNo() && hold.IsNo() {
			continue
		}
		e.Actions = append(e.Actions, morse.TapHoldPair{Tap: tap, Hold: hold})
	}
	if len(e.Actions) == 0 {
		e.Actions = []morse.TapHoldPair{{}}
	}
	return e
}

func (s *Service) handleForkGet(req *Request, res *Response) error {
	if len(req.Payload) < 2 {
		return ErrBadRequest("short fork-get payload")
	}
	idx := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	if idx < 0 || idx >= len(s.forkTable) {
		return ErrNotFound("fork index out of range")
	}
	res.Payload = encodeForkEntry(s.forkTable[idx])
	return nil
}

func (s *Service) handleForkSet(req *Request) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if len(req.Payload) < 2+8 {
		return ErrBadRequest("short fork-set payload")
	}
	idx := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	if idx < 0 || idx >= ForkMaxNum {
		return ErrNotFound("fork index out of range")
	}
	entry := decodeForkEntry(req.Payload[2:])

	for len(s.forkTable) <= idx {
		s.forkTable = append(s.forkTable, fork.Entry{})
	}
	s.forkTable[idx] = entry
	s.core.SetForkTable(s.forkTable)

	rec := storage.ForkData{
		Idx: uint16(idx), Trigger: uint16(keycode.EncodeAction(entry.Trigger)),
		Positive: uint16(keycode.EncodeAction(entry.Positive)), Negative: uint16(keycode.EncodeAction(entry.Negative)),
		MatchMods: uint8(entry.MatchMods), MatchLeds: uint8(entry.MatchLeds),
	}
	if err := s.store.WriteForkData(rec); err != nil {
		return ErrInternal(err.Error())
	}
	return nil
}

func encodeForkEntry(e fork.Entry) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint16(out[0:], uint16(keycode.EncodeAction(e.Trigger)))
	out[2] = uint8(e.MatchMods)
	out[3] = uint8(e.MatchLeds)
	binary.BigEndian.PutUint16(out[4:], uint16(keycode.EncodeAction(e.Positive)))
	binary.BigEndian.PutUint16(out[6:], uint16(keycode.EncodeAction(e.Negative)))
	return out
}

func decodeForkEntry(payload []byte) fork.Entry {
	return fork.Entry{
		Trigger:   keycode.DecodeAction(keycode.KeyCode(binary.BigEndian.Uint16(payload[0:2]))),
		MatchMods: keycode.ModifierCombination(payload[2]),
		MatchLeds: keycode.LedIndicator(payload[3]),
		Positive:  keycode.DecodeAction(keycode.KeyCode(binary.BigEndian.Uint16(payload[4:6]))),
		Negative:  keycode.DecodeAction(keycode.KeyCode(binary.BigEndian.Uint16(payload[6:8]))),
	}
}
