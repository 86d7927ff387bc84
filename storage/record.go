package storage

import "encoding/binary"

// Tag identifies a record's keyed-value class per spec §4.K.
type Tag uint8

const (
	TagKeymapKey Tag = iota + 1
	TagEncoderConfig
	TagComboData
	TagForkData
	TagMacroBlob
	TagBondInfo
	TagLayoutOption
	TagMorseData
)

// Record is one decoded entry from the log: a tag, the key bytes that
// identify its (tag, index-tuple) identity for newest-wins replay, and
// its payload. Every typed record below encodes its identity fields as
// the leading bytes of its own payload, so a record replayed from raw
// flash bytes (no side channel) can still recover its key.
type Record struct {
	Tag     Tag
	Key     string
	Payload []byte
}

// KeymapKey identifies keymap[layer][row][col] and carries its
// action's 16-bit wire encoding.
type KeymapKey struct {
	Row, Col, Layer uint8
	Action          uint16
}

func (k KeymapKey) key() string { return string([]byte{byte(TagKeymapKey), k.Layer, k.Row, k.Col}) }

func (k KeymapKey) encode() []byte {
	buf := make([]byte, 5)
	buf[0], buf[1], buf[2] = k.Row, k.Col, k.Layer
	binary.BigEndian.PutUint16(buf[3:], k.Action)
	return buf
}

func decodeKeymapKey(payload []byte) (KeymapKey, bool) {
	if len(payload) != 5 {
		return KeymapKey{}, false
	}
	return KeymapKey{
		Row: payload[0], Col: payload[1], Layer: payload[2],
		Action: binary.BigEndian.Uint16(payload[3:]),
	}, true
}

// DecodeKeymapKey decodes a TagKeymapKey record's raw payload, for
// callers replaying persisted keymap cells at boot.
func DecodeKeymapKey(payload []byte) (KeymapKey, bool) { return decodeKeymapKey(payload) }

// EncoderConfig identifies a per-layer rotary encoder binding.
type EncoderConfig struct {
	Idx, Layer                  uint8
	Clockwise, CounterClockwise uint16
	Press                       uint16
}

func (e EncoderConfig) key() string { return string([]byte{byte(TagEncoderConfig), e.Layer, e.Idx}) }

func (e EncoderConfig) encode() []byte {
	buf := make([]byte, 8)
	buf[0], buf[1] = e.Layer, e.Idx
	binary.BigEndian.PutUint16(buf[2:], e.Clockwise)
	binary.BigEndian.PutUint16(buf[4:], e.CounterClockwise)
	binary.BigEndian.PutUint16(buf[6:], e.Press)
	return buf
}

func decodeEncoderConfig(payload []byte) (EncoderConfig, bool) {
	if len(payload) != 8 {
		return EncoderConfig{}, false
	}
	return EncoderConfig{
		Layer: payload[0], Idx: payload[1],
		Clockwise:        binary.BigEndian.Uint16(payload[2:]),
		CounterClockwise: binary.BigEndian.Uint16(payload[4:]),
		Press:            binary.BigEndian.Uint16(payload[6:]),
	}, true
}

// ComboData is a stored combo table entry: member positions packed as
// (row<<8|col) pairs, plus the combo's output action.
type ComboData struct {
	Idx     uint16
	Members []uint16 // packed row<<8|col
	Output  uint16
}

func (c ComboData) key() string { return string([]byte{byte(TagComboData), byte(c.Idx >> 8), byte(c.Idx)}) }

func (c ComboData) encode() []byte {
	buf := make([]byte, 4+2*len(c.Members))
	binary.BigEndian.PutUint16(buf[0:], c.Idx)
	for i, m := range c.Members {
		binary.BigEndian.PutUint16(buf[2+2*i:], m)
	}
	binary.BigEndian.PutUint16(buf[2+2*len(c.Members):], c.Output)
	return buf
}

// DecodeComboData decodes a TagComboData record's raw payload, for
// callers replaying the persisted combo table at boot.
func DecodeComboData(payload []byte) (ComboData, bool) { return decodeComboData(payload) }

func decodeComboData(payload []byte) (ComboData, bool) {
	if len(payload) < 4 || len(payload)%2 != 0 {
		return ComboData{}, false
	}
	idx := binary.BigEndian.Uint16(payload[0:])
	n := len(payload)/2 - 2
	members := make([]uint16, n)
	for i := 0; i < n; i++ {
		members[i] = binary.BigEndian.Uint16(payload[2+2*i:])
	}
	return ComboData{Idx: idx, Members: members, Output: binary.BigEndian.Uint16(payload[2+2*n:])}, true
}

// ForkData is a stored fork table entry.
type ForkData struct {
	Idx                         uint16
	Trigger, Positive, Negative uint16
	MatchMods                  uint8
	MatchLeds                  uint8
}

func (f ForkData) key() string { return string([]byte{byte(TagForkData), byte(f.Idx >> 8), byte(f.Idx)}) }

func (f ForkData) encode() []byte {
	buf := make([]byte, 10)
	binary.BigEndian.PutUint16(buf[0:], f.Idx)
	binary.BigEndian.PutUint16(buf[2:], f.Trigger)
	binary.BigEndian.PutUint16(buf[4:], f.Positive)
	binary.BigEndian.PutUint16(buf[6:], f.Negative)
	buf[8] = f.MatchMods
	buf[9] = f.MatchLeds
	return buf
}

// DecodeForkData decodes a TagForkData record's raw payload, for
// callers replaying the persisted fork table at boot.
func DecodeForkData(payload []byte) (ForkData, bool) { return decodeForkData(payload) }

func decodeForkData(payload []byte) (ForkData, bool) {
	if len(payload) != 10 {
		return ForkData{}, false
	}
	return ForkData{
		Idx:       binary.BigEndian.Uint16(payload[0:]),
		Trigger:   binary.BigEndian.Uint16(payload[2:]),
		Positive:  binary.BigEndian.Uint16(payload[4:]),
		Negative:  binary.BigEndian.Uint16(payload[6:]),
		MatchMods: payload[8],
		MatchLeds: payload[9],
	}, true
}

// MacroBlob is the raw macro-bytecode buffer, capped by the build's
// MACRO_SPACE_SIZE. There is exactly one live instance, so its key
// carries no index.
type MacroBlob struct {
	Bytes []byte
}

func (MacroBlob) key() string      { return string([]byte{byte(TagMacroBlob)}) }
func (m MacroBlob) encode() []byte { return append([]byte(nil), m.Bytes...) }

func decodeMacroBlob(payload []byte) (MacroBlob, bool) {
	return MacroBlob{Bytes: append([]byte(nil), payload...)}, true
}

// BondInfo is a stored BLE bond record.
type BondInfo struct {
	Slot    uint8
	Address [6]byte
	LTK     [16]byte
}

func (b BondInfo) key() string { return string([]byte{byte(TagBondInfo), b.Slot}) }

func (b BondInfo) encode() []byte {
	buf := make([]byte, 23)
	buf[0] = b.Slot
	copy(buf[1:7], b.Address[:])
	copy(buf[7:23], b.LTK[:])
	return buf
}

func decodeBondInfo(payload []byte) (BondInfo, bool) {
	if len(payload) != 23 {
		return BondInfo{}, false
	}
	var b BondInfo
	b.Slot = payload[0]
	copy(b.Address[:], payload[1:7])
	copy(b.LTK[:], payload[7:23])
	return b, true
}

// LayoutOption is the stored QMK-style layout-options bitfield. There
// is exactly one live instance.
type LayoutOption struct {
	Value uint32
}

func (LayoutOption) key() string { return string([]byte{byte(TagLayoutOption)}) }

func (l LayoutOption) encode() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, l.Value)
	return buf
}

// DecodeLayoutOption decodes a TagLayoutOption record's raw payload,
// for callers restoring the cached layout-options value at boot.
func DecodeLayoutOption(payload []byte) (LayoutOption, bool) { return decodeLayoutOption(payload) }

func decodeLayoutOption(payload []byte) (LayoutOption, bool) {
	if len(payload) != 4 {
		return LayoutOption{}, false
	}
	return LayoutOption{Value: binary.BigEndian.Uint32(payload)}, true
}

// MorseData is a stored tap-hold/tap-dance table entry: spec §4.E's
// per-key mode/timeout/unilateral-tap/chordal-hold settings plus its
// variable-length tap/hold action pairs.
type MorseData struct {
	Idx                       uint16
	Mode                      uint8
	Timeout                   uint32
	UnilateralTap, ChordalHold bool
	Taps                      []uint16 // packed tap<<16|hold... stored as two uint16 per pair
}

func (m MorseData) key() string { return string([]byte{byte(TagMorseData), byte(m.Idx >> 8), byte(m.Idx)}) }

func (m MorseData) encode() []byte {
	buf := make([]byte, 10+2*len(m.Taps))
	binary.BigEndian.PutUint16(buf[0:], m.Idx)
	buf[2] = m.Mode
	binary.BigEndian.PutUint32(buf[3:], m.Timeout)
	if m.UnilateralTap {
		buf[7] = 1
	}
	if m.ChordalHold {
		buf[8] = 1
	}
	buf[9] = byte(len(m.Taps))
	for i, t := range m.Taps {
		binary.BigEndian.PutUint16(buf[10+2*i:], t)
	}
	return buf
}

// DecodeMorseData decodes a TagMorseData record's raw payload, for
// callers replaying the persisted morse table at boot.
func DecodeMorseData(payload []byte) (MorseData, bool) { return decodeMorseData(payload) }

func decodeMorseData(payload []byte) (MorseData, bool) {
	if len(payload) < 10 {
		return MorseData{}, false
	}
	n := int(payload[9])
	if len(payload) != 10+2*n {
		return MorseData{}, false
	}
	taps := make([]uint16, n)
	for i := 0; i < n; i++ {
		taps[i] = binary.BigEndian.Uint16(payload[10+2*i:])
	}
	return MorseData{
		Idx:           binary.BigEndian.Uint16(payload[0:]),
		Mode:          payload[2],
		Timeout:       binary.BigEndian.Uint32(payload[3:]),
		UnilateralTap: payload[7] != 0,
		ChordalHold:   payload[8] != 0,
		Taps:          taps,
	}, true
}

// decodeKey recovers a record's replay-dedup key from its raw tag and
// payload bytes alone — every typed decode*/key() pair above embeds
// its identity fields as the payload's leading bytes for exactly this
// purpose.
func decodeKey(tag Tag, payload []byte) (string, bool) {
	switch tag {
	case TagKeymapKey:
		v, ok := decodeKeymapKey(payload)
		return v.key(), ok
	case TagEncoderConfig:
		v, ok := decodeEncoderConfig(payload)
		return v.key(), ok
	case TagComboData:
		v, ok := decodeComboData(payload)
		return v.key(), ok
	case TagForkData:
		v, ok := decodeForkData(payload)
		return v.key(), ok
	case TagMacroBlob:
		v, ok := decodeMacroBlob(payload)
		return v.key(), ok
	case TagBondInfo:
		v, ok := decodeBondInfo(payload)
		return v.key(), ok
	case TagLayoutOption:
		v, ok := decodeLayoutOption(payload)
		return v.key(), ok
	case TagMorseData:
		v, ok := decodeMorseData(payload)
		return v.key(), ok
	}
	return "", false
}
