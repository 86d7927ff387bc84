// Package vial implements the Vial/VIA command-and-response protocol
// spec §4.J describes: a byte-opcode dispatch loop over 32-byte HID
// reports, wiring the live keymap, morse/combo/fork tables, macro
// buffer and storage engine to the host's configurator. Grounded on
// original_source rmk/src/via/protocol.rs's ViaCommand/ViaKeyboardInfo
// opcode tables (the vial sub-namespace's own opcode table was
// filtered from the retrieval pack, so the Vial sub-opcodes below are
// this module's own reading of spec §4.J, built in the same style) and
// on the teacher's `internal/server/api` package for dispatch/error
// shape, adapted from HTTP-style string routing to a single-byte
// opcode space.
package vial

// ProtocolVersion is the Via protocol version this service reports.
const ProtocolVersion uint16 = 0x0009

// FirmwareVersion is this build's reported firmware version.
const FirmwareVersion uint32 = 0x0001

// ReportSize is the fixed Vial HID report length: a one-byte opcode
// followed by a 31-byte big-endian payload, per spec §6.
const ReportSize = 32

// Opcode is a single-byte Via/Vial command identifier.
type Opcode byte

// Via commands, per original_source rmk/src/via/protocol.rs's
// ViaCommand enum (itself a direct mirror of qmk's via.h command set).
const (
	OpGetProtocolVersion             Opcode = 0x01
	OpGetKeyboardValue               Opcode = 0x02
	OpSetKeyboardValue                Opcode = 0x03
	OpDynamicKeymapGetKeyCode        Opcode = 0x04
	OpDynamicKeymapSetKeyCode        Opcode = 0x05
	OpDynamicKeymapReset             Opcode = 0x06
	OpCustomSetValue                 Opcode = 0x07
	OpCustomGetValue                 Opcode = 0x08
	OpCustomSave                     Opcode = 0x09
	OpEepromReset                    Opcode = 0x0A
	OpBootloaderJump                 Opcode = 0x0B
	OpDynamicKeymapMacroGetCount     Opcode = 0x0C
	OpDynamicKeymapMacroGetBufferSize Opcode = 0x0D
	OpDynamicKeymapMacroGetBuffer    Opcode = 0x0E
	OpDynamicKeymapMacroSetBuffer    Opcode = 0x0F
	OpDynamicKeymapMacroReset        Opcode = 0x10
	OpDynamicKeymapGetLayerCount     Opcode = 0x11
	OpDynamicKeymapGetBuffer         Opcode = 0x12
	OpDynamicKeymapSetBuffer         Opcode = 0x13
	OpDynamicKeymapGetEncoder        Opcode = 0x14
	OpDynamicKeymapSetEncoder        Opcode = 0x15
	OpVial                           Opcode = 0xFE
	OpUnhandled                      Opcode = 0xFF
)

// KeyboardValueID selects the GetKeyboardValue/SetKeyboardValue
// sub-field, mirroring original_source's ViaKeyboardInfo enum.
type KeyboardValueID byte

const (
	KVUptime            KeyboardValueID = 0x01
	KVLayoutOptions     KeyboardValueID = 0x02
	KVSwitchMatrixState KeyboardValueID = 0x03
	KVFirmwareVersion   KeyboardValueID = 0x04
	KVDeviceIndication  KeyboardValueID = 0x05
)

// VialOpcode selects the sub-command carried in payload[0] of an
// OpVial report. This module's own reading of spec §4.J's "Vial
// sub-namespace (unlock challenge/response, keymap download,
// combo/tap-dance/fork CRUD)" description.
type VialOpcode byte

const (
	VialGetKeyboardID    VialOpcode = 0x00
	VialGetSize          VialOpcode = 0x01
	VialGetKeymapBuffer  VialOpcode = 0x02
	VialGetUnlockStatus  VialOpcode = 0x03
	VialUnlockStart      VialOpcode = 0x04
	VialUnlockPoll       VialOpcode = 0x05
	VialLock             VialOpcode = 0x06
	VialComboGet         VialOpcode = 0x07
	VialComboSet         VialOpcode = 0x08
	VialTapDanceGet      VialOpcode = 0x09
	VialTapDanceSet      VialOpcode = 0x0A
	VialForkGet          VialOpcode = 0x0B
	VialForkSet          VialOpcode = 0x0C
)
