package vial

import (
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/morsekb/firmware-core/combo"
	"github.com/morsekb/firmware-core/fork"
	"github.com/morsekb/firmware-core/keyboardcore"
	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/keymap"
	"github.com/morsekb/firmware-core/macro"
	"github.com/morsekb/firmware-core/morse"
	"github.com/morsekb/firmware-core/storage"
)

// Build-time behavior limits spec §6's configuration surface names
// (COMBO_MAX_LENGTH, TAP_DANCE_MAX_TAP, FORK_MAX_NUM); they bound the
// fixed-size wire records the Vial combo/tap-dance/fork CRUD commands
// exchange.
const (
	ComboMaxLength = 4
	ComboMaxNum    = 32
	TapDanceMaxTap = 3
	TapDanceMaxNum = 32
	ForkMaxNum     = 32
)

// KeyboardID is the compile-time 8-byte identifier Vial uses to look
// up this keyboard's xz-compressed JSON definition blob (an immutable
// compile-time constant per spec §6, generated outside this module's
// scope).
type KeyboardID [8]byte

// BootloaderJumper performs the hardware-specific, irreversible jump
// into the bootloader.
type BootloaderJumper interface {
	Jump()
}

// Service is the Vial command loop: it decodes one 32-byte report,
// dispatches it through Router, and returns the 32-byte reply.
// Grounded on spec §4.J's command/response loop and the teacher
// api.Router's Register/Match dispatch shape.
type Service struct {
	core       *keyboardcore.Core
	store      *storage.Engine
	macroBuf   *macro.Buffer
	unlock     *UnlockState
	router     *Router
	held       HeldChecker
	bootloader BootloaderJumper
	keyboardID KeyboardID
	layoutOpts uint32
	bootTime   time.Time
	now        time.Time
	logger     *slog.Logger

	comboTable combo.Table
	forkTable  fork.Table
	morseTable morse.Table
}

// New wires a Service. bootTime anchors the Uptime value-query;
// callers pass it explicitly rather than this package calling
// time.Now(), matching the rest of this codebase's discipline of
// keeping wall-clock reads at the edges.
func New(core *keyboardcore.Core, store *storage.Engine, macroBuf *macro.Buffer, unlock *UnlockState, held HeldChecker, bootloader BootloaderJumper, keyboardID KeyboardID, bootTime time.Time, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		core: core, store: store, macroBuf: macroBuf, unlock: unlock,
		held: held, bootloader: bootloader, keyboardID: keyboardID,
		bootTime: bootTime, logger: logger,
	}
	s.router = NewRouter()
	s.registerRoutes()
	return s
}

// SetComboTable installs the live combo table the VialComboGet/Set
// commands read and edit, and pushes it into the keyboard core's
// combo engine.
func (s *Service) SetComboTable(t combo.Table) {
	s.comboTable = t
	s.core.ComboEngine().SetTable(t)
}

// SetForkTable installs the live fork table the VialForkGet/Set
// commands read and edit, and pushes it into the keyboard core.
func (s *Service) SetForkTable(t fork.Table) {
	s.forkTable = t
	s.core.SetForkTable(t)
}

// SetMorseTable installs the live morse (tap-hold/tap-dance) table the
// VialTapDanceGet/Set commands read and edit, and pushes it into the
// keyboard core's morse engine.
func (s *Service) SetMorseTable(t morse.Table) {
	s.morseTable = t
	s.core.MorseEngine().SetTable(t)
}

func (s *Service) registerRoutes() {
	s.router.Register(OpGetProtocolVersion, s.handleGetProtocolVersion)
	s.router.Register(OpGetKeyboardValue, s.handleGetKeyboardValue)
	s.router.Register(OpSetKeyboardValue, s.handleSetKeyboardValue)
	s.router.Register(OpDynamicKeymapGetKeyCode, s.handleDynamicKeymapGetKeyCode)
	s.router.Register(OpDynamicKeymapSetKeyCode, s.handleDynamicKeymapSetKeyCode)
	s.router.Register(OpDynamicKeymapReset, s.handleDynamicKeymapReset)
	s.router.Register(OpEepromReset, s.handleEepromReset)
	s.router.Register(OpBootloaderJump, s.handleBootloaderJump)
	s.router.Register(OpDynamicKeymapMacroGetCount, s.handleMacroGetCount)
	s.router.Register(OpDynamicKeymapMacroGetBufferSize, s.handleMacroGetBufferSize)
	s.router.Register(OpDynamicKeymapMacroGetBuffer, s.handleMacroGetBuffer)
	s.router.Register(OpDynamicKeymapMacroSetBuffer, s.handleMacroSetBuffer)
	s.router.Register(OpDynamicKeymapMacroReset, s.handleMacroReset)
	s.router.Register(OpDynamicKeymapGetLayerCount, s.handleGetLayerCount)
	s.router.Register(OpDynamicKeymapGetBuffer, s.handleKeymapGetBuffer)
	s.router.Register(OpDynamicKeymapSetBuffer, s.handleKeymapSetBuffer)
	s.router.Register(OpDynamicKeymapGetEncoder, s.handleGetEncoder)
	s.router.Register(OpDynamicKeymapSetEncoder, s.handleSetEncoder)
	s.router.Register(OpVial, s.handleVial)
}

// Handle decodes report, dispatches it, and returns the reply report.
// now anchors every time-sensitive handler (Uptime, unlock polling).
func (s *Service) Handle(report [ReportSize]byte, now time.Time) [ReportSize]byte {
	opcode := Opcode(report[0])
	req := &Request{Opcode: opcode, Payload: report[1:]}
	res := &Response{}
	s.now = now

	handler := s.router.Match(opcode)
	if handler == nil {
		s.logger.Warn("vial: unhandled opcode", "opcode", opcode)
		return s.reply(opcode, nil)
	}

	if err := handler(req, res, s.logger); err != nil {
		ce := WrapError(err)
		s.logger.Error("vial: command failed", "opcode", opcode, "status", ce.Status, "detail", ce.Detail)
		return s.reply(opcode, []byte{byte(ce.Status)})
	}
	return s.reply(opcode, res.Payload)
}

func (s *Service) reply(opcode Opcode, payload []byte) [ReportSize]byte {
	var out [ReportSize]byte
	out[0] = byte(opcode)
	copy(out[1:], payload)
	return out
}

func (s *Service) requireUnlocked() error {
	if !s.unlock.IsUnlocked() {
		return ErrUnauthorized("keyboard is locked")
	}
	return nil
}

func (s *Service) handleGetProtocolVersion(_ *Request, res *Response, _ *slog.Logger) error {
	res.Payload = be16(ProtocolVersion)
	return nil
}

func (s *Service) handleGetKeyboardValue(req *Request, res *Response, _ *slog.Logger) error {
	if len(req.Payload) < 1 {
		return ErrBadRequest("missing value id")
	}
	switch KeyboardValueID(req.Payload[0]) {
	case KVUptime:
		res.Payload = be32(uint32(s.now.Sub(s.bootTime).Milliseconds()))
	case KVLayoutOptions:
		res.Payload = be32(s.layoutOpts)
	case KVFirmwareVersion:
		res.Payload = be32(FirmwareVersion)
	case KVDeviceIndication:
		res.Payload = []byte{0}
	default:
		return ErrUnknownCommand("unsupported keyboard value id")
	}
	return nil
}

func (s *Service) handleSetKeyboardValue(req *Request, _ *Response, _ *slog.Logger) error {
	if len(req.Payload) < 5 {
		return ErrBadRequest("short SetKeyboardValue payload")
	}
	if KeyboardValueID(req.Payload[0]) != KVLayoutOptions {
		return ErrUnknownCommand("unsupported keyboard value id")
	}
	s.layoutOpts = binary.BigEndian.Uint32(req.Payload[1:5])
	if err := s.store.WriteLayoutOption(storage.LayoutOption{Value: s.layoutOpts}); err != nil {
		return ErrInternal(err.Error())
	}
	return nil
}

// keymapCellInRange reports whether layer/row/col address a real cell
// of the live keymap, so handlers taking these straight off the wire
// never index KeyMap's slices with an attacker-controlled out-of-range
// value (spec §7: logical errors are reported, never panic).
func (s *Service) keymapCellInRange(layer uint8, row, col int) bool {
	numLayers, rows, cols := s.core.KeyMap().Dimensions()
	return int(layer) < numLayers && row >= 0 && row < rows && col >= 0 && col < cols
}

// encoderInRange is keymapCellInRange's counterpart for the encoder
// address space.
func (s *Service) encoderInRange(layer uint8, idx int) bool {
	numLayers, _, _ := s.core.KeyMap().Dimensions()
	return int(layer) < numLayers && idx >= 0 && idx < s.core.KeyMap().NumEncoders()
}

func (s *Service) handleDynamicKeymapGetKeyCode(req *Request, res *Response, _ *slog.Logger) error {
	if len(req.Payload) < 3 {
		return ErrBadRequest("short get-keycode payload")
	}
	layer, row, col := req.Payload[0], int(req.Payload[1]), int(req.Payload[2])
	if !s.keymapCellInRange(layer, row, col) {
		return ErrNotFound("keymap cell out of range")
	}
	ka := s.core.KeyMap().ActionAt(layer, row, col)
	res.Payload = be16(uint16(keycode.EncodeKeyAction(ka)))
	return nil
}

func (s *Service) handleDynamicKeymapSetKeyCode(req *Request, _ *Response, _ *slog.Logger) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if len(req.Payload) < 5 {
		return ErrBadRequest("short set-keycode payload")
	}
	layer, row, col := req.Payload[0], int(req.Payload[1]), int(req.Payload[2])
	if !s.keymapCellInRange(layer, row, col) {
		return ErrNotFound("keymap cell out of range")
	}
	raw := binary.BigEndian.Uint16(req.Payload[3:5])
	s.core.KeyMap().SetAction(layer, row, col, keycode.DecodeKeyAction(keycode.KeyCode(raw)))
	return nil
}

func (s *Service) handleDynamicKeymapReset(_ *Request, _ *Response, _ *slog.Logger) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	s.core.KeyMap().Reset()
	return nil
}

func (s *Service) handleEepromReset(_ *Request, _ *Response, _ *slog.Logger) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if err := s.store.Reset(); err != nil {
		return ErrInternal(err.Error())
	}
	s.core.KeyMap().Reset()
	return nil
}

func (s *Service) handleBootloaderJump(_ *Request, _ *Response, _ *slog.Logger) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if s.bootloader != nil {
		s.bootloader.Jump()
	}
	return nil
}

func (s *Service) handleMacroGetCount(_ *Request, res *Response, _ *slog.Logger) error {
	res.Payload = []byte{byte(s.macroBuf.Count())}
	return nil
}

func (s *Service) handleMacroGetBufferSize(_ *Request, res *Response, _ *slog.Logger) error {
	res.Payload = be16(uint16(s.macroBuf.Len()))
	return nil
}

func (s *Service) handleMacroGetBuffer(req *Request, res *Response, _ *slog.Logger) error {
	if len(req.Payload) < 3 {
		return ErrBadRequest("short macro-get payload")
	}
	offset := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	size := int(req.Payload[2])
	if offset+size > s.macroBuf.Len() || size > ReportSize-1 {
		return ErrBadRequest("macro range out of bounds")
	}
	buf := make([]byte, size)
	s.macroBuf.ReadAt(offset, buf)
	res.Payload = buf
	return nil
}

func (s *Service) handleMacroSetBuffer(req *Request, _ *Response, _ *slog.Logger) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if len(req.Payload) < 3 {
		return ErrBadRequest("short macro-set payload")
	}
	offset := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	size := int(req.Payload[2])
	data := req.Payload[3:]
	if len(data) < size || offset+size > s.macroBuf.Len() {
		return ErrBadRequest("macro range out of bounds")
	}
	s.macroBuf.WriteAt(offset, data[:size])
	if err := s.store.WriteMacroBlob(storage.MacroBlob{Bytes: s.macroBuf.Bytes()}); err != nil {
		return ErrInternal(err.Error())
	}
	return nil
}

func (s *Service) handleMacroReset(_ *Request, _ *Response, _ *slog.Logger) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	s.macroBuf.Load(nil)
	if err := s.store.WriteMacroBlob(storage.MacroBlob{Bytes: s.macroBuf.Bytes()}); err != nil {
		return ErrInternal(err.Error())
	}
	return nil
}

func (s *Service) handleGetLayerCount(_ *Request, res *Response, _ *slog.Logger) error {
	numLayers, _, _ := s.core.KeyMap().Dimensions()
	res.Payload = []byte{byte(numLayers)}
	return nil
}

// keymapAddress maps a linear DynamicKeymapGetBuffer/SetBuffer byte
// offset to (layer, row, col), per the wire convention that the whole
// keymap address space is laid out layer-major, then row, then col,
// two bytes per cell.
func (s *Service) keymapAddress(offset int) (layer uint8, row, col int, ok bool) {
	_, rows, cols := s.core.KeyMap().Dimensions()
	cellIdx := offset / 2
	cellsPerLayer := rows * cols
	l := cellIdx / cellsPerLayer
	rem := cellIdx % cellsPerLayer
	numLayers, _, _ := s.core.KeyMap().Dimensions()
	if l >= numLayers {
		return 0, 0, 0, false
	}
	return uint8(l), rem / cols, rem % cols, true
}

func (s *Service) handleKeymapGetBuffer(req *Request, res *Response, _ *slog.Logger) error {
	if len(req.Payload) < 3 {
		return ErrBadRequest("short keymap-get payload")
	}
	offset := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	size := int(req.Payload[2])
	if size > ReportSize-1 || offset%2 != 0 || size%2 != 0 {
		return ErrBadRequest("keymap range out of bounds")
	}
	out := make([]byte, size)
	for i := 0; i < size; i += 2 {
		layer, row, col, ok := s.keymapAddress(offset + i)
		if !ok {
			return ErrBadRequest("keymap offset out of range")
		}
		ka := s.core.KeyMap().ActionAt(layer, row, col)
		binary.BigEndian.PutUint16(out[i:], uint16(keycode.EncodeKeyAction(ka)))
	}
	res.Payload = out
	return nil
}

func (s *Service) handleKeymapSetBuffer(req *Request, _ *Response, _ *slog.Logger) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if len(req.Payload) < 3 {
		return ErrBadRequest("short keymap-set payload")
	}
	offset := int(binary.BigEndian.Uint16(req.Payload[0:2]))
	size := int(req.Payload[2])
	data := req.Payload[3:]
	if len(data) < size || size%2 != 0 {
		return ErrBadRequest("keymap range out of bounds")
	}
	for i := 0; i < size; i += 2 {
		layer, row, col, ok := s.keymapAddress(offset + i)
		if !ok {
			return ErrBadRequest("keymap offset out of range")
		}
		raw := binary.BigEndian.Uint16(data[i:])
		s.core.KeyMap().SetAction(layer, row, col, keycode.DecodeKeyAction(keycode.KeyCode(raw)))
	}
	return nil
}

func (s *Service) handleGetEncoder(req *Request, res *Response, _ *slog.Logger) error {
	if len(req.Payload) < 2 {
		return ErrBadRequest("short get-encoder payload")
	}
	layer, idx := req.Payload[0], int(req.Payload[1])
	if !s.encoderInRange(layer, idx) {
		return ErrNotFound("encoder index out of range")
	}
	ea := s.core.KeyMap().EncoderActionAt(layer, idx)
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out[0:], uint16(keycode.EncodeKeyAction(ea.Clockwise)))
	binary.BigEndian.PutUint16(out[2:], uint16(keycode.EncodeKeyAction(ea.CounterClockwise)))
	res.Payload = out
	return nil
}

func (s *Service) handleSetEncoder(req *Request, _ *Response, _ *slog.Logger) error {
	if err := s.requireUnlocked(); err != nil {
		return err
	}
	if len(req.Payload) < 6 {
		return ErrBadRequest("short set-encoder payload")
	}
	layer, idx := req.Payload[0], int(req.Payload[1])
	if !s.encoderInRange(layer, idx) {
		return ErrNotFound("encoder index out of range")
	}
	cw := binary.BigEndian.Uint16(req.Payload[2:4])
	ccw := binary.BigEndian.Uint16(req.Payload[4:6])
	s.core.KeyMap().SetEncoderAction(layer, idx, keymap.EncoderAction{
		Clockwise:        keycode.DecodeKeyAction(keycode.KeyCode(cw)),
		CounterClockwise: keycode.DecodeKeyAction(keycode.KeyCode(ccw)),
	})
	return nil
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
