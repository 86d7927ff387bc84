package hidreport

// VialReportSize is the fixed size of each Vial HID report array, per
// spec §6: the first byte is the opcode, the remaining 31 bytes are
// big-endian payload.
const VialReportSize = 32

// VialReport is one direction (input or output) of the Vial
// command/response channel: a 32-byte array whose first byte is the
// opcode.
type VialReport [VialReportSize]byte

// Encode returns the report bytes unchanged; VialReport is already in
// wire layout.
func (r VialReport) Encode() []byte {
	out := make([]byte, VialReportSize)
	copy(out, r[:])
	return out
}

// Opcode returns the report's first byte.
func (r VialReport) Opcode() byte { return r[0] }

// Payload returns the 31 payload bytes following the opcode.
func (r VialReport) Payload() []byte { return r[1:] }

// NewVialReport builds a VialReport from an opcode and payload,
// truncating or zero-padding the payload to fit.
func NewVialReport(opcode byte, payload []byte) VialReport {
	var r VialReport
	r[0] = opcode
	n := copy(r[1:], payload)
	_ = n
	return r
}
