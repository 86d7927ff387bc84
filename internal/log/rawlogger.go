package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger traces every HID/Vial report at --log.level=trace, in
// place of the teacher's USB-IP packet trace.
type RawLogger interface {
	Log(in bool, data []byte)
}

// rawLogger implements RawLogger with thread-safe log.
type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw creates a new RawLogger. If writer is nil, returns a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log emits a single-line raw report trace with timestamp and hex
// dump. in=true means host->device (a Vial command), in=false means
// device->host (a keyboard/mouse/Vial report write).
func (r *rawLogger) Log(in bool, data []byte) {
	if len(data) == 0 {
		return
	}
	if r.w == nil {
		return
	}

	dir := "dev->host"
	if in {
		dir = "host->dev"
	}

	var hexbuf bytes.Buffer
	const hexdigits = "0123456789abcdef"
	for i, b := range data {
		if i > 0 {
			hexbuf.WriteByte(' ')
		}
		hexbuf.WriteByte(hexdigits[b>>4])
		hexbuf.WriteByte(hexdigits[b&0x0f])
	}

	// data[0] is the Vial opcode on a host->dev report; worth calling
	// out separately since it's the one byte that determines how the
	// rest of the 32-byte report is laid out.
	opcode := ""
	if in && len(data) > 0 {
		opcode = fmt.Sprintf(" opcode=0x%02x", data[0])
	}

	line := fmt.Sprintf("%s %s%s chunk: %d bytes, hex: %s\n",
		time.Now().Format("2006/01/02 15:04:05"),
		dir,
		opcode,
		len(data),
		hexbuf.String())

	r.mu.Lock()
	_, _ = r.w.Write([]byte(line))
	r.mu.Unlock()
}
