package transport

import "github.com/morsekb/firmware-core/internal/log"

// LoggingEndpoint traces every outgoing report through a RawLogger
// instead of writing it to hardware. It is the Endpoint cmd/kbcore
// wires in until a concrete HID/BLE driver exists — this module's
// §1 non-goal — keeping `kbcore run` fully executable on a host for
// bring-up and scenario testing (SPEC_FULL's "simulation/host-runnable
// rendering" framing) rather than requiring real silicon to boot at
// all.
type LoggingEndpoint struct {
	raw log.RawLogger
}

// NewLoggingEndpoint returns a LoggingEndpoint tracing through raw.
func NewLoggingEndpoint(raw log.RawLogger) *LoggingEndpoint {
	return &LoggingEndpoint{raw: raw}
}

// Write implements Endpoint by tracing report as a device->host line.
func (e *LoggingEndpoint) Write(report []byte) error {
	e.raw.Log(false, report)
	return nil
}
