package vial

import (
	"context"
	"time"
)

// HostLink is the synchronous request/response transport Vial's
// protocol actually runs over: unlike the push-only hidreport.Encoder
// streams internal/transport.Writer serializes, a Vial command is a
// feature-report transaction the host initiates and the device must
// answer in place. No concrete HID/BLE feature-report driver ships in
// this module (spec §1's out-of-scope concrete transport applies here
// too); a caller wires whatever real endpoint exists to this interface
// the same way internal/transport.Endpoint is wired for the push side.
type HostLink interface {
	// ReceiveRequest blocks for the next incoming ReportSize-byte Vial
	// command, or returns ctx.Err() once ctx is cancelled.
	ReceiveRequest(ctx context.Context) ([ReportSize]byte, error)
}

// Serve ranges over link until ctx is cancelled, feeding every
// received report through Handle and writing the reply back via
// reply. Run this in its own goroutine; it returns when ctx is
// cancelled or link reports a non-cancellation error.
func (s *Service) Serve(ctx context.Context, now func() time.Time, link HostLink, reply func([ReportSize]byte) error) error {
	for {
		req, err := link.ReceiveRequest(ctx)
		if err != nil {
			return err
		}
		resp := s.Handle(req, now())
		if reply != nil {
			if err := reply(resp); err != nil {
				return err
			}
		}
	}
}
