// Package eventbus provides the typed publish/subscribe fabric spec
// §4.C describes: bounded MPSC channels with a single receiver, and
// bounded pub/sub channels fanned out to multiple subscribers in
// either immediate (drop-oldest-unread) or backpressured delivery
// mode. Every channel is a static, fixed-capacity Go channel —
// wiring is explicit at task-startup, never via reflection or
// metaprogramming, per spec §9's "runtime registry... wiring is
// explicit at startup" design note.
package eventbus

import (
	"context"
	"errors"
)

// ErrBusy is returned by TryPublish when the channel buffer is full.
var ErrBusy = errors.New("eventbus: channel busy")

// MPSC is a bounded many-producer single-consumer channel. Grounded
// on the teacher's `usbErrCh := make(chan error, 1)` +
// `select`-over-channel wiring in cmd/kbcore's predecessor
// (internal/cmd/server.go), generalized into a reusable typed wrapper.
type MPSC[T any] struct {
	ch chan T
}

// NewMPSC returns an MPSC channel with the given buffer capacity.
func NewMPSC[T any](capacity int) *MPSC[T] {
	return &MPSC[T]{ch: make(chan T, capacity)}
}

// TryPublish attempts a non-blocking send. Returns ErrBusy if the
// buffer is full.
func (m *MPSC[T]) TryPublish(v T) error {
	select {
	case m.ch <- v:
		return nil
	default:
		return ErrBusy
	}
}

// PublishAsync sends v, suspending the caller until there is buffer
// capacity or ctx is cancelled.
func (m *MPSC[T]) PublishAsync(ctx context.Context, v T) error {
	select {
	case m.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the channel for the single consumer to range/select
// over. Calling this from more than one goroutine breaks the
// single-receiver invariant the type name promises.
func (m *MPSC[T]) Receive() <-chan T {
	return m.ch
}
