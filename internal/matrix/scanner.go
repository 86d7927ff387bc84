// Package matrix implements the switch-matrix scan loop: driving
// outputs, sampling inputs, debouncing, and emitting timestamped
// KeyboardEvents in matrix order. Grounded on the teacher's
// goroutine-owns-hardware-state pattern (device/keyboard.Keyboard,
// device/mouse.Mouse: a single goroutine mutates hardware-backed
// state, publishing immutable snapshots outward) — here the scanner
// goroutine is the sole owner of pin state and the sole writer to the
// debouncer; it never needs a mutex because nothing else touches
// either.
package matrix

import (
	"context"
	"time"

	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/internal/debounce"
	"github.com/morsekb/firmware-core/internal/gpio"
)

// Config describes the physical matrix layout and scan timing.
type Config struct {
	Rows int
	Cols int
	// Row2Col selects which side is driven (true: rows drive, cols
	// sample) vs the default (cols drive, rows sample).
	Row2Col bool
	// DirectPin wires one pin directly to one key (no matrix diodes);
	// when set, only row 0 is used: inputs[col] is the key at (0, col)
	// for each of the Cols inputs, no output is driven, and inputs are
	// sampled directly every scan pass.
	DirectPin bool
	// ScanInterval is the time between successive full scan passes.
	ScanInterval time.Duration
	// SettleTime is how long to wait after asserting an output before
	// sampling inputs.
	SettleTime time.Duration
	// IdleAfter is how long with no key held before the scanner backs
	// off to IdlePollInterval between passes.
	IdleAfter time.Duration
	// IdlePollInterval is the scan interval used once idle.
	IdlePollInterval time.Duration
}

// Scanner drives a switch matrix and emits debounced KeyboardEvents.
type Scanner struct {
	cfg        Config
	outputs    []gpio.OutputPin
	inputs     []gpio.InputPin
	debouncer  debounce.Debouncer
	stable     [][]bool
	lastActive time.Time
	onError    func(row, col int, err error)
}

// New returns a Scanner. outputs/inputs are sized per Config.Row2Col:
// when Row2Col is false, outputs has Cols entries and inputs has Rows
// entries (columns drive, rows sample); when true, it's the reverse.
// onError, if non-nil, is invoked for every non-fatal pin error (spec
// §4.B: "Pin errors are logged but never fatal").
func New(cfg Config, outputs []gpio.OutputPin, inputs []gpio.InputPin, d debounce.Debouncer, onError func(row, col int, err error)) *Scanner {
	stable := make([][]bool, cfg.Rows)
	for r := range stable {
		stable[r] = make([]bool, cfg.Cols)
	}
	return &Scanner{cfg: cfg, outputs: outputs, inputs: inputs, debouncer: d, stable: stable, onError: onError}
}

// Run drives the scan loop until ctx is cancelled, sending emitted
// events to out. Run blocks; callers should run it in its own
// goroutine.
func (s *Scanner) Run(ctx context.Context, out chan<- event.KeyboardEvent) error {
	interval := s.cfg.ScanInterval
	s.lastActive = time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := time.Now()
		anyHeld := s.pass(now, out, ctx)

		if anyHeld {
			s.lastActive = now
			interval = s.cfg.ScanInterval
		} else if s.cfg.IdleAfter > 0 && now.Sub(s.lastActive) >= s.cfg.IdleAfter {
			interval = s.cfg.IdlePollInterval
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// pass runs a single full scan pass, returning true if any key is
// currently held.
func (s *Scanner) pass(now time.Time, out chan<- event.KeyboardEvent, ctx context.Context) bool {
	anyHeld := false

	if s.cfg.DirectPin {
		for col := 0; col < s.cfg.Cols; col++ {
			raw, err := s.inputs[col].Read()
			if err != nil {
				s.reportError(0, col, err)
				raw = false
			}
			if s.emitIfChanged(0, col, raw, now, out, ctx) {
				anyHeld = anyHeld || raw
			}
		}
		return anyHeld
	}

	numOutputs, numInputs := s.cfg.Cols, s.cfg.Rows
	if s.cfg.Row2Col {
		numOutputs, numInputs = s.cfg.Rows, s.cfg.Cols
	}

	for o := 0; o < numOutputs; o++ {
		if err := s.outputs[o].SetHigh(); err != nil {
			s.reportError(0, o, err)
			continue
		}
		if s.cfg.SettleTime > 0 {
			time.Sleep(s.cfg.SettleTime)
		}

		for i := 0; i < numInputs; i++ {
			raw, err := s.inputs[i].Read()
			if err != nil {
				s.reportError(i, o, err)
				raw = false
			}

			row, col := i, o
			if s.cfg.Row2Col {
				row, col = o, i
			}
			if s.emitIfChanged(row, col, raw, now, out, ctx) {
				anyHeld = anyHeld || raw
			}
		}

		if err := s.outputs[o].SetLow(); err != nil {
			s.reportError(0, o, err)
		}
	}

	return anyHeld
}

// emitIfChanged debounces a single (row,col) sample and, if the
// debouncer reports a stable change, updates recorded state and
// emits a KeyboardEvent. Returns true if the resulting stable state
// is "held" (independent of whether an event fired this call), so the
// caller can track idle/active transitions.
func (s *Scanner) emitIfChanged(row, col int, raw bool, now time.Time, out chan<- event.KeyboardEvent, ctx context.Context) bool {
	current := s.stable[row][col]
	state := s.debouncer.Detect(row, col, raw, current, now)
	if state != debounce.Debounced {
		return current
	}

	s.stable[row][col] = raw
	ev := event.KeyboardEvent{Pos: event.Key(row, col), Pressed: raw, Stamp: now}
	select {
	case out <- ev:
	case <-ctx.Done():
	}
	return raw
}

func (s *Scanner) reportError(row, col int, err error) {
	if s.onError != nil {
		s.onError(row, col, err)
	}
}
