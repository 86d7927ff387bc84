package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	bepdebounce "github.com/bep/debounce"

	"github.com/morsekb/firmware-core/combo"
	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/eventbus"
	"github.com/morsekb/firmware-core/fork"
	"github.com/morsekb/firmware-core/hidreport"
	"github.com/morsekb/firmware-core/internal/debounce"
	"github.com/morsekb/firmware-core/internal/gpio"
	"github.com/morsekb/firmware-core/internal/gpio/sysfs"
	"github.com/morsekb/firmware-core/internal/log"
	"github.com/morsekb/firmware-core/internal/matrix"
	"github.com/morsekb/firmware-core/internal/transport"
	"github.com/morsekb/firmware-core/keyboardcore"
	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/keymap"
	"github.com/morsekb/firmware-core/macro"
	"github.com/morsekb/firmware-core/morse"
	"github.com/morsekb/firmware-core/storage"
	"github.com/morsekb/firmware-core/vial"
)

// MatrixConfig mirrors the teacher's usb.ServerConfig/api.ServerConfig
// shape: a flat, kong-tagged struct embedded into Run, one field per
// flag/env/config-file key.
type MatrixConfig struct {
	Rows             int           `help:"Matrix row count" default:"4" env:"KBCORE_ROWS"`
	Cols             int           `help:"Matrix column count" default:"12" env:"KBCORE_COLS"`
	Row2Col          bool          `help:"Rows drive, columns sample (default: columns drive, rows sample)" default:"false" env:"KBCORE_ROW2COL"`
	DirectPin        bool          `help:"Inputs wired directly to keys, no diode matrix" default:"false" env:"KBCORE_DIRECT_PIN"`
	ScanInterval     time.Duration `help:"Time between active scan passes" default:"1ms" env:"KBCORE_SCAN_INTERVAL"`
	SettleTime       time.Duration `help:"Settle delay after driving an output before sampling" default:"30us" env:"KBCORE_SETTLE_TIME"`
	IdleAfter        time.Duration `help:"No-key-held duration before backing off to the idle poll interval" default:"1s" env:"KBCORE_IDLE_AFTER"`
	IdlePollInterval time.Duration `help:"Scan interval once idle" default:"20ms" env:"KBCORE_IDLE_POLL_INTERVAL"`
	RowLines         []int         `help:"sysfs GPIO line numbers for row pins, in row order" env:"KBCORE_ROW_LINES"`
	ColLines         []int         `help:"sysfs GPIO line numbers for column pins, in column order" env:"KBCORE_COL_LINES"`
	DebounceStrategy string        `help:"Debounce strategy: defer or rapid" enum:"defer,rapid" default:"defer" env:"KBCORE_DEBOUNCE_STRATEGY"`
	DebounceWindow   time.Duration `help:"Debounce settle/cooldown window" default:"5ms" env:"KBCORE_DEBOUNCE_WINDOW"`
}

// StorageConfig selects the flash image Run's storage.Engine persists
// keymap/combo/fork/macro records into.
type StorageConfig struct {
	SectorSize int `help:"Flash sector size in bytes" default:"4096" env:"KBCORE_FLASH_SECTOR_SIZE"`
	NumSectors int `help:"Flash sector count (minimum 2)" default:"4" env:"KBCORE_FLASH_NUM_SECTORS"`
}

// Run boots the keyboard core: matrix scanner, debounce, morse/combo/
// fork engines, storage-backed keymap, and the Vial command service,
// wired together over eventbus channels exactly as spec §5 describes
// a single executor goroutine owning each piece of shared state.
// Adapted from teacher internal/cmd.Server, replacing the USB-IP/API
// server wiring with this domain's component graph.
type Run struct {
	Matrix  MatrixConfig  `embed:"" prefix:"matrix."`
	Storage StorageConfig `embed:"" prefix:"storage."`

	Layers          int    `help:"Number of keymap layers" default:"4" env:"KBCORE_LAYERS"`
	Encoders        int    `help:"Number of rotary encoders" default:"0" env:"KBCORE_ENCODERS"`
	DefaultLayer    uint8  `help:"Default active layer index" default:"0" env:"KBCORE_DEFAULT_LAYER"`
	KeyboardID      string `help:"8-character Vial keyboard identifier" default:"kbcore01" env:"KBCORE_KEYBOARD_ID"`
	UnlockKeys      string `help:"Semicolon-separated row,col pairs forming the Vial unlock combination" env:"KBCORE_UNLOCK_KEYS"`
	UnlockSecret    string `help:"Secret keying the Vial unlock digest" default:"change-me" env:"KBCORE_UNLOCK_SECRET"`
	KeymapSyncDelay time.Duration `help:"How long to coalesce rapid keymap edits before writing to flash" default:"50ms" env:"KBCORE_KEYMAP_SYNC_DELAY"`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Start(ctx, logger, rawLogger)
}

// Start wires every component and blocks until ctx is cancelled.
func (r *Run) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	logger.Info("starting kbcore", "rows", r.Matrix.Rows, "cols", r.Matrix.Cols, "layers", r.Layers)

	flash := storage.NewFakeFlash(r.Storage.SectorSize, r.Storage.NumSectors)
	store, err := storage.Open(flash)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	var kid vial.KeyboardID
	copy(kid[:], r.KeyboardID)

	unlockKeys, err := parsePositions(r.UnlockKeys)
	if err != nil {
		return fmt.Errorf("parse unlock keys: %w", err)
	}

	held := newHeldSet()

	syncOnce := bepdebounce.New(r.KeymapSyncDelay)
	var pendingMu sync.Mutex
	pending := make(map[[3]int]storage.KeymapKey)
	km := keymap.New(r.Layers, r.Matrix.Rows, r.Matrix.Cols, r.Encoders, r.DefaultLayer,
		func(layer uint8, row, col int, ka keycode.KeyAction) {
			rec := storage.KeymapKey{Row: uint8(row), Col: uint8(col), Layer: layer, Action: uint16(keycode.EncodeKeyAction(ka))}
			pendingMu.Lock()
			pending[[3]int{int(layer), row, col}] = rec
			pendingMu.Unlock()
			syncOnce(func() {
				pendingMu.Lock()
				batch := pending
				pending = make(map[[3]int]storage.KeymapKey)
				pendingMu.Unlock()
				for _, rec := range batch {
					if err := store.WriteKeymapKey(rec); err != nil {
						logger.Error("keymap storage write failed", "error", err)
					}
				}
			})
		})

	morseEngine := morse.New(nil, nil)
	comboEngine := combo.New(nil, 200*time.Millisecond)
	macroBuf := macro.NewBuffer(1024)

	core := keyboardcore.New(km, morseEngine, comboEngine, fork.Table{}, keyboardcore.WithMacroPlayer(macroBuf))

	unlock := vial.NewUnlockState(unlockKeys, []byte(r.UnlockSecret))
	vialSvc := vial.New(core, store, macroBuf, unlock, held, nil, kid, time.Now(), logger)
	vialSvc.Bootstrap()

	keyboardEndpoint := transport.NewLoggingEndpoint(rawLogger)
	keyboardWriter := transport.NewWriter(keyboardEndpoint)
	mouseEndpoint := transport.NewLoggingEndpoint(rawLogger)
	mouseWriter := transport.NewWriter(mouseEndpoint)

	outputs, inputs, err := r.openPins()
	if err != nil {
		return fmt.Errorf("open matrix pins: %w", err)
	}

	d := r.newDebouncer()
	scanCfg := matrix.Config{
		Rows: r.Matrix.Rows, Cols: r.Matrix.Cols,
		Row2Col: r.Matrix.Row2Col, DirectPin: r.Matrix.DirectPin,
		ScanInterval: r.Matrix.ScanInterval, SettleTime: r.Matrix.SettleTime,
		IdleAfter: r.Matrix.IdleAfter, IdlePollInterval: r.Matrix.IdlePollInterval,
	}
	scanner := matrix.New(scanCfg, outputs, inputs, d, func(row, col int, err error) {
		logger.Warn("matrix pin error", "row", row, "col", col, "error", err)
	})

	scanEvents := make(chan event.KeyboardEvent, 32)
	controllerBus := eventbus.NewPubSub[event.KeyboardEvent](8, 4, eventbus.Immediate)

	var g sync.WaitGroup
	g.Add(1)
	go func() {
		defer g.Done()
		if err := scanner.Run(ctx, scanEvents); err != nil && ctx.Err() == nil {
			logger.Error("matrix scanner stopped", "error", err)
		}
	}()

	g.Add(1)
	go func() {
		defer g.Done()
		r.consume(ctx, logger, core, held, controllerBus, scanEvents, keyboardWriter, mouseWriter)
	}()

	// vialSvc has no HostLink wired in this configuration: no concrete
	// feature-report transport ships with this module (spec §1), so
	// the command loop stays idle until a real driver calls
	// vialSvc.Serve. It is still fully booted and reachable for
	// whatever calls vialSvc.Handle directly (e.g. a future driver, or
	// tests).
	logger.Info("vial service ready", "keyboard_id", r.KeyboardID)
	_ = vialSvc

	<-ctx.Done()
	g.Wait()
	return nil
}

// consume is the single executor goroutine: it owns core, held and
// every HID writer, draining scanEvents and periodic ticks in one
// select loop per spec §5's "no lock needed provided all mutators run
// on the single executor" rule.
func (r *Run) consume(
	ctx context.Context,
	logger *slog.Logger,
	core *keyboardcore.Core,
	held *heldSet,
	controllerBus *eventbus.PubSub[event.KeyboardEvent],
	scanEvents <-chan event.KeyboardEvent,
	keyboardWriter, mouseWriter *transport.Writer,
) {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	publish := func(reports []hidreport.Encoder) {
		for _, rep := range reports {
			w := keyboardWriter
			if _, isMouse := rep.(hidreport.MouseReport); isMouse {
				w = mouseWriter
			}
			if err := w.Write(rep.Encode()); err != nil {
				logger.Warn("hid report dropped", "error", err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			publish(core.Cancel())
			return
		case ev := <-scanEvents:
			held.set(ev.Pos, ev.Pressed)
			_ = controllerBus.TryPublish(ev)
			publish(core.HandleEvent(ev))
		case now := <-ticker.C:
			publish(core.Tick(now))
		}
	}
}

func (r *Run) newDebouncer() debounce.Debouncer {
	if r.Matrix.DebounceStrategy == "rapid" {
		return debounce.NewRapid(r.Matrix.Rows, r.Matrix.Cols, r.Matrix.DebounceWindow)
	}
	return debounce.NewDefer(r.Matrix.Rows, r.Matrix.Cols, r.Matrix.DebounceWindow)
}

func (r *Run) openPins() ([]gpio.OutputPin, []gpio.InputPin, error) {
	outCount, inCount := r.Matrix.Cols, r.Matrix.Rows
	if r.Matrix.Row2Col {
		outCount, inCount = r.Matrix.Rows, r.Matrix.Cols
	}
	if r.Matrix.DirectPin {
		outCount = 0
		inCount = len(r.Matrix.RowLines)
	}

	outputs := make([]gpio.OutputPin, 0, outCount)
	for i := 0; i < outCount && i < len(r.Matrix.ColLines); i++ {
		p, err := sysfs.Open(fmt.Sprintf("out%d", i), r.Matrix.ColLines[i])
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, p)
	}

	inputs := make([]gpio.InputPin, 0, inCount)
	for i := 0; i < inCount && i < len(r.Matrix.RowLines); i++ {
		p, err := sysfs.Open(fmt.Sprintf("in%d", i), r.Matrix.RowLines[i])
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, p)
	}
	return outputs, inputs, nil
}

// heldSet is the mutex-guarded "currently pressed" snapshot the Vial
// unlock flow's HeldChecker reads from a different goroutine than the
// one that mutates it, the same shape as the teacher's
// `stateMu sync.Mutex`-guarded device state.
type heldSet struct {
	mu   sync.Mutex
	held map[event.Pos]bool
}

func newHeldSet() *heldSet { return &heldSet{held: make(map[event.Pos]bool)} }

func (h *heldSet) set(pos event.Pos, pressed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if pressed {
		h.held[pos] = true
	} else {
		delete(h.held, pos)
	}
}

func (h *heldSet) IsHeld(pos event.Pos) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.held[pos]
}

// parsePositions parses "row,col;row,col;..." into matrix positions.
func parsePositions(s string) ([]event.Pos, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []event.Pos
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid position %q", pair)
		}
		row, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid row in %q: %w", pair, err)
		}
		col, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid col in %q: %w", pair, err)
		}
		out = append(out, event.Key(row, col))
	}
	return out, nil
}
