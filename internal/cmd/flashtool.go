package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/morsekb/firmware-core/storage"
)

// FlashTool inspects or repairs a storage image offline: the same
// FakeFlash-backed Engine the run command and its tests use, loaded
// from (and written back to) a plain file instead of on-chip flash.
// Adapted from teacher internal/cmd.Proxy's shape (a standalone Kong
// command with its own flags, no shared state with Run).
type FlashTool struct {
	Image      string `arg:"" help:"Path to a raw flash image file"`
	SectorSize int    `help:"Flash sector size in bytes; required when creating a new image" default:"4096" env:"KBCORE_FLASH_SECTOR_SIZE"`
	NumSectors int    `help:"Flash sector count; required when creating a new image" default:"4" env:"KBCORE_FLASH_NUM_SECTORS"`
	Create     bool   `help:"Create a fresh, erased image if Image doesn't exist"`
	Reset      bool   `help:"Erase every sector and reinitialize the image"`
}

// Run is called by Kong when the flash-tool command is executed. It
// loads the image, optionally resets it, replays its records and
// prints a summary, then writes any changes back.
func (f *FlashTool) Run(logger *slog.Logger) error {
	flash, err := f.load()
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	store, err := storage.Open(flash)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	if f.Reset {
		if err := store.Reset(); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		logger.Info("image reset", "path", f.Image)
	}

	records := store.Records()
	logger.Info("image inspected", "path", f.Image, "records", len(records))
	for _, rec := range records {
		logger.Info("record", "tag", rec.Tag, "bytes", len(rec.Payload))
	}

	return f.save(flash)
}

func (f *FlashTool) load() (*storage.FakeFlash, error) {
	data, err := os.ReadFile(f.Image)
	if err != nil {
		if os.IsNotExist(err) && f.Create {
			return storage.NewFakeFlash(f.SectorSize, f.NumSectors), nil
		}
		return nil, err
	}
	return storage.LoadFakeFlash(f.SectorSize, data)
}

func (f *FlashTool) save(flash *storage.FakeFlash) error {
	return os.WriteFile(f.Image, flash.Raw(), 0o644)
}
