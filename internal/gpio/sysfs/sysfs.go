// Package sysfs implements gpio.OutputPin/InputPin over Linux's GPIO
// character device, for host-side testing and bring-up on boards that
// expose sysfs/gpiochip access. Grounded on the raw file-descriptor +
// golang.org/x/sys/unix idiom used by the example pack's
// andrieee44-mylib/linux/input package for /dev/input access.
package sysfs

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/morsekb/firmware-core/internal/gpio"
)

// Pin is a single GPIO line opened via /sys/class/gpio/gpioN/value.
type Pin struct {
	name string
	file *os.File
	fd   uintptr
}

var (
	_ gpio.OutputPin = (*Pin)(nil)
	_ gpio.InputPin  = (*Pin)(nil)
)

// Open opens the value file for GPIO line number n, named for
// diagnostics as name.
func Open(name string, n int) (*Pin, error) {
	path := fmt.Sprintf("/sys/class/gpio/gpio%d/value", n)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &gpio.Error{Pin: name, Err: err}
	}
	return &Pin{name: name, file: f, fd: f.Fd()}, nil
}

// Close releases the underlying file descriptor.
func (p *Pin) Close() error { return p.file.Close() }

// SetHigh writes "1" to the value file.
func (p *Pin) SetHigh() error { return p.write('1') }

// SetLow writes "0" to the value file.
func (p *Pin) SetLow() error { return p.write('0') }

func (p *Pin) write(b byte) error {
	if _, err := unix.Pwrite(int(p.fd), []byte{b}, 0); err != nil {
		return &gpio.Error{Pin: p.name, Err: err}
	}
	return nil
}

// Read samples the current level from the value file: '1' is high.
func (p *Pin) Read() (bool, error) {
	buf := make([]byte, 1)
	if _, err := unix.Pread(int(p.fd), buf, 0); err != nil {
		return false, &gpio.Error{Pin: p.name, Err: err}
	}
	return buf[0] == '1', nil
}
