package matrix_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/event"
	"github.com/morsekb/firmware-core/internal/debounce"
	"github.com/morsekb/firmware-core/internal/gpio"
	"github.com/morsekb/firmware-core/internal/matrix"
)

type fakeOutput struct{ high bool }

func (f *fakeOutput) SetHigh() error { f.high = true; return nil }
func (f *fakeOutput) SetLow() error  { f.high = false; return nil }

type fakeInput struct{ level bool }

func (f *fakeInput) Read() (bool, error) { return f.level, nil }

func TestScannerEmitsMatrixOrderedEvents(t *testing.T) {
	cfg := matrix.Config{
		Rows:         1,
		Cols:         2,
		ScanInterval: time.Millisecond,
		IdleAfter:    time.Hour,
	}
	in0 := &fakeInput{level: true}
	in1 := &fakeInput{level: true}

	outputPins := []gpio.OutputPin{&fakeOutput{}, &fakeOutput{}}
	inputPins := []gpio.InputPin{in0, in1}

	d := debounce.NewRapid(1, 2, 0)
	s := matrix.New(cfg, outputPins, inputPins, d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan event.KeyboardEvent, 8)

	go func() {
		_ = s.Run(ctx, events)
	}()

	select {
	case ev := <-events:
		assert.Equal(t, 0, ev.Pos.Col)
		assert.True(t, ev.Pressed)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first event")
	}
	select {
	case ev := <-events:
		assert.Equal(t, 1, ev.Pos.Col)
		assert.True(t, ev.Pressed)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second event")
	}
}

func TestScannerPinErrorIsNonFatal(t *testing.T) {
	cfg := matrix.Config{
		Rows:         1,
		Cols:         1,
		ScanInterval: time.Millisecond,
	}
	outputPins := []gpio.OutputPin{&fakeOutput{}}
	inputPins := []gpio.InputPin{&erroringInput{}}

	var gotErr error
	d := debounce.NewRapid(1, 1, 0)
	s := matrix.New(cfg, outputPins, inputPins, d, func(row, col int, err error) {
		gotErr = err
	})

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan event.KeyboardEvent, 8)
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx, events)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	assert.Error(t, gotErr)
}

type erroringInput struct{}

func (e *erroringInput) Read() (bool, error) { return false, assertErr }

var assertErr = &gpio.Error{Pin: "test", Err: errTest{}}

type errTest struct{}

func (errTest) Error() string { return "boom" }
