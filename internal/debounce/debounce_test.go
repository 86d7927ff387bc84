package debounce_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/internal/debounce"
)

func TestDeferRequiresStableWindow(t *testing.T) {
	d := debounce.NewDefer(1, 1, 5*time.Millisecond)
	base := time.Unix(0, 0)

	assert.Equal(t, debounce.InProgress, d.Detect(0, 0, true, false, base))
	assert.Equal(t, debounce.InProgress, d.Detect(0, 0, true, false, base.Add(3*time.Millisecond)))
	assert.Equal(t, debounce.Debounced, d.Detect(0, 0, true, false, base.Add(6*time.Millisecond)))
}

func TestDeferResetsOnRevert(t *testing.T) {
	d := debounce.NewDefer(1, 1, 5*time.Millisecond)
	base := time.Unix(0, 0)

	assert.Equal(t, debounce.InProgress, d.Detect(0, 0, true, false, base))
	// Level reverts to the original state before the window elapses.
	assert.Equal(t, debounce.Ignored, d.Detect(0, 0, false, false, base.Add(2*time.Millisecond)))
	// A fresh change starts a new window.
	assert.Equal(t, debounce.InProgress, d.Detect(0, 0, true, false, base.Add(3*time.Millisecond)))
}

func TestRapidAcceptsImmediatelyThenIgnores(t *testing.T) {
	d := debounce.NewRapid(1, 1, 5*time.Millisecond)
	base := time.Unix(0, 0)

	assert.Equal(t, debounce.Debounced, d.Detect(0, 0, true, false, base))
	assert.Equal(t, debounce.Ignored, d.Detect(0, 0, false, true, base.Add(1*time.Millisecond)))
	assert.Equal(t, debounce.Ignored, d.Detect(0, 0, false, true, base.Add(4*time.Millisecond)))
	// After the window, a new change is accepted again.
	assert.Equal(t, debounce.Debounced, d.Detect(0, 0, false, true, base.Add(6*time.Millisecond)))
}
