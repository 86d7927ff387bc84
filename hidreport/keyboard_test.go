package hidreport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morsekb/firmware-core/hidreport"
	"github.com/morsekb/firmware-core/keycode"
)

func TestBootKeyboardReportEncode(t *testing.T) {
	r := hidreport.BootKeyboardReport{Modifiers: keycode.ModLeftShift}
	r = r.Set([]keycode.KeyCode{keycode.KcA})
	got := r.Encode()
	want := []byte{byte(keycode.ModLeftShift), 0x00, byte(keycode.KcA), 0, 0, 0, 0, 0}
	assert.Equal(t, want, got)
}

func TestBootKeyboardReportSetTruncates(t *testing.T) {
	r := hidreport.BootKeyboardReport{}
	r = r.Set([]keycode.KeyCode{keycode.KcA, keycode.KcB, keycode.KcC, keycode.KcD, keycode.KcE, keycode.KcF, keycode.KcG})
	assert.Len(t, r.Keys, 6)
	assert.Equal(t, keycode.KcF, r.Keys[5])
}

func TestNkroKeyboardReportRoundTrip(t *testing.T) {
	var r hidreport.NkroKeyboardReport
	r.SetPressed(keycode.KcA, true)
	r.SetPressed(keycode.KcEscape, true)
	assert.True(t, r.IsPressed(keycode.KcA))
	assert.True(t, r.IsPressed(keycode.KcEscape))
	assert.False(t, r.IsPressed(keycode.KcB))

	r.SetPressed(keycode.KcA, false)
	assert.False(t, r.IsPressed(keycode.KcA))

	pressed := r.PressedKeys()
	assert.Equal(t, []keycode.KeyCode{keycode.KcEscape}, pressed)

	encoded := r.Encode()
	assert.Len(t, encoded, 2+hidreport.NkroKeyReportBits)
}
