package macro_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morsekb/firmware-core/keycode"
	"github.com/morsekb/firmware-core/macro"
)

func TestPlayDecodesPlainKeycodeSlot(t *testing.T) {
	b := macro.NewBuffer(16)
	b.WriteAt(0, []byte{byte(keycode.KcA), byte(keycode.KcB), 0x00})

	actions := b.Play(0)
	require.Len(t, actions, 2)
	kc0, _ := actions[0].KeyCode()
	kc1, _ := actions[1].KeyCode()
	assert.Equal(t, keycode.KcA, kc0)
	assert.Equal(t, keycode.KcB, kc1)
}

func TestPlaySelectsCorrectSlotByIndex(t *testing.T) {
	b := macro.NewBuffer(16)
	b.WriteAt(0, []byte{byte(keycode.KcA), 0x00, byte(keycode.KcC), 0x00})

	actions := b.Play(1)
	require.Len(t, actions, 1)
	kc, _ := actions[0].KeyCode()
	assert.Equal(t, keycode.KcC, kc)
}

func TestCountReportsUsedSlots(t *testing.T) {
	b := macro.NewBuffer(16)
	b.WriteAt(0, []byte{byte(keycode.KcA), 0x00, byte(keycode.KcB), 0x00})
	assert.Equal(t, 2, b.Count())
}

func TestLoadZeroPadsRemainder(t *testing.T) {
	b := macro.NewBuffer(8)
	b.Load([]byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, b.Bytes())
}

func TestMissingSlotReturnsNil(t *testing.T) {
	b := macro.NewBuffer(8)
	assert.Nil(t, b.Play(5))
}
