package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morsekb/firmware-core/storage"
)

func TestOpenOnFreshFlashInitializesSectorZero(t *testing.T) {
	flash := storage.NewFakeFlash(256, 2)
	e, err := storage.Open(flash)
	require.NoError(t, err)
	assert.Empty(t, e.Records())
}

func TestWriteAndReopenReplaysRecords(t *testing.T) {
	flash := storage.NewFakeFlash(256, 2)
	e, err := storage.Open(flash)
	require.NoError(t, err)

	require.NoError(t, e.WriteKeymapKey(storage.KeymapKey{Row: 0, Col: 1, Layer: 0, Action: 0x1234}))
	require.NoError(t, e.WriteLayoutOption(storage.LayoutOption{Value: 3}))

	reopened, err := storage.Open(flash)
	require.NoError(t, err)
	assert.Len(t, reopened.Records(), 2)
}

func TestNewerWriteToSameKeyWinsOnReplay(t *testing.T) {
	flash := storage.NewFakeFlash(256, 2)
	e, err := storage.Open(flash)
	require.NoError(t, err)

	require.NoError(t, e.WriteKeymapKey(storage.KeymapKey{Row: 0, Col: 0, Layer: 0, Action: 1}))
	require.NoError(t, e.WriteKeymapKey(storage.KeymapKey{Row: 0, Col: 0, Layer: 0, Action: 2}))

	reopened, err := storage.Open(flash)
	require.NoError(t, err)
	recs := reopened.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, storage.Tag(storage.TagKeymapKey), recs[0].Tag)
}

func TestRepeatedWritesTriggerCompactionAndKeepNewestValue(t *testing.T) {
	// Ten writes to the same (row,col,layer) key consume 10 linear
	// slots in a tiny 64-byte sector, forcing at least one compaction
	// along the way, even though the final compacted set is just one
	// record.
	flash := storage.NewFakeFlash(64, 2)
	e, err := storage.Open(flash)
	require.NoError(t, err)

	for i := uint16(0); i < 10; i++ {
		require.NoError(t, e.WriteKeymapKey(storage.KeymapKey{Row: 0, Col: 0, Layer: 0, Action: i}))
	}

	reopened, err := storage.Open(flash)
	require.NoError(t, err)
	recs := reopened.Records()
	require.Len(t, recs, 1)
}

func TestResetErasesEverything(t *testing.T) {
	flash := storage.NewFakeFlash(256, 2)
	e, err := storage.Open(flash)
	require.NoError(t, err)

	require.NoError(t, e.WriteLayoutOption(storage.LayoutOption{Value: 7}))
	require.NoError(t, e.Reset())
	assert.Empty(t, e.Records())

	reopened, err := storage.Open(flash)
	require.NoError(t, err)
	assert.Empty(t, reopened.Records())
}

func TestRecordLargerThanSectorFails(t *testing.T) {
	flash := storage.NewFakeFlash(16, 2)
	e, err := storage.Open(flash)
	require.NoError(t, err)

	err = e.WriteMacroBlob(storage.MacroBlob{Bytes: make([]byte, 64)})
	assert.ErrorIs(t, err, storage.ErrRecordTooLarge)
}

func TestMorseDataRoundTripsThroughReplay(t *testing.T) {
	flash := storage.NewFakeFlash(256, 2)
	e, err := storage.Open(flash)
	require.NoError(t, err)

	rec := storage.MorseData{
		Idx: 2, Mode: 1, Timeout: 200,
		UnilateralTap: true, ChordalHold: false,
		Taps: []uint16{0x0004, 0x00e0, 0x0005, 0x00e1},
	}
	require.NoError(t, e.WriteMorseData(rec))

	reopened, err := storage.Open(flash)
	require.NoError(t, err)
	recs := reopened.Records()
	require.Len(t, recs, 1)

	got, ok := storage.DecodeMorseData(recs[0].Payload)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestFakeFlashRawRoundTrips(t *testing.T) {
	flash := storage.NewFakeFlash(64, 4)
	e, err := storage.Open(flash)
	require.NoError(t, err)
	require.NoError(t, e.WriteLayoutOption(storage.LayoutOption{Value: 9}))

	reloaded, err := storage.LoadFakeFlash(64, flash.Raw())
	require.NoError(t, err)

	e2, err := storage.Open(reloaded)
	require.NoError(t, err)
	recs := e2.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, storage.Tag(storage.TagLayoutOption), recs[0].Tag)
}
