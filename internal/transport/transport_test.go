package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSucceedsOnFirstTry(t *testing.T) {
	ep := &FakeEndpoint{}
	w := NewWriter(ep)

	require.NoError(t, w.Write([]byte{1, 2, 3}))
	assert.Equal(t, [][]byte{{1, 2, 3}}, ep.Written)
	assert.Equal(t, uint64(0), w.Dropped())
}

func TestWriteRetriesOnceThenSucceeds(t *testing.T) {
	ep := &FakeEndpoint{FailNext: 1}
	w := NewWriter(ep)

	require.NoError(t, w.Write([]byte{9}))
	assert.Equal(t, []byte{9}, ep.Last())
	assert.Equal(t, uint64(0), w.Dropped())
}

func TestWriteDropsAfterSecondFailure(t *testing.T) {
	ep := &FakeEndpoint{FailNext: 2}
	w := NewWriter(ep)

	err := w.Write([]byte{5})
	assert.Error(t, err)
	assert.Nil(t, ep.Last())
	assert.Equal(t, uint64(1), w.Dropped())
}

func TestDroppedCounterAccumulatesAcrossWrites(t *testing.T) {
	ep := &FakeEndpoint{FailNext: 4}
	w := NewWriter(ep)

	_ = w.Write([]byte{1})
	_ = w.Write([]byte{2})
	assert.Equal(t, uint64(2), w.Dropped())
}
