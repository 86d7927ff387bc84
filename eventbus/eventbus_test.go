package eventbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morsekb/firmware-core/eventbus"
)

func TestMPSCTryPublishBusy(t *testing.T) {
	m := eventbus.NewMPSC[int](1)
	require.NoError(t, m.TryPublish(1))
	assert.ErrorIs(t, m.TryPublish(2), eventbus.ErrBusy)

	got := <-m.Receive()
	assert.Equal(t, 1, got)
}

func TestMPSCPublishAsyncCancellation(t *testing.T) {
	m := eventbus.NewMPSC[int](0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.PublishAsync(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPubSubImmediateDropsOldest(t *testing.T) {
	p := eventbus.NewPubSub[int](1, 2, eventbus.Immediate)
	sub := p.Subscribe()

	require.NoError(t, p.TryPublish(1))
	require.NoError(t, p.TryPublish(2))

	got := <-sub
	assert.Equal(t, 2, got)
}

func TestPubSubBackpressuredBusy(t *testing.T) {
	p := eventbus.NewPubSub[int](1, 2, eventbus.Backpressured)
	sub := p.Subscribe()

	require.NoError(t, p.TryPublish(1))
	err := p.TryPublish(2)
	assert.ErrorIs(t, err, eventbus.ErrBusy)

	assert.Equal(t, 1, <-sub)
}

func TestPubSubSubscriberCap(t *testing.T) {
	p := eventbus.NewPubSub[int](1, 1, eventbus.Immediate)
	assert.NotNil(t, p.Subscribe())
	assert.Nil(t, p.Subscribe())
}
