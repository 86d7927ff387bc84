package vial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morsekb/firmware-core/event"
)

type fakeHeld map[event.Pos]bool

func (f fakeHeld) IsHeld(pos event.Pos) bool { return f[pos] }

func TestUnlockPollCommitsWhenAllKeysHeld(t *testing.T) {
	keys := []event.Pos{event.Key(0, 0), event.Key(0, 1)}
	u := NewUnlockState(keys, []byte("secret"))
	now := time.Unix(0, 0)

	u.Start(now)
	require.True(t, u.IsUnlocking(now))

	counter := u.Poll(now, fakeHeld{event.Key(0, 0): true})
	assert.Equal(t, 1, counter)
	assert.False(t, u.IsUnlocked())

	counter = u.Poll(now, fakeHeld{event.Key(0, 0): true, event.Key(0, 1): true})
	assert.Equal(t, 0, counter)
	assert.True(t, u.IsUnlocked())
	assert.False(t, u.IsUnlocking(now))
}

func TestUnlockPollWithoutStartNeverCommits(t *testing.T) {
	keys := []event.Pos{event.Key(0, 0)}
	u := NewUnlockState(keys, []byte("secret"))
	now := time.Unix(0, 0)

	counter := u.Poll(now, fakeHeld{event.Key(0, 0): true})
	assert.Equal(t, 0, counter)
	assert.False(t, u.IsUnlocked())
}

func TestIsUnlockingExpiresAfterStaleness(t *testing.T) {
	u := NewUnlockState([]event.Pos{event.Key(0, 0)}, nil)
	start := time.Unix(0, 0)
	u.Start(start)

	assert.True(t, u.IsUnlocking(start.Add(50*time.Millisecond)))
	assert.False(t, u.IsUnlocking(start.Add(200*time.Millisecond)))
}

func TestLockClearsUnlocked(t *testing.T) {
	u := NewUnlockState(nil, nil)
	u.unlocked = true
	u.Lock()
	assert.False(t, u.IsUnlocked())
}

func TestKeyCountReportsConfiguredLength(t *testing.T) {
	u := NewUnlockState([]event.Pos{event.Key(0, 0), event.Key(1, 1), event.Key(2, 2)}, nil)
	assert.Equal(t, 3, u.KeyCount())
}

func TestDigestIsDeterministicAndKeyed(t *testing.T) {
	a := NewUnlockState(nil, []byte("secret-a"))
	b := NewUnlockState(nil, []byte("secret-b"))
	nonce := []byte("challenge")

	da1 := a.Digest(nonce)
	da2 := a.Digest(nonce)
	db := b.Digest(nonce)

	assert.Equal(t, da1, da2)
	assert.NotEqual(t, da1, db)
}
