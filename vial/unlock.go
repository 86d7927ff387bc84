package vial

import (
	"time"

	"golang.org/x/crypto/blake2s"

	"github.com/morsekb/firmware-core/event"
)

// unlockPollWindow is the staleness window after which an in-progress
// unlock attempt is abandoned if the host stops polling, mirroring
// original_source rmk/src/via/vial_lock.rs's hard-coded 100ms.
const unlockPollWindow = 100 * time.Millisecond

// HeldChecker reports whether a matrix position is currently pressed.
// The keyboard core, not this package, owns live matrix state.
type HeldChecker interface {
	IsHeld(pos event.Pos) bool
}

// UnlockState is the Vial unlock challenge/response state machine:
// a fixed set of matrix positions must be held simultaneously within
// a poll window for mutating commands (keymap/combo/tap-dance/fork
// writes, EepromReset) to be accepted. Grounded verbatim on
// original_source's VialLock (unlocked/unlocking/last_poll/unlock_keys
// fields, is_unlocking's staleness check, check_unlock's countdown),
// with an added Digest method adapted from the teacher
// auth/handshake.go's HMAC-keyed nonce response — proving to the host
// which firmware instance completed the unlock — swapped to
// golang.org/x/crypto/blake2s since this service has no shared secret
// exchange step to key an HMAC with; blake2s's own keying argument
// fills that role directly.
type UnlockState struct {
	unlocked   bool
	unlocking  bool
	lastPoll   time.Time
	unlockKeys []event.Pos
	secret     []byte
}

// NewUnlockState returns an UnlockState requiring every position in
// unlockKeys to be held for a successful unlock. secret keys the
// status digest Digest returns; it is a compile-time build constant,
// not a runtime secret exchanged with the host.
func NewUnlockState(unlockKeys []event.Pos, secret []byte) *UnlockState {
	return &UnlockState{unlockKeys: unlockKeys, secret: secret}
}

// IsUnlocked reports whether the keyboard is currently unlocked.
func (u *UnlockState) IsUnlocked() bool { return u.unlocked }

// KeyCount reports how many positions the unlock combination requires.
func (u *UnlockState) KeyCount() int { return len(u.unlockKeys) }

// IsUnlocking reports whether an unlock attempt is in progress, first
// abandoning it if the host hasn't polled within unlockPollWindow.
func (u *UnlockState) IsUnlocking(now time.Time) bool {
	if u.unlocking && now.Sub(u.lastPoll) > unlockPollWindow {
		u.unlocking = false
	}
	return u.unlocking
}

// Start begins (or keeps alive) an unlock attempt, called on
// VialUnlockStart.
func (u *UnlockState) Start(now time.Time) {
	u.unlocking = true
	u.lastPoll = now
}

// Poll checks how many of the required positions are currently held,
// via held, and commits the unlock once all of them are. Returns the
// number still not held (0 means unlocked), mirroring
// VialLock.check_unlock's u8 countdown return.
func (u *UnlockState) Poll(now time.Time, held HeldChecker) int {
	if len(u.unlockKeys) == 0 {
		return 1
	}
	u.IsUnlocking(now) // abandons an attempt not polled within unlockPollWindow
	u.lastPoll = now
	counter := len(u.unlockKeys)
	for _, pos := range u.unlockKeys {
		if held.IsHeld(pos) {
			counter--
		}
	}
	if counter == 0 && u.unlocking {
		u.unlocked = true
		u.unlocking = false
	}
	return counter
}

// Lock re-locks the keyboard, called on the Vial Lock sub-command.
func (u *UnlockState) Lock() { u.unlocked = false }

// Digest returns a blake2s-256 MAC over nonce, keyed by the build's
// unlock secret, so the host can confirm it is talking to the
// firmware instance that actually holds that secret rather than
// trusting the unlocked bit alone.
func (u *UnlockState) Digest(nonce []byte) [32]byte {
	h, _ := blake2s.New256(u.secret)
	h.Write(nonce)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
