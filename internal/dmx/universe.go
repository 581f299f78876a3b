package dmx

import (
	"errors"
	"fmt"
	"sync"
)

// UniverseSize is the channel count of one DMX512 universe.
const UniverseSize = 512

var (
	ErrChannelOutOfRange = errors.New("dmx: channel out of range")
	ErrLengthMismatch    = errors.New("dmx: channel data exceeds universe size")
)

// Universe is the 512-channel value buffer shared between producers and one
// running session. All access goes through its methods; the internal lock is
// held only for the duration of a copy, never across transport I/O.
type Universe struct {
	mu        sync.Mutex
	startCode byte
	channels  [UniverseSize]byte
}

// NewUniverse returns a universe with all channels at 0 and the standard
// dimmer start code 0.
func NewUniverse() *Universe {
	return &Universe{}
}

// Set writes one channel value. Channels are addressed 1..512.
// The engine observes the write at its next frame snapshot, never mid-frame.
func (u *Universe) Set(channel int, value byte) error {
	if channel < 1 || channel > UniverseSize {
		return fmt.Errorf("%w: %d", ErrChannelOutOfRange, channel)
	}
	u.mu.Lock()
	u.channels[channel-1] = value
	u.mu.Unlock()
	return nil
}

// SetAll bulk-updates channels 1..len(values). Channels beyond the given
// length keep their current values. More than 512 values is an error.
func (u *Universe) SetAll(values []byte) error {
	if len(values) > UniverseSize {
		return fmt.Errorf("%w: got %d values", ErrLengthMismatch, len(values))
	}
	u.mu.Lock()
	copy(u.channels[:len(values)], values)
	u.mu.Unlock()
	return nil
}

// SetStartCode replaces the start code transmitted as slot 0. The value is
// opaque to the engine; anything other than 0 is vendor-specific.
func (u *Universe) SetStartCode(code byte) {
	u.mu.Lock()
	u.startCode = code
	u.mu.Unlock()
}

// StartCode returns the current start code.
func (u *Universe) StartCode() byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.startCode
}

// Snapshot returns a consistent copy of all channel values. A snapshot never
// observes a partially applied Set or SetAll, though independent concurrent
// calls may interleave arbitrarily across the snapshot boundary.
func (u *Universe) Snapshot() [UniverseSize]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.channels
}

// snapshotFrame fills buf (FrameSlots bytes) with start code + channels in
// one locked copy, so slot 0 and the channel data come from the same instant.
func (u *Universe) snapshotFrame(buf []byte) {
	u.mu.Lock()
	buf[0] = u.startCode
	copy(buf[1:], u.channels[:])
	u.mu.Unlock()
}
