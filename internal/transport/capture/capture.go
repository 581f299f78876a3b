// Package capture provides an in-memory dmx.Transport that records every
// call the engine makes. It backs the engine tests and dmxctl's dry-run
// mode, and can inject write failures to exercise the failure policy.
//
// The recording grows without bound; this is intended for tests and short
// dry runs, not for long-running sessions.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/dmxctl/internal/dmx"
)

// Op identifies one recorded transport call.
type Op string

const (
	OpConfigure Op = "configure"
	OpBreak     Op = "break"
	OpIdle      Op = "idle"
	OpWrite     Op = "write"
)

// Event is one recorded transport call in arrival order.
type Event struct {
	Op       Op
	Duration time.Duration
	Data     []byte
}

// Transport records the engine's call sequence. The zero pacing mode
// returns from break/idle immediately, so a session spins as fast as the
// caller lets it; NewPaced sleeps for real when wall-clock behavior matters.
type Transport struct {
	pace bool

	mu         sync.Mutex
	configured bool
	cfg        dmx.PortConfig
	events     []Event
	frames     [][]byte
	failWrites int
}

func New() *Transport {
	return &Transport{}
}

func NewPaced() *Transport {
	return &Transport{pace: true}
}

// Configure accepts exactly the DMX512 data framing and rejects anything
// else, mirroring what a strict UART backend would do.
func (t *Transport) Configure(cfg dmx.PortConfig) error {
	if cfg.BaudRate != dmx.DataBaudRate || cfg.DataBits != 8 ||
		cfg.Parity != dmx.ParityNone || cfg.StopBits != 2 {
		return fmt.Errorf("%w: %+v", dmx.ErrUnsupportedConfig, cfg)
	}
	t.mu.Lock()
	t.configured = true
	t.cfg = cfg
	t.events = append(t.events, Event{Op: OpConfigure})
	t.mu.Unlock()
	return nil
}

func (t *Transport) AssertBreak(d time.Duration) error {
	t.record(Event{Op: OpBreak, Duration: d})
	if t.pace {
		time.Sleep(d)
	}
	return nil
}

func (t *Transport) Idle(d time.Duration) error {
	t.record(Event{Op: OpIdle, Duration: d})
	if t.pace {
		time.Sleep(d)
	}
	return nil
}

func (t *Transport) WriteBytes(p []byte) error {
	t.mu.Lock()
	if t.failWrites > 0 {
		t.failWrites--
		t.mu.Unlock()
		return fmt.Errorf("capture: injected write failure")
	}
	if len(p) != dmx.FrameSlots {
		t.mu.Unlock()
		return fmt.Errorf("capture: unexpected write length %d", len(p))
	}
	frame := append([]byte(nil), p...)
	t.events = append(t.events, Event{Op: OpWrite, Data: frame})
	t.frames = append(t.frames, frame)
	t.mu.Unlock()
	if t.pace {
		time.Sleep(time.Duration(len(p)) * dmx.SlotTime)
	}
	return nil
}

// FailWrites makes the next n WriteBytes calls fail.
func (t *Transport) FailWrites(n int) {
	t.mu.Lock()
	t.failWrites = n
	t.mu.Unlock()
}

// Configured reports whether Configure has been called successfully.
func (t *Transport) Configured() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.configured
}

// Frames returns copies of every complete frame written so far.
func (t *Transport) Frames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.frames))
	for i, f := range t.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Events returns the recorded call sequence. Data slices are shared with
// the record; callers must not mutate them.
func (t *Transport) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.events...)
}

// WaitFrames polls until at least n frames have been written or the
// timeout elapses.
func (t *Transport) WaitFrames(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		have := len(t.frames)
		t.mu.Unlock()
		if have >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func (t *Transport) record(ev Event) {
	t.mu.Lock()
	t.events = append(t.events, ev)
	t.mu.Unlock()
}
