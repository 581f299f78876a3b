package dmx

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Wire constants for the DMX512 data phase: 250 kbaud, 8 data bits, no
// parity, 2 stop bits. One slot is 11 bits on the wire.
const (
	DataBaudRate = 250000
	BitTime      = 4 * time.Microsecond
	SlotTime     = 11 * BitTime

	// FrameSlots is slot 0 (start code) plus 512 channel slots.
	FrameSlots = UniverseSize + 1

	MinBreak          = 92 * time.Microsecond
	MinMarkAfterBreak = 12 * time.Microsecond

	// Defaults follow the common practice of a 176 us break; both sit
	// comfortably above the protocol minimums.
	DefaultBreak          = 176 * time.Microsecond
	DefaultMarkAfterBreak = 16 * time.Microsecond
)

var (
	ErrRateTooHigh   = errors.New("dmx: refresh rate too high")
	ErrInvalidTiming = errors.New("dmx: invalid frame timing")
)

// TimingConfig is the caller-facing timing request. Zero durations select
// the defaults. RefreshHz 0 means "as fast as the wire allows": protocol
// minimum gaps only, rate bounded by transport throughput.
type TimingConfig struct {
	RefreshHz      float64
	Break          time.Duration
	MarkAfterBreak time.Duration
	InterSlotGap   time.Duration
}

// FrameTiming is the validated, immutable phase schedule for a session.
// Reconfiguring timing means building a new session.
type FrameTiming struct {
	Break          time.Duration
	MarkAfterBreak time.Duration
	InterSlotGap   time.Duration
	InterFrameGap  time.Duration
	BaudRate       int

	// rateConfigured records that a target refresh rate was requested,
	// even one that lands exactly on the minimum period with zero gap.
	// Overruns only count as deadline misses when a rate was asked for.
	rateConfigured bool
}

// RateConfigured reports whether this timing came from an explicit refresh
// rate rather than "as fast as possible".
func (t FrameTiming) RateConfigured() bool {
	return t.rateConfigured
}

// DataDuration is the wire time of the data phase: 513 slots plus any
// configured gap between consecutive slots.
func (t FrameTiming) DataDuration() time.Duration {
	return FrameSlots*SlotTime + (FrameSlots-1)*t.InterSlotGap
}

// FramePeriod is the nominal duration of one full frame cycle.
func (t FrameTiming) FramePeriod() time.Duration {
	return t.Break + t.MarkAfterBreak + t.DataDuration() + t.InterFrameGap
}

// Deadline returns the instant the cycle that began at start should end.
func (t FrameTiming) Deadline(start time.Time) time.Time {
	return start.Add(t.FramePeriod())
}

// ComputeTiming validates cfg against the protocol bounds and allocates any
// surplus period entirely to the inter-frame gap. Break and mark-after-break
// never stretch: frames slower than nominal are tolerated on the wire,
// phases shorter than their minimums are not.
func ComputeTiming(cfg TimingConfig) (FrameTiming, error) {
	if cfg.Break == 0 {
		cfg.Break = DefaultBreak
	}
	if cfg.MarkAfterBreak == 0 {
		cfg.MarkAfterBreak = DefaultMarkAfterBreak
	}
	if cfg.Break < MinBreak {
		return FrameTiming{}, fmt.Errorf("%w: break %v below minimum %v", ErrInvalidTiming, cfg.Break, MinBreak)
	}
	if cfg.MarkAfterBreak < MinMarkAfterBreak {
		return FrameTiming{}, fmt.Errorf("%w: mark-after-break %v below minimum %v", ErrInvalidTiming, cfg.MarkAfterBreak, MinMarkAfterBreak)
	}
	if cfg.InterSlotGap < 0 {
		return FrameTiming{}, fmt.Errorf("%w: negative inter-slot gap %v", ErrInvalidTiming, cfg.InterSlotGap)
	}
	if cfg.RefreshHz < 0 || math.IsNaN(cfg.RefreshHz) || math.IsInf(cfg.RefreshHz, 0) {
		return FrameTiming{}, fmt.Errorf("%w: refresh rate %v", ErrInvalidTiming, cfg.RefreshHz)
	}

	t := FrameTiming{
		Break:          cfg.Break,
		MarkAfterBreak: cfg.MarkAfterBreak,
		InterSlotGap:   cfg.InterSlotGap,
		BaudRate:       DataBaudRate,
	}
	if cfg.RefreshHz == 0 {
		return t, nil
	}

	// Integer microsecond period; durations are integer nanoseconds
	// throughout so nothing drifts over millions of frames.
	period := time.Duration(math.Round(1e6/cfg.RefreshHz)) * time.Microsecond
	floor := t.FramePeriod()
	if period < floor {
		return FrameTiming{}, fmt.Errorf("%w: %g Hz needs a %v period, floor is %v",
			ErrRateTooHigh, cfg.RefreshHz, period, floor)
	}
	t.InterFrameGap = period - floor
	t.rateConfigured = true
	return t, nil
}
