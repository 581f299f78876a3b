package dmx

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danmuck/dmxctl/internal/observability"
)

var (
	ErrAlreadyRunning = errors.New("dmx: session already running")
	ErrSessionStopped = errors.New("dmx: session stopped")
	ErrTransport      = errors.New("dmx: transport failure")
)

// SessionState is the lifecycle of a transmission session. Stopped is
// terminal; a stopped session is never restarted, a new one is built.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRunning
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Phase names the frame cycle step a transport failure happened in.
type Phase string

const (
	PhaseBreak Phase = "break"
	PhaseMAB   Phase = "mark-after-break"
	PhaseData  Phase = "data"
	PhaseGap   Phase = "gap"
)

const (
	DefaultFailureThreshold = 8
	DefaultErrorBuffer      = 16
)

// SessionConfig tunes failure handling and reporting. The zero value is
// usable; nil Logger discards engine logs.
type SessionConfig struct {
	// FailureThreshold is the number of consecutive transport failures
	// that forces the session to Stopped. Below it, failures are
	// transient: the frame is dropped and the loop retries next cycle.
	FailureThreshold int

	// ErrorBuffer is the capacity of the Errors channel. When the owner
	// does not drain it, further reports are dropped with a log line
	// rather than blocking the frame loop.
	ErrorBuffer int

	Logger *zerolog.Logger
}

// SessionStats is a point-in-time view of the engine counters.
type SessionStats struct {
	FramesSent          uint64
	TransportFailures   uint64
	DeadlineMisses      uint64
	ConsecutiveFailures uint64
}

// Session owns one universe (shared with producers), one frame timing and
// the transport for the duration of its run. The frame loop runs on a
// dedicated goroutine; Stop is cooperative and only observed at frame
// boundaries, so the wire never sees a truncated data phase.
type Session struct {
	id        string
	cfg       SessionConfig
	universe  *Universe
	timing    FrameTiming
	transport Transport
	log       zerolog.Logger

	mu    sync.Mutex
	state SessionState

	stopCh     chan struct{}
	doneCh     chan struct{}
	errCh      chan error
	stopOnce   sync.Once
	finishOnce sync.Once

	framesSent        atomic.Uint64
	transportFailures atomic.Uint64
	deadlineMisses    atomic.Uint64
	consecutive       atomic.Uint64
}

// NewSession builds an Idle session. The universe stays shared with its
// producers; the transport must not be touched by anyone else until the
// session stops.
func NewSession(universe *Universe, timing FrameTiming, transport Transport, cfg SessionConfig) *Session {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ErrorBuffer <= 0 {
		cfg.ErrorBuffer = DefaultErrorBuffer
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       cfg,
		universe:  universe,
		timing:    timing,
		transport: transport,
		log:       log.With().Str("session", id).Logger(),
		state:     StateIdle,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		errCh:     make(chan error, cfg.ErrorBuffer),
	}
}

// ID returns the session identifier used in logs and metrics.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Errors delivers runtime failures to the session owner: transient
// transport errors wrapped in ErrTransport, and one terminal ErrTransport
// when the failure threshold forces a stop. The channel is closed when the
// frame loop exits.
func (s *Session) Errors() <-chan error { return s.errCh }

// Stats returns a snapshot of the engine counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		FramesSent:          s.framesSent.Load(),
		TransportFailures:   s.transportFailures.Load(),
		DeadlineMisses:      s.deadlineMisses.Load(),
		ConsecutiveFailures: s.consecutive.Load(),
	}
}

// Start configures the transport for DMX framing and begins the perpetual
// frame loop. It fails with ErrAlreadyRunning or ErrSessionStopped outside
// Idle, and with the transport's configuration error if the backend cannot
// meet 250 kbaud 8N2 exactly.
func (s *Session) Start() error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.mu.Unlock()
		return ErrAlreadyRunning
	case StateStopped:
		s.mu.Unlock()
		return ErrSessionStopped
	}
	s.state = StateRunning
	s.mu.Unlock()

	if err := s.transport.Configure(DefaultPortConfig()); err != nil {
		s.setState(StateStopped)
		s.finish()
		return fmt.Errorf("configure transport: %w", err)
	}

	s.log.Info().
		Dur("period", s.timing.FramePeriod()).
		Dur("break", s.timing.Break).
		Dur("mab", s.timing.MarkAfterBreak).
		Dur("gap", s.timing.InterFrameGap).
		Msg("session started")
	go s.run()
	return nil
}

// Stop requests termination and blocks until the loop has exited. The
// in-flight frame always completes its data phase first. Stop is
// idempotent; stopping an Idle session moves it straight to Stopped.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.state = StateStopped
		s.mu.Unlock()
		s.finish()
		return
	}
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) finish() {
	s.finishOnce.Do(func() {
		close(s.doneCh)
		close(s.errCh)
	})
}

// report delivers err to the owner without ever blocking the frame loop.
func (s *Session) report(err error) {
	select {
	case s.errCh <- err:
	default:
		s.log.Warn().Err(err).Msg("error channel full, report dropped")
	}
}

func (s *Session) run() {
	defer s.finish()

	frame := make([]byte, FrameSlots)
	consecutive := 0

	for {
		// Cancellation is only observed here, between frames.
		select {
		case <-s.stopCh:
			s.setState(StateStopped)
			s.log.Info().Uint64("frames", s.framesSent.Load()).Msg("session stopped")
			return
		default:
		}

		start := time.Now()
		deadline := s.timing.Deadline(start)
		s.universe.snapshotFrame(frame)

		if phase, err := s.transmitFrame(frame); err != nil {
			consecutive++
			if s.failed(phase, err, consecutive) {
				return
			}
			continue
		}
		consecutive = 0
		s.consecutive.Store(0)
		s.framesSent.Add(1)
		observability.RecordFrame(s.id, time.Since(start))

		if phase, err := s.interFrameGap(deadline); err != nil {
			consecutive++
			if s.failed(phase, err, consecutive) {
				return
			}
		}
	}
}

// transmitFrame drives break, mark-after-break and the 513-slot data phase.
// The data phase is never split: once begun, the whole frame goes out or
// the frame is aborted by a transport error.
func (s *Session) transmitFrame(frame []byte) (Phase, error) {
	if err := s.transport.AssertBreak(s.timing.Break); err != nil {
		return PhaseBreak, err
	}
	if err := s.transport.Idle(s.timing.MarkAfterBreak); err != nil {
		return PhaseMAB, err
	}
	if err := s.transport.WriteBytes(frame); err != nil {
		return PhaseData, err
	}
	return "", nil
}

// interFrameGap idles out the remainder of the frame period. Overruns are
// never compensated by shortening a later phase: the loop proceeds straight
// to the next break and the miss is recorded as an advisory condition.
func (s *Session) interFrameGap(deadline time.Time) (Phase, error) {
	slack := time.Until(deadline)
	if slack <= 0 {
		if s.timing.rateConfigured {
			s.deadlineMisses.Add(1)
			observability.RecordDeadlineMiss(s.id)
			s.log.Warn().Dur("overrun", -slack).Msg("frame deadline missed")
		}
		return "", nil
	}
	if err := s.transport.Idle(slack); err != nil {
		return PhaseGap, err
	}
	return "", nil
}

// failed handles one transport failure and reports whether the consecutive
// failure threshold now forces the session to stop.
func (s *Session) failed(phase Phase, err error, consecutive int) bool {
	s.transportFailures.Add(1)
	s.consecutive.Store(uint64(consecutive))
	observability.RecordTransportError(s.id, string(phase))
	s.log.Error().Err(err).
		Str("phase", string(phase)).
		Int("consecutive", consecutive).
		Msg("transport failure, frame aborted")
	s.report(fmt.Errorf("%w (%s phase): %v", ErrTransport, phase, err))

	if consecutive < s.cfg.FailureThreshold {
		return false
	}
	s.setState(StateStopped)
	s.log.Error().Int("threshold", s.cfg.FailureThreshold).Msg("failure threshold reached, stopping session")
	s.report(fmt.Errorf("%w: stopped after %d consecutive failures", ErrTransport, consecutive))
	return true
}
