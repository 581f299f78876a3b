package dmx

import (
	"errors"
	"time"
)

var ErrUnsupportedConfig = errors.New("dmx: unsupported port configuration")

// Parity settings a transport may be asked for. DMX512 itself is always
// ParityNone; the others exist so backends can reject them explicitly.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// PortConfig is the serial framing the engine requires from a transport.
type PortConfig struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits int
}

// DefaultPortConfig is the DMX512 data-phase framing: 250 kbaud, 8N2.
func DefaultPortConfig() PortConfig {
	return PortConfig{
		BaudRate: DataBaudRate,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 2,
	}
}

// Transport is the capability the engine drives. Implementations are
// typically a UART behind an RS485 transceiver; tests use a recording fake.
//
// The engine is the transport's sole caller while a session is running and
// serializes all calls. AssertBreak holds the line low for the given
// duration, Idle holds it at mark, and WriteBytes transmits exactly
// FrameSlots bytes at the configured rate. Any returned error aborts the
// current frame.
type Transport interface {
	Configure(cfg PortConfig) error
	AssertBreak(d time.Duration) error
	Idle(d time.Duration) error
	WriteBytes(p []byte) error
}
