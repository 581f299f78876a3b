// Package uart implements dmx.Transport over a serial device, typically a
// UART driving an RS485 transceiver.
package uart

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/danmuck/dmxctl/internal/dmx"
)

// Port is a serial-device transport. It is not safe for concurrent use;
// the engine owns it for the lifetime of a session.
type Port struct {
	name string
	port serial.Port
}

// Open opens the named device (e.g. /dev/ttyUSB0) with DMX framing.
func Open(name string) (*Port, error) {
	mode, err := modeFor(dmx.DefaultPortConfig())
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("uart: open %s: %w", name, err)
	}
	return &Port{name: name, port: p}, nil
}

func (p *Port) Configure(cfg dmx.PortConfig) error {
	mode, err := modeFor(cfg)
	if err != nil {
		return err
	}
	if err := p.port.SetMode(mode); err != nil {
		return fmt.Errorf("%w: %s: %v", dmx.ErrUnsupportedConfig, p.name, err)
	}
	return nil
}

// AssertBreak holds TX low for the given duration using the driver's break
// condition.
func (p *Port) AssertBreak(d time.Duration) error {
	if err := p.port.Break(d); err != nil {
		return fmt.Errorf("uart: break: %w", err)
	}
	return nil
}

// Idle leaves the line at mark. A UART rests high between writes, so
// idling is just not transmitting for the duration.
func (p *Port) Idle(d time.Duration) error {
	time.Sleep(d)
	return nil
}

// WriteBytes transmits the frame and drains the output buffer, so the call
// returns only once the last slot is on the wire.
func (p *Port) WriteBytes(data []byte) error {
	for written := 0; written < len(data); {
		n, err := p.port.Write(data[written:])
		if err != nil {
			return fmt.Errorf("uart: write: %w", err)
		}
		written += n
	}
	if err := p.port.Drain(); err != nil {
		return fmt.Errorf("uart: drain: %w", err)
	}
	return nil
}

func (p *Port) Close() error {
	return p.port.Close()
}

func modeFor(cfg dmx.PortConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}
	switch cfg.Parity {
	case dmx.ParityNone:
		mode.Parity = serial.NoParity
	case dmx.ParityOdd:
		mode.Parity = serial.OddParity
	case dmx.ParityEven:
		mode.Parity = serial.EvenParity
	default:
		return nil, fmt.Errorf("%w: parity %d", dmx.ErrUnsupportedConfig, cfg.Parity)
	}
	switch cfg.StopBits {
	case 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: %d stop bits", dmx.ErrUnsupportedConfig, cfg.StopBits)
	}
	return mode, nil
}
