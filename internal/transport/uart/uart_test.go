package uart

import (
	"errors"
	"testing"

	"go.bug.st/serial"

	"github.com/danmuck/dmxctl/internal/dmx"
)

func TestModeForDMXFraming(t *testing.T) {
	mode, err := modeFor(dmx.DefaultPortConfig())
	if err != nil {
		t.Fatalf("modeFor: %v", err)
	}
	if mode.BaudRate != dmx.DataBaudRate {
		t.Fatalf("baud = %d, want %d", mode.BaudRate, dmx.DataBaudRate)
	}
	if mode.DataBits != 8 || mode.Parity != serial.NoParity || mode.StopBits != serial.TwoStopBits {
		t.Fatalf("mode = %+v, want 8N2", mode)
	}
}

func TestModeForRejectsUnmappable(t *testing.T) {
	cases := []dmx.PortConfig{
		{BaudRate: dmx.DataBaudRate, DataBits: 8, Parity: dmx.Parity(99), StopBits: 2},
		{BaudRate: dmx.DataBaudRate, DataBits: 8, Parity: dmx.ParityNone, StopBits: 3},
	}
	for _, cfg := range cases {
		if _, err := modeFor(cfg); !errors.Is(err, dmx.ErrUnsupportedConfig) {
			t.Fatalf("config %+v: expected ErrUnsupportedConfig, got %v", cfg, err)
		}
	}
}
