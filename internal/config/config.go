// Package config loads the dmxctl TOML configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/dmxctl/internal/dmx"
)

// ChannelValue is one static scene entry: channel=value, applied to the
// universe before transmission starts.
type ChannelValue struct {
	Channel int `toml:"channel"`
	Value   int `toml:"value"`
}

type Config struct {
	Device           string         `toml:"device"`
	MetricsAddr      string         `toml:"metrics_addr"`
	RefreshHz        float64        `toml:"refresh_hz"`
	BreakUS          int64          `toml:"break_us"`
	MarkAfterBreakUS int64          `toml:"mark_after_break_us"`
	FailureThreshold int            `toml:"failure_threshold"`
	StartCode        int            `toml:"start_code"`
	LogLevel         string         `toml:"log_level"`
	Scene            []ChannelValue `toml:"scene"`
}

func DefaultConfig() Config {
	return Config{
		RefreshHz:        40,
		FailureThreshold: dmx.DefaultFailureThreshold,
		LogLevel:         "info",
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.RefreshHz < 0 {
		return fmt.Errorf("config: negative refresh_hz %g", cfg.RefreshHz)
	}
	if cfg.BreakUS < 0 || cfg.MarkAfterBreakUS < 0 {
		return fmt.Errorf("config: negative phase duration")
	}
	if cfg.FailureThreshold < 0 {
		return fmt.Errorf("config: negative failure_threshold %d", cfg.FailureThreshold)
	}
	if cfg.StartCode < 0 || cfg.StartCode > 255 {
		return fmt.Errorf("config: start_code %d outside 0..255", cfg.StartCode)
	}
	if cfg.LogLevel != "" {
		if _, err := zerologLevel(cfg.LogLevel); err != nil {
			return err
		}
	}
	for i, cv := range cfg.Scene {
		if cv.Channel < 1 || cv.Channel > dmx.UniverseSize {
			return fmt.Errorf("config: scene[%d] channel %d outside 1..%d", i, cv.Channel, dmx.UniverseSize)
		}
		if cv.Value < 0 || cv.Value > 255 {
			return fmt.Errorf("config: scene[%d] value %d outside 0..255", i, cv.Value)
		}
	}
	return nil
}

// Timing converts the file fields into a dmx timing request. Zero
// durations keep the engine defaults.
func (c Config) Timing() dmx.TimingConfig {
	return dmx.TimingConfig{
		RefreshHz:      c.RefreshHz,
		Break:          time.Duration(c.BreakUS) * time.Microsecond,
		MarkAfterBreak: time.Duration(c.MarkAfterBreakUS) * time.Microsecond,
	}
}

func zerologLevel(raw string) (string, error) {
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "trace", "debug", "info", "warn", "error", "disabled":
		return level, nil
	default:
		return "", fmt.Errorf("config: unknown log_level %q", raw)
	}
}

// LogLevelOrDefault returns the normalized log level, falling back to info.
func (c Config) LogLevelOrDefault() string {
	level, err := zerologLevel(c.LogLevel)
	if err != nil || level == "" {
		return "info"
	}
	return level
}
