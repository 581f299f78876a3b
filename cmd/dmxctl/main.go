package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/danmuck/dmxctl/internal/config"
	"github.com/danmuck/dmxctl/internal/dmx"
	"github.com/danmuck/dmxctl/internal/observability"
	"github.com/danmuck/dmxctl/internal/transport/capture"
	"github.com/danmuck/dmxctl/internal/transport/uart"
)

func main() {
	var (
		configPath = flag.String("config", "dmxctl.toml", "path to TOML config")
		dryRun     = flag.Bool("dry-run", false, "use an in-memory capture transport instead of a serial device")
	)
	flag.Parse()

	if err := run(*configPath, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "dmxctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevelOrDefault())
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := observability.InitLogger("dmxctl", level)
	observability.RegisterMetrics()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	timing, err := dmx.ComputeTiming(cfg.Timing())
	if err != nil {
		return err
	}

	universe := dmx.NewUniverse()
	universe.SetStartCode(byte(cfg.StartCode))
	for _, cv := range cfg.Scene {
		if err := universe.Set(cv.Channel, byte(cv.Value)); err != nil {
			return err
		}
	}

	var transport dmx.Transport
	if dryRun {
		logger.Info().Msg("dry run, frames go to an in-memory capture transport")
		transport = capture.NewPaced()
	} else {
		if cfg.Device == "" {
			return fmt.Errorf("config: device is required unless -dry-run is set")
		}
		port, err := uart.Open(cfg.Device)
		if err != nil {
			return err
		}
		defer port.Close()
		transport = port
	}

	session := dmx.NewSession(universe, timing, transport, dmx.SessionConfig{
		FailureThreshold: cfg.FailureThreshold,
		Logger:           &logger,
	})
	if err := session.Start(); err != nil {
		return err
	}

	go func() {
		for err := range session.Errors() {
			logger.Error().Err(err).Msg("session error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	session.Stop()
	stats := session.Stats()
	logger.Info().
		Uint64("frames", stats.FramesSent).
		Uint64("transport_failures", stats.TransportFailures).
		Uint64("deadline_misses", stats.DeadlineMisses).
		Msg("session summary")
	return nil
}
