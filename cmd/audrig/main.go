// SPDX-License-Identifier: EPL-2.0

// Command audrig runs the audio engine or the hardware loopback.
//
// In engine mode commands are read from stdin, one per line; type "help" for
// the list. Metrics and health probes are served on metricsaddr when set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ik5/audrig"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/graph"
	"github.com/ik5/audrig/hal/miniaudio"
	"github.com/ik5/audrig/internal/config"
	"github.com/ik5/audrig/internal/health"
	"github.com/ik5/audrig/internal/logging"
	"github.com/ik5/audrig/internal/observe"
	"github.com/ik5/audrig/internal/preset"
	"github.com/ik5/audrig/loopback"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	configFilePath := flag.String("configFilePath", "config.yaml", "Set the file path to the config file.")
	mode := flag.String("mode", "", "Override the configured mode: engine or loopback.")
	flag.Parse()

	if err := run(*configFilePath, *mode); err != nil {
		slog.Error("audrig stopped", "err", err)
		os.Exit(1)
	}
}

func run(configFilePath, mode string) error {
	loader, err := config.Load(configFilePath)
	if err != nil {
		return err
	}

	cfg := loader.Config()
	if mode != "" {
		cfg.Mode = mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logFile, err := logging.ConfigureDefaultLogger(cfg.LogLevel, cfg.LogFile, slog.HandlerOptions{})
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := observe.InitProvider(ctx, "audrig", version)
	if err != nil {
		return fmt.Errorf("metrics provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	metrics, err := observe.NewMetrics(provider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	device := miniaudio.New(cfg.BufferFrames)
	maxFrames := max(cfg.BufferFrames*4, graph.DefaultMaxFrames)

	eg, egCtx := errgroup.WithContext(ctx)

	var (
		running func() bool
		stats   func() observe.EngineStats
	)

	switch cfg.Mode {
	case config.ModeLoopback:
		lb, err := loopback.New(device, maxFrames)
		if err != nil {
			return err
		}
		if err := lb.Start(); err != nil {
			return err
		}
		defer lb.Stop()

		running = lb.Running
		stats = func() observe.EngineStats {
			s := lb.Stats()
			return observe.EngineStats{
				Mode:           cfg.Mode,
				Running:        lb.Running(),
				RenderCycles:   s.Cycles,
				RenderFailures: s.Failures,
			}
		}

	default:
		eng, err := startEngine(cfg, device, maxFrames, metrics)
		if err != nil {
			return err
		}
		defer eng.Close()

		loader.WatchEffects(func(e config.Effects) {
			if _, err := e.Preset().Apply(eng); err != nil {
				slog.Warn("cannot apply reloaded effects", "err", err)
			}
		})

		running = eng.Running
		stats = func() observe.EngineStats {
			s := eng.Stats()
			return observe.EngineStats{
				Mode:           cfg.Mode,
				Running:        s.Running,
				RenderCycles:   s.Cycles,
				RenderFailures: s.Failures,
				Underruns:      s.Underruns,
				Overruns:       s.Overruns,
				TapDropped:     s.TapDropped,
				TapWriteErrors: s.TapWriteErrors,
				Amplitude:      float64(s.Amplitude),
			}
		}

		con := newConsole(eng, os.Stdout)
		lines := readLines(os.Stdin)
		eg.Go(func() error { return con.run(egCtx, lines) })
	}

	reg, err := metrics.ObserveEngine(stats)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer reg.Unregister()

	if cfg.MetricsAddr != "" {
		serve(egCtx, eg, cfg.MetricsAddr, provider, running)
	}

	eg.Go(func() error {
		<-egCtx.Done()
		return nil
	})

	slog.Info("audrig running", "mode", cfg.Mode, "version", version)

	if err := eg.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}

	return nil
}

func startEngine(cfg config.Config, device *miniaudio.Device, maxFrames int, metrics *observe.Metrics) (*audrig.Engine, error) {
	output := cfg.Output.Format(cfg.SampleRate, cfg.Channels)
	input := cfg.Input.Format(cfg.SampleRate, cfg.Channels)
	capture := miniaudio.CaptureFormat(input, output.SampleRate)
	if capture != input {
		slog.Info("capture follows the playback rate", "configured", input.SampleRate, "rate", capture.SampleRate)
	}

	eng, err := audrig.New(audrig.Config{
		Format:        audio.FloatFormat(cfg.SampleRate, cfg.Channels),
		Capture:       capture,
		Output:        output,
		MaxFrames:     maxFrames,
		RecordingPath: cfg.RecordingPath(),
		ExportPath:    cfg.ExportPath(),
		Metrics:       metrics,
	}, device)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*audrig.Engine, error) {
		_ = eng.Close()
		return nil, err
	}

	if _, err := cfg.Effects.Preset().Apply(eng); err != nil {
		return fail(err)
	}
	if cfg.Preset != "" {
		p, err := preset.Load(cfg.Preset)
		if err != nil {
			return fail(err)
		}
		if _, err := p.Apply(eng); err != nil {
			return fail(err)
		}
		slog.Info("preset applied", "name", p.Name)
	}

	if err := eng.Start(); err != nil {
		return fail(err)
	}

	if cfg.Source != "" {
		if err := eng.LoadFile(cfg.Source); err != nil {
			slog.Warn("cannot load source", "path", cfg.Source, "err", err)
		}
	}

	return eng, nil
}

func serve(ctx context.Context, eg *errgroup.Group, addr string, provider *observe.Provider, running func() bool) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", provider.Handler())
	health.New(health.Checker{
		Name: "audio",
		Check: func(context.Context) error {
			if !running() {
				return errors.New("audio device not running")
			}
			return nil
		},
	}).Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	eg.Go(func() error {
		slog.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
