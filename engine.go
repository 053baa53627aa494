// SPDX-License-Identifier: EPL-2.0

package audrig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/export"
	"github.com/ik5/audrig/graph"
	"github.com/ik5/audrig/hal"
	"github.com/ik5/audrig/internal/observe"
	"github.com/ik5/audrig/playback"
	"github.com/ik5/audrig/tap"
)

// Config describes an Engine.
type Config struct {
	// Format is the working format of the graph. Zero means 44.1 kHz stereo.
	Format audio.Format
	// Capture and Output are the hardware formats; zero means Format.
	Capture audio.Format
	Output  audio.Format
	// MaxFrames bounds the device cycle size.
	MaxFrames int

	// RecordingPath and ExportPath default to recording.wav and export.ogg
	// in the working directory.
	RecordingPath string
	ExportPath    string

	// QueueDepth is the recording queue length in cycles.
	QueueDepth int
	// Transcoder replaces the Opus exporter.
	Transcoder export.Transcoder
	// Metrics, when set, records exports.
	Metrics *observe.Metrics
}

// DefaultConfig keeps the recording and the export in dir.
func DefaultConfig(dir string) Config {
	return Config{
		Format:        audio.FloatFormat(44100, 2),
		MaxFrames:     graph.DefaultMaxFrames,
		RecordingPath: filepath.Join(dir, "recording.wav"),
		ExportPath:    filepath.Join(dir, "export.ogg"),
		QueueDepth:    tap.DefaultQueueDepth,
	}
}

// Stats summarizes the engine counters.
type Stats struct {
	graph.Stats

	Running        bool
	Playback       playback.State
	Recording      bool
	Amplitude      float32
	TapDropped     uint64
	TapWriteErrors uint64
}

// Engine composes the signal graph with playback, recording and export. It is
// the control surface of the application; every method is safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger
	cfg    Config

	graph    *graph.Graph
	player   *playback.Controller
	recorder *tap.Tap
	exporter *export.Service
	hw       hal.Interface

	mu sync.Mutex
}

// New builds the graph and its controllers. Nothing touches hw until Start.
func New(cfg Config, hw hal.Interface) (*Engine, error) {
	if hw == nil {
		return nil, fmt.Errorf("%w: no audio hardware", audio.ErrConfiguration)
	}

	def := DefaultConfig(".")
	if cfg.Format == (audio.Format{}) {
		cfg.Format = def.Format
	}
	if cfg.RecordingPath == "" {
		cfg.RecordingPath = def.RecordingPath
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = def.ExportPath
	}

	g, err := graph.New(graph.Config{
		Format:    cfg.Format,
		Capture:   cfg.Capture,
		Output:    cfg.Output,
		MaxFrames: cfg.MaxFrames,
	})
	if err != nil {
		return nil, err
	}

	var exportOpts []export.Option
	if cfg.Transcoder != nil {
		exportOpts = append(exportOpts, export.WithTranscoder(cfg.Transcoder))
	}
	if cfg.Metrics != nil {
		exportOpts = append(exportOpts, export.WithMetrics(cfg.Metrics))
	}
	exporter, err := export.New(cfg.ExportPath, exportOpts...)
	if err != nil {
		return nil, err
	}

	var tapOpts []tap.Option
	if cfg.QueueDepth > 0 {
		tapOpts = append(tapOpts, tap.WithQueueDepth(cfg.QueueDepth))
	}

	e := &Engine{
		logger:   slog.Default().With("engine uuid", uuid.New()),
		cfg:      cfg,
		graph:    g,
		player:   playback.New(g.Player()),
		recorder: tap.New(g, tapOpts...),
		exporter: exporter,
		hw:       hw,
	}

	e.player.OnStateChange(func(s playback.State) {
		e.logger.Debug("playback state", "state", s)
	})

	return e, nil
}

// Graph exposes the signal graph for parameter access.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Config is the resolved configuration.
func (e *Engine) Config() Config { return e.cfg }

// Start claims the hardware and starts rendering. Errors wrap
// audio.ErrEngineStart.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.graph.Start(e.hw); err != nil {
		return err
	}
	e.logger.Info("engine started", "format", e.graph.Format(), "recording", e.cfg.RecordingPath)

	return nil
}

// Running reports whether the device is rendering.
func (e *Engine) Running() bool { return e.graph.Running() }

// Close stops recording and playback and releases the hardware. The engine
// cannot be restarted afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	recErr := e.recorder.Stop()
	e.player.Stop()
	stopErr := e.graph.Stop()
	closeErr := e.player.Close()

	e.logger.Info("engine closed")

	return errors.Join(recErr, stopErr, closeErr)
}

// Load makes clip the playback source. A playing clip stops.
func (e *Engine) Load(clip *audio.Clip) error {
	return e.player.Load(clip)
}

// LoadFile decodes path into the working format and loads it.
func (e *Engine) LoadFile(path string) error {
	clip, err := LoadFile(path, e.graph.Format())
	if err != nil {
		return err
	}
	e.logger.Info("source loaded", "path", path, "frames", clip.Frames())

	return e.player.Load(clip)
}

// TogglePlayback starts the loaded clip from the top or stops it. It returns
// audio.ErrNoSourceLoaded when nothing is loaded.
func (e *Engine) TogglePlayback() (playback.State, error) {
	return e.player.Play()
}

// PlaybackState is the current playback state.
func (e *Engine) PlaybackState() playback.State { return e.player.State() }

// OnPlaybackChange registers fn for playback state changes, including the
// return to Idle at the end of the clip.
func (e *Engine) OnPlaybackChange(fn func(playback.State)) {
	e.player.OnStateChange(fn)
}

// StartRecording records the output mix to RecordingPath, replacing any
// previous recording. The engine must be running.
func (e *Engine) StartRecording() error {
	if !e.graph.Running() {
		return graph.ErrNotStarted
	}

	return e.recorder.Start(e.cfg.RecordingPath)
}

// StopRecording finishes the recording file. It is a no-op when not
// recording.
func (e *Engine) StopRecording() error {
	return e.recorder.Stop()
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool { return e.recorder.Recording() }

// Amplitude is the level of the last recorded cycle in [0, 1], zero when not
// recording.
func (e *Engine) Amplitude() float32 { return e.recorder.Amplitude() }

// Export finishes a running recording and transcodes it to ExportPath.
func (e *Engine) Export(ctx context.Context) (string, error) {
	if e.recorder.Recording() {
		if err := e.recorder.Stop(); err != nil {
			e.logger.Warn("recording closed with errors", "error", err)
		}
	}

	return e.exporter.Export(ctx, e.cfg.RecordingPath)
}

// SetPitch sets the pitch shift in cents and returns the stored value.
func (e *Engine) SetPitch(cents float32) float32 { return e.graph.SetPitch(cents) }

// SetReverbMix sets the reverb wet mix in percent.
func (e *Engine) SetReverbMix(percent float32) float32 { return e.graph.SetReverbMix(percent) }

// SetBandGain sets the gain of equalizer band 0, 1 or 2 in dB.
func (e *Engine) SetBandGain(band int, db float32) (float32, error) {
	return e.graph.SetBandGain(band, db)
}

// SetMicVolume sets the microphone gain.
func (e *Engine) SetMicVolume(gain float32) float32 { return e.graph.SetMicVolume(gain) }

// SetPlayerVolume sets the file player gain.
func (e *Engine) SetPlayerVolume(gain float32) float32 { return e.graph.SetPlayerVolume(gain) }

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Stats:          e.graph.Stats(),
		Running:        e.graph.Running(),
		Playback:       e.player.State(),
		Recording:      e.recorder.Recording(),
		Amplitude:      e.recorder.Amplitude(),
		TapDropped:     e.recorder.Dropped(),
		TapWriteErrors: e.recorder.WriteFailures(),
	}
}
