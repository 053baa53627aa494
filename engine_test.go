// SPDX-License-Identifier: EPL-2.0

package audrig_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gowav "github.com/go-audio/wav"
	"github.com/ik5/audrig"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/export"
	"github.com/ik5/audrig/graph"
	"github.com/ik5/audrig/hal"
	"github.com/ik5/audrig/hal/haltest"
	"github.com/ik5/audrig/internal/audiotest"
	"github.com/ik5/audrig/playback"
)

func copyFile(_ context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func newEngine(t *testing.T) (*audrig.Engine, *haltest.FakeHardware, audrig.Config) {
	t.Helper()

	cfg := audrig.DefaultConfig(t.TempDir())
	cfg.MaxFrames = 1024
	cfg.QueueDepth = 256
	cfg.Transcoder = export.TranscoderFunc(copyFile)

	hw := haltest.New()
	eng, err := audrig.New(cfg, hw)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	return eng, hw, cfg
}

func TestNew_NoHardware(t *testing.T) {
	t.Parallel()

	if _, err := audrig.New(audrig.Config{}, nil); !errors.Is(err, audio.ErrConfiguration) {
		t.Errorf("New() error = %v", err)
	}
}

func TestNew_BadFormat(t *testing.T) {
	t.Parallel()

	cfg := audrig.DefaultConfig(t.TempDir())
	cfg.Format = audio.FloatFormat(44100, 6)
	if _, err := audrig.New(cfg, haltest.New()); err == nil {
		t.Error("New() accepted six channels")
	}
}

func TestEngine_Parameters(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)

	eng.SetPitch(1200)
	eng.SetReverbMix(50)
	for band, db := range []float32{3, 0, -3} {
		if _, err := eng.SetBandGain(band, db); err != nil {
			t.Fatal(err)
		}
	}

	g := eng.Graph()
	if g.Pitch().Cents() != 1200 || g.Reverb().WetDryMix() != 50 {
		t.Errorf("pitch %v, reverb %v", g.Pitch().Cents(), g.Reverb().WetDryMix())
	}
	for band, want := range []float32{3, 0, -3} {
		b, _ := g.Equalizer().Band(band)
		if b.Gain != want {
			t.Errorf("band %d gain = %v, want %v", band, b.Gain, want)
		}
	}

	if v := eng.SetMicVolume(2); v != 1 {
		t.Errorf("SetMicVolume(2) = %v", v)
	}
	if v := eng.SetPlayerVolume(-1); v != 0 {
		t.Errorf("SetPlayerVolume(-1) = %v", v)
	}
}

func TestEngine_StartFailure(t *testing.T) {
	t.Parallel()

	hw := haltest.New()
	hw.Occupy()

	eng, err := audrig.New(audrig.DefaultConfig(t.TempDir()), hw)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	if err := eng.Start(); !errors.Is(err, audio.ErrEngineStart) {
		t.Errorf("Start() error = %v", err)
	}
	if eng.Running() {
		t.Error("Running() after failed start")
	}
}

func TestEngine_RecordingNeedsRunningEngine(t *testing.T) {
	t.Parallel()

	eng, _, cfg := newEngine(t)

	if err := eng.StartRecording(); !errors.Is(err, graph.ErrNotStarted) {
		t.Errorf("StartRecording() error = %v", err)
	}
	if _, err := os.Stat(cfg.RecordingPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("recording file created without a running engine")
	}
	if err := eng.StopRecording(); err != nil {
		t.Errorf("StopRecording() when idle = %v", err)
	}
}

func TestEngine_ExportWithoutRecording(t *testing.T) {
	t.Parallel()

	eng, _, cfg := newEngine(t)

	if _, err := eng.Export(context.Background()); !errors.Is(err, audio.ErrNoRecordingAvailable) {
		t.Fatalf("Export() error = %v", err)
	}
	if _, err := os.Stat(cfg.ExportPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("export file created without a recording")
	}
}

func TestEngine_Session(t *testing.T) {
	t.Parallel()

	eng, hw, cfg := newEngine(t)
	hw.SetCapture(audiotest.Sine(44100, 1000, 0.2))

	if err := eng.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	states := make(chan playback.State, 8)
	eng.OnPlaybackChange(func(s playback.State) { states <- s })

	clip := &audio.Clip{Format: audio.FloatFormat(44100, 2), Samples: make([]float32, 2*1000)}
	if err := eng.Load(clip); err != nil {
		t.Fatal(err)
	}
	if st, err := eng.TogglePlayback(); err != nil || st != playback.Playing {
		t.Fatalf("TogglePlayback() = %v, %v", st, err)
	}

	if err := eng.StartRecording(); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if !eng.Recording() {
		t.Error("Recording() = false")
	}

	for range 20 {
		if _, st := hw.Tick(512); st != hal.StatusOK {
			t.Fatalf("Tick() status = %v", st)
		}
		if a := eng.Amplitude(); a <= 0 || a > 1 {
			t.Fatalf("Amplitude() = %v", a)
		}
	}

	<-states
	select {
	case s := <-states:
		if s != playback.Idle {
			t.Errorf("state after clip end = %v", s)
		}
	case <-time.After(2 * time.Second):
		t.Error("no Idle notification at the end of the clip")
	}

	// export closes the running recording first
	out, err := eng.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if out != cfg.ExportPath {
		t.Errorf("Export() = %q, want %q", out, cfg.ExportPath)
	}
	if eng.Recording() || eng.Amplitude() != 0 {
		t.Error("recording still active after export")
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	buf, err := gowav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if n := buf.NumFrames(); n != 20*512 {
		t.Errorf("exported %d frames, want %d", n, 20*512)
	}

	s := eng.Stats()
	if !s.Running || s.Cycles != 20 || s.Failures != 0 || s.TapDropped != 0 {
		t.Errorf("Stats() = %+v", s)
	}

	if err := eng.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if hw.Claimed() {
		t.Error("hardware still claimed after Close")
	}
}

func TestEngine_LoadFile(t *testing.T) {
	t.Parallel()

	eng, _, cfg := newEngine(t)

	if err := eng.LoadFile(filepath.Join(filepath.Dir(cfg.RecordingPath), "missing.wav")); err == nil {
		t.Error("LoadFile() of a missing file succeeded")
	}
	if _, err := eng.TogglePlayback(); !errors.Is(err, audio.ErrNoSourceLoaded) {
		t.Errorf("TogglePlayback() error = %v", err)
	}
}
