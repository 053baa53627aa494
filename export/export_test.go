// SPDX-License-Identifier: EPL-2.0

package export_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/export"
	"github.com/ik5/audrig/formats/wav"
	"github.com/ik5/audrig/internal/observe"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func writeRecording(t *testing.T, path string, rate, channels, frames int) {
	t.Helper()

	samples := make([]int16, frames*channels)
	for i := range frames {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		for c := range channels {
			samples[i*channels+c] = v
		}
	}

	var buf bytes.Buffer
	if err := wav.WritePCM16(&buf, rate, channels, samples); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func copyTranscoder(calls *atomic.Int32) export.Transcoder {
	return export.TranscoderFunc(func(_ context.Context, src, dst string) error {
		calls.Add(1)
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o644)
	})
}

func TestNew_EmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := export.New(""); !errors.Is(err, audio.ErrConfiguration) {
		t.Errorf("New(\"\") error = %v", err)
	}
}

func TestService_NoRecording(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "export.ogg")

	var calls atomic.Int32
	s, _ := export.New(out, export.WithTranscoder(copyTranscoder(&calls)))

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "recording.wav")},
		{"directory", dir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Export(context.Background(), tt.path)
			if !errors.Is(err, audio.ErrNoRecordingAvailable) {
				t.Fatalf("Export() error = %v, want ErrNoRecordingAvailable", err)
			}
			if got != "" {
				t.Errorf("Export() path = %q", got)
			}
		})
	}

	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("export file exists after failed export: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("transcoder ran %d times", calls.Load())
	}
}

func TestService_RemovesPriorArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := filepath.Join(dir, "recording.wav")
	out := filepath.Join(dir, "export.ogg")
	writeRecording(t, rec, 44100, 1, 100)

	if err := os.WriteFile(out, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	sawStale := false
	s, _ := export.New(out, export.WithTranscoder(export.TranscoderFunc(
		func(_ context.Context, src, dst string) error {
			if _, err := os.Stat(dst); err == nil {
				sawStale = true
			}
			return os.WriteFile(dst, []byte("fresh"), 0o644)
		})))

	got, err := s.Export(context.Background(), rec)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if got != out || s.Output() != out {
		t.Errorf("Export() = %q, want %q", got, out)
	}
	if sawStale {
		t.Error("previous export was still present during the transcode")
	}
	if data, _ := os.ReadFile(out); string(data) != "fresh" {
		t.Errorf("export content = %q", data)
	}
}

func TestService_FailureCleansUp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := filepath.Join(dir, "recording.wav")
	out := filepath.Join(dir, "export.ogg")
	writeRecording(t, rec, 44100, 1, 100)

	cause := errors.New("codec exploded")
	s, _ := export.New(out, export.WithTranscoder(export.TranscoderFunc(
		func(_ context.Context, _, dst string) error {
			_ = os.WriteFile(dst, []byte("partial"), 0o644)
			return cause
		})))

	_, err := s.Export(context.Background(), rec)
	if !errors.Is(err, audio.ErrExportFailed) || !errors.Is(err, cause) {
		t.Fatalf("Export() error = %v", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial output left behind: %v", err)
	}
}

func TestService_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := filepath.Join(dir, "recording.wav")
	writeRecording(t, rec, 44100, 1, 10)

	var calls atomic.Int32
	s, _ := export.New(filepath.Join(dir, "export.ogg"), export.WithTranscoder(copyTranscoder(&calls)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Export(ctx, rec); !errors.Is(err, context.Canceled) {
		t.Errorf("Export() error = %v", err)
	}
	if calls.Load() != 0 {
		t.Error("transcoder ran after cancellation")
	}
}

func TestService_RunsToCompletionAfterCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := filepath.Join(dir, "recording.wav")
	writeRecording(t, rec, 44100, 1, 10)

	ctx, cancel := context.WithCancel(context.Background())

	s, _ := export.New(filepath.Join(dir, "export.ogg"), export.WithTranscoder(export.TranscoderFunc(
		func(tctx context.Context, _, dst string) error {
			cancel()
			if tctx.Err() != nil {
				return tctx.Err()
			}
			return os.WriteFile(dst, []byte("done"), 0o644)
		})))

	if _, err := s.Export(ctx, rec); err != nil {
		t.Errorf("Export() error = %v", err)
	}
}

func TestService_ConcurrentExports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := filepath.Join(dir, "recording.wav")
	out := filepath.Join(dir, "export.ogg")
	writeRecording(t, rec, 44100, 1, 100)

	var calls atomic.Int32
	s, _ := export.New(out, export.WithTranscoder(copyTranscoder(&calls)))

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			if _, err := s.Export(context.Background(), rec); err != nil {
				t.Errorf("Export() error = %v", err)
			}
		})
	}
	wg.Wait()

	if n := calls.Load(); n < 1 || n > 8 {
		t.Errorf("transcoder calls = %d", n)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("export missing: %v", err)
	}
}

func TestService_DifferentRecordingsDoNotOverlap(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recs := []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b.wav")}
	writeRecording(t, recs[0], 44100, 1, 100)
	writeRecording(t, recs[1], 44100, 2, 100)

	var (
		inFlight, peak atomic.Int32
		mu             sync.Mutex
		sources        = map[string]int{}
	)
	started := make(chan struct{})
	var once sync.Once

	s, _ := export.New(filepath.Join(dir, "export.ogg"), export.WithTranscoder(export.TranscoderFunc(
		func(_ context.Context, src, dst string) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}

			mu.Lock()
			sources[src]++
			mu.Unlock()

			once.Do(func() { close(started) })
			time.Sleep(20 * time.Millisecond)

			data, err := os.ReadFile(src)
			if err != nil {
				return err
			}
			return os.WriteFile(dst, data, 0o644)
		},
	)))

	var wg sync.WaitGroup
	wg.Go(func() {
		if _, err := s.Export(context.Background(), recs[0]); err != nil {
			t.Errorf("Export(a) error = %v", err)
		}
	})
	<-started
	wg.Go(func() {
		if _, err := s.Export(context.Background(), recs[1]); err != nil {
			t.Errorf("Export(b) error = %v", err)
		}
	})
	wg.Wait()

	if p := peak.Load(); p != 1 {
		t.Errorf("%d transcodes wrote the artifact at once", p)
	}
	for _, rec := range recs {
		if sources[rec] == 0 {
			t.Errorf("%s was never transcoded", filepath.Base(rec))
		}
	}
}

func TestService_Metrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	rec := filepath.Join(dir, "recording.wav")
	writeRecording(t, rec, 44100, 1, 10)

	var calls atomic.Int32
	s, _ := export.New(filepath.Join(dir, "export.ogg"),
		export.WithTranscoder(copyTranscoder(&calls)),
		export.WithMetrics(m),
	)

	_, _ = s.Export(context.Background(), rec)
	_, _ = s.Export(context.Background(), filepath.Join(dir, "missing.wav"))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}

	byStatus := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "audrig.export.count" {
				continue
			}
			for _, dp := range md.Data.(metricdata.Sum[int64]).DataPoints {
				status, _ := dp.Attributes.Value("status")
				byStatus[status.AsString()] += dp.Value
			}
		}
	}

	if byStatus[observe.StatusOK] != 1 || byStatus[observe.StatusNoRecording] != 1 {
		t.Errorf("export counts = %v", byStatus)
	}
}
