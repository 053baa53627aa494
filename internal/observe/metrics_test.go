// SPDX-License-Identifier: EPL-2.0

package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

func TestRecordExport(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordExport(ctx, StatusOK, 0.4)
	m.RecordExport(ctx, StatusOK, 1.2)
	m.RecordExport(ctx, StatusNoRecording, -1)

	rm := collect(t, reader)

	count := findMetric(rm, "audrig.export.count")
	if count == nil {
		t.Fatal("export counter not found")
	}
	sum, ok := count.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("counter data is %T", count.Data)
	}
	total := int64(0)
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Errorf("export count = %d, want 3", total)
	}

	hist := findMetric(rm, "audrig.export.duration")
	if hist == nil {
		t.Fatal("export histogram not found")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("histogram data is %T", hist.Data)
	}
	n := uint64(0)
	for _, dp := range h.DataPoints {
		n += dp.Count
	}
	if n != 2 {
		t.Errorf("histogram count = %d, want 2", n)
	}
}

func TestObserveEngine(t *testing.T) {
	m, reader := newTestMetrics(t)

	stats := EngineStats{
		Mode:           "engine",
		Running:        true,
		RenderCycles:   42,
		RenderFailures: 1,
		TapDropped:     3,
		Amplitude:      0.5,
	}

	reg, err := m.ObserveEngine(func() EngineStats { return stats })
	if err != nil {
		t.Fatalf("ObserveEngine: %v", err)
	}

	rm := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"audrig.render.cycles", 42},
		{"audrig.render.failures", 1},
		{"audrig.tap.dropped", 3},
		{"audrig.running", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findMetric(rm, tt.name)
			if got == nil {
				t.Fatal("metric not found")
			}

			var points []metricdata.DataPoint[int64]
			switch d := got.Data.(type) {
			case metricdata.Sum[int64]:
				points = d.DataPoints
			case metricdata.Gauge[int64]:
				points = d.DataPoints
			default:
				t.Fatalf("data is %T", got.Data)
			}
			if len(points) != 1 || points[0].Value != tt.want {
				t.Errorf("points = %+v, want one point of %d", points, tt.want)
			}
		})
	}

	amp := findMetric(rm, "audrig.amplitude")
	if amp == nil {
		t.Fatal("amplitude gauge not found")
	}
	if g, ok := amp.Data.(metricdata.Gauge[float64]); !ok || g.DataPoints[0].Value != 0.5 {
		t.Errorf("amplitude = %+v", amp.Data)
	}

	if err := reg.Unregister(); err != nil {
		t.Errorf("Unregister: %v", err)
	}
}

func TestProviderHandler(t *testing.T) {
	p, err := InitProvider(context.Background(), "", "test")
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	m, err := NewMetrics(p)
	if err != nil {
		t.Fatal(err)
	}
	m.RecordExport(context.Background(), StatusOK, 0.1)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "audrig_export_count") {
		t.Errorf("metrics output lacks the export counter:\n%s", body)
	}
}
