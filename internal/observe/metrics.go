// SPDX-License-Identifier: EPL-2.0

// Package observe holds the OpenTelemetry instruments of audrig.
//
// Metrics are recorded through the OpenTelemetry API. InitProvider installs
// an SDK provider whose reader is the Prometheus exporter, and Handler serves
// the result on /metrics. Tests build Metrics on their own provider with a
// ManualReader.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ik5/audrig"

// Export results recorded on the export counter.
const (
	StatusOK          = "ok"
	StatusNoRecording = "no_recording"
	StatusFailed      = "failed"
)

var exportBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Metrics holds the instruments shared by the engine components.
type Metrics struct {
	meter metric.Meter

	// ExportDuration is the wall time of a transcode.
	ExportDuration metric.Float64Histogram

	// Exports counts export attempts by attribute "status".
	Exports metric.Int64Counter
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := &Metrics{meter: mp.Meter(meterName)}

	var err error
	if m.ExportDuration, err = m.meter.Float64Histogram("audrig.export.duration",
		metric.WithDescription("Duration of recording exports."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(exportBuckets...),
	); err != nil {
		return nil, err
	}

	if m.Exports, err = m.meter.Int64Counter("audrig.export.count",
		metric.WithDescription("Export attempts by status."),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordExport counts one export with status and, for finished transcodes,
// its duration in seconds. A negative duration is not recorded.
func (m *Metrics) RecordExport(ctx context.Context, status string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("status", status))

	m.Exports.Add(ctx, 1, attrs)
	if seconds >= 0 {
		m.ExportDuration.Record(ctx, seconds, attrs)
	}
}

// EngineStats is a point-in-time view of a running engine.
type EngineStats struct {
	Mode           string
	Running        bool
	RenderCycles   uint64
	RenderFailures uint64
	Underruns      uint64
	Overruns       uint64
	TapDropped     uint64
	TapWriteErrors uint64
	Amplitude      float64
}

// ObserveEngine registers observable instruments read from fn at every
// collection. Unregister the returned registration when the engine goes away.
func (m *Metrics) ObserveEngine(fn func() EngineStats) (metric.Registration, error) {
	cycles, err := m.meter.Int64ObservableCounter("audrig.render.cycles",
		metric.WithDescription("Render callbacks completed."))
	if err != nil {
		return nil, err
	}
	failures, err := m.meter.Int64ObservableCounter("audrig.render.failures",
		metric.WithDescription("Render callbacks that returned a failure status."))
	if err != nil {
		return nil, err
	}
	underruns, err := m.meter.Int64ObservableCounter("audrig.convert.underruns",
		metric.WithDescription("Capture converter cycles short of frames."))
	if err != nil {
		return nil, err
	}
	overruns, err := m.meter.Int64ObservableCounter("audrig.convert.overruns",
		metric.WithDescription("Capture converter frames dropped on overflow."))
	if err != nil {
		return nil, err
	}
	dropped, err := m.meter.Int64ObservableCounter("audrig.tap.dropped",
		metric.WithDescription("Recording buffers dropped because the queue was full."))
	if err != nil {
		return nil, err
	}
	writeErrs, err := m.meter.Int64ObservableCounter("audrig.tap.write_errors",
		metric.WithDescription("Recording buffers that could not be written."))
	if err != nil {
		return nil, err
	}
	amplitude, err := m.meter.Float64ObservableGauge("audrig.amplitude",
		metric.WithDescription("Amplitude of the last recorded buffer, 0 to 1."))
	if err != nil {
		return nil, err
	}
	running, err := m.meter.Int64ObservableGauge("audrig.running",
		metric.WithDescription("1 while the audio device is running."))
	if err != nil {
		return nil, err
	}

	return m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := fn()
		attrs := metric.WithAttributes(attribute.String("mode", s.Mode))

		o.ObserveInt64(cycles, int64(s.RenderCycles), attrs)
		o.ObserveInt64(failures, int64(s.RenderFailures), attrs)
		o.ObserveInt64(underruns, int64(s.Underruns), attrs)
		o.ObserveInt64(overruns, int64(s.Overruns), attrs)
		o.ObserveInt64(dropped, int64(s.TapDropped), attrs)
		o.ObserveInt64(writeErrs, int64(s.TapWriteErrors), attrs)
		o.ObserveFloat64(amplitude, s.Amplitude, attrs)

		up := int64(0)
		if s.Running {
			up = 1
		}
		o.ObserveInt64(running, up, attrs)

		return nil
	}, cycles, failures, underruns, overruns, dropped, writeErrs, amplitude, running)
}
