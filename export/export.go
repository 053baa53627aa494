// SPDX-License-Identifier: EPL-2.0

// Package export turns the current recording into a compressed artifact.
//
// Service owns the destination path. Every export removes the previous
// artifact first, runs the Transcoder on its own goroutine and waits for it.
// A failed transcode leaves no output behind.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/internal/observe"
	"golang.org/x/sync/singleflight"
)

// Transcoder converts the file at src into dst.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// TranscoderFunc adapts a function to Transcoder.
type TranscoderFunc func(ctx context.Context, src, dst string) error

func (f TranscoderFunc) Transcode(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// Option configures a Service.
type Option func(*Service)

// WithTranscoder replaces the default OpusTranscoder.
func WithTranscoder(t Transcoder) Option {
	return func(s *Service) { s.transcoder = t }
}

// WithMetrics records every export on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service exports recordings to a fixed path.
type Service struct {
	logger     *slog.Logger
	output     string
	transcoder Transcoder
	metrics    *observe.Metrics
	group      singleflight.Group
}

// New returns a service writing to output.
func New(output string, opts ...Option) (*Service, error) {
	if output == "" {
		return nil, fmt.Errorf("%w: empty export path", audio.ErrConfiguration)
	}

	s := &Service{
		logger:     slog.Default().With("export uuid", uuid.New()),
		output:     output,
		transcoder: &OpusTranscoder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Output is the artifact path.
func (s *Service) Output() string { return s.output }

// Export transcodes recording into Output and returns that path.
//
// Without a recording file it fails with audio.ErrNoRecordingAvailable and
// creates nothing. ctx is only checked before the transcode starts; once it
// runs, Export waits for it. A transcoder error is wrapped in
// audio.ErrExportFailed. Concurrent calls for the same recording share one
// transcode; calls for different recordings run one after the other.
func (s *Service) Export(ctx context.Context, recording string) (string, error) {
	info, err := os.Stat(recording)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.record(ctx, observe.StatusNoRecording, -1)
		return "", fmt.Errorf("%w: %s", audio.ErrNoRecordingAvailable, recording)
	case err != nil:
		s.record(ctx, observe.StatusFailed, -1)
		return "", fmt.Errorf("%w: %w", audio.ErrExportFailed, err)
	case info.IsDir():
		s.record(ctx, observe.StatusNoRecording, -1)
		return "", fmt.Errorf("%w: %s is a directory", audio.ErrNoRecordingAvailable, recording)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// One transcode per artifact at a time. A caller that joined a flight
	// for another recording runs its own once that one is done.
	for {
		v, err, shared := s.group.Do(s.output, func() (any, error) {
			return recording, s.run(ctx, recording)
		})
		if shared && v != recording {
			s.logger.Debug("export waited for another recording", "recording", recording, "other", v)
			continue
		}
		if shared {
			s.logger.Debug("export shared with a concurrent call", "recording", recording)
		}
		if err != nil {
			return "", err
		}

		return s.output, nil
	}
}

func (s *Service) run(ctx context.Context, recording string) error {
	if err := os.Remove(s.output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.record(ctx, observe.StatusFailed, -1)
		return fmt.Errorf("%w: remove previous export: %w", audio.ErrExportFailed, err)
	}

	s.logger.Info("export started", "recording", recording, "output", s.output)
	start := time.Now()

	done := make(chan error, 1)
	go func() {
		done <- s.transcoder.Transcode(context.WithoutCancel(ctx), recording, s.output)
	}()
	err := <-done

	elapsed := time.Since(start)

	if err != nil {
		if rmErr := os.Remove(s.output); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("cannot remove partial export", "output", s.output, "error", rmErr)
		}
		s.record(ctx, observe.StatusFailed, elapsed.Seconds())
		s.logger.Error("export failed", "recording", recording, "error", err)

		return fmt.Errorf("%w: %w", audio.ErrExportFailed, err)
	}

	s.record(ctx, observe.StatusOK, elapsed.Seconds())
	s.logger.Info("export finished", "output", s.output, "duration", elapsed)

	return nil
}

func (s *Service) record(ctx context.Context, status string, seconds float64) {
	if s.metrics != nil {
		s.metrics.RecordExport(context.WithoutCancel(ctx), status, seconds)
	}
}
