// SPDX-License-Identifier: EPL-2.0

// Package loopback copies microphone frames straight to the speaker.
//
// Both buses run in audio.LoopbackFormat. On every device cycle the engine
// pulls the capture frames into a scratch region sized once by New and copies
// them to the output region byte for byte. The callback never allocates,
// locks or logs; failures are counted and handed to a logging goroutine
// through a buffered channel that drops when full.
package loopback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/hal"
)

// DefaultMaxFrames is the scratch size used when New gets zero.
const DefaultMaxFrames = 4096

const diagDepth = 16

// Stats are the callback counters.
type Stats struct {
	Cycles     uint64
	Failures   uint64
	LastStatus hal.Status
}

// Engine owns a device while running. An engine that could not claim its
// device stays failed.
type Engine struct {
	logger *slog.Logger
	hw     hal.Interface
	max    int

	// render thread only
	region []byte
	view   hal.BufferList

	running    atomic.Bool
	cycles     atomic.Uint64
	failures   atomic.Uint64
	lastStatus atomic.Int32
	diag       chan hal.Status

	mu       sync.Mutex
	started  bool
	terminal error
	quit     chan struct{}
	done     chan struct{}
}

// New sizes the scratch region for maxFrames frames per cycle.
func New(hw hal.Interface, maxFrames int) (*Engine, error) {
	if hw == nil {
		return nil, fmt.Errorf("%w: no audio hardware", audio.ErrConfiguration)
	}
	if maxFrames < 0 {
		return nil, fmt.Errorf("%w: max frames %d", audio.ErrConfiguration, maxFrames)
	}
	if maxFrames == 0 {
		maxFrames = DefaultMaxFrames
	}

	e := &Engine{
		logger: slog.Default().With("loopback uuid", uuid.New()),
		hw:     hw,
		max:    maxFrames,
		region: make([]byte, maxFrames*audio.LoopbackFormat.FrameBytes()),
		view:   hal.BufferList{Buffers: make([]hal.Buffer, 1)},
		diag:   make(chan hal.Status, diagDepth),
	}
	e.view.Buffers[0].Channels = audio.LoopbackFormat.Channels

	return e, nil
}

// MaxFrames is the largest cycle the scratch region holds.
func (e *Engine) MaxFrames() int { return e.max }

// Running reports whether the device is started.
func (e *Engine) Running() bool { return e.running.Load() }

// Start claims the device, sets both buses to audio.LoopbackFormat and starts
// it. A failed claim is returned as audio.ErrEngineStart by this and every
// later Start.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminal != nil {
		return e.terminal
	}
	if e.started {
		return ErrRunning
	}

	if err := e.hw.Claim(); err != nil {
		e.terminal = fmt.Errorf("%w: %w", audio.ErrEngineStart, err)
		e.logger.Error("cannot claim audio hardware", "error", err)

		return e.terminal
	}

	err := errors.Join(
		e.hw.EnableIO(hal.InputBus, true),
		e.hw.EnableIO(hal.OutputBus, true),
		e.hw.SetFormat(hal.InputBus, audio.LoopbackFormat),
		e.hw.SetFormat(hal.OutputBus, audio.LoopbackFormat),
		e.hw.SetRenderCallback(e.Render),
	)
	if err == nil {
		e.running.Store(true)
		err = e.hw.Start()
	}
	if err != nil {
		e.running.Store(false)
		_ = e.hw.Release()
		e.logger.Error("cannot start audio hardware", "error", err)

		return fmt.Errorf("%w: %w", audio.ErrEngineStart, err)
	}

	e.started = true
	e.quit = make(chan struct{})
	e.done = make(chan struct{})
	go e.report(e.quit, e.done)

	e.logger.Info("loopback started", "format", audio.LoopbackFormat, "max_frames", e.max)

	return nil
}

// Stop halts and releases the device. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}
	e.started = false
	e.running.Store(false)

	err := errors.Join(e.hw.Stop(), e.hw.Release())

	close(e.quit)
	<-e.done

	e.logger.Info("loopback stopped", "cycles", e.cycles.Load(), "failures", e.failures.Load())

	return err
}

// Render is the device callback. A failed capture pull is returned as is and
// out is not touched. With no output regions the cycle is a successful no-op.
func (e *Engine) Render(frames int, out *hal.BufferList) hal.Status {
	if !e.running.Load() {
		return hal.StatusNotRunning
	}
	if frames <= 0 {
		return hal.StatusOK
	}

	size := frames * audio.LoopbackFormat.FrameBytes()
	if size > len(e.region) {
		return e.fail(hal.StatusAllocationFailure)
	}

	e.view.Buffers[0].Data = e.region[:size]
	if st := e.hw.Render(hal.InputBus, frames, &e.view); st != hal.StatusOK {
		return e.fail(st)
	}

	if len(out.Buffers) > 0 {
		dst := out.Buffers[0].Data
		if len(dst) > size {
			return e.fail(hal.StatusAllocationFailure)
		}
		copy(dst, e.region[:len(dst)])
	}

	e.cycles.Add(1)

	return hal.StatusOK
}

func (e *Engine) fail(st hal.Status) hal.Status {
	e.failures.Add(1)
	e.lastStatus.Store(int32(st))

	select {
	case e.diag <- st:
	default:
	}

	return st
}

func (e *Engine) report(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case st := <-e.diag:
			e.logger.Warn("loopback cycle failed", "status", st, "error", st.Err(), "failures", e.failures.Load())
		case <-quit:
			return
		}
	}
}

// Stats returns the callback counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Cycles:     e.cycles.Load(),
		Failures:   e.failures.Load(),
		LastStatus: hal.Status(e.lastStatus.Load()),
	}
}
