// SPDX-License-Identifier: EPL-2.0

// Package miniaudio implements hal.Interface on top of miniaudio through
// github.com/gen2brain/malgo. The device runs in duplex mode whenever the
// input bus is enabled, so capture frames of a cycle are available to the
// render callback of the same cycle. Both buses then run at the playback
// rate; CaptureFormat gives the input format to configure.
package miniaudio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/hal"
)

// CaptureFormat is the capture bus format a duplex device delivers for in
// when playback runs at outputRate. miniaudio converts capture to the playback
// rate itself, so only the channel count and encoding of in survive.
func CaptureFormat(in audio.Format, outputRate int) audio.Format {
	in.SampleRate = outputRate
	return in
}

// owned guards the physical device across every Device in the process.
var owned atomic.Bool

var _ hal.Interface = (*Device)(nil)

// Device is a claimable miniaudio duplex device.
type Device struct {
	mu     sync.Mutex
	logger *slog.Logger

	periodFrames uint32

	ctx     *malgo.AllocatedContext
	dev     *malgo.Device
	enabled [2]bool
	formats [2]audio.Format
	render  hal.RenderFunc

	// valid only while the data callback runs
	capture []byte
	out     hal.BufferList

	failures atomic.Uint64
}

// New returns an unclaimed device. periodFrames is the requested buffer size
// per callback, 0 lets the backend decide.
func New(periodFrames int) *Device {
	return &Device{
		logger:       slog.Default().With("miniaudio uuid", uuid.New()),
		periodFrames: uint32(max(periodFrames, 0)),
		out:          hal.BufferList{Buffers: make([]hal.Buffer, 1)},
	}
}

// Failures counts callbacks whose renderer returned a non-OK status.
func (d *Device) Failures() uint64 { return d.failures.Load() }

func (d *Device) Claim() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !owned.CompareAndSwap(false, true) {
		return hal.ErrInUse
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		d.logger.Debug("miniaudio", "message", msg)
	})
	if err != nil {
		owned.Store(false)
		return fmt.Errorf("%w: %w", hal.ErrInUse, err)
	}
	d.ctx = ctx

	return nil
}

func (d *Device) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx == nil {
		return hal.ErrNotClaimed
	}

	var errs []error
	if d.dev != nil {
		errs = append(errs, d.stopLocked())
	}

	errs = append(errs, d.ctx.Uninit())
	d.ctx.Free()
	d.ctx = nil
	d.enabled = [2]bool{}
	d.render = nil
	owned.Store(false)

	return errors.Join(errs...)
}

func (d *Device) EnableIO(bus hal.Bus, enable bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(bus); err != nil {
		return err
	}
	d.enabled[bus] = enable

	return nil
}

func (d *Device) SetFormat(bus hal.Bus, f audio.Format) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.check(bus); err != nil {
		return err
	}
	if _, err := formatType(f); err != nil {
		return err
	}
	d.formats[bus] = f

	return nil
}

func (d *Device) SetRenderCallback(fn hal.RenderFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx == nil {
		return hal.ErrNotClaimed
	}
	d.render = fn

	return nil
}

func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.ctx == nil:
		return hal.ErrNotClaimed
	case d.dev != nil:
		return hal.ErrRunning
	case d.render == nil:
		return hal.ErrNoCallback
	}

	cfg, err := deviceConfig(d.enabled, d.formats, d.periodFrames)
	if err != nil {
		d.logger.Error("cannot configure device", "error", err)
		return err
	}
	d.logger.Debug("device config", "type", cfg.DeviceType, "rate", cfg.SampleRate, "period", cfg.PeriodSizeInFrames)

	dev, err := malgo.InitDevice(d.ctx.Context, cfg, malgo.DeviceCallbacks{Data: d.onData})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start device: %w", err)
	}
	d.dev = dev

	d.logger.Info("device started",
		"output", d.formats[hal.OutputBus],
		"input", d.formats[hal.InputBus],
		"input enabled", d.enabled[hal.InputBus],
	)

	return nil
}

func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx == nil {
		return hal.ErrNotClaimed
	}
	if d.dev == nil {
		return nil
	}

	return d.stopLocked()
}

func (d *Device) stopLocked() error {
	err := d.dev.Stop()
	d.dev.Uninit()
	d.dev = nil

	return err
}

func (d *Device) check(bus hal.Bus) error {
	if d.ctx == nil {
		return hal.ErrNotClaimed
	}
	if !bus.Valid() {
		return hal.ErrInvalidBus
	}
	if d.dev != nil {
		return hal.ErrRunning
	}

	return nil
}

// onData runs on miniaudio's thread. It must not lock d.mu: Stop holds it
// while waiting for the callback to return.
func (d *Device) onData(out, in []byte, frames uint32) {
	d.capture = in
	d.out.Buffers[0] = hal.Buffer{Channels: d.formats[hal.OutputBus].Channels, Data: out}

	if st := d.render(int(frames), &d.out); st != hal.StatusOK {
		d.failures.Add(1)
	}

	d.capture = nil
}

// Render copies the capture region of the running callback into dst.
func (d *Device) Render(bus hal.Bus, frames int, dst *hal.BufferList) hal.Status {
	if bus != hal.InputBus || !d.enabled[hal.InputBus] {
		return hal.StatusInvalidBus
	}
	if d.capture == nil {
		return hal.StatusNoData
	}
	if len(dst.Buffers) == 0 {
		return hal.StatusAllocationFailure
	}

	size := frames * d.formats[hal.InputBus].FrameBytes()
	if len(d.capture) < size {
		return hal.StatusNoData
	}
	if len(dst.Buffers[0].Data) < size {
		return hal.StatusAllocationFailure
	}
	copy(dst.Buffers[0].Data, d.capture[:size])

	return hal.StatusOK
}

func formatType(f audio.Format) (malgo.FormatType, error) {
	switch {
	case f.Encoding == audio.EncodingInt && f.BitDepth == 16:
		return malgo.FormatS16, nil
	case f.Encoding == audio.EncodingFloat && f.BitDepth == 32:
		return malgo.FormatF32, nil
	default:
		return malgo.FormatUnknown, fmt.Errorf("%w: %s", audio.ErrUnknownFormat, f)
	}
}

func deviceConfig(enabled [2]bool, formats [2]audio.Format, period uint32) (malgo.DeviceConfig, error) {
	kind := malgo.Playback
	if enabled[hal.InputBus] {
		kind = malgo.Duplex
	}
	if !enabled[hal.OutputBus] {
		return malgo.DeviceConfig{}, hal.ErrBusDisabled
	}

	out := formats[hal.OutputBus]
	outType, err := formatType(out)
	if err != nil {
		return malgo.DeviceConfig{}, err
	}

	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.SampleRate = uint32(out.SampleRate)
	cfg.PeriodSizeInFrames = period
	cfg.Playback.Format = outType
	cfg.Playback.Channels = uint32(out.Channels)

	if kind == malgo.Duplex {
		in := formats[hal.InputBus]
		inType, err := formatType(in)
		if err != nil {
			return malgo.DeviceConfig{}, err
		}
		if in.SampleRate != out.SampleRate {
			return malgo.DeviceConfig{}, fmt.Errorf("%w: capture at %d Hz, device runs at %d Hz",
				audio.ErrConfiguration, in.SampleRate, out.SampleRate)
		}
		cfg.Capture.Format = inType
		cfg.Capture.Channels = uint32(in.Channels)
	}

	return cfg, nil
}
