// SPDX-License-Identifier: EPL-2.0

// Package tap records the output of a graph node to a WAV file and meters it.
//
// The tap callback runs on the render thread. It only computes the meter and
// copies the block into a lock-free ring; a writer goroutine drains the ring
// into the file. When the writer falls behind and the ring is full, blocks are
// dropped and counted rather than waited for.
package tap

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/formats/wav"
	"github.com/ik5/audrig/graph"
)

const (
	DefaultQueueDepth = 64
	// drainInterval wakes the writer when a notification was missed.
	drainInterval = 20 * time.Millisecond
)

// Graph is what the tap needs from the signal graph.
type Graph interface {
	InstallTap(id string, fn graph.TapFunc) error
	RemoveTap(id string) error
	Format() audio.Format
	MaxFrames() int
}

// Option configures a Tap.
type Option func(*Tap)

// WithQueueDepth sets the number of blocks the ring holds.
func WithQueueDepth(n int) Option {
	return func(t *Tap) {
		if n > 0 {
			t.depth = n
		}
	}
}

// WithNode taps a node other than the graph output.
func WithNode(id string) Option {
	return func(t *Tap) { t.node = id }
}

// Tap records one node of a graph.
type Tap struct {
	logger *slog.Logger
	g      Graph
	node   string
	depth  int

	mu   sync.Mutex
	sess *session

	active    atomic.Bool
	amplitude atomic.Uint32
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

type session struct {
	id     uuid.UUID
	path   string
	rec    *wav.Recorder
	ring   *ring
	notify chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// New returns an idle tap on g. By default it taps graph.IDOutput.
func New(g Graph, opts ...Option) *Tap {
	t := &Tap{
		logger: slog.Default().With("tap uuid", uuid.New()),
		g:      g,
		node:   graph.IDOutput,
		depth:  DefaultQueueDepth,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start truncates path, opens it at the graph format and installs the tap.
func (t *Tap) Start(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess != nil {
		return ErrAlreadyRecording
	}

	f := t.g.Format()
	rec, err := wav.NewRecorder(path, f)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}

	s := &session{
		id:     uuid.New(),
		path:   path,
		rec:    rec,
		ring:   newRing(t.depth, t.g.MaxFrames()*f.Channels),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	t.amplitude.Store(0)
	t.active.Store(true)

	if err := t.g.InstallTap(t.node, t.callback(s, f.Channels)); err != nil {
		t.active.Store(false)
		_ = rec.Close()

		return fmt.Errorf("install tap: %w", err)
	}

	t.sess = s
	go t.write(s)

	t.logger.Info("recording started", "session", s.id, "path", path, "format", f)

	return nil
}

// callback is the render thread half. It never blocks.
func (t *Tap) callback(s *session, channels int) graph.TapFunc {
	return func(buf audio.Buffer) {
		data := buf.Data()
		t.amplitude.Store(math.Float32bits(Amplitude(data, channels)))

		if !s.ring.push(data) {
			t.dropped.Add(1)
		}

		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

func (t *Tap) write(s *session) {
	defer close(s.done)

	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.notify:
		case <-ticker.C:
		case <-s.stop:
			t.drain(s)
			return
		}
		t.drain(s)
	}
}

func (t *Tap) drain(s *session) {
	for block := s.ring.peek(); block != nil; block = s.ring.peek() {
		if err := s.rec.Write(block); err != nil {
			// the recorder rolled the file back, the block is lost
			t.failed.Add(1)
			t.logger.Warn("recording write failed", "session", s.id, "error", err)
		}
		s.ring.pop()
	}
}

// Stop removes the tap, flushes what is queued and closes the file. It is a
// no-op when nothing is recording.
func (t *Tap) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.sess
	if s == nil {
		return nil
	}
	t.sess = nil

	t.active.Store(false)
	rmErr := t.g.RemoveTap(t.node)

	close(s.stop)
	<-s.done

	err := s.rec.Close()
	t.amplitude.Store(0)

	t.logger.Info("recording stopped", "session", s.id, "path", s.path, "frames", s.rec.Frames(),
		"dropped", t.dropped.Load(), "failed writes", t.failed.Load())

	if rmErr != nil {
		return fmt.Errorf("remove tap: %w", rmErr)
	}
	if err != nil {
		return fmt.Errorf("close recording: %w", err)
	}

	return nil
}

// Recording reports whether a session is open.
func (t *Tap) Recording() bool { return t.active.Load() }

// Path is the file of the open session, empty when idle.
func (t *Tap) Path() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		return ""
	}
	return t.sess.path
}

// Amplitude is the meter value of the most recent block, 0 when idle.
func (t *Tap) Amplitude() float32 {
	if !t.active.Load() {
		return 0
	}
	return math.Float32frombits(t.amplitude.Load())
}

// Dropped counts blocks lost to a full ring.
func (t *Tap) Dropped() uint64 { return t.dropped.Load() }

// WriteFailures counts blocks the file rejected.
func (t *Tap) WriteFailures() uint64 { return t.failed.Load() }
