// SPDX-License-Identifier: EPL-2.0

// Package playback drives the player node of a graph.
//
// The controller has two states. Play starts the loaded clip from its first
// frame; Play while playing stops and rewinds, there is no resume. A clip
// that plays to its end returns the controller to Idle and observers hear
// about it once.
package playback

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ik5/audrig/audio"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Player is the part of graph.PlayerNode the controller drives. Every
// Schedule and Stop returns a new generation; Done carries the generation of
// a clip that reached its end.
type Player interface {
	Schedule(clip *audio.Clip) (uint64, error)
	Stop() uint64
	Done() <-chan uint64
}

// Observer is told about every state change.
type Observer func(State)

// Controller is safe for concurrent use.
type Controller struct {
	logger *slog.Logger
	player Player

	mu        sync.Mutex
	clip      *audio.Clip
	state     State
	gen       uint64
	observers []Observer

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New starts the completion watcher. Close stops it.
func New(p Player) *Controller {
	c := &Controller{
		logger: slog.Default().With("playback uuid", uuid.New()),
		player: p,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.watch()

	return c
}

// Load replaces the clip. A playing clip is stopped first.
func (c *Controller) Load(clip *audio.Clip) error {
	if clip == nil {
		return audio.ErrNoSourceLoaded
	}

	c.mu.Lock()
	c.clip = clip
	changed := c.stopLocked()
	obs := c.observers
	c.mu.Unlock()

	c.logger.Debug("clip loaded", "format", clip.Format, "frames", clip.Frames())

	if changed {
		notify(obs, Idle)
	}

	return nil
}

// Loaded reports whether a clip is available.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clip != nil
}

// Play toggles between Idle and Playing and returns the new state.
func (c *Controller) Play() (State, error) {
	c.mu.Lock()

	if c.clip == nil {
		c.mu.Unlock()
		return Idle, audio.ErrNoSourceLoaded
	}

	if c.state == Playing {
		c.stopLocked()
	} else {
		gen, err := c.player.Schedule(c.clip)
		if err != nil {
			c.mu.Unlock()
			return Idle, fmt.Errorf("schedule: %w", err)
		}
		c.gen = gen
		c.state = Playing
	}

	state, obs := c.state, c.observers
	c.mu.Unlock()

	c.logger.Info("playback toggled", "state", state)
	notify(obs, state)

	return state, nil
}

// Stop goes to Idle. It reports whether anything changed.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	changed := c.stopLocked()
	obs := c.observers
	c.mu.Unlock()

	if changed {
		notify(obs, Idle)
	}

	return changed
}

func (c *Controller) stopLocked() bool {
	if c.state != Playing {
		return false
	}

	c.gen = c.player.Stop()
	c.state = Idle

	return true
}

// State is the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers o. Observers run on the goroutine that caused the
// change and must not call back into the controller synchronously.
func (c *Controller) OnStateChange(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// copy on write, notify works on a snapshot
	c.observers = append(c.observers[:len(c.observers):len(c.observers)], o)
}

func (c *Controller) watch() {
	defer close(c.done)

	for {
		select {
		case gen := <-c.player.Done():
			c.finished(gen)
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) finished(gen uint64) {
	c.mu.Lock()
	if c.state != Playing || gen != c.gen {
		c.mu.Unlock()
		c.logger.Debug("stale completion", "generation", gen)

		return
	}
	c.state = Idle
	obs := c.observers
	c.mu.Unlock()

	c.logger.Info("playback finished")
	notify(obs, Idle)
}

// Close stops the watcher. The controller must not be used afterwards.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		<-c.done
	})

	return nil
}

func notify(obs []Observer, s State) {
	for _, o := range obs {
		o(s)
	}
}
