// SPDX-License-Identifier: EPL-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ik5/audrig"
	"github.com/ik5/audrig/internal/preset"
)

var errQuit = errors.New("quit")

const help = `commands:
  play             toggle playback of the loaded file
  load <path>      load a wav, mp3, ogg or aiff file
  record           start recording the mix
  stop             stop recording
  export           export the recording
  pitch <cents>    -2400 to 2400
  reverb <pct>     0 to 100
  eq <band> <db>   band 0, 1 or 2, -12 to 12
  mic <gain>       0 to 1
  volume <gain>    0 to 1
  preset <path>    apply a preset file
  stats            print counters
  quit`

// console maps text commands onto the engine.
type console struct {
	eng *audrig.Engine
	out io.Writer
}

func newConsole(eng *audrig.Engine, out io.Writer) *console {
	return &console{eng: eng, out: out}
}

// readLines feeds lines from r into a channel closed at EOF. The goroutine
// outlives the caller when r never ends.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	return lines
}

// run executes lines until ctx ends, input ends or a quit command.
func (c *console) run(ctx context.Context, lines <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			err := c.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return err
			}
			if err != nil {
				fmt.Fprintln(c.out, "error:", err)
			}
		}
	}
}

func (c *console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(c.out, help)

	case "quit", "exit":
		return errQuit

	case "play":
		state, err := c.eng.TogglePlayback()
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, state)

	case "load":
		if len(args) != 1 {
			return errors.New("usage: load <path>")
		}
		return c.eng.LoadFile(args[0])

	case "record":
		if err := c.eng.StartRecording(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "recording")

	case "stop":
		return c.eng.StopRecording()

	case "export":
		path, err := c.eng.Export(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, "exported", path)

	case "pitch", "reverb", "mic", "volume":
		v, err := floatArg(args, 0, 1)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, c.set(cmd, v))

	case "eq":
		if len(args) != 2 {
			return errors.New("usage: eq <band> <db>")
		}
		band, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("band: %w", err)
		}
		db, err := floatArg(args, 1, 2)
		if err != nil {
			return err
		}
		got, err := c.eng.SetBandGain(band, db)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, got)

	case "preset":
		if len(args) != 1 {
			return errors.New("usage: preset <path>")
		}
		p, err := preset.Load(args[0])
		if err != nil {
			return err
		}
		if _, err := p.Apply(c.eng); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "applied", p.Name)

	case "stats":
		s := c.eng.Stats()
		fmt.Fprintf(c.out, "running=%v playback=%s recording=%v amplitude=%.3f cycles=%d failures=%d dropped=%d\n",
			s.Running, s.Playback, s.Recording, s.Amplitude, s.Cycles, s.Failures, s.TapDropped)

	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}

	return nil
}

func (c *console) set(cmd string, v float32) float32 {
	switch cmd {
	case "pitch":
		return c.eng.SetPitch(v)
	case "reverb":
		return c.eng.SetReverbMix(v)
	case "mic":
		return c.eng.SetMicVolume(v)
	default:
		return c.eng.SetPlayerVolume(v)
	}
}

func floatArg(args []string, i, want int) (float32, error) {
	if len(args) != want {
		return 0, fmt.Errorf("want %d argument(s), got %d", want, len(args))
	}

	v, err := strconv.ParseFloat(args[i], 32)
	if err != nil {
		return 0, fmt.Errorf("value: %w", err)
	}

	return float32(v), nil
}
