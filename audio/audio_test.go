// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/internal/audiotest"
)

type silentDecoder struct{}

func (silentDecoder) Decode(r io.Reader) (audio.Source, error) {
	return audiotest.NewSilentSource(44100, 2, 100), nil
}

type failingDecoder struct{}

func (failingDecoder) Decode(r io.Reader) (audio.Source, error) {
	return nil, errors.New("decode failed")
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		register string
		lookup   string
		wantOK   bool
	}{
		{name: "exact key", register: "wav", lookup: "wav", wantOK: true},
		{name: "extension with dot", register: "wav", lookup: ".wav", wantOK: true},
		{name: "upper case lookup", register: "mp3", lookup: "MP3", wantOK: true},
		{name: "registered with dot", register: ".ogg", lookup: "ogg", wantOK: true},
		{name: "missing", register: "wav", lookup: "flac", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := audio.NewRegistry()
			r.Register(tt.register, silentDecoder{})

			_, ok := r.Get(tt.lookup)
			if ok != tt.wantOK {
				t.Errorf("Registry.Get(%q) ok = %v, want %v", tt.lookup, ok, tt.wantOK)
			}
		})
	}
}

func TestRegistry_Formats(t *testing.T) {
	t.Parallel()

	r := audio.NewRegistry()
	r.Register("wav", silentDecoder{})
	r.Register("AIFF", silentDecoder{})
	r.Register("mp3", silentDecoder{})

	got := r.Formats()
	want := []string{"aiff", "mp3", "wav"}
	if !slices.Equal(got, want) {
		t.Errorf("Registry.Formats() = %v, want %v", got, want)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := audio.NewRegistry()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("wav", silentDecoder{})
		}()
		go func() {
			defer wg.Done()
			_, _ = r.Get("wav")
		}()
	}
	wg.Wait()

	if _, ok := r.Get("wav"); !ok {
		t.Error("Registry.Get() failed after concurrent registration")
	}
}

func TestRegistry_Open(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "tone.wav")
	bad := filepath.Join(dir, "broken.bad")
	unknown := filepath.Join(dir, "song.flac")

	for _, p := range []string{good, bad, unknown} {
		if err := os.WriteFile(p, []byte("payload"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	r := audio.NewRegistry()
	r.Register("wav", silentDecoder{})
	r.Register("bad", failingDecoder{})

	src, err := r.Open(good)
	if err != nil {
		t.Fatalf("Registry.Open() error = %v", err)
	}
	if src.Channels() != 2 {
		t.Errorf("Source.Channels() = %d, want 2", src.Channels())
	}
	if err := src.Close(); err != nil {
		t.Errorf("Source.Close() error = %v", err)
	}

	if _, err := r.Open(bad); err == nil {
		t.Error("Registry.Open() with failing decoder returned nil error")
	}

	if _, err := r.Open(unknown); !errors.Is(err, audio.ErrUnknownFormat) {
		t.Errorf("Registry.Open() error = %v, want %v", err, audio.ErrUnknownFormat)
	}

	if _, err := r.Open(filepath.Join(dir, "missing.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Registry.Open() error = %v, want os.ErrNotExist", err)
	}
}
