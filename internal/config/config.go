// SPDX-License-Identifier: EPL-2.0

// Package config loads audrig settings through viper.
//
// Values come from built-in defaults, an optional config file and AUDRIG_
// prefixed environment variables, in increasing priority. Nested keys use an
// underscore in the environment: effects.reverbmix is AUDRIG_EFFECTS_REVERBMIX.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/ik5/audrig/audio"
	"github.com/ik5/audrig/dsp"
	"github.com/ik5/audrig/internal/logging"
	"github.com/ik5/audrig/internal/preset"
	"github.com/spf13/viper"
)

// Modes.
const (
	ModeEngine   = "engine"
	ModeLoopback = "loopback"
)

var ErrInvalid = errors.New("invalid configuration")

// Stream describes one hardware direction. Zero fields inherit from the
// working format.
type Stream struct {
	SampleRate int    `mapstructure:"samplerate"`
	Channels   int    `mapstructure:"channels"`
	Encoding   string `mapstructure:"encoding"`
}

// Format resolves s against the working rate and channel count.
func (s Stream) Format(sampleRate, channels int) audio.Format {
	if s.SampleRate > 0 {
		sampleRate = s.SampleRate
	}
	if s.Channels > 0 {
		channels = s.Channels
	}
	if s.Encoding == "int16" {
		return audio.PCM16Format(sampleRate, channels)
	}

	return audio.FloatFormat(sampleRate, channels)
}

// EQ holds the band gains in dB.
type EQ struct {
	Low  float32 `mapstructure:"low"`
	Mid  float32 `mapstructure:"mid"`
	High float32 `mapstructure:"high"`
}

// Effects are the live parameters of the signal graph.
type Effects struct {
	Pitch        float32 `mapstructure:"pitch"`
	ReverbMix    float32 `mapstructure:"reverbmix"`
	EQ           EQ      `mapstructure:"eq"`
	MicVolume    float32 `mapstructure:"micvolume"`
	PlayerVolume float32 `mapstructure:"playervolume"`
}

// Preset converts e into a preset that sets every field.
func (e Effects) Preset() preset.Preset {
	return preset.Preset{
		Name:      "config",
		Pitch:     preset.Float(e.Pitch),
		ReverbMix: preset.Float(e.ReverbMix),
		EQ: preset.EQ{
			Low:  preset.Float(e.EQ.Low),
			Mid:  preset.Float(e.EQ.Mid),
			High: preset.Float(e.EQ.High),
		},
		MicVolume:    preset.Float(e.MicVolume),
		PlayerVolume: preset.Float(e.PlayerVolume),
	}
}

// Config is the resolved configuration.
type Config struct {
	LogLevel     string  `mapstructure:"loglevel"`
	LogFile      string  `mapstructure:"logfile"`
	Mode         string  `mapstructure:"mode"`
	SampleRate   int     `mapstructure:"samplerate"`
	Channels     int     `mapstructure:"channels"`
	BufferFrames int     `mapstructure:"bufferframes"`
	Input        Stream  `mapstructure:"input"`
	Output       Stream  `mapstructure:"output"`
	DocumentsDir string  `mapstructure:"documentsdir"`
	Source       string  `mapstructure:"source"`
	Preset       string  `mapstructure:"preset"`
	MetricsAddr  string  `mapstructure:"metricsaddr"`
	Effects      Effects `mapstructure:"effects"`
}

// RecordingPath is where the engine writes the current recording.
func (c Config) RecordingPath() string { return filepath.Join(c.DocumentsDir, "recording.wav") }

// ExportPath is where exports are written.
func (c Config) ExportPath() string { return filepath.Join(c.DocumentsDir, "export.ogg") }

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "info")
	v.SetDefault("logfile", "")
	v.SetDefault("mode", ModeEngine)
	v.SetDefault("samplerate", 44100)
	v.SetDefault("channels", 2)
	v.SetDefault("bufferframes", 512)
	v.SetDefault("input.samplerate", 0)
	v.SetDefault("input.channels", 0)
	v.SetDefault("input.encoding", "float")
	v.SetDefault("output.encoding", "float")
	v.SetDefault("documentsdir", ".")
	v.SetDefault("source", "")
	v.SetDefault("preset", "")
	v.SetDefault("metricsaddr", "")
	v.SetDefault("effects.pitch", 0)
	v.SetDefault("effects.reverbmix", 0)
	v.SetDefault("effects.eq.low", 0)
	v.SetDefault("effects.eq.mid", 0)
	v.SetDefault("effects.eq.high", 0)
	v.SetDefault("effects.micvolume", 1)
	v.SetDefault("effects.playervolume", 1)
}

// Loader owns a viper instance.
type Loader struct {
	v *viper.Viper

	mu      sync.Mutex
	current Config
}

// Load reads configFilePath if it exists and resolves the configuration. A
// missing file is not an error.
func Load(configFilePath string) (*Loader, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("AUDRIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFilePath != "" {
		v.SetConfigFile(configFilePath)

		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case err == nil:
		case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
			slog.Info("no config file found", "configFilePath", configFilePath)
		default:
			return nil, fmt.Errorf("read config %q: %w", configFilePath, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	return &Loader{v: v, current: cfg}, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Config returns the last valid configuration.
func (l *Loader) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Viper exposes the underlying instance.
func (l *Loader) Viper() *viper.Viper { return l.v }

// WatchEffects re-reads the config file on change and calls fn with the new
// effects. A change that does not validate is logged and ignored. Only the
// effects are live; everything else needs a restart.
func (l *Loader) WatchEffects(fn func(Effects)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(l.v)
		if err != nil {
			slog.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		l.mu.Lock()
		changed := cfg.Effects != l.current.Effects
		l.current = cfg
		l.mu.Unlock()

		if changed {
			slog.Info("effects reloaded", "file", e.Name)
			fn(cfg.Effects)
		}
	})
	l.v.WatchConfig()
}

// Validate checks the fields that have no safe fallback.
func (c Config) Validate() error {
	var errs []error

	if _, _, err := logging.Level(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("loglevel: %w", err))
	}
	if c.Mode != ModeEngine && c.Mode != ModeLoopback {
		errs = append(errs, fmt.Errorf("mode %q: want %s or %s", c.Mode, ModeEngine, ModeLoopback))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("samplerate %d", c.SampleRate))
	}
	if c.Channels < 1 || c.Channels > dsp.MaxChannels {
		errs = append(errs, fmt.Errorf("channels %d: want 1 to %d", c.Channels, dsp.MaxChannels))
	}
	if c.BufferFrames <= 0 {
		errs = append(errs, fmt.Errorf("bufferframes %d", c.BufferFrames))
	}

	for name, s := range map[string]Stream{"input": c.Input, "output": c.Output} {
		if s.SampleRate < 0 || s.Channels < 0 {
			errs = append(errs, fmt.Errorf("%s: negative rate or channels", name))
		}
		if s.Encoding != "float" && s.Encoding != "int16" {
			errs = append(errs, fmt.Errorf("%s.encoding %q: want float or int16", name, s.Encoding))
		}
	}
	if c.Output.SampleRate != 0 && c.Output.SampleRate != c.SampleRate {
		errs = append(errs, errors.New("output.samplerate must match samplerate"))
	}
	if c.Output.Channels != 0 && c.Output.Channels != c.Channels {
		errs = append(errs, errors.New("output.channels must match channels"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return nil
}
