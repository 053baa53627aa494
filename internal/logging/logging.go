// SPDX-License-Identifier: EPL-2.0

// Package logging configures the process wide slog logger.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var ErrUnknownLevel = errors.New("unexpected log level")

// Level maps none, error, warn, info and debug onto slog levels. ok is false
// for "none".
func Level(name string) (level slog.Level, ok bool, err error) {
	switch name {
	case "none":
		return 0, false, nil
	case "error":
		return slog.LevelError, true, nil
	case "warn":
		return slog.LevelWarn, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "debug":
		return slog.LevelDebug, true, nil
	default:
		return 0, false, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
}

// ConfigureDefaultLogger installs the default slog logger.
//
// An empty logFile logs text to stdout; otherwise JSON is written to the file,
// truncating it, and the file is returned so the caller can close it:
//
//	f, err := logging.ConfigureDefaultLogger("info", "audrig.log", slog.HandlerOptions{})
//	if f != nil {
//		defer f.Close()
//	}
func ConfigureDefaultLogger(logLevel, logFile string, opts slog.HandlerOptions) (*os.File, error) {
	level, ok, err := Level(logLevel)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, nil
	}
	opts.Level = level

	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &opts)))
		return nil, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(f, &opts)))

	return f, nil
}
