// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")

	// ErrConfiguration reports a bad topology or format detected while
	// building a graph.
	ErrConfiguration = errors.New("configuration error")

	// ErrEngineStart reports that the host audio resource could not be claimed.
	ErrEngineStart = errors.New("engine start error")

	// ErrNoSourceLoaded is returned by playback when nothing was loaded.
	ErrNoSourceLoaded = errors.New("no source loaded")

	// ErrNoRecordingAvailable is returned by export without a recording file.
	ErrNoRecordingAvailable = errors.New("no recording available")

	// ErrExportFailed wraps a transcoder failure.
	ErrExportFailed = errors.New("export failed")

	// ErrRenderFailure reports a nonzero status from a hardware pull.
	ErrRenderFailure = errors.New("render failure")

	// ErrAllocationFailure reports that a render cycle needed more scratch
	// space than was reserved up front.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrUnknownFormat is returned by Registry.Open for unregistered extensions.
	ErrUnknownFormat = errors.New("unknown audio format")
)
