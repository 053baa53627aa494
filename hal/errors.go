// SPDX-License-Identifier: EPL-2.0

package hal

import "errors"

var (
	ErrInUse       = errors.New("audio hardware is already claimed")
	ErrNotClaimed  = errors.New("audio hardware is not claimed")
	ErrRunning     = errors.New("audio hardware is running")
	ErrInvalidBus  = errors.New("invalid bus")
	ErrNoCallback  = errors.New("no render callback registered")
	ErrBusDisabled = errors.New("no bus enabled")
)
