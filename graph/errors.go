// SPDX-License-Identifier: EPL-2.0

package graph

import "errors"

var (
	ErrInvalidBand = errors.New("invalid equalizer band")
	ErrUnknownNode = errors.New("unknown node")
	ErrNotStarted  = errors.New("graph is not running")
	ErrRunning     = errors.New("graph is already running")
)
