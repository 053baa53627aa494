// SPDX-License-Identifier: EPL-2.0

package loopback

import "errors"

var ErrRunning = errors.New("loopback is already running")
