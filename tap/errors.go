// SPDX-License-Identifier: EPL-2.0

package tap

import "errors"

var ErrAlreadyRecording = errors.New("recording already in progress")
