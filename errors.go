// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tinyframe

import "errors"

var (
	// ErrInvalidArgument reports an invalid configuration or nil collaborator.
	ErrInvalidArgument = errors.New("tinyframe: invalid argument")

	// ErrTooLong reports a payload exceeding the configured transmit cap.
	ErrTooLong = errors.New("tinyframe: payload too long")

	// ErrTableFull reports a saturated listener table.
	ErrTableFull = errors.New("tinyframe: listener table full")

	// ErrNotFound reports removal or renewal of a listener that is not registered.
	ErrNotFound = errors.New("tinyframe: listener not found")

	// ErrDuplicate reports a registration that would shadow an active listener.
	ErrDuplicate = errors.New("tinyframe: duplicate listener")
)
