// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import "errors"

var (
	// ErrUnknownJob is returned for job operations on an id that does not
	// name an active job.
	ErrUnknownJob = errors.New("no such job")

	// ErrUnknownStream is returned for stream operations on an id that
	// does not name an active stream.
	ErrUnknownStream = errors.New("no such stream")
)
