// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package qemu

import "errors"

var (
	// ErrImageMissing is returned if no guest disk image is configured.
	ErrImageMissing = errors.New("no guest image given")

	// ErrArgumentCollision is returned if two [Argument]s are considered
	// equal.
	ErrArgumentCollision = errors.New("colliding args")

	// ErrNoControlSocket is returned for operations that need the QMP
	// socket when none is configured.
	ErrNoControlSocket = errors.New("no QMP control socket configured")

	// ErrNotBooted is returned for operations on a machine that was never
	// booted.
	ErrNotBooted = errors.New("machine not booted")
)

// CommandError wraps any error occurred while running the qemu command.
type CommandError struct {
	Err      error
	ExitCode int
}

// Error implements the [error] interface.
func (e *CommandError) Error() string {
	return "qemu: " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *CommandError) Unwrap() error {
	return e.Err
}
