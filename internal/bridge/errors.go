// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package bridge

import "errors"

var (
	// ErrBootTimeout is returned if the guest does not reach a usable
	// state within the boot window. It is fatal; the machine is torn down.
	ErrBootTimeout = errors.New("guest boot timed out")

	// ErrMarkerTimeout is returned if a marker does not appear on the
	// serial stream within the given window. The specific request is
	// abandoned; the bridge remains usable.
	ErrMarkerTimeout = errors.New("marker did not appear in time")

	// ErrNotFound is returned by [Bridge.ReadFile] for files the guest has
	// not created yet. Pollers treat this as "no data yet", not a fault.
	ErrNotFound = errors.New("guest file not found")

	// ErrFilesystemUnavailable is returned for file channel operations
	// when the virtual filesystem never mounted. Callers fall back to the
	// marker transport for the rest of the bridge's life.
	ErrFilesystemUnavailable = errors.New("filesystem channel unavailable")
)

// InitError wraps a failure during [Bridge.Initialize] with the handshake
// stage it occurred in.
type InitError struct {
	Stage string
	Err   error
}

// Error implements the [error] interface.
func (e *InitError) Error() string {
	return "initialize " + e.Stage + ": " + e.Err.Error()
}

// Is implements the [errors.Is] interface.
func (*InitError) Is(other error) bool {
	_, ok := other.(*InitError)
	return ok
}

// Unwrap implements the [errors.Unwrap] interface.
func (e *InitError) Unwrap() error {
	return e.Err
}
