// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"errors"
	"strconv"
)

var (
	// ErrUnknownConfigKey is returned for config file keys the program
	// does not know, usually typos.
	ErrUnknownConfigKey = errors.New("unknown config key")

	// ErrImageLocked is returned when the guest image is already locked
	// by another process.
	ErrImageLocked = errors.New("guest image is locked by another process")

	// ErrReadBuildInfo is returned if the binary carries no build info.
	ErrReadBuildInfo = errors.New("build info not available")
)

// GuestExitError reports that the guest command ran and communicated a
// non-zero exit code. It is not a failure of the substrate itself.
type GuestExitError struct {
	ExitCode int
}

// Error implements the [error] interface.
func (e *GuestExitError) Error() string {
	return "guest command exited with code " + strconv.Itoa(e.ExitCode)
}

// Is implements the [errors.Is] interface.
func (*GuestExitError) Is(other error) bool {
	_, ok := other.(*GuestExitError)
	return ok
}
