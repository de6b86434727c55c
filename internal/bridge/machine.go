// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"io"
)

// FileChannel is the virtual filesystem side channel into the guest. Names
// are relative to the shared directory root, using forward slashes.
//
// ReadFile must return an error wrapping [io/fs.ErrNotExist] for files the
// guest has not created yet; that is a normal transient state while a command
// is still running, not a fault.
type FileChannel interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
}

// Machine is the capability set of the virtual machine emulator as consumed
// by the [Bridge]. Everything else about the emulator (CPU, memory, video) is
// none of this package's business.
type Machine interface {
	// Boot starts the machine, either cold or from a saved snapshot.
	// The returned restored flag tells the bridge which readiness
	// handshake applies.
	Boot(ctx context.Context) (restored bool, err error)

	// Console is the serial console byte stream. Writes inject bytes into
	// the guest's console input; reads deliver the guest's console output.
	// Reads return an error once the machine is closed.
	Console() io.ReadWriter

	// Files returns the virtual filesystem channel, or nil if the machine
	// does not provide one.
	Files() FileChannel

	// SaveState snapshots the full machine state.
	SaveState(ctx context.Context) error

	// Close tears the machine down. The console read side must unblock.
	Close() error
}
