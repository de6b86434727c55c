// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

// Package qemu runs the guest system under qemu-system and exposes it
// through the [bridge.Machine] capability set: the serial console on a PTY,
// a local directory exported as the 9p file channel, and a QMP control
// socket for snapshots and teardown.
//
// It expects the required qemu-system binary to be present on the system and
// a bootable guest disk image to be provided. Snapshot save needs an image
// format with internal snapshot support (qcow2).
package qemu
