// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

// Package guestshell runs shell commands for many independent sessions inside
// a single virtual machine, over the channels owned by [bridge.Bridge].
//
// There is no RPC into the guest. Every request is a composed shell command
// line injected into the serial console; every response is recovered either
// from files the guest was told to write (job and stream transports, needs
// the filesystem channel) or by scanning the serial stream for sentinel
// markers (fallback transport).
//
// The [Executor] is the only type callers interact with. Jobs are one-shot
// commands collected via files; streams are long-lived commands fed through a
// named pipe; Execute and Pipe wrap either transport behind a synchronous
// call.
package guestshell
