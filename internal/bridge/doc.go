// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

// Package bridge owns the virtual machine and the two host/guest channels:
// the serial console byte stream and the optional virtual filesystem share.
//
// Nothing else in the repository touches the emulator. The [Machine]
// interface is the full capability set consumed from it; [Bridge] layers the
// readiness handshake, the single shared serial listener, file channel access
// and the global id counter on top.
package bridge
