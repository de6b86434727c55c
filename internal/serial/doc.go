// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

// Package serial implements the host side of the guest console byte stream.
//
// The console is an unframed, bidirectional byte stream. A single [Watcher]
// owns the receive direction and fans incoming bytes out to any number of
// registered [Listener]s, each waiting for its own sentinel substring. This
// is the only way components observe console output; the raw stream itself
// has exactly one reader.
package serial
