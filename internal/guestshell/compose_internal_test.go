// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeJob(t *testing.T) {
	f := newJobFiles("/mnt/host/.gsh/sh3", 7)

	line := composeJob("/root", "ls -l", f, false, "/mnt/host/.gsh/sh3/cwd")

	expected := "(cd '/root' 2>/dev/null || cd /; " +
		"ls -l > /mnt/host/.gsh/sh3/j7_out 2>&1; " +
		"echo $? > /mnt/host/.gsh/sh3/j7_exit; " +
		"pwd > /mnt/host/.gsh/sh3/j7_cwd; " +
		"pwd > /mnt/host/.gsh/sh3/cwd) &\n"
	assert.Equal(t, expected, line)
}

func TestComposeJobWithStdin(t *testing.T) {
	f := newJobFiles("/mnt/host/.gsh/sh3", 7)

	line := composeJob("/", "wc -c", f, true, "/mnt/host/.gsh/sh3/cwd")

	assert.Contains(t, line, "cat /mnt/host/.gsh/sh3/j7_in | wc -c")
}

func TestComposeStream(t *testing.T) {
	f := newStreamFiles("/mnt/host/.gsh/sh3", 9)

	line := composeStream("/", "rev", f, "/mnt/host/.gsh/sh3/cwd")

	expected := "mkfifo /mnt/host/.gsh/sh3/s9_fifo; " +
		"(cd '/' 2>/dev/null || cd /; " +
		"rev <> /mnt/host/.gsh/sh3/s9_fifo > /mnt/host/.gsh/sh3/s9_out 2>&1; " +
		"echo $? > /mnt/host/.gsh/sh3/s9_exit; " +
		"pwd > /mnt/host/.gsh/sh3/cwd) & " +
		"echo $! > /mnt/host/.gsh/sh3/s9_pid\n"
	assert.Equal(t, expected, line)
}

func TestComposeMarkerSentinelOrder(t *testing.T) {
	tok := newMarkerToken()

	line := composeMarker("/etc", "uname -a", tok, "/tmp/.gsh/sh1/cwd")

	// Start, command, end, cwd prefix, terminator, in that order.
	idxStart := strings.Index(line, "echo "+tok.start)
	idxCmd := strings.Index(line, "uname -a")
	idxEnd := strings.Index(line, "echo "+tok.end)
	idxCwd := strings.Index(line, tok.cwd)
	idxFin := strings.Index(line, "echo "+tok.fin)

	assert.True(t, idxStart < idxCmd)
	assert.True(t, idxCmd < idxEnd)
	assert.True(t, idxEnd < idxCwd)
	assert.True(t, idxCwd < idxFin)

	assert.Contains(t, line, "tee /tmp/.gsh/sh1/cwd")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestMarkerTokensAreUnique(t *testing.T) {
	first := newMarkerToken()
	second := newMarkerToken()

	assert.NotEqual(t, first.start, second.start)

	// Sentinels of one request must not be substrings of each other, or a
	// scan could complete early.
	assert.NotContains(t, first.fin, first.start)
	assert.NotContains(t, first.start, first.fin)
}
