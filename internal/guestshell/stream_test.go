// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/guestshell/guestshell/internal/bridge"
	"github.com/guestshell/guestshell/internal/guestshell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStreamComposesFifoLine(t *testing.T) {
	e, machine := newTestExecutor(t)

	id, err := e.StartStream("s1", "rev")
	require.NoError(t, err)

	sess, _ := e.Session("s1")
	line := lastLine(machine)

	fifo := sess.WorkDir + "/s"
	assert.True(t, strings.HasPrefix(line, "mkfifo "+fifo), line)

	// Read-write open of the FIFO, so the command never sees EOF when the
	// pipe drains.
	assert.Contains(t, line, "rev <> ")
	assert.Contains(t, line, "& echo $! > ")

	assert.True(t, machine.GuestFiles().Exists(streamFile(sess.WorkDir, id, "out")))
}

func TestWriteToStreamHexEscapesEveryByte(t *testing.T) {
	e, machine := newTestExecutor(t)

	id, err := e.StartStream("s1", "cat")
	require.NoError(t, err)

	payload := "a\x00'b\nc"
	require.NoError(t, e.WriteToStream(id, payload))

	line := lastLine(machine)
	match := regexp.MustCompile(`^printf '((?:\\x[0-9a-f]{2})+)' > (\S+) &$`).
		FindStringSubmatch(line)
	require.NotNil(t, match, "unexpected write line: %q", line)

	// NUL, quote and newline all survive the double interpretation.
	assert.Equal(t, payload, hexDecode(t, match[1]))
}

func TestStreamRoundTrip(t *testing.T) {
	e, machine := newTestExecutor(t)
	files := machine.GuestFiles()

	id, err := e.StartStream("s1", "cat")
	require.NoError(t, err)

	sess, _ := e.Session("s1")
	outName := streamFile(sess.WorkDir, id, "out")

	// Emulate the guest-side cat: every payload written into the FIFO
	// shows up appended to the output file.
	writeRE := regexp.MustCompile(`^printf '((?:\\x[0-9a-f]{2})+)' > \S+ &$`)
	machine.SetHandler(func(line string) {
		match := writeRE.FindStringSubmatch(line)
		if match == nil {
			return
		}

		existing, _ := files.ReadFile(outName)
		_ = files.WriteFile(outName, append(existing, hexDecode(t, match[1])...))
	})

	require.NoError(t, e.WriteToStream(id, "abc\n"))

	data, err := e.ReadStream(id)
	require.NoError(t, err)
	assert.Equal(t, "abc\n", data)

	// Delta semantics: nothing new, nothing returned.
	data, err = e.ReadStream(id)
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, e.WriteToStream(id, "x\x00y"))

	data, err = e.ReadStream(id)
	require.NoError(t, err)
	assert.Equal(t, "x\x00y", data)
}

func TestStopStreamKillsAndForgets(t *testing.T) {
	e, machine := newTestExecutor(t)

	id, err := e.StartStream("s1", "cat")
	require.NoError(t, err)

	require.NoError(t, e.StopStream(id))

	line := lastLine(machine)
	assert.Contains(t, line, "kill $(cat ")
	assert.Contains(t, line, "rm -f ")

	// Stopping twice is a no-op; the id is gone.
	before := len(machine.SentLines())
	require.NoError(t, e.StopStream(id))
	assert.Len(t, machine.SentLines(), before)

	_, err = e.ReadStream(id)
	assert.ErrorIs(t, err, guestshell.ErrUnknownStream)

	err = e.WriteToStream(id, "late")
	assert.ErrorIs(t, err, guestshell.ErrUnknownStream)
}

func TestStreamAndJobIdsDoNotMix(t *testing.T) {
	e, _ := newTestExecutor(t)

	jobID, err := e.StartJob("s1", "true", "")
	require.NoError(t, err)

	streamID, err := e.StartStream("s1", "cat")
	require.NoError(t, err)

	_, err = e.PollJob(streamID)
	assert.ErrorIs(t, err, guestshell.ErrUnknownJob)

	_, err = e.ReadStream(jobID)
	assert.ErrorIs(t, err, guestshell.ErrUnknownStream)

	// Cleanup across kinds must not touch the other kind's bookkeeping.
	require.NoError(t, e.CleanupJob(streamID))

	_, err = e.ReadStream(streamID)
	require.NoError(t, err)
}

func TestStartStreamWithoutFilesystem(t *testing.T) {
	e, _ := newFallbackExecutor(t)

	_, err := e.StartStream("s1", "cat")
	assert.ErrorIs(t, err, bridge.ErrFilesystemUnavailable)
}
