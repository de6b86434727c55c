// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"fmt"
	"log/slog"

	"github.com/guestshell/guestshell/internal/bridge"
)

// StartStream starts a long-lived command for the session, fed through a
// named pipe. The command has no natural completion; it runs until
// [Executor.StopStream] kills it or it dies in the guest.
//
// Requires the filesystem channel; returns [bridge.ErrFilesystemUnavailable]
// otherwise.
func (e *Executor) StartStream(tag, userCmd string) (uint64, error) {
	if !e.bridge.FilesystemReady() {
		return 0, bridge.ErrFilesystemUnavailable
	}

	sess, err := e.sessions.getOrCreate(tag)
	if err != nil {
		return 0, err
	}

	id := e.bridge.NextID()
	files := newStreamFiles(sess.WorkDir, id)

	if err := e.bridge.CreateFile(files.out, nil); err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}

	e.addTask(&task{
		id:         id,
		sessionTag: tag,
		stream:     true,
		str:        files,
	})

	line := composeStream(sess.Cwd, userCmd, files, sess.cwdFile())
	if err := e.bridge.SendText(line); err != nil {
		_, _ = e.takeTask(id, true)
		return 0, err
	}

	slog.Debug("stream started",
		slog.Uint64("id", id),
		slog.String("tag", tag))

	return id, nil
}

// WriteToStream feeds bytes into the stream's pipe. The payload goes over
// the console hex-escaped, so any byte value survives, NUL included. Writes
// to a dead stream are silently ignored by the guest.
func (e *Executor) WriteToStream(id uint64, text string) error {
	t, ok := e.getTask(id)
	if !ok || !t.stream {
		return fmt.Errorf("%d: %w", id, ErrUnknownStream)
	}

	return e.bridge.SendText(composeStreamWrite(text, t.str))
}

// ReadStream returns output bytes produced since the previous read. Streams
// never signal completion; an empty result just means nothing new yet.
func (e *Executor) ReadStream(id uint64) (string, error) {
	t, ok := e.getTask(id)
	if !ok || !t.stream {
		return "", fmt.Errorf("%d: %w", id, ErrUnknownStream)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return e.readNewOutput(t), nil
}

// StopStream kills the guest process and removes the stream's files, then
// forgets the stream immediately. Termination is best-effort; nothing waits
// for the kill to be acknowledged. A no-op for ids that are gone already.
func (e *Executor) StopStream(id uint64) error {
	t, ok := e.takeTask(id, true)
	if !ok {
		return nil
	}

	slog.Debug("stream stopped",
		slog.Uint64("id", id),
		slog.String("tag", t.sessionTag))

	return e.bridge.SendText(composeStreamStop(t.str))
}
