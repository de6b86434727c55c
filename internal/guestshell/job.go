// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/guestshell/guestshell/internal/bridge"
)

// PollResult is one [Executor.PollJob] observation. NewOutput is a delta;
// callers accumulate. ExitCode is nil until the guest wrote one, and stays
// nil if the exit file appeared without a parseable code.
type PollResult struct {
	NewOutput string
	Done      bool
	ExitCode  *int
	Cwd       string
}

// StartJob starts a one-shot command for the session over the file
// transport. An empty stdin creates no input file at all; "no stdin" and
// "empty stdin" are deliberately the same thing.
//
// Requires the filesystem channel; returns [bridge.ErrFilesystemUnavailable]
// otherwise.
func (e *Executor) StartJob(tag, userCmd, stdin string) (uint64, error) {
	if !e.bridge.FilesystemReady() {
		return 0, bridge.ErrFilesystemUnavailable
	}

	sess, err := e.sessions.getOrCreate(tag)
	if err != nil {
		return 0, err
	}

	id := e.bridge.NextID()
	files := newJobFiles(sess.WorkDir, id)

	// Pre-create the output file so the first poll reads zero bytes
	// instead of NotFound.
	if err := e.bridge.CreateFile(files.out, nil); err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}

	withStdin := stdin != ""
	if withStdin {
		if err := e.bridge.CreateFile(files.in, []byte(stdin)); err != nil {
			return 0, fmt.Errorf("create input file: %w", err)
		}
	}

	e.addTask(&task{
		id:         id,
		sessionTag: tag,
		job:        files,
	})

	line := composeJob(sess.Cwd, userCmd, files, withStdin, sess.cwdFile())
	if err := e.bridge.SendText(line); err != nil {
		_, _ = e.takeTask(id, false)
		return 0, err
	}

	slog.Debug("job started",
		slog.Uint64("id", id),
		slog.String("tag", tag))

	return id, nil
}

// PollJob advances a job: it delta-reads the output file and, if the job is
// not done yet, checks for the exit file. The exit file's existence is the
// completion signal; its content and the cwd file are parsed best-effort.
// Once completion is detected, one final output read picks up bytes flushed
// between the exit file's creation and this poll, since the guest's two
// writes are not ordered from the poller's point of view.
func (e *Executor) PollJob(id uint64) (PollResult, error) {
	t, ok := e.getTask(id)
	if !ok || t.stream {
		return PollResult{}, fmt.Errorf("%d: %w", id, ErrUnknownJob)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	res := PollResult{NewOutput: e.readNewOutput(t)}

	if !t.done {
		exitData, err := e.bridge.ReadFile(t.job.exit)
		if err == nil {
			e.completeJob(t, exitData)
			res.NewOutput += e.readNewOutput(t)
		}
	}

	res.Done = t.done
	res.ExitCode = t.exitCode
	res.Cwd = t.cwd

	return res, nil
}

// completeJob transitions the job to done exactly once. Must be called with
// t.mu held.
func (e *Executor) completeJob(t *task, exitData []byte) {
	t.done = true

	code, err := strconv.Atoi(strings.TrimSpace(string(exitData)))
	if err == nil {
		t.exitCode = &code
	} else {
		slog.Debug("exit file without parseable code",
			slog.Uint64("id", t.id))
	}

	cwdData, err := e.bridge.ReadFile(t.job.cwd)
	if err == nil {
		t.cwd = strings.TrimSpace(string(cwdData))
		e.sessions.updateCwd(t.sessionTag, t.cwd)
	}

	slog.Debug("job done",
		slog.Uint64("id", t.id),
		slog.String("tag", t.sessionTag))
}

// CleanupJob forgets the job and removes its guest files. Safe to call
// whether or not the job ever completed, and a no-op for ids that are gone
// already.
func (e *Executor) CleanupJob(id uint64) error {
	t, ok := e.takeTask(id, false)
	if !ok {
		return nil
	}

	return e.bridge.SendText(composeJobCleanup(t.job))
}
