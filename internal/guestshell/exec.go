// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"context"
	"strings"
	"time"
)

const (
	pollInterval = 50 * time.Millisecond

	// execTimeout bounds Execute, pipeTimeout bounds Pipe. Piped input
	// gets a little longer since the guest reads the input file first.
	execTimeout = 10 * time.Second
	pipeTimeout = 15 * time.Second
)

// Result is the outcome of a synchronous [Executor.Execute] or
// [Executor.Pipe] call.
//
// A timed out command yields whatever output accumulated, with TimedOut set
// and no error: the guest command may well complete later with no one
// watching, so a timeout is truncated success, not failure.
type Result struct {
	Output   string
	ExitCode *int
	Cwd      string
	TimedOut bool
}

// Execute runs a command for the session and waits for it, preferring the
// file transport and falling back to the marker transport when the
// filesystem channel never mounted.
func (e *Executor) Execute(ctx context.Context, tag, userCmd string) (Result, error) {
	return e.run(ctx, tag, userCmd, "", orDefault(e.ExecTimeout, execTimeout))
}

// Pipe is [Executor.Execute] with stdin.
func (e *Executor) Pipe(ctx context.Context, tag, userCmd, stdin string) (Result, error) {
	return e.run(ctx, tag, userCmd, stdin, orDefault(e.PipeTimeout, pipeTimeout))
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}

	return fallback
}

func (e *Executor) run(
	ctx context.Context,
	tag, userCmd, stdin string,
	timeout time.Duration,
) (Result, error) {
	if !e.bridge.FilesystemReady() {
		return e.executeMarker(ctx, tag, userCmd, stdin, timeout)
	}

	id, err := e.StartJob(tag, userCmd, stdin)
	if err != nil {
		return Result{}, err
	}

	// Guest files are removed even on the timeout path. The background
	// process itself may outlive us; that is accepted.
	defer func() { _ = e.CleanupJob(id) }()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(orDefault(e.PollInterval, pollInterval))
	defer ticker.Stop()

	var out strings.Builder

	for {
		poll, err := e.PollJob(id)
		if err != nil {
			return Result{Output: out.String()}, err
		}

		out.WriteString(poll.NewOutput)

		if poll.Done {
			return Result{
				Output:   out.String(),
				ExitCode: poll.ExitCode,
				Cwd:      poll.Cwd,
			}, nil
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return Result{Output: out.String(), TimedOut: true}, nil
		case <-ctx.Done():
			return Result{Output: out.String(), TimedOut: true}, ctx.Err()
		}
	}
}
