// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// executeMarker runs one command over the serial-only fallback transport.
// The command line is wrapped in sentinel echoes and a listener scans the
// live serial stream for them. All console output is commingled in that
// stream, so the sentinels carry a UUID to make collisions negligible.
//
// stdin, if any, is hex-escaped and piped into the command from a guest-side
// printf; there is no file channel to carry it.
func (e *Executor) executeMarker(
	ctx context.Context,
	tag, userCmd, stdin string,
	timeout time.Duration,
) (Result, error) {
	sess, err := e.sessions.getOrCreate(tag)
	if err != nil {
		return Result{}, err
	}

	if stdin != "" {
		userCmd = fmt.Sprintf("printf '%s' | %s", hexEscape(stdin), userCmd)
	}

	tok := newMarkerToken()

	// Register before sending; bytes fed before registration are lost.
	listener := e.bridge.Listen(tok.fin)
	defer listener.Close()

	line := composeMarker(sess.Cwd, userCmd, tok, sess.cwdFile())
	if err := e.bridge.SendText(line); err != nil {
		return Result{}, err
	}

	timedOut := false

	select {
	case <-listener.Done():
	case <-time.After(timeout):
		timedOut = true

		slog.Debug("marker request timed out", slog.String("tag", tag))
	case <-ctx.Done():
		return Result{Output: parseMarkerOutput(listener.Output(), tok)},
			ctx.Err()
	}

	raw := listener.Output()

	res := Result{
		Output:   parseMarkerOutput(raw, tok),
		Cwd:      sess.Cwd,
		TimedOut: timedOut,
	}

	if cwd := parseMarkerCwd(raw, tok); cwd != "" {
		res.Cwd = cwd
		e.sessions.updateCwd(tag, cwd)
	}

	return res, nil
}

// parseMarkerOutput extracts the command output between the start and end
// sentinels. Incomplete sequences (timeout) yield whatever arrived after the
// start sentinel.
func parseMarkerOutput(raw string, tok markerToken) string {
	raw = strings.ReplaceAll(raw, "\r", "")

	_, after, found := strings.Cut(raw, tok.start+"\n")
	if !found {
		return ""
	}

	out, _, _ := strings.Cut(after, tok.end)

	return out
}

// parseMarkerCwd extracts the working directory from the line carrying the
// cwd sentinel prefix, or "" if that line never arrived.
func parseMarkerCwd(raw string, tok markerToken) string {
	raw = strings.ReplaceAll(raw, "\r", "")

	_, after, found := strings.Cut(raw, tok.cwd)
	if !found {
		return ""
	}

	cwd, _, _ := strings.Cut(after, "\n")

	return strings.TrimSpace(cwd)
}
