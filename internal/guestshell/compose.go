// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package guestshell

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Guest-side file suffixes. Host and guest refer to the same file by the
// same name under their respective mount roots.
//
//	_in    host writes; stdin bytes for a one-shot job
//	_out   guest writes; accumulated stdout+stderr
//	_exit  guest writes; exit code, existence signals completion
//	_cwd   guest writes; working directory after the command
//	_fifo  guest creates; named pipe backing a stream's stdin
//	_pid   guest writes; backgrounded process id for later kill
type jobFiles struct {
	in   string
	out  string
	exit string
	cwd  string
}

func newJobFiles(workDir string, id uint64) jobFiles {
	prefix := fmt.Sprintf("%s/j%d", workDir, id)

	return jobFiles{
		in:   prefix + "_in",
		out:  prefix + "_out",
		exit: prefix + "_exit",
		cwd:  prefix + "_cwd",
	}
}

type streamFiles struct {
	fifo string
	out  string
	exit string
	pid  string
}

func newStreamFiles(workDir string, id uint64) streamFiles {
	prefix := fmt.Sprintf("%s/s%d", workDir, id)

	return streamFiles{
		fifo: prefix + "_fifo",
		out:  prefix + "_out",
		exit: prefix + "_exit",
		pid:  prefix + "_pid",
	}
}

// composeJob builds the one-shot command line. The whole pipeline is
// backgrounded so the console is immediately free for other sessions. The
// guest writes output, exit code and the new working directory to separate
// files; separate files spare the guest any atomic multi-field write and let
// the poller use exit-file existence as a cheap completion test.
func composeJob(cwd, userCmd string, f jobFiles, withStdin bool, sessionCwdFile string) string {
	stdin := ""
	if withStdin {
		stdin = "cat " + f.in + " | "
	}

	return fmt.Sprintf(
		"(cd %s 2>/dev/null || cd /; %s%s > %s 2>&1; echo $? > %s; pwd > %s; pwd > %s) &\n",
		shellQuote(cwd), stdin, userCmd, f.out, f.exit, f.cwd, sessionCwdFile,
	)
}

// composeStream builds the long-lived command line. The command's stdin is
// bound to the FIFO opened read-write: a read-only open would deliver EOF the
// moment the pipe drains, killing most filter commands after one write.
func composeStream(cwd, userCmd string, f streamFiles, sessionCwdFile string) string {
	return fmt.Sprintf(
		"mkfifo %s; (cd %s 2>/dev/null || cd /; %s <> %s > %s 2>&1; echo $? > %s; pwd > %s) & echo $! > %s\n",
		f.fifo, shellQuote(cwd), userCmd, f.fifo, f.out, f.exit, sessionCwdFile, f.pid,
	)
}

// composeStreamWrite builds the line that decodes a hex-escaped payload into
// the stream's FIFO. Backgrounded: if the stream process died, an open for
// write would block and stall the console for everyone.
func composeStreamWrite(text string, f streamFiles) string {
	return fmt.Sprintf("printf '%s' > %s &\n", hexEscape(text), f.fifo)
}

// composeStreamStop builds the line that kills the stream process and
// removes its guest files.
func composeStreamStop(f streamFiles) string {
	return fmt.Sprintf("kill $(cat %s) 2>/dev/null; rm -f %s %s %s %s\n",
		f.pid, f.fifo, f.out, f.exit, f.pid)
}

// composeJobCleanup builds the line that removes a job's guest files.
func composeJobCleanup(f jobFiles) string {
	return fmt.Sprintf("rm -f %s %s %s %s\n", f.in, f.out, f.exit, f.cwd)
}

// markerToken is the set of sentinels delimiting one marker-mode request on
// the commingled serial stream. Derived from a UUID so an accidental
// substring collision with unrelated console chatter is negligible; this is
// a probabilistic guarantee and the main reason the file transport is
// preferred whenever available.
type markerToken struct {
	start string
	end   string
	cwd   string
	fin   string
}

func newMarkerToken() markerToken {
	base := "GS" + strings.ReplaceAll(uuid.NewString(), "-", "")

	return markerToken{
		start: base + "-S",
		end:   base + "-E",
		cwd:   base + "-C",
		fin:   base + "-F",
	}
}

// composeMarker builds the serial-only command line: start sentinel, the
// command, end sentinel, then the new working directory on a line prefixed
// with the cwd sentinel. A final sentinel terminates the sequence so the
// scanner knows the cwd line arrived completely; the exit file race the file
// transport has to top-up-read around does not exist here.
func composeMarker(cwd, userCmd string, tok markerToken, sessionCwdFile string) string {
	return fmt.Sprintf(
		"cd %s 2>/dev/null || cd /; echo %s; %s; echo %s; pwd | tee %s | sed \"s/^/%s/\"; echo %s\n",
		shellQuote(cwd), tok.start, userCmd, tok.end, sessionCwdFile, tok.cwd, tok.fin,
	)
}
