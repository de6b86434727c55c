// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/guestshell/guestshell/internal/bridge"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

const (
	qmpDialTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Machine runs the guest system as a qemu-system process. It implements
// [bridge.Machine]: the serial console is the process's stdio attached to a
// PTY, the file channel is the exported share directory, snapshots and
// graceful shutdown go through the QMP socket.
type Machine struct {
	spec    CommandSpec
	share   *dirShare
	cmd     *exec.Cmd
	console *os.File
	qmp     *qmpClient

	group     errgroup.Group
	closeOnce sync.Once
	closeErr  error
}

// NewMachine creates a machine for the given spec. Nothing runs until
// [Machine.Boot].
func NewMachine(spec CommandSpec) (*Machine, error) {
	spec.ApplyDefaults()

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{spec: spec}
	if spec.ShareDir != "" {
		m.share = &dirShare{root: spec.ShareDir}
	}

	return m, nil
}

// Boot implements [bridge.Machine]. It starts the qemu process on a PTY and
// connects the QMP control socket if one is configured.
func (m *Machine) Boot(ctx context.Context) (bool, error) {
	args, err := m.spec.Args()
	if err != nil {
		return false, err
	}

	cmd := exec.Command(m.spec.Executable, args...)

	slog.Debug("starting qemu", slog.String("command", cmd.String()))

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return false, &CommandError{Err: fmt.Errorf("start: %w", err)}
	}

	m.cmd = cmd
	m.console = ptmx

	// The PTY line discipline must not echo injected console bytes back
	// into the read side, or every sent command would pollute the serial
	// stream the marker scans run on.
	if err := disableEcho(ptmx); err != nil {
		_ = m.Close()
		return false, &CommandError{Err: fmt.Errorf("pty raw mode: %w", err)}
	}

	m.group.Go(cmd.Wait)

	if m.spec.QMPSocket != "" {
		client, err := dialQMP(ctx, m.spec.QMPSocket, qmpDialTimeout)
		if err != nil {
			_ = m.Close()
			return false, &CommandError{Err: err}
		}

		m.qmp = client
	}

	return m.spec.LoadSnapshot != "", nil
}

// Console implements [bridge.Machine].
func (m *Machine) Console() io.ReadWriter {
	return m.console
}

// Files implements [bridge.Machine].
func (m *Machine) Files() bridge.FileChannel {
	if m.share == nil {
		return nil
	}

	return m.share
}

// SaveState implements [bridge.Machine]. It writes an internal snapshot of
// the full machine state, disk included, under the configured tag.
func (m *Machine) SaveState(context.Context) error {
	if m.cmd == nil {
		return ErrNotBooted
	}

	if m.qmp == nil {
		return ErrNoControlSocket
	}

	out, err := m.qmp.hmp("savevm " + m.spec.SnapshotTag)
	if err != nil {
		return err
	}

	// savevm reports problems on the monitor instead of failing.
	if out != "" {
		return &CommandError{Err: fmt.Errorf("savevm: %s", out)}
	}

	return nil
}

// Close implements [bridge.Machine]. It asks the guest to quit via QMP,
// escalates to killing the process group, and reaps the process. Safe to
// call multiple times.
func (m *Machine) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.close()
	})

	return m.closeErr
}

func (m *Machine) close() error {
	if m.cmd == nil {
		return nil
	}

	if m.qmp != nil {
		_ = m.qmp.quit()
		_ = m.qmp.close()
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- m.group.Wait() }()

	var err error

	select {
	case err = <-waitDone:
	case <-time.After(shutdownTimeout):
		// pty.Start put qemu into its own session, so the negative pid
		// addresses its whole process group.
		_ = unix.Kill(-m.cmd.Process.Pid, unix.SIGKILL)
		err = <-waitDone
	}

	// Unblocks the bridge's console pump.
	if m.console != nil {
		_ = m.console.Close()
	}

	// A non-zero exit or kill during teardown is the expected way for
	// qemu to go.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}

	if err != nil {
		return &CommandError{Err: err}
	}

	return nil
}

func disableEcho(f *os.File) error {
	t, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		return err
	}

	t.Lflag &^= unix.ECHO | unix.ICANON
	t.Oflag &^= unix.OPOST

	return unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, t)
}
