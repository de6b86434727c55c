// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"regexp"
	"strings"
	"sync"
)

// MemFiles is an in-memory [FileChannel] for tests.
type MemFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemFiles creates an empty in-memory file channel.
func NewMemFiles() *MemFiles {
	return &MemFiles{files: make(map[string][]byte)}
}

// ReadFile implements [FileChannel].
func (f *MemFiles) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}

	return append([]byte(nil), data...), nil
}

// WriteFile implements [FileChannel].
func (f *MemFiles) WriteFile(name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.files[name] = append([]byte(nil), data...)

	return nil
}

// Remove deletes a file. Missing files are ignored.
func (f *MemFiles) Remove(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.files, name)
}

// Exists reports whether a file is present.
func (f *MemFiles) Exists(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.files[name]

	return ok
}

var mountProbeRE = regexp.MustCompile(`mount -t 9p .* && echo (\S+) > \S+/(\S+)`)

// TestMachine is a scripted [Machine] for tests. It records every console
// line the host sends, lets the test play guest console output back and
// backs the filesystem channel with a [MemFiles].
//
// A minimal guest shell is built in: an empty line answers with ShellBanner
// (the login handshake) and the 9p mount command line writes the probe file,
// so [Bridge.Initialize] completes without per-test scripting. Everything
// else is forwarded to the handler installed with [TestMachine.SetHandler].
type TestMachine struct {
	// Restored makes Boot report a snapshot restore.
	Restored bool

	// BootErr is returned by Boot when set.
	BootErr error

	// NoFiles disables the filesystem channel entirely.
	NoFiles bool

	// FailMount keeps the built-in shell from answering the mount probe,
	// simulating a guest without 9p support.
	FailMount bool

	// LoginBanner is played on the console after a cold Boot.
	LoginBanner string

	// ShellBanner is played when the host sends an empty line.
	ShellBanner string

	files *MemFiles

	hostRead   *io.PipeReader
	guestWrite *io.PipeWriter

	out     chan []byte
	closed  chan struct{}
	closeMu sync.Once

	mu      sync.Mutex
	sent    []string
	partial strings.Builder
	handler func(line string)
	saved   int
}

// NewTestMachine creates a started [TestMachine] with working defaults for
// the default [Config] prompts.
func NewTestMachine() *TestMachine {
	hostRead, guestWrite := io.Pipe()

	m := &TestMachine{
		LoginBanner: "buildroot login:",
		ShellBanner: "~# ",
		files:       NewMemFiles(),
		hostRead:    hostRead,
		guestWrite:  guestWrite,
		out:         make(chan []byte, 64),
		closed:      make(chan struct{}),
	}

	go m.playback()

	return m
}

func (m *TestMachine) playback() {
	for {
		select {
		case data := <-m.out:
			_, _ = m.guestWrite.Write(data)
		case <-m.closed:
			return
		}
	}
}

// Boot implements [Machine].
func (m *TestMachine) Boot(context.Context) (bool, error) {
	if m.BootErr != nil {
		return false, m.BootErr
	}

	if !m.Restored {
		m.GuestWrite(m.LoginBanner)
	}

	return m.Restored, nil
}

// Console implements [Machine].
func (m *TestMachine) Console() io.ReadWriter {
	return testConsole{m}
}

// Files implements [Machine].
func (m *TestMachine) Files() FileChannel {
	if m.NoFiles {
		return nil
	}

	return m.files
}

// SaveState implements [Machine].
func (m *TestMachine) SaveState(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saved++

	return nil
}

// Close implements [Machine]. It unblocks console readers.
func (m *TestMachine) Close() error {
	m.closeMu.Do(func() {
		close(m.closed)
		_ = m.guestWrite.CloseWithError(io.EOF)
		_ = m.hostRead.Close()
	})

	return nil
}

// SaveCount returns how often SaveState was called.
func (m *TestMachine) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saved
}

// GuestWrite plays bytes back on the console, as if the guest printed them.
func (m *TestMachine) GuestWrite(s string) {
	select {
	case m.out <- []byte(s):
	case <-m.closed:
	}
}

// GuestFiles returns the in-memory file channel backing the machine, for
// tests to plant or inspect guest files. Names are share-relative.
func (m *TestMachine) GuestFiles() *MemFiles {
	return m.files
}

// SetHandler installs a callback invoked for every complete console line the
// host sends, after built-in processing. The line is passed without the
// trailing newline.
func (m *TestMachine) SetHandler(handler func(line string)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handler = handler
}

// SentLines returns a copy of all complete console lines sent by the host.
func (m *TestMachine) SentLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.sent...)
}

func (m *TestMachine) consoleWrite(data []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, io.ErrClosedPipe
	default:
	}

	m.mu.Lock()
	m.partial.Write(data)

	var lines []string

	for {
		text := m.partial.String()

		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			break
		}

		lines = append(lines, text[:idx])
		m.partial.Reset()
		m.partial.WriteString(text[idx+1:])
	}

	m.sent = append(m.sent, lines...)
	handler := m.handler
	m.mu.Unlock()

	for _, line := range lines {
		m.handleLine(line)

		if handler != nil {
			handler(line)
		}
	}

	return len(data), nil
}

func (m *TestMachine) handleLine(line string) {
	switch {
	case line == "":
		m.GuestWrite("\n" + m.ShellBanner)
	case strings.Contains(line, "mount -t 9p"):
		if m.NoFiles || m.FailMount {
			return
		}

		match := mountProbeRE.FindStringSubmatch(line)
		if match != nil {
			_ = m.files.WriteFile(match[2], []byte(match[1]+"\n"))
		}
	}
}

type testConsole struct {
	m *TestMachine
}

func (c testConsole) Read(p []byte) (int, error) {
	return c.m.hostRead.Read(p)
}

func (c testConsole) Write(p []byte) (int, error) {
	return c.m.consoleWrite(p)
}
