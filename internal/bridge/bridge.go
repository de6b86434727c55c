// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/guestshell/guestshell/internal/serial"
)

// Config holds the guest-image dependent handshake values and channel
// settings. The prompt substrings are properties of the guest image, not of
// the protocol.
type Config struct {
	// LoginPrompt is the substring signalling that a cold boot reached the
	// login prompt.
	LoginPrompt string

	// ShellPrompt is the substring signalling an interactive shell,
	// expected after a newline is sent to the login prompt.
	ShellPrompt string

	// BootTimeout bounds the wait for LoginPrompt on cold boot.
	BootTimeout time.Duration

	// PromptTimeout bounds the wait for ShellPrompt after login.
	PromptTimeout time.Duration

	// SettleDelay is waited instead of the prompt handshake when the
	// machine was restored from a snapshot.
	SettleDelay time.Duration

	// MountTag is the 9p mount tag of the shared directory.
	MountTag string

	// MountPoint is the guest path the shared directory is mounted at.
	MountPoint string

	// ScratchDirName is the name of the base scratch directory created
	// under the mount point (or under /tmp if the mount failed).
	ScratchDirName string

	// ProbeTimeout bounds the wait for the filesystem mount probe.
	ProbeTimeout time.Duration

	// RingSize is the serial ring buffer capacity in bytes.
	RingSize int
}

func (c *Config) applyDefaults() {
	if c.LoginPrompt == "" {
		c.LoginPrompt = "login:"
	}

	if c.ShellPrompt == "" {
		c.ShellPrompt = "~#"
	}

	if c.BootTimeout == 0 {
		c.BootTimeout = 120 * time.Second
	}

	if c.PromptTimeout == 0 {
		c.PromptTimeout = 10 * time.Second
	}

	if c.SettleDelay == 0 {
		c.SettleDelay = 2 * time.Second
	}

	if c.MountTag == "" {
		c.MountTag = "hostshare"
	}

	if c.MountPoint == "" {
		c.MountPoint = "/mnt/host"
	}

	if c.ScratchDirName == "" {
		c.ScratchDirName = ".gsh"
	}

	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 5 * time.Second
	}
}

// Bridge is the single owner of the virtual machine and its two host/guest
// channels. All other components drive the guest exclusively through it.
type Bridge struct {
	machine Machine
	cfg     Config
	watcher *serial.Watcher

	counter   atomic.Uint64
	ready     atomic.Bool
	fsReady   atomic.Bool
	destroyed atomic.Bool
	pumping   atomic.Bool

	base     string
	pumpDone chan struct{}
}

// New creates a [Bridge] for the given machine. [Bridge.Initialize] must be
// called before anything else.
func New(machine Machine, cfg Config) *Bridge {
	cfg.applyDefaults()

	return &Bridge{
		machine:  machine,
		cfg:      cfg,
		watcher:  serial.NewWatcher(cfg.RingSize),
		pumpDone: make(chan struct{}),
	}
}

// NextID allocates a new globally unique id. A single counter serves jobs,
// streams, shells and marker reads so ids never collide across transports.
func (b *Bridge) NextID() uint64 {
	return b.counter.Add(1)
}

// Ready reports whether [Bridge.Initialize] completed.
func (b *Bridge) Ready() bool {
	return b.ready.Load()
}

// FilesystemReady reports whether the virtual filesystem channel mounted.
// When false, only the marker transport is usable.
func (b *Bridge) FilesystemReady() bool {
	return b.fsReady.Load()
}

// Base returns the guest path of the base scratch directory. Valid after
// [Bridge.Initialize].
func (b *Bridge) Base() string {
	return b.base
}

// MountPoint returns the guest path the shared directory is mounted at.
func (b *Bridge) MountPoint() string {
	return b.cfg.MountPoint
}

// Initialize boots the machine and performs the readiness handshake: on cold
// boot it waits for the login prompt and then for a shell prompt after
// sending a newline; on snapshot restore it waits a fixed settle delay. It
// then neutralizes the guest shell (no echo, empty prompt), attempts to mount
// the filesystem channel and creates the base scratch directory.
//
// A failed filesystem mount is not an error; it leaves [Bridge.
// FilesystemReady] false. A missed boot handshake is fatal and tears the
// machine down.
func (b *Bridge) Initialize(ctx context.Context) error {
	restored, err := b.machine.Boot(ctx)
	if err != nil {
		return &InitError{Stage: "boot", Err: err}
	}

	// The login prompt may arrive unsolicited right after boot, so the
	// listener must be registered before the pump starts feeding bytes.
	login := b.watcher.Listen(b.NextID(), b.cfg.LoginPrompt)
	defer login.Close()

	b.pumping.Store(true)
	go b.pump()

	if restored {
		select {
		case <-time.After(b.cfg.SettleDelay):
		case <-ctx.Done():
			return b.failInit("settle", ctx.Err())
		}
	} else {
		if err := b.await(ctx, login.Done(), b.cfg.BootTimeout); err != nil {
			return b.failInit("login prompt", errors.Join(ErrBootTimeout, err))
		}

		shell := b.watcher.Listen(b.NextID(), b.cfg.ShellPrompt)
		defer shell.Close()

		if err := b.send("\n"); err != nil {
			return b.failInit("login", err)
		}

		if err := b.await(ctx, shell.Done(), b.cfg.PromptTimeout); err != nil {
			return b.failInit("shell prompt", errors.Join(ErrBootTimeout, err))
		}
	}

	// Neutralize the shell so injected commands are not echoed back into
	// the serial stream and no prompt text pollutes marker scans.
	if err := b.send("stty -echo; export PS1='' PS2=''\n"); err != nil {
		return b.failInit("shell setup", err)
	}

	b.mountFilesystem(ctx)

	if b.fsReady.Load() {
		b.base = b.cfg.MountPoint + "/" + b.cfg.ScratchDirName
	} else {
		b.base = "/tmp/" + b.cfg.ScratchDirName
	}

	if err := b.send("mkdir -p " + b.base + "\n"); err != nil {
		return b.failInit("scratch dir", err)
	}

	b.ready.Store(true)

	slog.Info("guest ready",
		slog.Bool("restored", restored),
		slog.Bool("filesystem", b.fsReady.Load()),
		slog.String("base", b.base))

	return nil
}

// mountFilesystem tells the guest to mount the 9p share and verifies the
// mount by polling for a probe file the guest writes into it. Any failure
// leaves fsReady false; the caller carries on with the marker transport.
func (b *Bridge) mountFilesystem(ctx context.Context) {
	files := b.machine.Files()
	if files == nil {
		slog.Warn("machine provides no filesystem channel, using marker transport")
		return
	}

	token := uuid.NewString()
	probe := probeFileName

	line := fmt.Sprintf(
		"mkdir -p %[1]s && mount -t 9p -o trans=virtio,version=9p2000.L %[2]s %[1]s && echo %[3]s > %[1]s/%[4]s\n",
		b.cfg.MountPoint, b.cfg.MountTag, token, probe,
	)
	if err := b.send(line); err != nil {
		slog.Warn("filesystem mount command failed", slog.Any("error", err))
		return
	}

	deadline := time.Now().Add(b.cfg.ProbeTimeout)
	for time.Now().Before(deadline) {
		data, err := files.ReadFile(probe)
		if err == nil && strings.TrimSpace(string(data)) == token {
			b.fsReady.Store(true)
			return
		}

		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}

	slog.Warn("filesystem mount probe timed out, using marker transport")
}

const probeFileName = ".mount-probe"

func (b *Bridge) pump() {
	defer close(b.pumpDone)

	console := b.machine.Console()
	buf := make([]byte, 4096)

	for {
		n, err := console.Read(buf)
		if n > 0 {
			b.watcher.Feed(buf[:n])
		}

		if err != nil {
			return
		}
	}
}

func (b *Bridge) await(
	ctx context.Context,
	done <-chan struct{},
	timeout time.Duration,
) error {
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrMarkerTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) failInit(stage string, err error) error {
	b.destroyed.Store(true)
	_ = b.machine.Close()

	if b.pumping.Load() {
		<-b.pumpDone
	}

	return &InitError{Stage: stage, Err: err}
}

// SendText writes raw bytes to the guest console. Fire and forget; there is
// no acknowledgment.
func (b *Bridge) SendText(text string) error {
	b.mustLive()
	return b.send(text)
}

func (b *Bridge) send(text string) error {
	_, err := b.machine.Console().Write([]byte(text))
	if err != nil {
		return fmt.Errorf("console write: %w", err)
	}

	return nil
}

// Listen registers a serial listener for the given marker. The caller must
// close it. Used by the marker transport to scan for its sentinels.
func (b *Bridge) Listen(marker string) *serial.Listener {
	b.mustLive()
	return b.watcher.Listen(b.NextID(), marker)
}

// WaitForMarker suspends until the literal marker substring appears on the
// live serial stream or the timeout expires with [ErrMarkerTimeout].
func (b *Bridge) WaitForMarker(
	ctx context.Context,
	marker string,
	timeout time.Duration,
) error {
	l := b.Listen(marker)
	defer l.Close()

	return b.await(ctx, l.Done(), timeout)
}

// ReadFile reads a guest file through the filesystem channel. The path must
// lie under the mount point. Returns [ErrNotFound] while the guest has not
// created the file yet; that is the normal state for a still-running job.
func (b *Bridge) ReadFile(guestPath string) ([]byte, error) {
	b.mustLive()

	files, rel, err := b.relPath(guestPath)
	if err != nil {
		return nil, err
	}

	data, err := files.ReadFile(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("guest file not there yet", slog.String("path", guestPath))
			return nil, fmt.Errorf("%s: %w", guestPath, ErrNotFound)
		}

		return nil, fmt.Errorf("read %s: %w", guestPath, err)
	}

	return data, nil
}

// CreateFile writes a guest file through the filesystem channel. The path
// must lie under the mount point.
func (b *Bridge) CreateFile(guestPath string, data []byte) error {
	b.mustLive()

	files, rel, err := b.relPath(guestPath)
	if err != nil {
		return err
	}

	if err := files.WriteFile(rel, data); err != nil {
		return fmt.Errorf("write %s: %w", guestPath, err)
	}

	return nil
}

// EnsureDirectory creates a directory in the guest. The mkdir is idempotent
// and fire-and-forget, like every console injection.
func (b *Bridge) EnsureDirectory(guestPath string) error {
	b.mustLive()
	return b.send("mkdir -p " + guestPath + "\n")
}

func (b *Bridge) relPath(guestPath string) (FileChannel, string, error) {
	if !b.fsReady.Load() {
		return nil, "", ErrFilesystemUnavailable
	}

	prefix := b.cfg.MountPoint + "/"

	rel, found := strings.CutPrefix(guestPath, prefix)
	if !found || rel == "" || strings.Contains(rel, "..") {
		return nil, "", fmt.Errorf("%s: not under %s: %w",
			guestPath, b.cfg.MountPoint, ErrFilesystemUnavailable)
	}

	return b.machine.Files(), rel, nil
}

// SaveState snapshots the full machine state. Substrate state (sessions,
// jobs) is deliberately not part of the snapshot; it lives in host memory
// only and is rebuilt by the caller after a restore.
func (b *Bridge) SaveState(ctx context.Context) error {
	b.mustLive()
	return b.machine.SaveState(ctx)
}

// Destroy tears the machine down and invalidates the bridge. Any guest
// directed call after Destroy is a programming error and panics.
func (b *Bridge) Destroy() error {
	if b.destroyed.Swap(true) {
		return nil
	}

	b.ready.Store(false)
	b.fsReady.Store(false)

	err := b.machine.Close()

	if b.pumping.Load() {
		<-b.pumpDone
	}

	return err
}

func (b *Bridge) mustLive() {
	if b.destroyed.Load() {
		panic("bridge: guest operation after Destroy")
	}
}
