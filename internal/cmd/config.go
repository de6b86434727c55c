// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/guestshell/guestshell/internal/bridge"
	"github.com/guestshell/guestshell/internal/qemu"
)

// Config is the TOML configuration file. All fields are optional; unset
// fields keep the built-in defaults. Flags override file values.
type Config struct {
	Machine MachineConfig `toml:"machine"`
	Channel ChannelConfig `toml:"channel"`
	Boot    BootConfig    `toml:"boot"`
	Exec    ExecConfig    `toml:"exec"`
}

// MachineConfig selects the emulator and guest image.
type MachineConfig struct {
	Executable string `toml:"executable"`
	Image      string `toml:"image"`
	Type       string `toml:"type"`
	CPU        string `toml:"cpu"`
	SMP        uint64 `toml:"smp"`
	Memory     uint64 `toml:"memory"`
	NoKVM      bool   `toml:"no_kvm"`
}

// ChannelConfig configures the virtual filesystem channel and the control
// socket.
type ChannelConfig struct {
	ShareDir   string `toml:"share_dir"`
	MountTag   string `toml:"mount_tag"`
	MountPoint string `toml:"mount_point"`
	QMPSocket  string `toml:"qmp_socket"`
}

// BootConfig configures the boot handshake.
type BootConfig struct {
	LoginPrompt  string   `toml:"login_prompt"`
	ShellPrompt  string   `toml:"shell_prompt"`
	BootTimeout  duration `toml:"boot_timeout"`
	SettleDelay  duration `toml:"settle_delay"`
	LoadSnapshot string   `toml:"load_snapshot"`
	SnapshotTag  string   `toml:"snapshot_tag"`
}

// ExecConfig configures command execution timeouts.
type ExecConfig struct {
	Timeout     duration `toml:"timeout"`
	PipeTimeout duration `toml:"pipe_timeout"`
}

type duration time.Duration

// UnmarshalText implements [encoding.TextUnmarshaler] so durations can be
// written as "90s" or "2m" in the config file.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = duration(parsed)

	return nil
}

func loadConfig(path string) (*Config, error) {
	var cfg Config

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: %w: %s",
			path, ErrUnknownConfigKey, undecoded[0].String())
	}

	return &cfg, nil
}

func (c *Config) machineSpec() qemu.CommandSpec {
	return qemu.CommandSpec{
		Executable:   c.Machine.Executable,
		Image:        c.Machine.Image,
		Machine:      c.Machine.Type,
		CPU:          c.Machine.CPU,
		SMP:          c.Machine.SMP,
		Memory:       c.Machine.Memory,
		NoKVM:        c.Machine.NoKVM,
		ShareDir:     c.Channel.ShareDir,
		MountTag:     c.Channel.MountTag,
		QMPSocket:    c.Channel.QMPSocket,
		LoadSnapshot: c.Boot.LoadSnapshot,
		SnapshotTag:  c.Boot.SnapshotTag,
	}
}

func (c *Config) bridgeConfig() bridge.Config {
	return bridge.Config{
		LoginPrompt: c.Boot.LoginPrompt,
		ShellPrompt: c.Boot.ShellPrompt,
		BootTimeout: time.Duration(c.Boot.BootTimeout),
		SettleDelay: time.Duration(c.Boot.SettleDelay),
		MountTag:    c.Channel.MountTag,
		MountPoint:  c.Channel.MountPoint,
	}
}
