// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"os"
	"runtime"
	"strconv"
)

const defaultSnapshotTag = "guestshell"

// CommandSpec defines the parameters for running the guest system.
type CommandSpec struct {
	// Path to the qemu-system binary.
	Executable string

	// Path to the bootable guest disk image.
	Image string

	// QEMU machine type to use. Depends on the QEMU binary used.
	Machine string

	// CPU type to use. Depends on machine type and QEMU binary used.
	CPU string

	// Number of CPUs for the guest.
	SMP uint64

	// Memory for the machine in MB.
	Memory uint64

	// Disable KVM support.
	NoKVM bool

	// Host directory exported to the guest as a 9p share, serving as the
	// virtual filesystem channel. Empty disables the channel; only the
	// serial console remains.
	ShareDir string

	// 9p mount tag the guest uses to mount the share.
	MountTag string

	// Path of the unix socket for the QMP control connection. Empty
	// disables snapshots and graceful shutdown.
	QMPSocket string

	// Internal snapshot tag to restore on boot. Empty means cold boot.
	LoadSnapshot string

	// Internal snapshot tag written by SaveState.
	SnapshotTag string

	// ExtraArgs are extra arguments passed to the QEMU command. They must
	// not interfere with the essential arguments set by the command
	// itself or an error is returned on boot.
	ExtraArgs []Argument
}

// ApplyDefaults fills unset fields with working defaults for the host.
func (s *CommandSpec) ApplyDefaults() {
	if s.Executable == "" {
		s.Executable = "qemu-system-x86_64"
	}

	if s.Machine == "" {
		s.Machine = "q35"
	}

	if s.CPU == "" {
		s.CPU = "max"
	}

	if s.SMP == 0 {
		s.SMP = 1
	}

	if s.Memory == 0 {
		s.Memory = 512
	}

	if s.MountTag == "" {
		s.MountTag = "hostshare"
	}

	if s.SnapshotTag == "" {
		s.SnapshotTag = defaultSnapshotTag
	}

	if !s.NoKVM {
		s.NoKVM = !KVMAvailable()
	}
}

// Validate checks for missing required fields.
func (s *CommandSpec) Validate() error {
	if s.Image == "" {
		return ErrImageMissing
	}

	return nil
}

// Args compiles the argument list for the QEMU command. The serial console
// goes to stdio, where the machine attaches it to a PTY.
func (s *CommandSpec) Args() ([]string, error) {
	args := []Argument{
		UniqueArg("machine", s.Machine),
		UniqueArg("cpu", s.CPU),
		UniqueArg("smp", strconv.FormatUint(s.SMP, 10)),
		UniqueArg("m", strconv.FormatUint(s.Memory, 10)),
		UniqueArg("display", "none"),
		UniqueArg("monitor", "none"),
		UniqueArg("serial", "stdio"),
		RepeatableArg("drive", "file="+s.Image, "if=virtio"),
	}

	if !s.NoKVM {
		args = append(args, UniqueArg("enable-kvm"))
	}

	if s.ShareDir != "" {
		args = append(args, RepeatableArg("virtfs",
			"local",
			"path="+s.ShareDir,
			"mount_tag="+s.MountTag,
			"security_model=mapped-xattr",
		))
	}

	if s.QMPSocket != "" {
		args = append(args, UniqueArg("qmp",
			"unix:"+s.QMPSocket+",server,nowait"))
	}

	if s.LoadSnapshot != "" {
		args = append(args, UniqueArg("loadvm", s.LoadSnapshot))
	}

	args = append(args, s.ExtraArgs...)

	return BuildArgumentStrings(args)
}

// KVMAvailable checks if KVM support is available.
func KVMAvailable() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	f, err := os.OpenFile("/dev/kvm", os.O_WRONLY, 0)
	_ = f.Close()

	return err == nil
}
