// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package qemu_test

import (
	"testing"

	"github.com/guestshell/guestshell/internal/qemu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCommandSpecApplyDefaults(t *testing.T) {
	spec := qemu.CommandSpec{Image: "guest.qcow2"}
	spec.ApplyDefaults()

	assert.Equal(t, "qemu-system-x86_64", spec.Executable)
	assert.Equal(t, "q35", spec.Machine)
	assert.Equal(t, "max", spec.CPU)
	assert.EqualValues(t, 1, spec.SMP)
	assert.EqualValues(t, 512, spec.Memory)
	assert.Equal(t, "hostshare", spec.MountTag)
	assert.Equal(t, "guestshell", spec.SnapshotTag)
}

func TestCommandSpecApplyDefaultsKeepsSetFields(t *testing.T) {
	spec := qemu.CommandSpec{
		Executable: "qemu-system-aarch64",
		Image:      "guest.qcow2",
		Machine:    "virt",
		Memory:     2048,
	}
	spec.ApplyDefaults()

	assert.Equal(t, "qemu-system-aarch64", spec.Executable)
	assert.Equal(t, "virt", spec.Machine)
	assert.EqualValues(t, 2048, spec.Memory)
}

func TestCommandSpecValidate(t *testing.T) {
	spec := qemu.CommandSpec{}
	assert.ErrorIs(t, spec.Validate(), qemu.ErrImageMissing)

	spec.Image = "guest.qcow2"
	assert.NoError(t, spec.Validate())
}

func TestCommandSpecArgs(t *testing.T) {
	tests := []struct {
		name     string
		spec     qemu.CommandSpec
		expected []string
	}{
		{
			name: "minimal",
			spec: qemu.CommandSpec{
				Image:   "guest.qcow2",
				Machine: "q35",
				CPU:     "max",
				SMP:     1,
				Memory:  512,
				NoKVM:   true,
			},
			expected: []string{
				"-machine", "q35",
				"-cpu", "max",
				"-smp", "1",
				"-m", "512",
				"-display", "none",
				"-monitor", "none",
				"-serial", "stdio",
				"-drive", "file=guest.qcow2,if=virtio",
			},
		},
		{
			name: "kvm",
			spec: qemu.CommandSpec{
				Image:   "guest.qcow2",
				Machine: "q35",
				CPU:     "host",
				SMP:     2,
				Memory:  1024,
			},
			expected: []string{
				"-machine", "q35",
				"-cpu", "host",
				"-smp", "2",
				"-m", "1024",
				"-display", "none",
				"-monitor", "none",
				"-serial", "stdio",
				"-drive", "file=guest.qcow2,if=virtio",
				"-enable-kvm",
			},
		},
		{
			name: "share and control socket",
			spec: qemu.CommandSpec{
				Image:     "guest.qcow2",
				Machine:   "q35",
				CPU:       "max",
				SMP:       1,
				Memory:    512,
				NoKVM:     true,
				ShareDir:  "/run/share",
				MountTag:  "hostshare",
				QMPSocket: "/run/qmp.sock",
			},
			expected: []string{
				"-machine", "q35",
				"-cpu", "max",
				"-smp", "1",
				"-m", "512",
				"-display", "none",
				"-monitor", "none",
				"-serial", "stdio",
				"-drive", "file=guest.qcow2,if=virtio",
				"-virtfs", "local,path=/run/share,mount_tag=hostshare," +
					"security_model=mapped-xattr",
				"-qmp", "unix:/run/qmp.sock,server,nowait",
			},
		},
		{
			name: "restore snapshot",
			spec: qemu.CommandSpec{
				Image:        "guest.qcow2",
				Machine:      "q35",
				CPU:          "max",
				SMP:          1,
				Memory:       512,
				NoKVM:        true,
				LoadSnapshot: "warm",
			},
			expected: []string{
				"-machine", "q35",
				"-cpu", "max",
				"-smp", "1",
				"-m", "512",
				"-display", "none",
				"-monitor", "none",
				"-serial", "stdio",
				"-drive", "file=guest.qcow2,if=virtio",
				"-loadvm", "warm",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := tt.spec.Args()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, args)
		})
	}
}

func TestCommandSpecArgsCollision(t *testing.T) {
	spec := qemu.CommandSpec{
		Image:   "guest.qcow2",
		Machine: "q35",
		CPU:     "max",
		SMP:     1,
		Memory:  512,
		NoKVM:   true,
		ExtraArgs: []qemu.Argument{
			qemu.UniqueArg("serial", "none"),
		},
	}

	_, err := spec.Args()
	assert.ErrorIs(t, err, qemu.ErrArgumentCollision)
}

func TestCommandSpecArgsRepeatableExtra(t *testing.T) {
	spec := qemu.CommandSpec{
		Image:   "guest.qcow2",
		Machine: "q35",
		CPU:     "max",
		SMP:     1,
		Memory:  512,
		NoKVM:   true,
		ExtraArgs: []qemu.Argument{
			qemu.RepeatableArg("drive", "file=data.img", "if=virtio"),
		},
	}

	args, err := spec.Args()
	require.NoError(t, err)
	assert.Contains(t, args, "file=data.img,if=virtio")
}
