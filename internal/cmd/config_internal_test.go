// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "guestshell.toml")
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err)

	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
[machine]
image = "guest.qcow2"
memory = 1024
no_kvm = true

[channel]
share_dir = "/srv/share"
mount_tag = "hostshare"
qmp_socket = "/run/qmp.sock"

[boot]
boot_timeout = "90s"
snapshot_tag = "warm"

[exec]
timeout = "30s"
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "guest.qcow2", cfg.Machine.Image)
	assert.EqualValues(t, 1024, cfg.Machine.Memory)
	assert.True(t, cfg.Machine.NoKVM)
	assert.Equal(t, "/srv/share", cfg.Channel.ShareDir)
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Boot.BootTimeout))
	assert.Equal(t, "warm", cfg.Boot.SnapshotTag)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Exec.Timeout))
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := writeConfigFile(t, `
[machine]
imag = "typo.qcow2"
`)

	_, err := loadConfig(path)
	assert.ErrorIs(t, err, ErrUnknownConfigKey)
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := writeConfigFile(t, `
[boot]
boot_timeout = "ninety seconds"
`)

	_, err := loadConfig(path)
	require.Error(t, err)
}

func TestConfigMachineSpec(t *testing.T) {
	cfg := &Config{}
	cfg.Machine.Image = "guest.qcow2"
	cfg.Machine.Type = "virt"
	cfg.Channel.ShareDir = "/srv/share"
	cfg.Channel.QMPSocket = "/run/qmp.sock"
	cfg.Boot.LoadSnapshot = "warm"

	spec := cfg.machineSpec()

	assert.Equal(t, "guest.qcow2", spec.Image)
	assert.Equal(t, "virt", spec.Machine)
	assert.Equal(t, "/srv/share", spec.ShareDir)
	assert.Equal(t, "/run/qmp.sock", spec.QMPSocket)
	assert.Equal(t, "warm", spec.LoadSnapshot)
}

func TestConfigBridgeConfig(t *testing.T) {
	cfg := &Config{}
	cfg.Boot.LoginPrompt = "debian login:"
	cfg.Boot.BootTimeout = duration(90 * time.Second)
	cfg.Channel.MountPoint = "/media/host"

	bridgeCfg := cfg.bridgeConfig()

	assert.Equal(t, "debian login:", bridgeCfg.LoginPrompt)
	assert.Equal(t, 90*time.Second, bridgeCfg.BootTimeout)
	assert.Equal(t, "/media/host", bridgeCfg.MountPoint)
}
