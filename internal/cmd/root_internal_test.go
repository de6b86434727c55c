// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testIO(stdin string) (IO, *strings.Builder, *strings.Builder) {
	stdout := &strings.Builder{}
	stderr := &strings.Builder{}

	return IO{
		Stdin:  strings.NewReader(stdin),
		Stdout: stdout,
		Stderr: stderr,
	}, stdout, stderr
}

func TestRunVersion(t *testing.T) {
	cfg, stdout, _ := testIO("")

	rc := Run(context.Background(), []string{"version"}, cfg)

	assert.Equal(t, 0, rc)
	assert.Contains(t, stdout.String(), "Version:")
}

func TestRunUnknownCommand(t *testing.T) {
	cfg, _, _ := testIO("")

	rc := Run(context.Background(), []string{"frobnicate"}, cfg)

	assert.Equal(t, -1, rc)
}

func TestRunBadConfigFile(t *testing.T) {
	cfg, _, _ := testIO("")

	rc := Run(context.Background(),
		[]string{"--config", "/nonexistent/guestshell.toml", "version"}, cfg)

	assert.Equal(t, -1, rc)
}

func TestExecOptionsSpecOverrides(t *testing.T) {
	root := &rootOptions{cfg: &Config{}}
	root.cfg.Machine.Image = "from-config.qcow2"
	root.cfg.Channel.ShareDir = "/srv/share"

	opts := &execOptions{
		root:  root,
		image: "from-flag.qcow2",
	}

	spec := opts.spec()

	assert.Equal(t, "from-flag.qcow2", spec.Image)
	assert.Equal(t, "/srv/share", spec.ShareDir)
}

func TestGuestExitError(t *testing.T) {
	err := &GuestExitError{ExitCode: 42}

	assert.ErrorIs(t, err, &GuestExitError{})
	assert.Contains(t, err.Error(), "42")
}
