// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/guestshell/guestshell/internal/bridge"
	"github.com/guestshell/guestshell/internal/guestshell"
	"github.com/guestshell/guestshell/internal/qemu"
	"github.com/spf13/cobra"
)

type execOptions struct {
	root *rootOptions

	image        string
	shareDir     string
	qmpSocket    string
	loadSnapshot string
	saveSnapshot bool
	session      string
	useStdin     bool
	timeout      time.Duration
}

func newExecCommand(root *rootOptions) *cobra.Command {
	opts := &execOptions{root: root}

	cmd := &cobra.Command{
		Use:   "exec [flags] -- command [args]...",
		Short: "Boot the guest and run a shell command in it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd.Context(), strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&opts.image, "image", "",
		"bootable guest disk image (overrides config)")
	cmd.Flags().StringVar(&opts.shareDir, "share-dir", "",
		"host directory exported to the guest as 9p share")
	cmd.Flags().StringVar(&opts.qmpSocket, "qmp-socket", "",
		"unix socket path for the QMP control connection")
	cmd.Flags().StringVar(&opts.loadSnapshot, "load-snapshot", "",
		"internal snapshot tag to restore instead of cold booting")
	cmd.Flags().BoolVar(&opts.saveSnapshot, "save-snapshot", false,
		"save a machine snapshot after the command ran")
	cmd.Flags().StringVar(&opts.session, "session", "default",
		"logical session tag the command runs in")
	cmd.Flags().BoolVarP(&opts.useStdin, "stdin", "i", false,
		"pass stdin to the guest command")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0,
		"per-command execution timeout")

	return cmd
}

func (o *execOptions) spec() qemu.CommandSpec {
	spec := o.root.cfg.machineSpec()

	if o.image != "" {
		spec.Image = o.image
	}

	if o.shareDir != "" {
		spec.ShareDir = o.shareDir
	}

	if o.qmpSocket != "" {
		spec.QMPSocket = o.qmpSocket
	}

	if o.loadSnapshot != "" {
		spec.LoadSnapshot = o.loadSnapshot
	}

	return spec
}

func (o *execOptions) run(ctx context.Context, command string) error {
	spec := o.spec()

	// Internal snapshots write into the image, so two processes must
	// never share one disk.
	lock := flock.New(spec.Image + ".lock")

	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock image: %w", err)
	}

	if !locked {
		return fmt.Errorf("%s: %w", spec.Image, ErrImageLocked)
	}
	defer func() { _ = lock.Unlock() }()

	machine, err := qemu.NewMachine(spec)
	if err != nil {
		return err
	}

	br := bridge.New(machine, o.root.cfg.bridgeConfig())

	if err := br.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize guest: %w", err)
	}
	defer func() { _ = br.Destroy() }()

	executor := guestshell.New(br)

	if o.timeout > 0 {
		executor.ExecTimeout = o.timeout
		executor.PipeTimeout = o.timeout
	} else if t := time.Duration(o.root.cfg.Exec.Timeout); t > 0 {
		executor.ExecTimeout = t
		executor.PipeTimeout = t
	}

	if t := time.Duration(o.root.cfg.Exec.PipeTimeout); t > 0 {
		executor.PipeTimeout = t
	}

	result, err := o.execute(ctx, executor, command)
	if err != nil {
		return err
	}

	fmt.Fprint(o.root.io.Stdout, result.Output)

	if result.TimedOut {
		slog.Warn("guest command timed out, output is partial",
			slog.String("command", command))
	}

	if o.saveSnapshot {
		if err := br.SaveState(ctx); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	if result.ExitCode != nil && *result.ExitCode != 0 {
		return &GuestExitError{ExitCode: *result.ExitCode}
	}

	return nil
}

func (o *execOptions) execute(
	ctx context.Context,
	executor *guestshell.Executor,
	command string,
) (guestshell.Result, error) {
	if !o.useStdin {
		return executor.Execute(ctx, o.session, command)
	}

	stdin, err := io.ReadAll(o.root.io.Stdin)
	if err != nil {
		return guestshell.Result{}, fmt.Errorf("read stdin: %w", err)
	}

	return executor.Pipe(ctx, o.session, command, string(stdin))
}
