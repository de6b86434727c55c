// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type rootOptions struct {
	io         IO
	configPath string
	debug      bool
	cfg        *Config
}

func (o *rootOptions) setup(*cobra.Command, []string) error {
	setupLogging(o.io.Stderr, o.debug)

	o.cfg = &Config{}

	if o.configPath != "" {
		cfg, err := loadConfig(o.configPath)
		if err != nil {
			return err
		}

		o.cfg = cfg
	}

	return nil
}

func newRootCommand(cfg IO) *cobra.Command {
	opts := &rootOptions{io: cfg}

	cmd := &cobra.Command{
		Use:   "guestshell",
		Short: "Run shell commands in a full-system VM guest",
		Long: "guestshell boots a full-system VM and runs shell commands " +
			"inside it,\nusing the serial console and an optional 9p " +
			"shared filesystem as transports.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.setup,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"path to TOML config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"enable debug logging")

	cmd.SetIn(cfg.Stdin)
	cmd.SetOut(cfg.Stdout)
	cmd.SetErr(cfg.Stderr)

	cmd.AddCommand(
		newExecCommand(opts),
		newVersionCommand(),
	)

	return cmd
}

// Run is the main entry point for the CLI command.
func Run(ctx context.Context, args []string, cfg IO) int {
	cmd := newRootCommand(cfg)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	// A non-zero guest exit code is a result, not a program failure, so
	// it is reflected in the exit code without an error message.
	var guestErr *GuestExitError
	if errors.As(err, &guestErr) {
		return guestErr.ExitCode
	}

	slog.Error(err.Error())

	return -1
}
