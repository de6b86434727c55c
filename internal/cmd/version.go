// SPDX-FileCopyrightText: 2026 The guestshell authors
//
// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			buildInfo, ok := debug.ReadBuildInfo()
			if !ok {
				return ErrReadBuildInfo
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n",
				buildInfo.Main.Version)

			return nil
		},
	}
}
