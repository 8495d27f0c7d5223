// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package bento assembles the top-level `bento` cobra command from its
// subcommands (spec.md §6 CLI surface).
package bento

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/internal/cli/bento/create"
	"kraftkit.sh/internal/cli/bento/delete"
	"kraftkit.sh/internal/cli/bento/kill"
	"kraftkit.sh/internal/cli/bento/list"
	"kraftkit.sh/internal/cli/bento/start"
	"kraftkit.sh/internal/cli/bento/state"
	"kraftkit.sh/internal/cli/bento/stats"
	"kraftkit.sh/internal/version"
)

// Bento is the root command; it carries no flags of its own.
type Bento struct{}

func New() *cobra.Command {
	cmd, err := cmdfactory.New(&Bento{}, cobra.Command{
		Short:   "A rootless Linux container runtime",
		Use:     "bento <command> [flags]",
		Version: version.Version(),
		Long: heredoc.Doc(`
			bento creates, starts, inspects, and destroys rootless Linux
			containers: user namespace plus delegated UID/GID mapping, the
			remaining kernel namespaces, a pivot_root rootfs, and cgroup v2
			resource limits through a delegated subtree.`),
	})
	if err != nil {
		panic(err)
	}

	cmd.AddCommand(create.New())
	cmd.AddCommand(start.New())
	cmd.AddCommand(state.New())
	cmd.AddCommand(list.New())
	cmd.AddCommand(kill.New())
	cmd.AddCommand(delete.New())
	cmd.AddCommand(stats.New())

	return cmd
}

func (*Bento) Run(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}
