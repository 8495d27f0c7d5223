// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package delete implements the `bento delete` subcommand (spec.md §6).
package delete

import (
	"fmt"

	"github.com/spf13/cobra"

	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/runtime"
)

type Delete struct{}

func New() *cobra.Command {
	cmd, err := cmdfactory.New(&Delete{}, cobra.Command{
		Short: "Remove a container's state, cgroup, and rootfs",
		Use:   "delete <id>",
		Args:  cobra.ExactArgs(1),
	})
	if err != nil {
		panic(err)
	}
	return cmd
}

func (opts *Delete) Run(cmd *cobra.Command, args []string) error {
	id := args[0]
	engine, err := runtime.NewEngine()
	if err != nil {
		return err
	}
	if err := engine.Delete(id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}
