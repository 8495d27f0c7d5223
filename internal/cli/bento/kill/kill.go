// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package kill implements the `bento kill` subcommand (spec.md §6).
package kill

import (
	"fmt"

	"github.com/spf13/cobra"

	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/runtime"
)

type Kill struct{}

func New() *cobra.Command {
	cmd, err := cmdfactory.New(&Kill{}, cobra.Command{
		Short: "Terminate a container's init process",
		Use:   "kill <id>",
		Args:  cobra.ExactArgs(1),
	})
	if err != nil {
		panic(err)
	}
	return cmd
}

func (opts *Kill) Run(cmd *cobra.Command, args []string) error {
	id := args[0]
	engine, err := runtime.NewEngine()
	if err != nil {
		return err
	}
	if err := engine.Kill(id); err != nil {
		return fmt.Errorf("kill %s: %w", id, err)
	}
	return nil
}
