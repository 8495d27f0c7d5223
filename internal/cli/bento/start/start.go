// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package start implements the `bento start` subcommand (spec.md §6).
package start

import (
	"fmt"

	"github.com/spf13/cobra"

	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/runtime"
)

type Start struct{}

func New() *cobra.Command {
	cmd, err := cmdfactory.New(&Start{}, cobra.Command{
		Short: "Deliver the resume signal to a created container",
		Use:   "start <id>",
		Args:  cobra.ExactArgs(1),
	})
	if err != nil {
		panic(err)
	}
	return cmd
}

func (opts *Start) Run(cmd *cobra.Command, args []string) error {
	id := args[0]
	engine, err := runtime.NewEngine()
	if err != nil {
		return err
	}
	if err := engine.Start(id); err != nil {
		return fmt.Errorf("start %s: %w", id, err)
	}
	return nil
}
