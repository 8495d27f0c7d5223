// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package state implements the `bento state` subcommand (spec.md §6).
package state

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/runtime"
)

type State struct{}

func New() *cobra.Command {
	cmd, err := cmdfactory.New(&State{}, cobra.Command{
		Short: "Print a container's persisted state",
		Use:   "state <id>",
		Args:  cobra.ExactArgs(1),
	})
	if err != nil {
		panic(err)
	}
	return cmd
}

func (opts *State) Run(cmd *cobra.Command, args []string) error {
	id := args[0]
	engine, err := runtime.NewEngine()
	if err != nil {
		return err
	}
	info, err := engine.State(id)
	if err != nil {
		return fmt.Errorf("state %s: %w", id, err)
	}

	w := os.Stdout
	fmt.Fprintf(w, "id:              %s\n", info.ID)
	fmt.Fprintf(w, "status:          %s\n", info.Status)
	fmt.Fprintf(w, "pid:             %d\n", info.Pid)
	fmt.Fprintf(w, "alive:           %v\n", info.Alive)
	fmt.Fprintf(w, "bundle:          %s\n", info.BundlePath)
	fmt.Fprintf(w, "created:         %s\n", humanize.Time(info.CreatedTime()))
	fmt.Fprintf(w, "created at:      %s\n", info.CreatedTime().Format(time.RFC3339))
	fmt.Fprintf(w, "cgroups enabled: %v\n", info.CgroupsEnabled)
	if info.CgroupPath != "" {
		fmt.Fprintf(w, "cgroup path:     %s\n", info.CgroupPath)
	}
	if info.StartPipePath != "" {
		fmt.Fprintf(w, "resume fifo:     %s\n", info.StartPipePath)
	}
	return nil
}
