// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package create implements the `bento create` subcommand (spec.md §6).
package create

import (
	"fmt"

	"github.com/spf13/cobra"

	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/runtime"
	"kraftkit.sh/types"
)

// Create implements `bento create <id> --bundle <path> [flags]`. It
// blocks until the container is in the created state.
type Create struct {
	Bundle           string `long:"bundle" short:"b" usage:"path to the bundle directory"`
	PopulationMethod string `long:"population-method" usage:"rootfs population strategy (busybox or manual)" default:"busybox"`
	MemoryLimit      string `long:"memory-limit" usage:"memory.max, e.g. 64M"`
	MemoryHigh       string `long:"memory-high" usage:"memory.high"`
	MemorySwapLimit  string `long:"memory-swap-limit" usage:"memory.swap.max"`
	CPULimit         string `long:"cpu-limit" usage:"cpu.max as \"quota period\", e.g. \"200000 1000000\""`
	CPUWeight        string `long:"cpu-weight" usage:"cpu.weight"`
	PidsLimit        string `long:"pids-limit" usage:"pids.max"`
	NoCgroups        bool   `long:"no-cgroups" usage:"skip cgroup delegation entirely"`
	Hostname         string `long:"hostname" usage:"hostname to set inside the container" default:"bento"`
}

func New() *cobra.Command {
	cmd, err := cmdfactory.New(&Create{}, cobra.Command{
		Short: "Create a container",
		Use:   "create <id> --bundle <path> [flags] -- argv...",
		Args:  cobra.MinimumNArgs(1),
		Long: `Create constructs a container's namespaces, cgroup, and root
filesystem and leaves its init process blocked on the resume FIFO. Use
"bento start <id>" to let it proceed.`,
	})
	if err != nil {
		panic(err)
	}
	return cmd
}

func (opts *Create) Run(cmd *cobra.Command, args []string) error {
	id := args[0]
	argv := args[1:]
	if len(argv) == 0 {
		argv = []string{"/bin/sh"}
	}

	limits := &types.CgroupsLimits{
		MemoryMax:     opts.MemoryLimit,
		MemoryHigh:    opts.MemoryHigh,
		MemorySwapMax: opts.MemorySwapLimit,
		CPUMax:        opts.CPULimit,
		CPUWeight:     opts.CPUWeight,
		PidsMax:       opts.PidsLimit,
	}

	cfg := types.ContainerConfig{
		ID:         id,
		Bundle:     opts.Bundle,
		Argv:       argv,
		Hostname:   opts.Hostname,
		Population: types.PopulationMethod(opts.PopulationMethod),
		Cgroups:    limits,
		NoCgroups:  opts.NoCgroups,
	}

	engine, err := runtime.NewEngine()
	if err != nil {
		return err
	}
	if err := engine.Create(cfg); err != nil {
		return fmt.Errorf("create %s: %w", id, err)
	}
	return nil
}
