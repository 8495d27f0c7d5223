// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package list implements the `bento list` subcommand (spec.md §6).
package list

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/runtime"
)

type List struct{}

func New() *cobra.Command {
	cmd, err := cmdfactory.New(&List{}, cobra.Command{
		Short: "List every known container, sorted by creation time",
		Use:   "list",
		Args:  cobra.NoArgs,
	})
	if err != nil {
		panic(err)
	}
	return cmd
}

func (opts *List) Run(cmd *cobra.Command, args []string) error {
	engine, err := runtime.NewEngine()
	if err != nil {
		return err
	}
	infos, err := engine.List()
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tSTATUS\tPID\tALIVE\tCREATED\tBUNDLE")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\t%s\n",
			info.ID, info.Status, info.Pid, info.Alive,
			humanize.Time(info.CreatedTime()), info.BundlePath)
	}
	return nil
}
