// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package stats implements the `bento stats` subcommand (spec.md §6):
// memory, cpu-time, pids, and pid per container, optionally refreshed
// continuously.
package stats

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kraftkit.sh/cgroup"
	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/runtime"
	"kraftkit.sh/utils"
)

const refreshInterval = time.Second

type Stats struct {
	Continuous bool `long:"continuous" short:"c" usage:"keep refreshing until interrupted"`
}

func New() *cobra.Command {
	cmd, err := cmdfactory.New(&Stats{}, cobra.Command{
		Short: "Show memory, cpu-time, and pids usage for every live container",
		Use:   "stats [--continuous]",
		Args:  cobra.NoArgs,
	})
	if err != nil {
		panic(err)
	}
	return cmd
}

func (opts *Stats) Run(cmd *cobra.Command, args []string) error {
	engine, err := runtime.NewEngine()
	if err != nil {
		return err
	}

	if !opts.Continuous {
		return render(engine)
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		if err := render(engine); err != nil {
			return err
		}
		<-ticker.C
	}
}

// headerRows accounts for the column header and the trailing
// "N more" notice render may print below it.
const headerRows = 2

func render(engine *runtime.Engine) error {
	infos, err := engine.List()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	rows := make([][5]string, 0, len(infos))
	for _, info := range infos {
		if !info.Alive {
			continue
		}
		row := [5]string{info.ID, fmt.Sprint(info.Pid), "-", "-", "-"}
		if s, err := engine.Stats(info.ID); err == nil {
			row[2] = humanize.Bytes(s.MemoryCurrent)
			row[3] = (time.Duration(s.CPUUsageUsec) * time.Microsecond).String()
			row[4] = formatPids(s)
		}
		rows = append(rows, row)
	}

	limit := len(rows)
	if utils.IsTerminal(os.Stdout) {
		fmt.Fprint(os.Stdout, "\033[H\033[2J")
		if _, height, err := utils.TerminalSize(os.Stdout); err == nil && height > headerRows {
			limit = height - headerRows
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tPID\tMEMORY\tCPU TIME\tPIDS")
	for i, row := range rows {
		if i >= limit {
			fmt.Fprintf(w, "... %d more not shown (resize terminal to see them)\n", len(rows)-limit)
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3], row[4])
	}
	return nil
}

func formatPids(s *cgroup.Stats) string {
	if s.PidsMax == nil {
		return fmt.Sprintf("%d/max", s.PidsCurrent)
	}
	return fmt.Sprintf("%d/%d", s.PidsCurrent, *s.PidsMax)
}
