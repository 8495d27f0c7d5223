// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"kraftkit.sh/cmdfactory"
	"kraftkit.sh/internal/cli/bento"
	"kraftkit.sh/runtime"
)

// These are never typed by a user; bento re-execs itself under these hidden
// subcommands (matched against argv[1]) to reach the bridge and init stages described in
// spec.md §4.1. They must be checked before cobra ever sees os.Args.
const (
	bridgeSubcommand = "__bridge"
	initSubcommand   = "__init"
)

func main() {
	// Make args[0] just the name of the executable since it is used in logs.
	os.Args[0] = filepath.Base(os.Args[0])

	if len(os.Args) >= 3 {
		switch os.Args[1] {
		case bridgeSubcommand:
			os.Exit(runStage(runtime.RunBridge, os.Args[2]))
		case initSubcommand:
			os.Exit(runStage(runtime.RunInit, os.Args[2]))
		}
	}

	cmd := bento.New()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmdfactory.Main(ctx, cmd)
}

// runStage runs a re-exec'd bridge or init stage and translates its error,
// if any, into a process exit code. When the bridge fails this way, the
// orchestrator's pending read of SignalReady or of Init's pid hits EOF on
// the pipe and create fails with that read error; the stage's own error
// text goes to the inherited stderr.
func runStage(stage func(string) error, configPath string) int {
	if err := stage(configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
