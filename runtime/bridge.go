// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"kraftkit.sh/internal/nsutil"
	"kraftkit.sh/internal/syncproto"
	"kraftkit.sh/log"
)

// oToBReadFD and bToOWriteFD are the fixed ExtraFiles slots the
// orchestrator hands to the bridge (fd 3 and 4; ExtraFiles is always
// appended after stdin/stdout/stderr).
const (
	oToBReadFD  = 3
	bToOWriteFD = 4
)

// RunBridge is the entry point for the hidden "__bridge" subcommand
// (spec.md §4.1 steps 2-5). It is launched by the orchestrator with
// SysProcAttr.Cloneflags = CLONE_NEWUSER, so it starts life already
// inside a fresh, unmapped user namespace.
func RunBridge(configPath string) error {
	runtime.LockOSThread()

	if _, err := readLaunchConfig(configPath); err != nil {
		return err
	}

	oToB := os.NewFile(oToBReadFD, "o-to-b-read")
	bToO := os.NewFile(bToOWriteFD, "b-to-o-write")
	defer oToB.Close()
	defer bToO.Close()

	if err := nsutil.DenySetgroups(); err != nil {
		return fmt.Errorf("deny setgroups: %w", err)
	}
	if err := syncproto.WriteSignal(bToO, syncproto.SignalReady); err != nil {
		return err
	}

	if err := syncproto.ReadSignal(oToB, syncproto.SignalMapped); err != nil {
		return err
	}

	if err := nsutil.Unshare(nsutil.RemainingNamespaceFlags); err != nil {
		return fmt.Errorf("unshare remaining namespaces: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable: %w", err)
	}

	initCmd := exec.Command(self, "__init", configPath)
	initCmd.Stdin = os.Stdin
	initCmd.Stdout = os.Stdout
	initCmd.Stderr = os.Stderr
	if err := initCmd.Start(); err != nil {
		return fmt.Errorf("start init: %w", err)
	}

	log.L.WithField("pid", initCmd.Process.Pid).Debug("bridge forked init")
	if err := syncproto.WritePID(bToO, initCmd.Process.Pid); err != nil {
		return err
	}

	// Init's lifetime is independent of the bridge from this point; the
	// bridge's role ends as soon as the PID has been reported (spec.md
	// §2, Bridge "Lives until" column).
	return nil
}
