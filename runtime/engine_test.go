// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package runtime

import (
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReapBridgeTreatsECHILDAsSuccess exercises spec.md §9's reaping-race
// note: if something else has already reaped the child by the time we
// call Wait, that is not a failure.
func TestReapBridgeTreatsECHILDAsSuccess(t *testing.T) {
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())

	var ws syscall.WaitStatus
	_, err := syscall.Wait4(cmd.Process.Pid, &ws, 0, nil)
	require.NoError(t, err)

	require.NoError(t, reapBridge(cmd))
}

func TestReapBridgePropagatesExitError(t *testing.T) {
	cmd := exec.Command("false")
	require.NoError(t, cmd.Start())

	err := reapBridge(cmd)
	require.Error(t, err)
}

func TestKillIfAliveIgnoresNonPositivePID(t *testing.T) {
	// Must not panic or attempt to signal pid 0/negative.
	killIfAlive(0)
	killIfAlive(-1)
}

func TestWriteAllWritesEverything(t *testing.T) {
	path := t.TempDir() + "/out"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, writeAll(f, []byte("start")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "start", string(got))
}
