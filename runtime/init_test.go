// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package runtime

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestInitFIFORelPath(t *testing.T) {
	require.Equal(t, filepath.Join("tmp", "bento-start-abc"), initFIFORelPath("abc"))
}

func TestWaitForStartReadsExactToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume")
	require.NoError(t, unix.Mkfifo(path, 0o600))

	done := make(chan error, 1)
	go func() { done <- waitForStart(path) }()

	// Give waitForStart a moment to block in the open(2) call before the
	// writer shows up, exercising the same rendezvous a real Start does.
	time.Sleep(20 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte(startToken))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, <-done)
}

func TestWaitForStartRejectsCorruptToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume")
	require.NoError(t, unix.Mkfifo(path, 0o600))

	done := make(chan error, 1)
	go func() { done <- waitForStart(path) }()

	time.Sleep(20 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write([]byte("xxxxx"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Error(t, <-done)
}
