// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package rootfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kraftkit.sh/types"
)

func TestPopulateBusyboxCreatesAppletSymlinks(t *testing.T) {
	fakeBin := t.TempDir()
	busybox := filepath.Join(fakeBin, "busybox")
	require.NoError(t, os.WriteFile(busybox, []byte("#!/bin/sh\n"), 0o755))

	old := busyboxCandidates
	busyboxCandidates = []string{busybox}
	defer func() { busyboxCandidates = old }()

	dir := t.TempDir()
	b := &Builder{Dir: dir, Population: types.PopulationBusybox}
	require.NoError(t, b.populateBusybox())

	fi, err := os.Stat(filepath.Join(dir, "bin", "busybox"))
	require.NoError(t, err)
	require.False(t, fi.IsDir())

	link, err := os.Readlink(filepath.Join(dir, "bin", "sh"))
	require.NoError(t, err)
	require.Equal(t, "busybox", link)
}

func TestPopulateBusyboxFailsWithoutCandidate(t *testing.T) {
	old := busyboxCandidates
	busyboxCandidates = []string{filepath.Join(t.TempDir(), "does-not-exist")}
	defer func() { busyboxCandidates = old }()

	b := &Builder{Dir: t.TempDir(), Population: types.PopulationBusybox}
	require.Error(t, b.populateBusybox())
}

func TestPopulateManualFailsWhenNothingCopies(t *testing.T) {
	oldBins, oldLibs := manualBinaries, manualLibDirs
	manualBinaries = []string{filepath.Join(t.TempDir(), "nope")}
	manualLibDirs = nil
	defer func() { manualBinaries, manualLibDirs = oldBins, oldLibs }()

	b := &Builder{Dir: t.TempDir(), Population: types.PopulationManual}
	require.Error(t, b.populateManual())
}

func TestPopulateManualCopiesAvailableBinaries(t *testing.T) {
	fakeBin := t.TempDir()
	sh := filepath.Join(fakeBin, "sh")
	require.NoError(t, os.WriteFile(sh, []byte("#!/bin/sh\n"), 0o755))

	oldBins, oldLibs := manualBinaries, manualLibDirs
	manualBinaries = []string{sh}
	manualLibDirs = nil
	defer func() { manualBinaries, manualLibDirs = oldBins, oldLibs }()

	dir := t.TempDir()
	b := &Builder{Dir: dir, Population: types.PopulationManual}
	require.NoError(t, b.populateManual())

	fi, err := os.Stat(filepath.Join(dir, "bin", "sh"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), fi.Mode().Perm())
}

func TestEnsureSkeletonDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ensureSkeletonDirs(dir))
	for _, d := range []string{"proc", "sys", "dev", "tmp", "etc"} {
		fi, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err)
		require.True(t, fi.IsDir())
	}
}

func TestBuildRejectsInvalidID(t *testing.T) {
	b := &Builder{Dir: t.TempDir(), Population: types.PopulationBusybox}
	err := b.Build("../escape")
	require.ErrorIs(t, err, types.ErrInvalidID)
}
