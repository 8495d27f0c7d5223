// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package cgroup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kraftkit.sh/types"
)

func TestIntersect(t *testing.T) {
	require.Equal(t, []string{"cpu", "pids"}, intersect([]string{"cpu", "io", "pids"}, []string{"cpu", "pids", "memory"}))
	require.Nil(t, intersect([]string{"cpu"}, []string{"memory"}))
}

func TestReadMaxOrLimit(t *testing.T) {
	dir := t.TempDir()

	maxPath := filepath.Join(dir, "pids.max")
	require.NoError(t, os.WriteFile(maxPath, []byte("max"), 0o644))
	v, err := readMaxOrLimit(maxPath)
	require.NoError(t, err)
	require.Nil(t, v)

	numPath := filepath.Join(dir, "memory.max")
	require.NoError(t, os.WriteFile(numPath, []byte("67108864\n"), 0o644))
	v, err = readMaxOrLimit(numPath)
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, uint64(67108864), *v)
}

func TestReadCPUUsageUsec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpu.stat")
	require.NoError(t, os.WriteFile(path, []byte("usage_usec 4242\nuser_usec 1000\nsystem_usec 3242\n"), 0o644))

	v, err := readCPUUsageUsec(path)
	require.NoError(t, err)
	require.Equal(t, uint64(4242), v)
}

func TestCgroupsLimitsFilesSkipsUnset(t *testing.T) {
	l := &types.CgroupsLimits{MemoryMax: "64M", PidsMax: "32"}
	files := l.Files()
	require.Equal(t, [][2]string{{"memory.max", "64M"}, {"pids.max", "32"}}, files)
}
