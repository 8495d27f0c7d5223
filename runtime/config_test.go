// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package runtime

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kraftkit.sh/types"
)

func TestLaunchConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launch.json")

	lc := &launchConfig{
		Config: types.ContainerConfig{
			ID:         "c1",
			Bundle:     "/tmp/bundle",
			Argv:       []string{"/bin/sh", "-c", "echo hi"},
			Hostname:   "bento",
			Population: types.PopulationBusybox,
		},
		RootfsDir: "/tmp/rootfs",
		HostUID:   1000,
		HostGID:   1000,
	}

	require.NoError(t, writeLaunchConfig(path, lc))

	got, err := readLaunchConfig(path)
	require.NoError(t, err)
	require.Equal(t, lc, got)
}

func TestReadLaunchConfigMissingFile(t *testing.T) {
	_, err := readLaunchConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
