// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kraftkit.sh/types"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStoreAt(t.TempDir())

	cs := &types.ContainerState{
		ID:             "t1",
		Pid:            12345,
		Status:         types.StatusCreated,
		BundlePath:     "/tmp/b1",
		CreatedAt:      1700000000,
		StartPipePath:  "tmp/bento-start-t1",
		CgroupPath:     "",
		CgroupsEnabled: false,
	}

	require.NoError(t, store.Save(cs))

	got, err := store.Load("t1")
	require.NoError(t, err)
	require.Equal(t, cs, got)
}

func TestLoadMissingReturnsErrNotExist(t *testing.T) {
	store := NewStoreAt(t.TempDir())
	_, err := store.Load("nope")
	require.ErrorIs(t, err, types.ErrNotExist)
}

func TestValidateIDRejectsTraversal(t *testing.T) {
	store := NewStoreAt(t.TempDir())
	_, err := store.Load("../escape")
	require.ErrorIs(t, err, types.ErrInvalidID)
}

func TestListSortsByCreationTime(t *testing.T) {
	store := NewStoreAt(t.TempDir())

	require.NoError(t, store.Save(&types.ContainerState{ID: "late", CreatedAt: 200, Status: types.StatusStopped}))
	require.NoError(t, store.Save(&types.ContainerState{ID: "early", CreatedAt: 100, Status: types.StatusStopped}))

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "early", infos[0].ID)
	require.Equal(t, "late", infos[1].ID)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := NewStoreAt(t.TempDir())
	require.NoError(t, store.Delete("never-existed"))
}
