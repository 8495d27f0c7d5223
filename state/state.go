// SPDX-License-Identifier: Apache-2.0
// Copyright 2014 Docker, Inc.
// Copyright 2023 Unikraft GmbH and The KraftKit Authors
// Copyright 2026 The bento Authors

// Package state implements the persisted container state store described
// in spec.md §3 and §6: one JSON file per container under
// $HOME/.local/share/bento/state/<id>.json, written atomically via a
// temp-file-plus-rename, the same pattern as libmocktainer's saveState.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"kraftkit.sh/types"
)

// Store roots every container's persisted state and rootfs under a single
// base directory, normally $HOME/.local/share/bento.
type Store struct {
	base string
}

// NewStore resolves the base directory from $HOME, per spec.md §6 (no
// fallback if HOME is unset).
func NewStore() (*Store, error) {
	home := os.Getenv("HOME")
	if home == "" {
		return nil, fmt.Errorf("HOME is not set")
	}
	return &Store{base: filepath.Join(home, ".local", "share", "bento")}, nil
}

// NewStoreAt builds a Store rooted at an arbitrary base directory, used by
// tests.
func NewStoreAt(base string) *Store {
	return &Store{base: base}
}

// Base returns the store's root directory.
func (s *Store) Base() string { return s.base }

// StateDir returns $base/state, creating it if necessary.
func (s *Store) StateDir() (string, error) {
	dir := filepath.Join(s.base, "state")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}

// ContainerDir returns $base/<id>, the directory holding the container's
// rootfs.
func (s *Store) ContainerDir(id string) (string, error) {
	if err := types.ValidateID(id); err != nil {
		return "", err
	}
	return securejoin.SecureJoin(s.base, id)
}

// RootfsDir returns $base/<id>/rootfs.
func (s *Store) RootfsDir(id string) (string, error) {
	dir, err := s.ContainerDir(id)
	if err != nil {
		return "", err
	}
	return securejoin.SecureJoin(dir, "rootfs")
}

func (s *Store) statePath(id string) (string, error) {
	dir, err := s.StateDir()
	if err != nil {
		return "", err
	}
	return securejoin.SecureJoin(dir, id+".json")
}

// Exists reports whether a state file for id is already present.
func (s *Store) Exists(id string) (bool, error) {
	path, err := s.statePath(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Load reads the persisted state for id.
func (s *Store) Load(id string) (*types.ContainerState, error) {
	if err := types.ValidateID(id); err != nil {
		return nil, err
	}
	path, err := s.statePath(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.ErrNotExist
		}
		return nil, err
	}
	defer f.Close()

	var cs types.ContainerState
	if err := json.NewDecoder(f).Decode(&cs); err != nil {
		return nil, fmt.Errorf("decode state for %s: %w", id, err)
	}
	return &cs, nil
}

// Save writes cs atomically: write to a uniquely named temp file in the
// state directory, then rename over the final path (rename is atomic
// within the same filesystem), matching the teacher's saveState pattern.
func (s *Store) Save(cs *types.ContainerState) (retErr error) {
	if err := types.ValidateID(cs.ID); err != nil {
		return err
	}
	dir, err := s.StateDir()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "state-"+uuid.NewString()+"-")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cs); err != nil {
		return fmt.Errorf("encode state for %s: %w", cs.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	finalPath, err := s.statePath(cs.ID)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return fmt.Errorf("rename state file into place: %w", err)
	}
	return nil
}

// Delete removes the state file for id. It is not an error if the file
// does not exist (delete must tolerate missing pieces, spec.md §4.1).
func (s *Store) Delete(id string) error {
	path, err := s.statePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove state file for %s: %w", id, err)
	}
	return nil
}

// List scans the state directory and returns every container's info,
// sorted by creation timestamp, with a liveness probe applied. Malformed
// or unreadable entries are skipped rather than failing the whole list.
func (s *Store) List() ([]types.ContainerInfo, error) {
	dir, err := s.StateDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read state dir: %w", err)
	}

	var infos []types.ContainerInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".json")]
		cs, err := s.Load(id)
		if err != nil {
			continue
		}
		infos = append(infos, types.ContainerInfo{
			ContainerState: *cs,
			Alive:          types.ProbeLiveness(cs.Pid),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt < infos[j].CreatedAt
	})
	return infos, nil
}
