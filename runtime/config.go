// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package runtime implements the lifecycle engine described in spec.md
// §4.1: the orchestrator/bridge/init three-process create handshake and
// the start/kill/delete/state/list operations, plus the __bridge and
// __init re-exec entry points dispatched from cmd/bento/main.go.
//
// Go cannot safely call a raw fork(2) from inside the multi-threaded
// runtime, so each stage of the handshake that spec.md describes as a
// fork is instead a self re-exec: the orchestrator and the bridge each
// spawn the next stage via os/exec against their own binary
// (os.Args[0]/proc/self/exe) with a hidden subcommand, passing pipe ends
// through ExtraFiles. The bridge is born into its new user namespace
// (CLONE_NEWUSER is passed as a clone flag when the orchestrator spawns
// it); its unshare of the remaining namespaces happens in-process (it is
// a freshly exec'd program with its thread locked), and every namespace
// it unshares is inherited automatically by Init, its next ordinary
// child process.
package runtime

import (
	"encoding/json"
	"fmt"
	"os"

	"kraftkit.sh/types"
)

// launchConfig is the JSON blob handed from the orchestrator to the
// bridge and on to Init via a temp file path passed as the argument
// after the hidden subcommand (argv[2]) to each re-exec stage. It carries everything downstream stages need that
// would otherwise have to cross an inherited pipe.
type launchConfig struct {
	Config    types.ContainerConfig `json:"config"`
	RootfsDir string                `json:"rootfs_dir"`
	HostUID   int                   `json:"host_uid"`
	HostGID   int                   `json:"host_gid"`
}

func writeLaunchConfig(path string, lc *launchConfig) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create launch config %s: %w", path, err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(lc); err != nil {
		return fmt.Errorf("encode launch config: %w", err)
	}
	return nil
}

func readLaunchConfig(path string) (*launchConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read launch config %s: %w", path, err)
	}
	var lc launchConfig
	if err := json.Unmarshal(b, &lc); err != nil {
		return nil, fmt.Errorf("decode launch config: %w", err)
	}
	return &lc, nil
}
