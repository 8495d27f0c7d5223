// SPDX-License-Identifier: Apache-2.0
// Copyright 2014 Docker, Inc.
// Copyright 2023 Unikraft GmbH and The KraftKit Authors
// Copyright 2026 The bento Authors

// Package types holds the data model shared by every bento package: the
// caller-supplied container configuration, the optional cgroup limits
// record, and the persisted and runtime views of container state.
package types

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Sentinel errors, checked with errors.Is throughout the runtime and
// lifecycle-engine packages.
var (
	ErrExist      = errors.New("container with given ID already exists")
	ErrInvalidID  = errors.New("invalid container ID format")
	ErrNotExist   = errors.New("container does not exist")
	ErrRunning    = errors.New("container still running")
	ErrNotRunning = errors.New("container not running")
)

// PopulationMethod selects how the rootfs builder populates a container's
// root filesystem.
type PopulationMethod string

const (
	PopulationBusybox PopulationMethod = "busybox"
	PopulationManual  PopulationMethod = "manual"
)

// Status is the textual lifecycle status of a persisted container.
type Status string

const (
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusPaused  Status = "paused"
)

// CgroupsLimits carries optional cgroup v2 resource limits, following
// cgroup v2 file conventions directly: each field, when set, is written
// verbatim to its well-known controller file. Absent (empty) fields mean
// unlimited: the corresponding controller file is never written.
type CgroupsLimits struct {
	MemoryMax     string `json:"memory_max,omitempty"`
	MemoryHigh    string `json:"memory_high,omitempty"`
	MemorySwapMax string `json:"memory_swap_max,omitempty"`
	// CPUMax is written verbatim to cpu.max, e.g. "200000 1000000".
	CPUMax string `json:"cpu_max,omitempty"`
	// CPUWeight is written verbatim to cpu.weight.
	CPUWeight string `json:"cpu_weight,omitempty"`
	PidsMax   string `json:"pids_max,omitempty"`
}

// Empty reports whether no limit has been requested.
func (l *CgroupsLimits) Empty() bool {
	if l == nil {
		return true
	}
	return l.MemoryMax == "" && l.MemoryHigh == "" && l.MemorySwapMax == "" &&
		l.CPUMax == "" && l.CPUWeight == "" && l.PidsMax == ""
}

// Files returns the set of (filename, value) pairs to write into the
// per-container leaf cgroup, skipping unset fields (spec.md §4.3
// Per-container leaf).
func (l *CgroupsLimits) Files() [][2]string {
	if l == nil {
		return nil
	}
	var out [][2]string
	add := func(name, value string) {
		if value != "" {
			out = append(out, [2]string{name, value})
		}
	}
	add("memory.max", l.MemoryMax)
	add("memory.high", l.MemoryHigh)
	add("memory.swap.max", l.MemorySwapMax)
	add("cpu.max", l.CPUMax)
	add("cpu.weight", l.CPUWeight)
	add("pids.max", l.PidsMax)
	return out
}

// ContainerConfig is the caller's request to create a container. It is
// immutable once Create begins and is copied into each process across the
// orchestrator/bridge/init re-exec stages via the launch config file.
type ContainerConfig struct {
	ID         string           `json:"id"`
	Bundle     string           `json:"bundle"`
	Argv       []string         `json:"argv"`
	Hostname   string           `json:"hostname"`
	Population PopulationMethod `json:"population"`
	Cgroups    *CgroupsLimits   `json:"cgroups,omitempty"`
	NoCgroups  bool             `json:"no_cgroups"`
}

// Validate checks the fields an implementer is required to enforce before
// any fork happens (spec boundary behavior: invalid ids rejected pre-fork).
func (c *ContainerConfig) Validate() error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}
	if c.Bundle == "" {
		return errors.New("bundle path must not be empty")
	}
	if len(c.Argv) == 0 {
		return errors.New("argv must not be empty")
	}
	if c.Population != PopulationBusybox && c.Population != PopulationManual {
		return errors.New("population method must be \"busybox\" or \"manual\"")
	}
	return nil
}

// ValidateID rejects empty ids and ids containing '/' or '..', matching
// spec.md's boundary behavior and the character whitelist idiom used by
// runc/libcontainer-derived validators.
func ValidateID(id string) error {
	if len(id) == 0 {
		return ErrInvalidID
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_', c == '+', c == '-', c == '.':
		default:
			return ErrInvalidID
		}
	}
	if id == "." || strings.Contains(id, "..") {
		return ErrInvalidID
	}
	return nil
}

// ContainerState is the persisted record for a single container, stored as
// one JSON file per container under
// $HOME/.local/share/bento/state/<id>.json.
type ContainerState struct {
	ID             string `json:"id"`
	Pid            int    `json:"pid"`
	Status         Status `json:"status"`
	BundlePath     string `json:"bundle_path"`
	CreatedAt      int64  `json:"created_at,string"`
	StartPipePath  string `json:"start_pipe_path,omitempty"`
	CgroupPath     string `json:"cgroup_path,omitempty"`
	CgroupsEnabled bool   `json:"cgroup_enabled"`
}

// CreatedTime returns CreatedAt as a time.Time for display purposes.
func (s *ContainerState) CreatedTime() time.Time {
	return time.Unix(s.CreatedAt, 0)
}

// ContainerInfo is the runtime view returned by `state` and `list`: the
// persisted record combined with a liveness probe. It is never persisted.
type ContainerInfo struct {
	ContainerState
	Alive bool `json:"alive"`
}

// ProbeLiveness sends SIGCONT, a harmless no-op signal, to pid and reports
// whether the process still exists (ESRCH means it is gone).
func ProbeLiveness(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, unix.SIGCONT) == nil
}
