// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package cgroup implements the cgroup v2 manager described in spec.md
// §4.3: delegated-subtree discovery, controller delegation (with the
// evacuate-to-sibling-leaf fallback for EBUSY), per-container leaf
// creation and limit application, stats, and teardown. Subtree discovery
// and delegation talk to the cgroupfs directly (the same raw-file
// approach as k3s's pkg/cgroups and runc), because the EBUSY evacuation
// dance is not exposed by any higher-level library. The per-container
// leaf directory itself is created through
// github.com/containerd/cgroups/v3/cgroup2; limits are written and stats
// are read through the leaf's controller files directly.
package cgroup

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/containerd/cgroups/v3/cgroup2"

	"kraftkit.sh/log"
	"kraftkit.sh/types"
)

const (
	cgroupRoot    = "/sys/fs/cgroup"
	controlLeaf   = "bento-control"
	retryAttempts = 5
	retryDelay    = 20 * time.Millisecond
)

var wantedControllers = []string{"cpu", "memory", "pids"}

// Manager owns one per-container cgroup v2 leaf.
type Manager struct {
	base string // delegated subtree base, e.g. /sys/fs/cgroup/user.slice/user-1000.slice/user@1000.service
	leaf string // base/<container-id>
	id   string
}

// DiscoverBase finds the writable delegated cgroup v2 subtree base,
// following spec.md §4.3's search order: the current process's own
// unified-hierarchy cgroup (ascending out of a prior bento-control leaf),
// then the systemd-delegated user-service path.
func DiscoverBase(uid int) (string, error) {
	candidates, err := candidateBases(uid)
	if err != nil {
		return "", err
	}

	var tried []string
	for _, c := range candidates {
		tried = append(tried, c)
		if writable(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf(
		"no writable delegated cgroup v2 subtree found (tried: %s); ask your administrator to enable "+
			"systemd user delegation (e.g. `systemctl --user start user@%d.service` and a "+
			"[Service]\\nDelegate=yes in its unit)", strings.Join(tried, ", "), uid)
}

func candidateBases(uid int) ([]string, error) {
	own, err := ownUnifiedPath()
	if err != nil {
		return nil, err
	}

	var out []string
	if own != "" {
		base := filepath.Join(cgroupRoot, own)
		// If we are already running inside a prior bento-control leaf,
		// ascend to its parent to avoid nesting leaves forever.
		if filepath.Base(base) == controlLeaf {
			base = filepath.Dir(base)
		}
		out = append(out, base)
	}
	out = append(out, filepath.Join(cgroupRoot, "user.slice",
		fmt.Sprintf("user-%d.slice", uid), fmt.Sprintf("user@%d.service", uid)))
	return out, nil
}

// ownUnifiedPath reads /proc/self/cgroup and returns the relative path
// after the "0::" unified-hierarchy line.
func ownUnifiedPath() (string, error) {
	f, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return "", fmt.Errorf("read /proc/self/cgroup: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "0::") {
			return strings.TrimPrefix(line, "0::"), nil
		}
	}
	return "", fmt.Errorf("no unified (0::) cgroup line in /proc/self/cgroup")
}

// writable reports whether base is an existing directory we can create a
// probe subdirectory in, falling back to an ownership check of its
// cgroup.procs file when the probe cannot be created. A missing base is
// never writable.
func writable(base string) bool {
	if fi, err := os.Stat(base); err != nil || !fi.IsDir() {
		return false
	}
	probe := filepath.Join(base, ".bento-probe")
	if err := os.Mkdir(probe, 0o755); err != nil {
		return ownedByUs(filepath.Join(base, "cgroup.procs"))
	}
	os.Remove(probe)
	return true
}

func ownedByUs(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return statOwnedByCurrentUser(fi)
}

// Delegate enables the wanted controllers on base's subtree_control,
// evacuating base's own processes into a sibling bento-control leaf and
// retrying if the kernel refuses with EBUSY because base has internal
// processes (spec.md §4.3, design note on the delegation trap).
func Delegate(base string) ([]string, error) {
	available, err := readControllerList(filepath.Join(base, "cgroup.controllers"))
	if err != nil {
		return nil, err
	}
	want := intersect(available, wantedControllers)
	if len(want) == 0 {
		log.L.Warn("no requested cgroup v2 controllers are available on the delegated subtree; continuing without cgroups")
		return nil, nil
	}

	line := ""
	for _, c := range want {
		line += "+" + c + " "
	}
	line = strings.TrimSpace(line)

	subtreeControl := filepath.Join(base, "cgroup.subtree_control")
	for attempt := 0; attempt < retryAttempts; attempt++ {
		err := os.WriteFile(subtreeControl, []byte(line), 0o644)
		if err == nil {
			return want, nil
		}
		if !isEBUSY(err) {
			return nil, fmt.Errorf("write %s: %w", subtreeControl, err)
		}
		if err := evacuateToLeaf(base); err != nil {
			return nil, fmt.Errorf("evacuating %s to sibling leaf: %w", base, err)
		}
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("write %s: still busy after %d attempts", subtreeControl, retryAttempts)
}

// evacuateToLeaf moves every pid directly in base/cgroup.procs into
// base/bento-control/cgroup.procs, emptying base of "internal processes"
// so its subtree_control write can succeed.
func evacuateToLeaf(base string) error {
	leaf := filepath.Join(base, controlLeaf)
	if err := os.MkdirAll(leaf, 0o755); err != nil {
		return err
	}
	return movePids(filepath.Join(base, "cgroup.procs"), filepath.Join(leaf, "cgroup.procs"))
}

func movePids(from, to string) error {
	pids, err := readLines(from)
	if err != nil {
		return err
	}
	for _, pid := range pids {
		if pid == "" {
			continue
		}
		if err := os.WriteFile(to, []byte(pid), 0o644); err != nil {
			return fmt.Errorf("move pid %s from %s to %s: %w", pid, from, to, err)
		}
	}
	return nil
}

// NewLeaf creates the per-container leaf cgroup under base via
// containerd/cgroups/v3/cgroup2, then applies the requested limits by
// writing each configured field to its well-known controller file
// verbatim (spec.md §4.3 Per-container leaf: "unset fields are
// skipped", values follow cgroup v2 file conventions exactly as given
// rather than being reinterpreted).
func NewLeaf(base, id string, limits *types.CgroupsLimits) (*Manager, error) {
	leaf := filepath.Join(base, id)

	relPath, err := filepath.Rel(cgroupRoot, leaf)
	if err != nil {
		return nil, fmt.Errorf("compute relative cgroup path: %w", err)
	}

	if _, err := cgroup2.NewManager(cgroupRoot, "/"+relPath, &cgroup2.Resources{}); err != nil {
		return nil, fmt.Errorf("create cgroup leaf %s: %w", leaf, err)
	}

	m := &Manager{base: base, leaf: leaf, id: id}
	for _, kv := range limits.Files() {
		path := filepath.Join(leaf, kv[0])
		if err := os.WriteFile(path, []byte(kv[1]), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return m, nil
}

// OpenLeaf wraps an already-existing per-container leaf cgroup for
// teardown, without attempting to create it (used by delete, which only
// needs to move stragglers out and remove the directory).
func OpenLeaf(base, id string) *Manager {
	return &Manager{base: base, leaf: filepath.Join(base, id), id: id}
}

// AddProcess moves pid into the per-container leaf.
func (m *Manager) AddProcess(pid int) error {
	path := filepath.Join(m.leaf, "cgroup.procs")
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("add pid %d to %s: %w", pid, path, err)
	}
	return nil
}

// Path returns the leaf's absolute cgroup path.
func (m *Manager) Path() string { return m.leaf }

// Stats reads memory.current/max, cpu.stat usage_usec, and pids.current/max.
type Stats struct {
	MemoryCurrent uint64
	MemoryMax     *uint64 // nil means "max" (unlimited)
	CPUUsageUsec  uint64
	PidsCurrent   uint64
	PidsMax       *uint64
}

// Read loads live statistics for the container's leaf (spec.md §4.3
// Statistics).
func (m *Manager) Read() (*Stats, error) {
	s := &Stats{}
	var err error

	if s.MemoryCurrent, err = readUint(filepath.Join(m.leaf, "memory.current")); err != nil {
		return nil, err
	}
	if s.MemoryMax, err = readMaxOrLimit(filepath.Join(m.leaf, "memory.max")); err != nil {
		return nil, err
	}
	if s.PidsCurrent, err = readUint(filepath.Join(m.leaf, "pids.current")); err != nil {
		return nil, err
	}
	if s.PidsMax, err = readMaxOrLimit(filepath.Join(m.leaf, "pids.max")); err != nil {
		return nil, err
	}
	if s.CPUUsageUsec, err = readCPUUsageUsec(filepath.Join(m.leaf, "cpu.stat")); err != nil {
		return nil, err
	}
	return s, nil
}

// Teardown moves any remaining processes in the leaf back to base and
// removes the (now-empty) leaf directory, per spec.md §4.3 Cleanup.
func (m *Manager) Teardown() error {
	if err := movePids(filepath.Join(m.leaf, "cgroup.procs"), filepath.Join(m.base, "cgroup.procs")); err != nil {
		return err
	}
	if err := os.Remove(m.leaf); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cgroup leaf %s: %w", m.leaf, err)
	}
	return nil
}
