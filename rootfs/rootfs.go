// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package rootfs implements the Init-side rootfs construction algorithm
// described in spec.md §4.2: mark the mount tree private, populate a
// private root filesystem tree with either a busybox binary or a fixed
// set of host binaries, bind-mount it onto itself, mount the
// pseudo-filesystems with progressive degradation, and pivot_root into
// it.
package rootfs

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"kraftkit.sh/internal/nsutil"
	"kraftkit.sh/log"
	"kraftkit.sh/types"
)

const oldRootName = "old_root"

// Builder constructs one container's rootfs.
type Builder struct {
	// Dir is the rootfs directory, e.g. $HOME/.local/share/bento/<id>/rootfs.
	Dir string
	// Population selects the binary-population strategy.
	Population types.PopulationMethod
}

// mounted records every mountpoint established so far, innermost last, so
// a fatal failure can unwind it in reverse order (spec.md §4.2 final
// paragraph).
type mounted struct {
	points []string
}

func (m *mounted) add(path string) { m.points = append(m.points, path) }

func (m *mounted) unwind() {
	for i := len(m.points) - 1; i >= 0; i-- {
		if err := nsutil.Umount2(m.points[i], unix.MNT_DETACH); err != nil {
			log.L.WithError(err).Warnf("unwinding mount %s", m.points[i])
		}
	}
}

// Build runs the full pivot_root algorithm. It must be called from Init,
// already inside its own mount namespace (CLONE_NEWNS having been
// unshared by the bridge on Init's behalf).
func (b *Builder) Build(id string) (retErr error) {
	if err := types.ValidateID(id); err != nil {
		return err
	}

	if err := nsutil.MakeRPrivate("/"); err != nil {
		return fmt.Errorf("mark mount tree private: %w", err)
	}

	oldRoot := filepath.Join(b.Dir, oldRootName)
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return fmt.Errorf("create rootfs dir: %w", err)
	}
	if err := os.MkdirAll(oldRoot, 0o700); err != nil {
		return fmt.Errorf("create old_root dir: %w", err)
	}

	if err := b.populate(); err != nil {
		return fmt.Errorf("populate rootfs (%s): %w", b.Population, err)
	}

	if err := nsutil.BindMount(b.Dir, b.Dir, true); err != nil {
		return fmt.Errorf("bind-mount rootfs onto itself: %w", err)
	}

	m := &mounted{}
	m.add(b.Dir)
	defer func() {
		if retErr != nil {
			m.unwind()
			os.RemoveAll(b.Dir)
		}
	}()

	if err := mountProc(b.Dir, m); err != nil {
		return fmt.Errorf("mount /proc: %w", err)
	}
	if err := mountSys(b.Dir, m); err != nil {
		return fmt.Errorf("mount /sys: %w", err)
	}
	if err := mountDev(b.Dir, m); err != nil {
		return fmt.Errorf("mount /dev: %w", err)
	}

	if err := nsutil.PivotRoot(b.Dir, oldRoot); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := nsutil.Chdir("/"); err != nil {
		return fmt.Errorf("chdir after pivot_root: %w", err)
	}

	hostOldRoot := "/" + oldRootName
	if err := nsutil.Umount2(hostOldRoot, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("unmount old root: %w", err)
	}
	if err := os.Remove(hostOldRoot); err != nil {
		return fmt.Errorf("remove old root dir: %w", err)
	}

	return nil
}
