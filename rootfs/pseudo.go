// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package rootfs

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"kraftkit.sh/internal/nsutil"
	"kraftkit.sh/log"
)

const pseudoFlags = unix.MS_NOSUID | unix.MS_NOEXEC | unix.MS_NODEV

// mountProc tries a real proc mount, falling back to a synthetic
// skeleton with a handful of static files (spec.md §4.2 step 6, /proc).
func mountProc(root string, m *mounted) error {
	target := filepath.Join(root, "proc")
	if err := os.MkdirAll(target, 0o555); err != nil {
		return err
	}
	if err := nsutil.Mount("proc", target, "proc", pseudoFlags, ""); err == nil {
		m.add(target)
		return nil
	}
	log.L.Warn("real /proc mount failed, falling back to a synthetic skeleton")
	return writeFiles(map[string]string{
		filepath.Join(target, "version"): "Linux version 0.0.0 (bento) #1 SMP PREEMPT\n",
		filepath.Join(target, "uptime"):  "0.00 0.00\n",
	})
}

// mountSys tries a real sysfs mount read-only; on failure a tmpfs
// populated with fixed fake files, remounted read-only; on failure, the
// same skeleton created on plain disk (spec.md §4.2 step 6, /sys).
func mountSys(root string, m *mounted) error {
	target := filepath.Join(root, "sys")
	if err := os.MkdirAll(target, 0o555); err != nil {
		return err
	}

	if err := nsutil.Mount("sysfs", target, "sysfs", pseudoFlags|unix.MS_RDONLY, ""); err == nil {
		m.add(target)
		return nil
	}

	files := map[string]string{
		filepath.Join(target, "kernel", "version"):              "bento synthetic sysfs\n",
		filepath.Join(target, "kernel", "osrelease"):             "0.0.0-bento\n",
		filepath.Join(target, "class", "net", "lo", "operstate"): "up\n",
		filepath.Join(target, "devices", "system", "cpu", "online"): "0-3\n",
	}

	if err := nsutil.Mount("tmpfs", target, "tmpfs", pseudoFlags, ""); err == nil {
		m.add(target)
		if err := writeFiles(files); err != nil {
			return err
		}
		if err := nsutil.RemountReadonly(target); err != nil {
			log.L.WithError(err).Warn("could not remount synthetic /sys read-only")
		}
		return nil
	}

	log.L.Warn("sysfs and tmpfs /sys both failed, falling back to a plain-disk skeleton")
	return writeFiles(files)
}

// devNodes is the set of device files created inside the container's
// /dev when a real bind-mount of the host /dev is unavailable.
var devNodes = []struct {
	name         string
	major, minor uint32
}{
	{"null", 1, 3},
	{"zero", 1, 5},
	{"urandom", 1, 9},
}

// mountDev first tries bind-mounting the host /dev; on failure mounts a
// small tmpfs and populates device nodes (or placeholder regular files
// when mknod is refused, the expected rootless case), then always
// creates the standard fd symlinks and empty directories (spec.md §4.2
// step 6, /dev).
func mountDev(root string, m *mounted) error {
	target := filepath.Join(root, "dev")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	if err := nsutil.BindMount("/dev", target, true); err == nil {
		m.add(target)
	} else {
		log.L.WithError(err).Warn("bind-mounting host /dev failed, falling back to tmpfs")
		if err := nsutil.Mount("tmpfs", target, "tmpfs", unix.MS_NOSUID, "mode=755,size=64k"); err != nil {
			return fmt.Errorf("mount tmpfs on /dev: %w", err)
		}
		m.add(target)

		for _, n := range devNodes {
			path := filepath.Join(target, n.name)
			dev := nsutil.Mkdev(n.major, n.minor)
			if err := nsutil.Mknod(path, unix.S_IFCHR|0o666, dev); err != nil {
				log.L.WithError(err).Debugf("mknod %s refused, creating placeholder file", n.name)
				if f, err := os.Create(path); err == nil {
					f.Close()
				}
			}
		}
	}

	for _, d := range []string{"pts", "shm", "mqueue"} {
		if err := os.MkdirAll(filepath.Join(target, d), 0o755); err != nil {
			return err
		}
	}

	links := map[string]string{
		"fd":     "/proc/self/fd",
		"stdin":  "/proc/self/fd/0",
		"stdout": "/proc/self/fd/1",
		"stderr": "/proc/self/fd/2",
	}
	for name, dest := range links {
		path := filepath.Join(target, name)
		if _, err := os.Lstat(path); err == nil {
			continue
		}
		if err := os.Symlink(dest, path); err != nil {
			return fmt.Errorf("symlink /dev/%s: %w", name, err)
		}
	}
	return nil
}

func writeFiles(files map[string]string) error {
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o444); err != nil {
			return fmt.Errorf("write synthetic file %s: %w", path, err)
		}
	}
	return nil
}
