// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package idmap invokes the setuid-root newuidmap/newgidmap helpers that
// write a bridge process's /proc/<pid>/{uid,gid}_map, per spec.md §4.1
// step 3. It also implements the stronger preflight check recovered from
// the original Rust draft's binary_checker.rs: the helpers must not only
// be present on PATH but must actually carry the setuid bit, or the
// mapping step will fail deep inside the create handshake with a
// confusing permission error instead of a clear precondition failure.
package idmap

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"

	"kraftkit.sh/log"
)

const (
	setuidBit  = 0o4000
	subUIDFile = "/etc/subuid"
	subGIDFile = "/etc/subgid"
)

// Preflight verifies that newuidmap and newgidmap are on PATH and carry
// the setuid bit, and that /etc/subuid and /etc/subgid grant the calling
// user a contiguous sub-id range, returning a precondition error with
// remediation advice (spec.md §7 taxonomy item 1, §4.1 create
// preconditions) if not.
func Preflight() error {
	for _, name := range []string{"newuidmap", "newgidmap"} {
		path, err := exec.LookPath(name)
		if err != nil {
			return fmt.Errorf("%s not found on PATH: install the uidmap package (e.g. `apt install uidmap` or `dnf install shadow-utils`)", name)
		}
		fi, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if fi.Mode().Perm()&setuidBit == 0 && fi.Mode()&os.ModeSetuid == 0 {
			return fmt.Errorf("%s at %s is not setuid root: it must be installed with the setuid bit, typically via the distribution's uidmap package", name, path)
		}
	}

	if _, _, err := SubIDRange(subUIDFile); err != nil {
		return fmt.Errorf("no usable sub-uid range: %w (add a line to %s, e.g. via `usermod --add-subuids 100000-165535 $USER`)", err, subUIDFile)
	}
	if _, _, err := SubIDRange(subGIDFile); err != nil {
		return fmt.Errorf("no usable sub-gid range: %w (add a line to %s, e.g. via `usermod --add-subgids 100000-165535 $USER`)", err, subGIDFile)
	}
	return nil
}

// WriteMaps invokes newgidmap then newuidmap against pid, mapping a
// single line 0:<host-id>:1. GID must be mapped before UID: once the GID
// map is written the process loses the supplementary-group privileges
// that newuidmap otherwise relies on (spec.md §4.1 step 3).
func WriteMaps(pid int) error {
	hostUID := os.Getuid()
	hostGID := os.Getgid()

	log.L.WithField("pid", pid).Debug("writing gid map")
	if err := run("newgidmap", pid, 0, hostGID, 1); err != nil {
		return fmt.Errorf("newgidmap: %w", err)
	}
	log.L.WithField("pid", pid).Debug("writing uid map")
	if err := run("newuidmap", pid, 0, hostUID, 1); err != nil {
		return fmt.Errorf("newuidmap: %w", err)
	}
	return nil
}

func run(name string, pid, nsID, hostID, length int) error {
	cmd := exec.Command(name, fmt.Sprint(pid), fmt.Sprint(nsID), fmt.Sprint(hostID), fmt.Sprint(length))
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w (%s)", name, cmd.Args[1:], err, string(out))
	}
	return nil
}

// SubIDRange checks /etc/subuid (or /etc/subgid) for a contiguous range
// granted to the current user, one of the create preconditions named in
// spec.md §4.1.
func SubIDRange(file string) (start, length int, err error) {
	u, err := user.Current()
	if err != nil {
		return 0, 0, err
	}
	return parseSubIDFile(file, u.Username)
}
