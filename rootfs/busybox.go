// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package rootfs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"kraftkit.sh/log"
	"kraftkit.sh/types"
)

// busyboxCandidates lists well-known paths searched for a static busybox
// binary, in order (spec.md §4.2 step 4, busybox strategy).
var busyboxCandidates = []string{
	"/bin/busybox",
	"/usr/bin/busybox",
	"/sbin/busybox",
	"/usr/sbin/busybox",
	"/usr/local/bin/busybox",
}

// busyboxApplets is the standard applet set symlinked to busybox, enough
// to run a shell and inspect the environment.
var busyboxApplets = []string{
	"sh", "ls", "cat", "echo", "id", "hostname", "mount", "ps", "env",
	"ln", "mkdir", "rm", "cp", "mv", "sleep", "kill",
}

// manualBinaries is the fixed list of host binaries copied in for the
// manual population strategy.
var manualBinaries = []string{
	"/bin/sh", "/bin/ls", "/bin/cat", "/bin/echo", "/bin/mkdir", "/bin/rm",
	"/usr/bin/env", "/usr/bin/id", "/usr/bin/sleep",
}

// manualLibDirs lists the arch-specific shared-library directories whose
// contents are copied wholesale for the manual strategy, best effort.
var manualLibDirs = []string{
	"/lib/x86_64-linux-gnu",
	"/lib64",
	"/lib",
	"/usr/lib/x86_64-linux-gnu",
}

func (b *Builder) populate() error {
	switch b.Population {
	case types.PopulationBusybox:
		return b.populateBusybox()
	case types.PopulationManual:
		return b.populateManual()
	default:
		return fmt.Errorf("unknown population method %q", b.Population)
	}
}

func (b *Builder) populateBusybox() error {
	var src string
	for _, c := range busyboxCandidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			src = c
			break
		}
	}
	if src == "" {
		return fmt.Errorf("no busybox binary found in any of %v", busyboxCandidates)
	}

	binDir := filepath.Join(b.Dir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(binDir, "busybox")
	if err := copyFile(src, dst, 0o755); err != nil {
		return fmt.Errorf("copy busybox: %w", err)
	}

	for _, applet := range busyboxApplets {
		link := filepath.Join(binDir, applet)
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		if err := os.Symlink("busybox", link); err != nil {
			return fmt.Errorf("symlink applet %s: %w", applet, err)
		}
	}
	return ensureSkeletonDirs(b.Dir)
}

// populateManual copies a fixed set of host binaries and libraries.
// Missing sources are logged and skipped; it only fails outright if
// nothing usable was copied (spec.md §4.2 step 4, manual strategy).
func (b *Builder) populateManual() error {
	binDir := filepath.Join(b.Dir, "bin")
	usrBinDir := filepath.Join(b.Dir, "usr", "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(usrBinDir, 0o755); err != nil {
		return err
	}

	copied := 0
	for _, src := range manualBinaries {
		dst := filepath.Join(binDir, filepath.Base(src))
		if filepath.Dir(src) == "/usr/bin" {
			dst = filepath.Join(usrBinDir, filepath.Base(src))
		}
		if err := copyFile(src, dst, 0o755); err != nil {
			log.L.WithError(err).Warnf("skipping missing binary %s", src)
			continue
		}
		copied++
	}
	if copied == 0 {
		return fmt.Errorf("no binaries from %v could be copied", manualBinaries)
	}

	for _, libDir := range manualLibDirs {
		entries, err := os.ReadDir(libDir)
		if err != nil {
			continue
		}
		dst := filepath.Join(b.Dir, libDir)
		if err := os.MkdirAll(dst, 0o755); err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			src := filepath.Join(libDir, e.Name())
			if err := copyFile(src, filepath.Join(dst, e.Name()), 0o755); err != nil {
				log.L.WithError(err).Debugf("skipping library %s", src)
			}
		}
	}
	return ensureSkeletonDirs(b.Dir)
}

func ensureSkeletonDirs(root string) error {
	for _, d := range []string{"proc", "sys", "dev", "tmp", "etc"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
