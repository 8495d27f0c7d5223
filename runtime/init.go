// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package runtime

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"

	"kraftkit.sh/internal/nsutil"
	"kraftkit.sh/log"
	"kraftkit.sh/rootfs"
)

// startToken is the exact byte sequence written by `start` and expected
// by Init, chosen over a single byte as a weak integrity check against
// stray FIFO writes (spec.md §4.1 Start protocol rationale).
const startToken = "start"

// initFIFORelPath is the Init-visible (post pivot_root) path of the resume
// FIFO, relative to the new root.
func initFIFORelPath(id string) string {
	return filepath.Join("tmp", "bento-start-"+id)
}

// RunInit is the entry point for the hidden "__init" subcommand. It
// already lives inside every namespace the container needs (born that
// way as the bridge's child, spec.md §2): it builds the rootfs, pivots
// into it, blocks on the resume FIFO, then execs the user command.
func RunInit(configPath string) error {
	lc, err := readLaunchConfig(configPath)
	if err != nil {
		return err
	}
	cfg := lc.Config

	builder := &rootfs.Builder{Dir: lc.RootfsDir, Population: cfg.Population}
	if err := builder.Build(cfg.ID); err != nil {
		return fmt.Errorf("build rootfs: %w", err)
	}

	if cfg.Hostname != "" {
		if err := nsutil.Sethostname(cfg.Hostname); err != nil {
			log.L.WithError(err).Warn("set hostname failed, continuing without it")
		}
	}

	fifoPath := "/" + initFIFORelPath(cfg.ID)
	if err := waitForStart(fifoPath); err != nil {
		return fmt.Errorf("wait for start signal: %w", err)
	}

	argv := cfg.Argv
	bin, err := exec.LookPath(argv[0])
	if err != nil {
		bin = argv[0]
	}
	if err := unix.Exec(bin, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %v: %w", argv, err)
	}
	return nil // unreachable: exec replaces the process image on success
}

// waitForStart opens path for reading (blocking until a writer opens
// it), then reads exactly len(startToken) bytes and verifies them,
// matching spec.md's "read_exact, verify bytewise equality" Init side.
func waitForStart(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open resume fifo %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, len(startToken))
	if _, err := io.ReadFull(f, buf); err != nil {
		return fmt.Errorf("read start token: %w", err)
	}
	if !bytes.Equal(buf, []byte(startToken)) {
		return fmt.Errorf("corrupt start token: got %q, want %q", buf, startToken)
	}
	return nil
}
