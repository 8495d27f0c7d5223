// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package nsutil wraps the low-level Linux syscalls the lifecycle engine
// needs (unshare, mount, pivot_root, mknod, umount2, sethostname), turning
// raw errno returns into typed errors carrying the syscall name, its
// arguments, and a human-readable hint, per spec.md §4.4.
package nsutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SyscallError wraps a failed syscall with enough context for the CLI to
// print a single actionable line to stderr, matching spec.md §7's
// propagation policy (operation, path/PID, underlying kernel error).
type SyscallError struct {
	Op   string
	Args string
	Err  error
}

func (e *SyscallError) Error() string {
	if e.Args == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s(%s): %v", e.Op, e.Args, e.Err)
}

func (e *SyscallError) Unwrap() error { return e.Err }

func wrap(op, args string, err error) error {
	if err == nil {
		return nil
	}
	return &SyscallError{Op: op, Args: args, Err: err}
}

// Namespace flag groups, named after the steps in spec.md §4.1.
const (
	// UserNamespaceFlags is the namespace the bridge enters first, alone;
	// the orchestrator passes it as a clone flag when spawning the bridge.
	UserNamespaceFlags = unix.CLONE_NEWUSER
	// RemainingNamespaceFlags is unshared by the bridge once the
	// orchestrator has written the UID/GID maps. CLONE_NEWPID only
	// affects children forked after the call, not the caller itself.
	RemainingNamespaceFlags = unix.CLONE_NEWPID | unix.CLONE_NEWNS |
		unix.CLONE_NEWUTS | unix.CLONE_NEWIPC | unix.CLONE_NEWCGROUP
)

// Unshare wraps unix.Unshare.
func Unshare(flags int) error {
	return wrap("unshare", fmt.Sprintf("0x%x", flags), unix.Unshare(flags))
}

// DenySetgroups writes "deny" to /proc/self/setgroups, required before an
// unprivileged GID map can be written (spec.md §4.1 step 2).
func DenySetgroups() error {
	return WriteProcFile("/proc/self/setgroups", "deny")
}

// WriteProcFile writes content to a /proc file, used for setgroups and as
// a building block for callers that need to poke other /proc knobs.
func WriteProcFile(path, content string) error {
	f, err := unix.Open(path, unix.O_WRONLY, 0)
	if err != nil {
		return wrap("open", path, err)
	}
	defer unix.Close(f)
	if _, err := unix.Write(f, []byte(content)); err != nil {
		return wrap("write", path, err)
	}
	return nil
}

// Mount wraps unix.Mount.
func Mount(source, target, fstype string, flags uintptr, data string) error {
	err := unix.Mount(source, target, fstype, flags, data)
	return wrap("mount", fmt.Sprintf("%s -> %s (%s)", source, target, fstype), err)
}

// MakeRPrivate marks the entire mount tree rooted at path MS_REC|MS_PRIVATE,
// so that subsequent mounts inside the new mount namespace do not
// propagate back to the host (spec.md §4.2 step 1).
func MakeRPrivate(path string) error {
	err := unix.Mount("", path, "", unix.MS_REC|unix.MS_PRIVATE, "")
	return wrap("mount", fmt.Sprintf("%s (rprivate)", path), err)
}

// BindMount bind-mounts source onto target, optionally recursive.
func BindMount(source, target string, recursive bool) error {
	flags := uintptr(unix.MS_BIND)
	if recursive {
		flags |= unix.MS_REC
	}
	err := unix.Mount(source, target, "", flags, "")
	return wrap("mount", fmt.Sprintf("%s -> %s (bind)", source, target), err)
}

// RemountReadonly remounts an existing mountpoint read-only.
func RemountReadonly(target string) error {
	err := unix.Mount("", target, "", unix.MS_REMOUNT|unix.MS_BIND|unix.MS_RDONLY, "")
	return wrap("mount", fmt.Sprintf("%s (ro remount)", target), err)
}

// Umount2 wraps unix.Unmount with MNT_DETACH semantics (lazy unmount).
func Umount2(target string, flags int) error {
	err := unix.Unmount(target, flags)
	return wrap("umount2", target, err)
}

// PivotRoot wraps unix.PivotRoot.
func PivotRoot(newRoot, putOld string) error {
	err := unix.PivotRoot(newRoot, putOld)
	return wrap("pivot_root", fmt.Sprintf("%s, %s", newRoot, putOld), err)
}

// Mknod wraps unix.Mknod for device-node creation (spec.md §4.2 step 6).
func Mknod(path string, mode uint32, dev int) error {
	err := unix.Mknod(path, mode, dev)
	return wrap("mknod", path, err)
}

// Mkdev builds a device number from major/minor, the same encoding unix.Mknod expects.
func Mkdev(major, minor uint32) int {
	return int(unix.Mkdev(major, minor))
}

// Sethostname wraps unix.Sethostname.
func Sethostname(name string) error {
	return wrap("sethostname", name, unix.Sethostname([]byte(name)))
}

// Chdir wraps unix.Chdir, used after pivot_root.
func Chdir(path string) error {
	return wrap("chdir", path, unix.Chdir(path))
}
