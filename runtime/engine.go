// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package runtime

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"kraftkit.sh/cgroup"
	"kraftkit.sh/internal/idmap"
	"kraftkit.sh/internal/syncproto"
	"kraftkit.sh/log"
	"kraftkit.sh/state"
	"kraftkit.sh/types"
)

const killGrace = 3 * time.Second

// Engine is the orchestrator-side lifecycle engine: it owns the state
// store and drives the create handshake and every other CLI-facing
// operation named in spec.md §4.1.
type Engine struct {
	Store *state.Store
}

// NewEngine builds an Engine rooted at the default $HOME/.local/share/bento.
func NewEngine() (*Engine, error) {
	store, err := state.NewStore()
	if err != nil {
		return nil, err
	}
	return &Engine{Store: store}, nil
}

// Create runs the full three-process handshake (spec.md §4.1 Create
// protocol) and persists the resulting state on success.
func (e *Engine) Create(cfg types.ContainerConfig) (retErr error) {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if exists, err := e.Store.Exists(cfg.ID); err != nil {
		return err
	} else if exists {
		return types.ErrExist
	}
	if err := idmap.Preflight(); err != nil {
		return err
	}

	rootfsDir, err := e.Store.RootfsDir(cfg.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(rootfsDir, 0o755); err != nil {
		return fmt.Errorf("create rootfs dir: %w", err)
	}
	defer func() {
		if retErr != nil {
			os.RemoveAll(filepath.Dir(rootfsDir))
		}
	}()

	stateDir, err := e.Store.StateDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(stateDir, cfg.ID+".launch.json")
	defer os.Remove(configPath)

	lc := &launchConfig{
		Config:    cfg,
		RootfsDir: rootfsDir,
		HostUID:   os.Getuid(),
		HostGID:   os.Getgid(),
	}
	if err := writeLaunchConfig(configPath, lc); err != nil {
		return err
	}

	// The resume FIFO must exist before Init can possibly reach
	// waitForStart's open(2) call, or Init would race the orchestrator
	// and see ENOENT. Init is only spawned below, but create it now
	// rather than rely on Init's own rootfs build (which also creates
	// tmp/) outrunning this step.
	if err := ensureResumeFIFO(rootfsDir, cfg.ID); err != nil {
		return fmt.Errorf("create resume fifo: %w", err)
	}

	initPID, bridgePID, err := e.runHandshake(configPath)
	if err != nil {
		return fmt.Errorf("create handshake: %w", err)
	}
	defer func() {
		if retErr != nil {
			killIfAlive(bridgePID)
			killIfAlive(initPID)
		}
	}()

	cs := &types.ContainerState{
		ID:            cfg.ID,
		Pid:           initPID,
		Status:        types.StatusCreated,
		BundlePath:    cfg.Bundle,
		CreatedAt:     time.Now().Unix(),
		StartPipePath: initFIFORelPath(cfg.ID),
	}

	if !cfg.NoCgroups {
		if err := e.attachCgroup(cfg, initPID, cs); err != nil {
			return fmt.Errorf("attach cgroup: %w", err)
		}
	}

	if err := e.Store.Save(cs); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// runHandshake performs the self re-exec chain described in this
// package's doc comment and spec.md §4.1 steps 1-6, returning Init's
// host-visible pid and the bridge's pid (for failure-path cleanup).
func (e *Engine) runHandshake(configPath string) (initPID, bridgePID int, retErr error) {
	self, err := os.Executable()
	if err != nil {
		return 0, 0, fmt.Errorf("resolve own executable: %w", err)
	}

	oToBRead, oToBWrite, err := os.Pipe()
	if err != nil {
		return 0, 0, fmt.Errorf("create o-to-b pipe: %w", err)
	}
	defer oToBWrite.Close()

	bToORead, bToOWrite, err := os.Pipe()
	if err != nil {
		oToBRead.Close()
		return 0, 0, fmt.Errorf("create b-to-o pipe: %w", err)
	}
	defer bToORead.Close()

	bridge := exec.Command(self, "__bridge", configPath)
	bridge.ExtraFiles = []*os.File{oToBRead, bToOWrite}
	bridge.Stdin, bridge.Stdout, bridge.Stderr = os.Stdin, os.Stdout, os.Stderr
	bridge.SysProcAttr = &syscall.SysProcAttr{Cloneflags: unix.CLONE_NEWUSER}

	if err := bridge.Start(); err != nil {
		oToBRead.Close()
		bToOWrite.Close()
		return 0, 0, fmt.Errorf("start bridge: %w", err)
	}
	bridgePID = bridge.Process.Pid

	// These ends belong to the bridge now; holding them open here would
	// make the bridge's own copies insufficient to signal EOF.
	oToBRead.Close()
	bToOWrite.Close()

	if err := syncproto.ReadSignal(bToORead, syncproto.SignalReady); err != nil {
		return 0, bridgePID, err
	}

	if err := idmap.WriteMaps(bridgePID); err != nil {
		return 0, bridgePID, fmt.Errorf("write uid/gid maps: %w", err)
	}

	if err := syncproto.WriteSignal(oToBWrite, syncproto.SignalMapped); err != nil {
		return 0, bridgePID, err
	}

	initPID, err = syncproto.ReadPID(bToORead)
	if err != nil {
		return 0, bridgePID, err
	}

	if err := reapBridge(bridge); err != nil {
		return initPID, bridgePID, err
	}
	return initPID, bridgePID, nil
}

// reapBridge waits for the bridge to exit, treating ECHILD as success:
// the bridge may already have been reaped by the time we call Wait
// (spec.md §9 "Reaping semantics").
func reapBridge(cmd *exec.Cmd) error {
	err := cmd.Wait()
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ECHILD) {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("bridge exited with error: %w", exitErr)
	}
	return err
}

func (e *Engine) attachCgroup(cfg types.ContainerConfig, pid int, cs *types.ContainerState) error {
	base, err := cgroup.DiscoverBase(os.Getuid())
	if err != nil {
		log.L.WithError(err).Warn("no delegated cgroup v2 subtree available, continuing without cgroups")
		return nil
	}
	applied, err := cgroup.Delegate(base)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		// Delegate has already logged that none of the wanted controllers
		// exist; continue without cgroups.
		return nil
	}
	log.L.WithField("controllers", applied).Debug("delegated cgroup v2 controllers")
	limits := cfg.Cgroups
	if limits == nil {
		limits = &types.CgroupsLimits{}
	}
	mgr, err := cgroup.NewLeaf(base, cfg.ID, limits)
	if err != nil {
		return err
	}
	if err := mgr.AddProcess(pid); err != nil {
		return err
	}
	cs.CgroupPath = mgr.Path()
	cs.CgroupsEnabled = true
	return nil
}

func ensureResumeFIFO(rootfsDir, id string) error {
	dir := filepath.Join(rootfsDir, "tmp")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(rootfsDir, initFIFORelPath(id))
	if err := unix.Mkfifo(path, 0o600); err != nil && !os.IsExist(err) {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// Start loads persisted state, probes liveness, and delivers the resume
// token through the host-visible FIFO path (spec.md §4.1 Start protocol).
func (e *Engine) Start(id string) error {
	cs, err := e.Store.Load(id)
	if err != nil {
		return err
	}
	if cs.Status != types.StatusCreated {
		return fmt.Errorf("container %s is not in created state (status=%s)", id, cs.Status)
	}
	if !types.ProbeLiveness(cs.Pid) {
		cs.Status = types.StatusStopped
		e.Store.Save(cs)
		return fmt.Errorf("init process for %s (pid %d) is no longer alive", id, cs.Pid)
	}

	rootfsDir, err := e.Store.RootfsDir(id)
	if err != nil {
		return err
	}
	hostPath := filepath.Join(rootfsDir, cs.StartPipePath)

	f, err := os.OpenFile(hostPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open resume fifo %s: %w", hostPath, err)
	}
	if err := writeAll(f, []byte(startToken)); err != nil {
		f.Close()
		return fmt.Errorf("write start token: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close resume fifo: %w", err)
	}

	cs.Status = types.StatusRunning
	if err := e.Store.Save(cs); err != nil {
		return err
	}
	if err := os.Remove(hostPath); err != nil && !os.IsNotExist(err) {
		log.L.WithError(err).Warn("could not unlink resume fifo after start")
	}
	return nil
}

// Kill sends SIGTERM to Init, escalating to SIGKILL after a short grace
// period, and transitions state to stopped (spec.md §4.1 Kill).
func (e *Engine) Kill(id string) error {
	cs, err := e.Store.Load(id)
	if err != nil {
		return err
	}
	if !types.ProbeLiveness(cs.Pid) {
		cs.Status = types.StatusStopped
		return e.Store.Save(cs)
	}

	if err := syscall.Kill(cs.Pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("sigterm pid %d: %w", cs.Pid, err)
	}
	deadline := time.Now().Add(killGrace)
	for time.Now().Before(deadline) {
		if !types.ProbeLiveness(cs.Pid) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if types.ProbeLiveness(cs.Pid) {
		if err := syscall.Kill(cs.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("sigkill pid %d: %w", cs.Pid, err)
		}
	}

	cs.Status = types.StatusStopped
	return e.Store.Save(cs)
}

// Delete refuses to act on a running container, tears down its cgroup
// (moving stragglers to the parent first), and removes every persisted
// artifact, tolerating pieces that are already missing (spec.md §4.1
// Delete, §5 cancellation policy).
func (e *Engine) Delete(id string) error {
	cs, err := e.Store.Load(id)
	if err != nil {
		return err
	}
	if cs.Status == types.StatusRunning {
		return types.ErrRunning
	}

	if cs.CgroupsEnabled && cs.CgroupPath != "" {
		base := filepath.Dir(cs.CgroupPath)
		mgr := cgroup.OpenLeaf(base, id)
		if err := mgr.Teardown(); err != nil {
			log.L.WithError(err).Warn("cgroup teardown encountered an error, continuing delete")
		}
	}

	containerDir, err := e.Store.ContainerDir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(containerDir); err != nil {
		return fmt.Errorf("remove container dir: %w", err)
	}
	return e.Store.Delete(id)
}

// State returns the persisted record for id with a liveness probe
// applied.
func (e *Engine) State(id string) (*types.ContainerInfo, error) {
	cs, err := e.Store.Load(id)
	if err != nil {
		return nil, err
	}
	return &types.ContainerInfo{ContainerState: *cs, Alive: types.ProbeLiveness(cs.Pid)}, nil
}

// List returns every persisted container, sorted by creation time.
func (e *Engine) List() ([]types.ContainerInfo, error) {
	return e.Store.List()
}

// Stats reads live cgroup counters for id (spec.md §4.3 Statistics). It
// returns an error if the container has no cgroup (--no-cgroups or a
// degraded delegation).
func (e *Engine) Stats(id string) (*cgroup.Stats, error) {
	cs, err := e.Store.Load(id)
	if err != nil {
		return nil, err
	}
	if !cs.CgroupsEnabled || cs.CgroupPath == "" {
		return nil, fmt.Errorf("container %s has no cgroup", id)
	}
	base := filepath.Dir(cs.CgroupPath)
	return cgroup.OpenLeaf(base, id).Read()
}

func killIfAlive(pid int) {
	if pid <= 0 {
		return
	}
	if types.ProbeLiveness(pid) {
		syscall.Kill(pid, syscall.SIGKILL)
	}
}

func writeAll(f *os.File, b []byte) error {
	for len(b) > 0 {
		n, err := f.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}
