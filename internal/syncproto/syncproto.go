// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

// Package syncproto implements the one-byte SyncSignal alphabet exchanged
// over the orchestrator<->bridge anonymous pipes during create: R (bridge
// ready, user namespace exists), M (orchestrator has written the UID/GID
// maps), followed by a four-byte little-endian PID word carrying Init's
// host-visible pid from bridge to orchestrator. Exactly one R, one M, and
// one PID are sent per lifecycle, matching spec.md's SyncSignal invariant.
package syncproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Signal is a single byte of the SyncSignal alphabet.
type Signal byte

const (
	// SignalReady is sent by the bridge once it has entered a new user
	// namespace and denied setgroups.
	SignalReady Signal = 'R'
	// SignalMapped is sent by the orchestrator once newuidmap/newgidmap
	// have both succeeded against the bridge's pid.
	SignalMapped Signal = 'M'
)

func (s Signal) String() string {
	switch s {
	case SignalReady:
		return "READY"
	case SignalMapped:
		return "MAPPED"
	default:
		return fmt.Sprintf("unknown(%q)", byte(s))
	}
}

// WriteSignal writes exactly one signal byte to w.
func WriteSignal(w io.Writer, s Signal) error {
	_, err := w.Write([]byte{byte(s)})
	if err != nil {
		return fmt.Errorf("write sync signal %s: %w", s, err)
	}
	return nil
}

// ReadSignal blocks until one byte is available on r and verifies it
// matches want, returning an error naming both the expected and the
// observed byte on mismatch.
func ReadSignal(r io.Reader, want Signal) error {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fmt.Errorf("read sync signal %s: %w", want, err)
	}
	got := Signal(buf[0])
	if got != want {
		return fmt.Errorf("unexpected sync signal: want %s, got %s", want, got)
	}
	return nil
}

// WritePID writes pid as a four-byte little-endian word, the format used
// by the bridge to report Init's host-visible pid back to the
// orchestrator.
func WritePID(w io.Writer, pid int) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(pid))
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("write init pid: %w", err)
	}
	return nil
}

// ReadPID blocks until four bytes are available on r and decodes them as
// a little-endian pid.
func ReadPID(r io.Reader) (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("read init pid: %w", err)
	}
	return int(binary.LittleEndian.Uint32(buf[:])), nil
}
