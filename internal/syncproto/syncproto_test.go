// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package syncproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignalRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSignal(&buf, SignalReady))
	require.NoError(t, ReadSignal(&buf, SignalReady))
}

func TestSignalMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSignal(&buf, SignalMapped))
	err := ReadSignal(&buf, SignalReady)
	require.Error(t, err)
}

func TestPIDRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePID(&buf, 424242))
	pid, err := ReadPID(&buf)
	require.NoError(t, err)
	require.Equal(t, 424242, pid)
}
