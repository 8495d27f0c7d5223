// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package idmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSubIDFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subuid")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestParseSubIDFileFindsGrantedRange(t *testing.T) {
	path := writeSubIDFile(t, "# comment\nalice:100000:65536\nbob:165536:65536\n")

	start, length, err := parseSubIDFile(path, "bob")
	require.NoError(t, err)
	require.Equal(t, 165536, start)
	require.Equal(t, 65536, length)
}

func TestParseSubIDFileNoMatchingUser(t *testing.T) {
	path := writeSubIDFile(t, "alice:100000:65536\n")

	_, _, err := parseSubIDFile(path, "carol")
	require.Error(t, err)
}

func TestParseSubIDFileMissingFile(t *testing.T) {
	_, _, err := parseSubIDFile(filepath.Join(t.TempDir(), "nope"), "alice")
	require.Error(t, err)
}
