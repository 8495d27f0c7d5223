// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The bento Authors

package idmap

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// parseSubIDFile scans an /etc/subuid or /etc/subgid style file
// ("name:start:length" per line) for the first range granted to user.
func parseSubIDFile(path, user string) (start, length int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) != 3 || parts[0] != user {
			continue
		}
		start, err = strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		length, err = strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		return start, length, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}
	return 0, 0, fmt.Errorf("no sub-id range granted to %s in %s", user, path)
}
