// internal/storage/usage.go
package storage

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/AlverezYari/skyframe/internal/messages"
)

var ErrDiskUsageParse = errors.New("cannot parse disk usage")

const kibPerGigabyte = 1024 * 1024

// DiskUsageFunc returns df style output for path.
type DiskUsageFunc func(path string) (string, error)

// RunDf queries free and total KiB for the filesystem holding path.
func RunDf(path string) (string, error) {
	out, err := exec.Command("df", "-k", "--output=avail,size", path).Output()
	if err != nil {
		return "", fmt.Errorf("df %s: %w", path, err)
	}
	return string(out), nil
}

// ParseDiskUsage reads the free and total KiB columns from the second line
// of df output.
func ParseDiskUsage(output string) (messages.StorageState, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) < 2 {
		return messages.StorageState{}, fmt.Errorf("%w: missing data line", ErrDiskUsageParse)
	}

	fields := strings.Fields(lines[1])
	if len(fields) < 2 {
		return messages.StorageState{}, fmt.Errorf("%w: %q", ErrDiskUsageParse, lines[1])
	}

	free, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return messages.StorageState{}, fmt.Errorf("%w: free %q", ErrDiskUsageParse, fields[0])
	}
	total, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return messages.StorageState{}, fmt.Errorf("%w: total %q", ErrDiskUsageParse, fields[1])
	}

	return messages.StorageStateAvailable(
		float64(total)/kibPerGigabyte,
		float64(free)/kibPerGigabyte,
	), nil
}
