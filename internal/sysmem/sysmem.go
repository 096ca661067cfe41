// Package sysmem is the supplemented auto-memory-sizing probe:
// AvailableMB has the signature internal/config.Budget.AutoDetect takes
// as its probe. Outside this package's tests nothing calls it.
package sysmem

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// fallbackMB is used when /proc/meminfo can't be read (non-Linux, or a
// sandboxed environment without procfs) -- a conservative guess rather
// than a hard failure, since the caller can always override it with an
// explicit budget.
const fallbackMB = 2048

// AvailableMB returns the OS's current available memory in megabytes,
// parsed from /proc/meminfo's MemAvailable line, falling back to
// fallbackMB when that isn't readable.
func AvailableMB() (int, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return fallbackMB, nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			break
		}
		return kb / 1024, nil
	}
	return fallbackMB, nil
}
