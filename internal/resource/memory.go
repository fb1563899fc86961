package resource

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
)

// MemoryProbe reports currently available physical memory in bytes.
type MemoryProbe func() (uint64, error)

// DefaultProbe reads available memory from /proc/meminfo where present and
// otherwise derives an estimate from GOMEMLIMIT and current heap usage.
func DefaultProbe() (uint64, error) {
	if available, err := readMemAvailable("/proc/meminfo"); err == nil {
		return available, nil
	}
	return limitDerivedAvailable()
}

// readMemAvailable parses the MemAvailable line of a meminfo-format file.
func readMemAvailable(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
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
			return 0, fmt.Errorf("malformed MemAvailable line: %q", line)
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("malformed MemAvailable value: %w", err)
		}
		return kb << 10, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("no MemAvailable line in %s", path)
}

// limitDerivedAvailable estimates headroom as GOMEMLIMIT minus current heap
// allocation. Reading the limit with a negative value leaves it unchanged.
func limitDerivedAvailable() (uint64, error) {
	limit := debug.SetMemoryLimit(-1)
	if limit <= 0 || limit >= 1<<62 {
		return 0, fmt.Errorf("no memory limit configured")
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	if uint64(limit) <= stats.Alloc {
		return 0, nil
	}
	return uint64(limit) - stats.Alloc, nil
}
