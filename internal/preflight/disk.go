package preflight

import (
	"fmt"
	"syscall"

	"github.com/Aman-CERP/amanrdf/internal/ui"
)

// MinDiskSpaceBytes is the free space required at the backend path.
const MinDiskSpaceBytes = 512 * 1024 * 1024

// CheckDiskSpace checks the free space of the filesystem holding path.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	const name = "disk_space"

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return fail(name, fmt.Sprintf("failed to check disk space: %v", err))
	}

	available := stat.Bavail * uint64(stat.Bsize)
	msg := fmt.Sprintf("%s free at %s (minimum: %s)", ui.FormatBytes(int64(available)), path, ui.FormatBytes(MinDiskSpaceBytes))
	if available < MinDiskSpaceBytes {
		return fail(name, msg)
	}
	return pass(name, msg)
}
