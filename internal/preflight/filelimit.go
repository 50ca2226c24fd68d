package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the minimum required file descriptor limit.
const MinFileDescriptors = 1024

// fdsPerWorker covers an open triple file, its decoder and a backend
// connection or segment per worker.
const fdsPerWorker = 8

// CheckFileDescriptors checks the open file limit against the number of
// workers.
func (c *Checker) CheckFileDescriptors(workers int) CheckResult {
	const name = "file_descriptors"

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return fail(name, fmt.Sprintf("failed to check file descriptor limit: %v", err))
	}

	want := uint64(MinFileDescriptors)
	if w := uint64(workers) * fdsPerWorker; w > want {
		want = w
	}
	msg := fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, want)
	if rLimit.Cur < want {
		r := fail(name, msg)
		r.Details = fmt.Sprintf("Run 'ulimit -n %d' to increase the limit", want*4)
		return r
	}
	return pass(name, msg)
}
