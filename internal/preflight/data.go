package preflight

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/amanrdf/internal/partition"
)

// CheckDataRoot verifies that root is a directory holding at least one
// work unit with matching triple files.
func (c *Checker) CheckDataRoot(root string, patterns []string) CheckResult {
	const name = "data_root"
	if root == "" {
		return fail(name, "indexing.data is not set")
	}
	info, err := os.Stat(root)
	if err != nil {
		return fail(name, fmt.Sprintf("cannot read %s: %v", root, err))
	}
	if !info.IsDir() {
		return fail(name, fmt.Sprintf("%s is not a directory", root))
	}

	units, err := partition.Partition(root, patterns)
	if err != nil {
		return fail(name, err.Error())
	}
	files, err := partition.CountFiles(units)
	if err != nil {
		return fail(name, err.Error())
	}
	if files == 0 {
		r := warn(name, fmt.Sprintf("%d work units but no triple files", len(units)))
		r.Details = "work units are the children of each subfolder of the data root"
		return r
	}
	return pass(name, fmt.Sprintf("%d work units, %d files", len(units), files))
}
