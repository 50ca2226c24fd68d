// Package partition splits an input tree into independent work units.
//
// Layout is two levels deep: every child of every immediate subdirectory
// of the root is one unit. A unit may be a single file or a directory
// searched recursively at processing time.
//
//	root/
//	  part-a/
//	    dump-1/        <- unit
//	    extra.ttl      <- unit
//	  part-b/
//	    dump-2.nt.gz   <- unit
package partition

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// WorkUnit is one independently processed path.
type WorkUnit struct {
	Path     string
	IsDir    bool
	patterns []string
}

// NewWorkUnit returns a unit for path matched against patterns.
func NewWorkUnit(path string, isDir bool, patterns []string) WorkUnit {
	return WorkUnit{Path: path, IsDir: isDir, patterns: patterns}
}

// Files lists the unit's triple files in lexical order. A file unit
// yields itself when its name matches a pattern.
func (u WorkUnit) Files() ([]string, error) {
	if !u.IsDir {
		name := filepath.Base(u.Path)
		for _, p := range u.patterns {
			if ok, _ := doublestar.Match(p, name); ok {
				return []string{u.Path}, nil
			}
		}
		return nil, nil
	}

	fsys := os.DirFS(u.Path)
	seen := make(map[string]bool)
	var files []string
	for _, p := range u.patterns {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q in %s: %w", p, u.Path, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, filepath.Join(u.Path, filepath.FromSlash(m)))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Partition returns the work units under root, sorted by path. Files
// placed directly in root belong to no unit and are reported in the log.
func Partition(root string, patterns []string) ([]WorkUnit, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read data root: %w", err)
	}

	var units []WorkUnit
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		if !e.IsDir() {
			slog.Warn("partition_root_file_ignored", slog.String("path", path))
			continue
		}
		children, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for _, c := range children {
			units = append(units, NewWorkUnit(filepath.Join(path, c.Name()), c.IsDir(), patterns))
		}
	}

	if len(units) == 0 {
		slog.Warn("partition_no_units", slog.String("root", root))
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })
	return units, nil
}

// CountFiles returns the total number of files across units.
func CountFiles(units []WorkUnit) (int, error) {
	total := 0
	for _, u := range units {
		files, err := u.Files()
		if err != nil {
			return 0, err
		}
		total += len(files)
	}
	return total, nil
}
