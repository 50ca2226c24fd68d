package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/amanrdf/internal/config"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets JSON output carry "PASS" rather than a number.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

func pass(name, msg string) CheckResult {
	return CheckResult{Name: name, Status: StatusPass, Message: msg, Required: true}
}

func fail(name, msg string) CheckResult {
	return CheckResult{Name: name, Status: StatusFail, Message: msg, Required: true}
}

func warn(name, msg string) CheckResult {
	return CheckResult{Name: name, Status: StatusWarn, Message: msg}
}

// HealthFunc probes the configured backend.
type HealthFunc func(ctx context.Context) error

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	output  io.Writer
	health  HealthFunc
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithHealth adds a backend probe. Without one the backend check is
// skipped with a warning.
func WithHealth(fn HealthFunc) Option {
	return func(c *Checker) {
		c.health = fn
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check for cfg. Local backends are checked at their
// storage directory; remote backends only through the health probe.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config) []CheckResult {
	results := []CheckResult{
		c.CheckDataRoot(cfg.Indexing.Data, cfg.Indexing.Patterns),
	}

	switch cfg.Backend.Kind {
	case config.BackendBleve, config.BackendSQLite:
		path := cfg.Backend.Path
		if err := os.MkdirAll(path, 0o755); err != nil {
			results = append(results, fail("backend_path", fmt.Sprintf("cannot create %s: %v", path, err)))
			break
		}
		results = append(results, c.CheckDiskSpace(path), c.CheckWritePermissions(path))
	}

	results = append(results, c.CheckFileDescriptors(cfg.Indexing.Workers))
	results = append(results, c.CheckBackend(ctx, cfg.Backend.Kind))
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns "ready", "ready_with_warnings" or "failed".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "amanrdf doctor")
	_, _ = fmt.Fprintln(c.output, "==============")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	var problems []string
	for _, r := range results {
		if r.Status != StatusPass {
			problems = append(problems, fmt.Sprintf("%s %s: %s", r.Status, r.Name, r.Message))
		}
	}
	if len(problems) > 0 {
		_, _ = fmt.Fprintln(c.output)
		for _, p := range problems {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", p)
		}
	}
}

// CheckWritePermissions creates and removes a probe file in path.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	const name = "write_permissions"
	probe := filepath.Join(path, ".amanrdf-preflight")
	f, err := os.Create(probe)
	if err != nil {
		return fail(name, fmt.Sprintf("permission denied: %v", err))
	}
	_ = f.Close()
	_ = os.Remove(probe)
	return pass(name, "OK")
}

// CheckBackend runs the health probe, if one was given.
func (c *Checker) CheckBackend(ctx context.Context, kind string) CheckResult {
	const name = "backend"
	if c.health == nil {
		return warn(name, fmt.Sprintf("%s backend not probed", kind))
	}
	if err := c.health(ctx); err != nil {
		return fail(name, fmt.Sprintf("%s backend is not usable: %v", kind, err))
	}
	return pass(name, fmt.Sprintf("%s backend is healthy", kind))
}
