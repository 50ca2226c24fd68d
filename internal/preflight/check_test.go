package preflight

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrdf/internal/config"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_SummaryStatus(t *testing.T) {
	c := New()
	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{pass("a", "")}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{pass("a", ""), warn("b", "")}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{warn("b", ""), fail("c", "")}))
}

func TestChecker_CheckDataRoot(t *testing.T) {
	withFiles := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(withFiles, "part", "unit"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(withFiles, "part", "unit", "a.nt"), []byte("x\n"), 0o644))

	empty := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(empty, "part", "unit"), 0o755))

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name string
		root string
		want CheckStatus
	}{
		{"files found", withFiles, StatusPass},
		{"no matching files", empty, StatusWarn},
		{"not set", "", StatusFail},
		{"missing", filepath.Join(empty, "nope"), StatusFail},
		{"not a directory", file, StatusFail},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.CheckDataRoot(tt.root, config.DefaultPatterns())
			assert.Equal(t, tt.want, r.Status, r.Message)
		})
	}
}

func TestChecker_CheckWritePermissions(t *testing.T) {
	c := New()
	dir := t.TempDir()

	// Given a writable directory
	assert.Equal(t, StatusPass, c.CheckWritePermissions(dir).Status)

	// Given a read-only directory
	if os.Getuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	ro := filepath.Join(dir, "ro")
	require.NoError(t, os.Mkdir(ro, 0o555))
	r := c.CheckWritePermissions(ro)
	assert.Equal(t, StatusFail, r.Status)
	assert.True(t, r.IsCritical())
}

func TestChecker_CheckBackend(t *testing.T) {
	ctx := context.Background()

	r := New().CheckBackend(ctx, "remote")
	assert.Equal(t, StatusWarn, r.Status)

	r = New(WithHealth(func(context.Context) error { return nil })).CheckBackend(ctx, "bleve")
	assert.Equal(t, StatusPass, r.Status)

	r = New(WithHealth(func(context.Context) error { return errors.New("refused") })).CheckBackend(ctx, "remote")
	assert.Equal(t, StatusFail, r.Status)
	assert.Contains(t, r.Message, "refused")
}

func TestChecker_CheckFileDescriptors_ScalesWithWorkers(t *testing.T) {
	c := New()
	r := c.CheckFileDescriptors(1)
	assert.Contains(t, r.Message, "minimum: 1024")

	r = c.CheckFileDescriptors(1000)
	assert.Contains(t, r.Message, "minimum: 8000")
}

func TestChecker_RunAll(t *testing.T) {
	// Given a bleve configuration over an empty data root
	cfg := config.NewConfig()
	cfg.Indexing.Data = t.TempDir()
	cfg.Backend.Path = filepath.Join(t.TempDir(), "data")

	var buf bytes.Buffer
	c := New(WithOutput(&buf), WithVerbose(true))

	// When all checks run
	results := c.RunAll(context.Background(), cfg)

	// Then every check is present and the backend path was created
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"data_root", "disk_space", "write_permissions", "file_descriptors", "backend"}, names)
	assert.DirExists(t, cfg.Backend.Path)

	c.PrintResults(results)
	assert.Contains(t, buf.String(), "amanrdf doctor")
	assert.Contains(t, buf.String(), "Status:")
}

func TestChecker_RunAll_RemoteSkipsDisk(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Indexing.Data = t.TempDir()
	cfg.Backend.Kind = config.BackendRemote

	results := New().RunAll(context.Background(), cfg)
	for _, r := range results {
		assert.NotEqual(t, "disk_space", r.Name)
	}
}
