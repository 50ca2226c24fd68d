package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workspace isolates a command run: a fresh home, no user config, no
// AMANRDF_* overrides and a temp working directory.
func workspace(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"AMANRDF_DATA", "AMANRDF_WORKERS", "AMANRDF_BULK_SIZE", "AMANRDF_BACKEND",
		"AMANRDF_BACKEND_PATH", "AMANRDF_BACKEND_ADDRESS", "AMANRDF_SERVER_ADDR", "AMANRDF_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Setenv("NO_COLOR", "1")
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	require.NoError(t, shutdown())
	return buf.String(), err
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	// Given: a root command
	// When: executing with --help
	out, err := execute(t, "--help")

	// Then: every subcommand is listed
	require.NoError(t, err)
	for _, sub := range []string{"index", "serve", "search", "status", "doctor", "config", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "amanrdf version "))
}

func TestRootCmd_ProfilingFlags(t *testing.T) {
	// Given: profile outputs in a temp directory
	dir := workspace(t)
	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")

	// When: a command runs with the profile flags
	_, err := execute(t, "--profile-cpu", cpu, "--profile-mem", heap, "version", "--short")

	// Then: both profiles are written
	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}

func TestLoadConfig_WritesLogFile(t *testing.T) {
	// Given: a project config that logs to the workspace
	dir := workspace(t)
	logFile := filepath.Join(dir, "logs", "amanrdf.log")
	require.NoError(t, os.WriteFile("amanrdf.yaml", []byte("logging:\n  file: "+logFile+"\n"), 0o644))

	// When: a config-loading command runs in debug mode
	_, err := execute(t, "--debug", "config", "show")

	// Then: the debug start record lands in the file
	require.NoError(t, err)
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"logging_started"`)
}

func TestLoadConfig_InvalidConfigFails(t *testing.T) {
	workspace(t)
	require.NoError(t, os.WriteFile("amanrdf.yaml", []byte("indexing:\n  workers: 0\n"), 0o644))

	_, err := execute(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexing.workers")
}
