package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

// isolate points the user config at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{"AMANRDF_DATA", "AMANRDF_WORKERS", "AMANRDF_BULK_SIZE", "AMANRDF_BACKEND",
		"AMANRDF_BACKEND_PATH", "AMANRDF_BACKEND_ADDRESS", "AMANRDF_SERVER_ADDR", "AMANRDF_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 3500, cfg.Indexing.BulkSize)
	assert.Equal(t, runtime.NumCPU(), cfg.Indexing.Workers)
	assert.Contains(t, cfg.Indexing.Patterns, "**/*.ttl")
	assert.True(t, cfg.Indexing.Base.Enabled)
	assert.Equal(t, "bindex", cfg.Indexing.Base.Name)
	assert.False(t, cfg.Indexing.Base.IncludeNamespace)
	assert.False(t, cfg.Indexing.Extended.Enabled)
	assert.Equal(t, BackendBleve, cfg.Backend.Kind)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_PrecedenceUserProjectEnv(t *testing.T) {
	// Given: a user config, a project config and an env override
	isolate(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "amanrdf"), 0o755))
	writeFile(t, filepath.Join(xdg, "amanrdf"), "config.yaml", `
indexing:
  workers: 2
  bulk_size: 100
logging:
  level: debug
`)
	project := t.TempDir()
	writeFile(t, project, "amanrdf.yaml", `
indexing:
  bulk_size: 50
  base:
    name: triples
`)
	t.Setenv("AMANRDF_WORKERS", "7")

	// When: loading
	cfg, err := Load("", project)
	require.NoError(t, err)

	// Then: each layer wins over the one below it
	assert.Equal(t, 7, cfg.Indexing.Workers)
	assert.Equal(t, 50, cfg.Indexing.BulkSize)
	assert.Equal(t, "triples", cfg.Indexing.Base.Name)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// And: untouched keys keep defaults
	assert.True(t, cfg.Indexing.Base.Enabled)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Equal(t, amerrors.ErrCodeConfigNotFound, amerrors.GetCode(err))
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	isolate(t)
	path := writeFile(t, t.TempDir(), "amanrdf.yaml", "indexing:\n  wokers: 3\n")

	_, err := Load(path, "")

	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
}

func TestLoad_ExplicitLegacyFile(t *testing.T) {
	isolate(t)
	path := writeFile(t, t.TempDir(), "elas4rdf.tsv",
		"indexing.base.name\trdfbase\nindexing.instances\t3\n")

	cfg, err := Load(path, "")

	require.NoError(t, err)
	assert.Equal(t, "rdfbase", cfg.Indexing.Base.Name)
	assert.Equal(t, 3, cfg.Indexing.Workers)
}

func TestLoad_BadEnvInteger(t *testing.T) {
	isolate(t)
	t.Setenv("AMANRDF_BULK_SIZE", "lots")

	_, err := Load("", t.TempDir())

	assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		code    string
		wantErr bool
	}{
		{"defaults", func(*Config) {}, "", false},
		{"zero workers", func(c *Config) { c.Indexing.Workers = 0 }, amerrors.ErrCodeConfigInvalid, true},
		{"zero bulk size", func(c *Config) { c.Indexing.BulkSize = 0 }, amerrors.ErrCodeConfigInvalid, true},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "elastic" }, amerrors.ErrCodeConfigInvalid, true},
		{"backend kind is case-insensitive", func(c *Config) { c.Backend.Kind = "SQLite" }, "", false},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, amerrors.ErrCodeConfigInvalid, true},
		{"bad timeout", func(c *Config) { c.Backend.Timeout = "soon" }, amerrors.ErrCodeConfigInvalid, true},
		{"remote needs address", func(c *Config) {
			c.Backend.Kind = BackendRemote
			c.Backend.Address = ""
		}, amerrors.ErrCodeConfigInvalid, true},
		{"index name with slash", func(c *Config) { c.Indexing.Base.Name = "a/b" }, amerrors.ErrCodeConfigInvalid, true},
		{"extended without fields", func(c *Config) { c.Indexing.Extended.Enabled = true }, amerrors.ErrCodeConfigInvalid, true},
		{"duplicate predicate", func(c *Config) {
			c.Indexing.Extended.Fields = []Field{
				{Alias: "title", Predicate: "http://purl.org/dc/terms/title"},
				{Alias: "name", Predicate: "http://purl.org/dc/terms/title"},
			}
		}, amerrors.ErrCodeDuplicateField, true},
		{"alias collides with base index", func(c *Config) {
			c.Indexing.Extended.Enabled = true
			c.Indexing.Extended.Fields = []Field{{Alias: "bindex", Predicate: "http://x/p"}}
		}, amerrors.ErrCodeDuplicateField, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, amerrors.GetCode(err))
			assert.True(t, amerrors.IsFatal(err))
		})
	}
}

func TestValidate_BuildsFieldMap(t *testing.T) {
	cfg := NewConfig()
	cfg.Indexing.Extended.Enabled = true
	cfg.Indexing.Extended.Fields = []Field{{Alias: "title", Predicate: "http://purl.org/dc/terms/title"}}

	assert.Equal(t, 0, cfg.Fields().Len())
	require.NoError(t, cfg.Validate())

	alias, ok := cfg.Fields().AliasFor("http://purl.org/dc/terms/title")
	assert.True(t, ok)
	assert.Equal(t, "title", alias)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	cfg := NewConfig()
	cfg.Indexing.Base.Name = "roundtrip"
	cfg.Indexing.Extended.Fields = []Field{{Alias: "label", Predicate: "http://www.w3.org/2000/01/rdf-schema#label"}}
	path := filepath.Join(t.TempDir(), "out.yaml")

	require.NoError(t, cfg.WriteYAML(path))
	loaded, err := Load(path, "")

	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Indexing.Base.Name)
	assert.Equal(t, cfg.Indexing.Extended.Fields, loaded.Indexing.Extended.Fields)
}
