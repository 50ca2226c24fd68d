// Package config loads and validates amanrdf configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

// DefaultBulkSize is the number of pending documents per index that
// triggers a bulk dispatch once exceeded.
const DefaultBulkSize = 3500

// Backend kinds.
const (
	BackendBleve  = "bleve"
	BackendSQLite = "sqlite"
	BackendRemote = "remote"
	BackendMemory = "memory"
)

// Config is the typed amanrdf configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Indexing IndexingConfig `yaml:"indexing"`
	Backend  BackendConfig  `yaml:"backend"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`

	fields *FieldMap
}

// IndexingConfig controls the indexing pipeline.
type IndexingConfig struct {
	// Data is the root directory; its subfolders' children are work units.
	Data string `yaml:"data"`
	// Patterns are doublestar globs matched inside each work unit.
	Patterns []string `yaml:"patterns"`
	// Workers is the number of work units processed concurrently.
	Workers int `yaml:"workers"`
	// BulkSize is the per-index flush threshold.
	BulkSize int `yaml:"bulk_size"`

	Base     BaseConfig     `yaml:"base"`
	Extended ExtendedConfig `yaml:"extended"`
}

// BaseConfig describes the base triple index.
type BaseConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Name             string `yaml:"name"`
	IncludeURI       bool   `yaml:"include_uri"`
	IncludeNamespace bool   `yaml:"include_namespace"`
}

// ExtendedConfig describes property indices and the extended index.
type ExtendedConfig struct {
	// Enabled turns on property documents during the baseline pass and
	// the extended pass after it.
	Enabled        bool    `yaml:"enabled"`
	Name           string  `yaml:"name"`
	IncludeSubject bool    `yaml:"include_subject"`
	IncludeObject  bool    `yaml:"include_object"`
	Fields         []Field `yaml:"fields"`
}

// BackendConfig selects and tunes the index store.
type BackendConfig struct {
	Kind    string `yaml:"kind"`
	Path    string `yaml:"path"`
	Address string `yaml:"address"`
	// Timeout bounds a single request to a remote backend.
	Timeout string `yaml:"timeout"`
	// RequestsPerSecond limits remote requests; 0 means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxFailures       int     `yaml:"max_failures"`
	ResetTimeout      string  `yaml:"reset_timeout"`
	// CacheSize is the number of property lookups kept by the extended pass.
	CacheSize int `yaml:"cache_size"`
}

// ServerConfig configures `amanrdf serve`.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the slog file logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// DefaultPatterns are the triple files picked up inside a work unit.
func DefaultPatterns() []string {
	return []string{
		"**/*.ttl", "**/*.ttl.gz", "**/*.ttl.zst",
		"**/*.nt", "**/*.nt.gz", "**/*.nt.zst",
	}
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Indexing: IndexingConfig{
			Patterns: DefaultPatterns(),
			Workers:  runtime.NumCPU(),
			BulkSize: DefaultBulkSize,
			Base: BaseConfig{
				Enabled:    true,
				Name:       "bindex",
				IncludeURI: true,
			},
			Extended: ExtendedConfig{
				Name:           "eindex",
				IncludeSubject: true,
				IncludeObject:  true,
			},
		},
		Backend: BackendConfig{
			Kind:         BackendBleve,
			Path:         defaultDataPath(),
			Address:      "http://127.0.0.1:7701",
			Timeout:      "30s",
			Burst:        1,
			MaxFailures:  5,
			ResetTimeout: "30s",
			CacheSize:    10000,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:7701",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func defaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amanrdf", "data")
	}
	return filepath.Join(home, ".amanrdf", "data")
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/amanrdf/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/amanrdf/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "amanrdf", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "amanrdf", "config.yaml")
	}
	return filepath.Join(home, ".config", "amanrdf", "config.yaml")
}

// Load builds the effective configuration. Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/amanrdf/config.yaml)
//  3. explicit, or amanrdf.yaml / amanrdf.yml in dir
//  4. Environment variables (AMANRDF_*)
//
// An explicit file that is not YAML (.tsv, .conf, .config) is read with
// LoadLegacy. The result is validated.
func Load(explicit, dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	switch {
	case explicit != "":
		if !fileExists(explicit) {
			return nil, amerrors.New(amerrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicit), nil)
		}
		if IsLegacyPath(explicit) {
			if err := cfg.loadLegacyFile(explicit); err != nil {
				return nil, err
			}
		} else if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	default:
		for _, name := range []string{"amanrdf.yaml", "amanrdf.yml"} {
			if path := filepath.Join(dir, name); fileExists(path) {
				if err := cfg.loadYAML(path); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsLegacyPath reports whether path names a tab-separated legacy config.
func IsLegacyPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".conf", ".config":
		return true
	}
	return false
}

// loadYAML decodes path over c. Keys absent from the file keep their
// current values; unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return amerrors.ConfigError(fmt.Sprintf("read config file %s", path), err)
	}
	if err := c.decodeYAML(bytes.NewReader(data)); err != nil {
		return amerrors.ConfigError(fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) decodeYAML(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides applies AMANRDF_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("AMANRDF_DATA"); v != "" {
		c.Indexing.Data = v
	}
	if v := os.Getenv("AMANRDF_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return amerrors.ConfigError("AMANRDF_WORKERS must be an integer", err)
		}
		c.Indexing.Workers = n
	}
	if v := os.Getenv("AMANRDF_BULK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return amerrors.ConfigError("AMANRDF_BULK_SIZE must be an integer", err)
		}
		c.Indexing.BulkSize = n
	}
	if v := os.Getenv("AMANRDF_BACKEND"); v != "" {
		c.Backend.Kind = v
	}
	if v := os.Getenv("AMANRDF_BACKEND_PATH"); v != "" {
		c.Backend.Path = v
	}
	if v := os.Getenv("AMANRDF_BACKEND_ADDRESS"); v != "" {
		c.Backend.Address = v
	}
	if v := os.Getenv("AMANRDF_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("AMANRDF_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

var (
	validBackends = map[string]bool{BackendBleve: true, BackendSQLite: true, BackendRemote: true, BackendMemory: true}
	validLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks the configuration and builds the field map. It must
// succeed before Fields is used.
func (c *Config) Validate() error {
	ix := &c.Indexing
	if ix.Workers < 1 {
		return amerrors.ConfigError(fmt.Sprintf("indexing.workers must be positive, got %d", ix.Workers), nil)
	}
	if ix.BulkSize < 1 {
		return amerrors.ConfigError(fmt.Sprintf("indexing.bulk_size must be positive, got %d", ix.BulkSize), nil)
	}
	if len(ix.Patterns) == 0 {
		return amerrors.ConfigError("indexing.patterns must not be empty", nil)
	}
	if ix.Base.Enabled {
		if err := validIndexName("indexing.base.name", ix.Base.Name); err != nil {
			return err
		}
	}

	fields, err := NewFieldMap(ix.Extended.Fields)
	if err != nil {
		return err
	}
	if ix.Extended.Enabled {
		if fields.Len() == 0 {
			return amerrors.ConfigError("indexing.extended.fields must list at least one field when extended indexing is enabled", nil)
		}
		if err := validIndexName("indexing.extended.name", ix.Extended.Name); err != nil {
			return err
		}
		reserved := map[string]string{ix.Base.Name: "indexing.base.name", ix.Extended.Name: "indexing.extended.name"}
		for _, f := range fields.Fields() {
			if err := validIndexName("field alias", f.Alias); err != nil {
				return err
			}
			if key, clash := reserved[f.Alias]; clash {
				return amerrors.New(amerrors.ErrCodeDuplicateField,
					fmt.Sprintf("field alias %q collides with %s", f.Alias, key), nil)
			}
		}
	}

	kind := strings.ToLower(c.Backend.Kind)
	if !validBackends[kind] {
		return amerrors.ConfigError(fmt.Sprintf("backend.kind must be 'bleve', 'sqlite', 'remote' or 'memory', got %s", c.Backend.Kind), nil)
	}
	c.Backend.Kind = kind
	if (kind == BackendBleve || kind == BackendSQLite) && c.Backend.Path == "" {
		return amerrors.ConfigError("backend.path is required for local backends", nil)
	}
	if kind == BackendRemote && c.Backend.Address == "" {
		return amerrors.ConfigError("backend.address is required for the remote backend", nil)
	}
	for key, v := range map[string]string{"backend.timeout": c.Backend.Timeout, "backend.reset_timeout": c.Backend.ResetTimeout} {
		if _, err := time.ParseDuration(v); err != nil {
			return amerrors.ConfigError(fmt.Sprintf("%s must be a duration, got %q", key, v), err)
		}
	}
	if c.Backend.RequestsPerSecond < 0 {
		return amerrors.ConfigError("backend.requests_per_second must not be negative", nil)
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return amerrors.ConfigError(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level), nil)
	}

	c.fields = fields
	return nil
}

func validIndexName(key, name string) error {
	if name == "" {
		return amerrors.ConfigError(key+" must not be empty", nil)
	}
	if strings.ContainsAny(name, " \t/\\") || strings.HasPrefix(name, "_") {
		return amerrors.ConfigError(fmt.Sprintf("%s %q is not a valid index name", key, name), nil)
	}
	return nil
}

// Fields returns the validated extension field map. It is empty until
// Validate has succeeded.
func (c *Config) Fields() *FieldMap {
	if c.fields == nil {
		return &FieldMap{}
	}
	return c.fields
}

// Timeout returns the parsed backend request timeout.
func (c *Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.Backend.Timeout)
	return d
}

// ResetTimeout returns the parsed circuit breaker cool-down.
func (c *Config) ResetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Backend.ResetTimeout)
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
