package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/amanrdf/internal/config"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

const (
	bleveDirName   = "bleve"
	sqliteFileName = "amanrdf.db"
)

// OpenOption adjusts how Open builds a store.
type OpenOption func(*RemoteOptions)

// WithBreakerObserver reports remote circuit breaker transitions to fn.
func WithBreakerObserver(fn func(name string, from, to amerrors.State)) OpenOption {
	return func(o *RemoteOptions) { o.OnStateChange = fn }
}

// Open builds the store selected by cfg.Backend.Kind:
//   - "bleve": one bleve index per name under <path>/bleve
//   - "sqlite": SQLite FTS5 database at <path>/amanrdf.db
//   - "memory": in-memory bleve, gone on exit
//   - "remote": HTTP client of `amanrdf serve` at address
func Open(cfg *config.Config, opts ...OpenOption) (Store, error) {
	b := cfg.Backend
	switch b.Kind {
	case config.BackendBleve, "":
		return NewBleveStore(filepath.Join(b.Path, bleveDirName))
	case config.BackendSQLite:
		return NewSQLiteStore(filepath.Join(b.Path, sqliteFileName))
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendRemote:
		ro := RemoteOptions{
			Timeout:           cfg.Timeout(),
			RequestsPerSecond: b.RequestsPerSecond,
			Burst:             b.Burst,
			MaxFailures:       b.MaxFailures,
			ResetTimeout:      cfg.ResetTimeout(),
		}
		for _, opt := range opts {
			opt(&ro)
		}
		return NewRemoteStore(b.Address, ro)
	default:
		return nil, amerrors.ConfigError(fmt.Sprintf("unknown backend: %s (valid options: bleve, sqlite, memory, remote)", b.Kind), nil)
	}
}

// DataPath returns where a local backend keeps its files, or "" for
// backends without local storage.
func DataPath(cfg *config.Config) string {
	switch cfg.Backend.Kind {
	case config.BackendBleve, "":
		return filepath.Join(cfg.Backend.Path, bleveDirName)
	case config.BackendSQLite:
		return filepath.Join(cfg.Backend.Path, sqliteFileName)
	default:
		return ""
	}
}

// StorageSize sums the size of the files under path.
func StorageSize(path string) int64 {
	if path == "" {
		return 0
	}
	var total int64
	_ = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
