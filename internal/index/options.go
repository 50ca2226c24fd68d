package index

import (
	"github.com/Aman-CERP/amanrdf/internal/config"
	"github.com/Aman-CERP/amanrdf/internal/document"
)

// Options is everything a run needs from the configuration. It is copied
// into the Runner and never changed afterwards.
type Options struct {
	// Workers is the number of work units processed at once.
	Workers int
	// BulkSize is the per-index flush threshold.
	BulkSize int

	// BaseIndex receives one document per triple when BaseEnabled is set.
	BaseIndex   string
	BaseEnabled bool

	// Properties enables property documents during the baseline pass.
	Properties bool
	Fields     *config.FieldMap

	// ExtendedIndex receives the documents of the extended pass.
	ExtendedIndex string
	Extended      document.ExtendedOptions
	// CacheSize bounds the property lookup cache of the extended pass.
	CacheSize int
}

// OptionsFromConfig derives Options from a validated configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	ix := cfg.Indexing
	return Options{
		Workers:       ix.Workers,
		BulkSize:      ix.BulkSize,
		BaseIndex:     ix.Base.Name,
		BaseEnabled:   ix.Base.Enabled,
		Properties:    ix.Extended.Enabled,
		Fields:        cfg.Fields(),
		ExtendedIndex: ix.Extended.Name,
		Extended: document.ExtendedOptions{
			IncludeSubject: ix.Extended.IncludeSubject,
			IncludeObject:  ix.Extended.IncludeObject,
		},
		CacheSize: cfg.Backend.CacheSize,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.BulkSize < 1 {
		o.BulkSize = config.DefaultBulkSize
	}
	if o.Fields == nil {
		o.Fields = &config.FieldMap{}
	}
	return o
}
