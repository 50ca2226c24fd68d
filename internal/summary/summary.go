// Package summary writes the JSON description of an indexing run that
// downstream search tools read to learn which indices and fields exist.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Aman-CERP/amanrdf/internal/config"
	"github.com/Aman-CERP/amanrdf/internal/document"
)

// Counter is the part of a backend the summary needs.
type Counter interface {
	Count(ctx context.Context, index string) (uint64, error)
	Exists(ctx context.Context, index string) (bool, error)
}

// Field describes one configured alias.
type Field struct {
	Alias     string `json:"alias"`
	Predicate string `json:"predicate"`
	// Index is the property index holding the alias values.
	Index string `json:"index"`
	// Extended lists the fields the alias adds to the extended index.
	Extended  []string `json:"extended_fields,omitempty"`
	Documents uint64   `json:"documents"`
}

// Summary is the file written by `amanrdf index --summary`.
type Summary struct {
	BaseIndex     string            `json:"base_index,omitempty"`
	ExtendedIndex string            `json:"extended_index,omitempty"`
	Fields        []Field           `json:"fields"`
	Documents     map[string]uint64 `json:"documents"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// Build counts the documents of every index cfg names. Indices that do
// not exist are left out of Documents.
func Build(ctx context.Context, cfg *config.Config, c Counter) (*Summary, error) {
	ix := cfg.Indexing
	s := &Summary{
		Fields:      []Field{},
		Documents:   make(map[string]uint64),
		GeneratedAt: time.Now().UTC(),
	}
	if ix.Base.Enabled {
		s.BaseIndex = ix.Base.Name
	}
	if ix.Extended.Enabled {
		s.ExtendedIndex = ix.Extended.Name
	}

	count := func(index string) (uint64, error) {
		ok, err := c.Exists(ctx, index)
		if err != nil || !ok {
			return 0, err
		}
		n, err := c.Count(ctx, index)
		if err != nil {
			return 0, fmt.Errorf("counting %s: %w", index, err)
		}
		s.Documents[index] = n
		return n, nil
	}

	for _, index := range []string{s.BaseIndex, s.ExtendedIndex} {
		if index == "" {
			continue
		}
		if _, err := count(index); err != nil {
			return nil, err
		}
	}

	if !ix.Extended.Enabled {
		return s, nil
	}
	for _, f := range cfg.Fields().Fields() {
		n, err := count(f.Alias)
		if err != nil {
			return nil, err
		}
		field := Field{Alias: f.Alias, Predicate: f.Predicate, Index: f.Alias, Documents: n}
		if ix.Extended.IncludeSubject {
			field.Extended = append(field.Extended, document.SubjectField(f.Alias))
		}
		if ix.Extended.IncludeObject {
			field.Extended = append(field.Extended, document.ObjectField(f.Alias))
		}
		s.Fields = append(s.Fields, field)
	}
	sort.Slice(s.Fields, func(i, j int) bool { return s.Fields[i].Alias < s.Fields[j].Alias })
	return s, nil
}

// Write stores s at path through a temporary file, so readers never see
// a partial summary.
func Write(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close summary: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Read loads a summary written by Write.
func Read(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse summary %s: %w", path, err)
	}
	return &s, nil
}
