package summary

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrdf/internal/config"
)

type fakeCounter map[string]uint64

func (f fakeCounter) Count(ctx context.Context, index string) (uint64, error) {
	return f[index], nil
}

func (f fakeCounter) Exists(ctx context.Context, index string) (bool, error) {
	_, ok := f[index]
	return ok, nil
}

func extendedConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Indexing.Extended.Enabled = true
	cfg.Indexing.Extended.IncludeObject = false
	cfg.Indexing.Extended.Fields = []config.Field{
		{Alias: "title", Predicate: "http://purl.org/dc/terms/title"},
		{Alias: "label", Predicate: "http://www.w3.org/2000/01/rdf-schema#label"},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuild_Extended(t *testing.T) {
	// Given an extended configuration whose label index was never created
	cfg := extendedConfig(t)
	counts := fakeCounter{"bindex": 15, "eindex": 15, "title": 2}

	// When the summary is built
	s, err := Build(context.Background(), cfg, counts)

	// Then fields are sorted and missing indices have no count
	require.NoError(t, err)
	assert.Equal(t, "bindex", s.BaseIndex)
	assert.Equal(t, "eindex", s.ExtendedIndex)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, "label", s.Fields[0].Alias)
	assert.Zero(t, s.Fields[0].Documents)
	assert.Equal(t, Field{
		Alias:     "title",
		Predicate: "http://purl.org/dc/terms/title",
		Index:     "title",
		Extended:  []string{"title_sub"},
		Documents: 2,
	}, s.Fields[1])
	assert.Equal(t, map[string]uint64{"bindex": 15, "eindex": 15, "title": 2}, s.Documents)
}

func TestBuild_BaseOnly(t *testing.T) {
	cfg := config.NewConfig()
	require.NoError(t, cfg.Validate())

	s, err := Build(context.Background(), cfg, fakeCounter{"bindex": 3})

	require.NoError(t, err)
	assert.Empty(t, s.ExtendedIndex)
	assert.Empty(t, s.Fields)
	assert.Equal(t, uint64(3), s.Documents["bindex"])
}

func TestWriteRead(t *testing.T) {
	cfg := extendedConfig(t)
	s, err := Build(context.Background(), cfg, fakeCounter{"bindex": 1})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "summary.json")
	require.NoError(t, Write(path, s))

	// The file uses the documented keys
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, key := range []string{"base_index", "extended_index", "fields", "documents"} {
		assert.Contains(t, m, key)
	}

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, s.Fields, got.Fields)
	assert.True(t, s.GeneratedAt.Equal(got.GeneratedAt))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file should be gone")
}
