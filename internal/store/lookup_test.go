package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrdf/internal/document"
	"github.com/Aman-CERP/amanrdf/internal/schema"
)

type countingSearcher struct {
	Searcher
	calls int
	err   error
}

func (c *countingSearcher) Lookup(ctx context.Context, index, field, value string, limit int) ([]document.Doc, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.Searcher.Lookup(ctx, index, field, value, limit)
}

func TestCachedLookup_Values(t *testing.T) {
	ctx := context.Background()

	// Given a property index with a repeated value
	mem := NewMemoryStore()
	defer func() { _ = mem.Close() }()
	require.NoError(t, mem.CreateIndex(ctx, schema.Property("title")))
	require.NoError(t, mem.BulkIndex(ctx, "title", []document.Doc{
		document.Property{Alias: "title", Subject: "Barack_Obama", Value: "President"}.Doc(),
		document.Property{Alias: "title", Subject: "Barack_Obama", Value: "President"}.Doc(),
		document.Property{Alias: "title", Subject: "Barack_Obama", Value: "Senator"}.Doc(),
	}))
	searcher := &countingSearcher{Searcher: mem}
	lookup, err := NewCachedLookup(searcher, 0)
	require.NoError(t, err)

	// When the same key is asked twice
	vals, err := lookup.Values(ctx, "title", "Barack_Obama")
	require.NoError(t, err)
	again, err := lookup.Values(ctx, "title", "Barack_Obama")
	require.NoError(t, err)

	// Then values are deduplicated and the store is hit once
	assert.ElementsMatch(t, []string{"President", "Senator"}, vals)
	assert.Equal(t, vals, again)
	assert.Equal(t, 1, searcher.calls)
}

func TestCachedLookup_CachesEmptyAnswers(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	defer func() { _ = mem.Close() }()
	require.NoError(t, mem.CreateIndex(ctx, schema.Property("title")))

	searcher := &countingSearcher{Searcher: mem}
	lookup, err := NewCachedLookup(searcher, 10)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		vals, err := lookup.Values(ctx, "title", "Honolulu")
		require.NoError(t, err)
		assert.Empty(t, vals)
	}
	assert.Equal(t, 1, searcher.calls)
	assert.Equal(t, 1, lookup.Len())
}

func TestCachedLookup_ErrorsAreNotCached(t *testing.T) {
	searcher := &countingSearcher{err: errors.New("backend down")}
	lookup, err := NewCachedLookup(searcher, 10)
	require.NoError(t, err)

	_, err = lookup.Values(context.Background(), "title", "x")
	assert.Error(t, err)
	_, err = lookup.Values(context.Background(), "title", "x")
	assert.Error(t, err)
	assert.Equal(t, 2, searcher.calls)
	assert.Zero(t, lookup.Len())
}
