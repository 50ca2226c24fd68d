package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/amanrdf/internal/document"
)

// DefaultLookupCacheSize is used when NewCachedLookup gets a non-positive size.
const DefaultLookupCacheSize = 10000

type lookupKey struct {
	alias   string
	keyword string
}

// CachedLookup resolves property values through a Searcher and remembers
// the answers. Empty answers are cached too since most subjects have no
// value for a given property.
type CachedLookup struct {
	searcher Searcher
	cache    *lru.Cache[lookupKey, []string]
	limit    int
}

var _ document.Lookup = (*CachedLookup)(nil)

// NewCachedLookup returns a lookup over searcher holding up to size answers.
func NewCachedLookup(searcher Searcher, size int) (*CachedLookup, error) {
	if size <= 0 {
		size = DefaultLookupCacheSize
	}
	cache, err := lru.New[lookupKey, []string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup cache: %w", err)
	}
	return &CachedLookup{searcher: searcher, cache: cache, limit: DefaultLookupLimit}, nil
}

// Values returns the values of field alias in property index alias for
// documents whose resource_terms equals keyword. Order follows the index;
// duplicates are dropped.
func (c *CachedLookup) Values(ctx context.Context, alias, keyword string) ([]string, error) {
	key := lookupKey{alias: alias, keyword: keyword}
	if vals, ok := c.cache.Get(key); ok {
		return vals, nil
	}

	docs, err := c.searcher.Lookup(ctx, alias, document.FieldResourceTerms, keyword, c.limit)
	if err != nil {
		return nil, err
	}

	var vals []string
	seen := make(map[string]bool)
	for _, doc := range docs {
		for _, v := range docValues(doc[alias]) {
			if !seen[v] {
				seen[v] = true
				vals = append(vals, v)
			}
		}
	}
	c.cache.Add(key, vals)
	return vals, nil
}

// Len returns the number of cached answers.
func (c *CachedLookup) Len() int {
	return c.cache.Len()
}
