// Package store holds the index backends documents are written to: an
// embedded bleve store, a SQLite FTS5 store and an HTTP client for a
// remote `amanrdf serve` instance.
package store

import (
	"context"
	"errors"

	"github.com/Aman-CERP/amanrdf/internal/batch"
	"github.com/Aman-CERP/amanrdf/internal/document"
	"github.com/Aman-CERP/amanrdf/internal/schema"
)

// DefaultLookupLimit caps the documents returned by one Lookup when the
// caller passes a non-positive limit.
const DefaultLookupLimit = 100

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("store is closed")

// Backend receives bulk writes and answers index bookkeeping questions.
type Backend interface {
	batch.Dispatcher

	// Count returns the number of documents in index.
	Count(ctx context.Context, index string) (uint64, error)
	// Exists reports whether index has been created.
	Exists(ctx context.Context, index string) (bool, error)
	// CreateIndex creates the index described by s. Creating an index
	// that already exists is a no-op.
	CreateIndex(ctx context.Context, s schema.Schema) error
	Close() error
}

// Searcher reads documents back.
type Searcher interface {
	// Lookup returns documents whose keyword field equals value exactly.
	Lookup(ctx context.Context, index, field, value string, limit int) ([]document.Doc, error)
	// Search runs a keyword query over the searchable fields of index.
	Search(ctx context.Context, index, query string, limit int) ([]Hit, error)
}

// Store is a Backend that can also be searched and administered.
type Store interface {
	Backend
	Searcher

	// DeleteIndex drops index and its documents. Missing indices are ignored.
	DeleteIndex(ctx context.Context, index string) error
	// Indices lists the existing indices with their schemas.
	Indices(ctx context.Context) ([]schema.Schema, error)
	// Health reports whether the store can serve requests.
	Health(ctx context.Context) error
	// Location is the directory, file or address the store lives at.
	Location() string
}

// Hit is one search result.
type Hit struct {
	ID       string       `json:"id"`
	Score    float64      `json:"score"`
	Document document.Doc `json:"document"`
}

// BulkRequest is the body of POST /indices/:index/_bulk.
type BulkRequest struct {
	Documents []document.Doc `json:"documents"`
}

// BulkResponse acknowledges a bulk write.
type BulkResponse struct {
	Indexed int `json:"indexed"`
}

// CountResponse is the body of GET /indices/:index/_count.
type CountResponse struct {
	Count uint64 `json:"count"`
}

// LookupResponse is the body of GET /indices/:index/_lookup.
type LookupResponse struct {
	Documents []document.Doc `json:"documents"`
}

// SearchResponse is the body of GET /indices/:index/_search.
type SearchResponse struct {
	Hits []Hit `json:"hits"`
}

// IndicesResponse is the body of GET /indices.
type IndicesResponse struct {
	Indices []schema.Schema `json:"indices"`
}

// ErrorResponse carries a failed request's error code and message.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func lookupLimit(limit int) int {
	if limit <= 0 {
		return DefaultLookupLimit
	}
	return limit
}
