// Package batch accumulates documents per target index and hands them to a
// Dispatcher in bulk.
package batch

import (
	"context"
	"errors"

	"github.com/Aman-CERP/amanrdf/internal/document"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
)

// Dispatcher performs one synchronous bulk write. Implementations decide
// the wire protocol; an error means the whole batch may be lost.
type Dispatcher interface {
	BulkIndex(ctx context.Context, index string, docs []document.Doc) error
}

// FlushFunc observes every dispatch attempt.
type FlushFunc func(index string, size int, err error)

// Buffer holds pending documents per index for a single worker. It is not
// safe for concurrent use.
type Buffer struct {
	dispatcher Dispatcher
	threshold  int
	onFlush    FlushFunc

	order   []string
	pending map[string][]document.Doc
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithFlushHook registers fn to run after each dispatch attempt.
func WithFlushHook(fn FlushFunc) Option {
	return func(b *Buffer) { b.onFlush = fn }
}

// NewBuffer returns a Buffer that flushes an index once it holds more than
// threshold documents.
func NewBuffer(d Dispatcher, threshold int, opts ...Option) *Buffer {
	if threshold < 1 {
		threshold = 1
	}
	b := &Buffer{
		dispatcher: d,
		threshold:  threshold,
		pending:    make(map[string][]document.Doc),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Append queues doc for index and flushes that index when its length
// exceeds the threshold. A failed flush still clears the batch and
// returns an ERR_505_DISPATCH_FAILED error; the caller decides whether to
// go on.
func (b *Buffer) Append(ctx context.Context, index string, doc document.Doc) error {
	docs, seen := b.pending[index]
	if !seen {
		b.order = append(b.order, index)
	}
	docs = append(docs, doc)
	b.pending[index] = docs

	if len(docs) > b.threshold {
		return b.flush(ctx, index)
	}
	return nil
}

// Len returns the number of documents pending for index.
func (b *Buffer) Len(index string) int {
	return len(b.pending[index])
}

// FlushAll dispatches every non-empty batch in first-seen index order.
// Every batch is attempted; failures are joined.
func (b *Buffer) FlushAll(ctx context.Context) error {
	var errs []error
	for _, index := range b.order {
		if len(b.pending[index]) == 0 {
			continue
		}
		if err := b.flush(ctx, index); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Buffer) flush(ctx context.Context, index string) error {
	docs := b.pending[index]
	// The slice is handed to the dispatcher; start a fresh one.
	b.pending[index] = nil

	err := b.dispatcher.BulkIndex(ctx, index, docs)
	if b.onFlush != nil {
		b.onFlush(index, len(docs), err)
	}
	if err != nil {
		return amerrors.DispatchError(index, len(docs), err)
	}
	return nil
}
