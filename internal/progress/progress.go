// Package progress aggregates per-file completion reports from workers.
//
// Workers call Done from any goroutine; a single aggregator goroutine owns
// the completed list, so no state is shared between workers.
package progress

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/amanrdf/internal/ui"
)

// Counter reports the live document count of an index.
type Counter interface {
	Count(ctx context.Context, index string) (uint64, error)
}

// Summary is the final state of a Tracker.
type Summary struct {
	Total      int
	Completed  []string
	Duplicates int
	// Indexed is the last document count observed.
	Indexed uint64
}

// Tracker counts finished files against a fixed total.
type Tracker struct {
	total    int
	counter  Counter
	index    string
	renderer ui.Renderer
	stage    ui.Stage

	events   chan string
	finished chan struct{}
	start    sync.Once
	started  bool
	closed   bool
	mu       sync.Mutex

	// owned by the aggregator goroutine
	completed  []string
	seen       map[string]bool
	duplicates int
	indexed    uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStage sets the stage reported with each event.
func WithStage(s ui.Stage) Option {
	return func(t *Tracker) { t.stage = s }
}

// New returns a Tracker for total files. After each completion the
// aggregator asks counter for the size of index and reports to renderer.
func New(total int, counter Counter, index string, renderer ui.Renderer, opts ...Option) *Tracker {
	t := &Tracker{
		total:    total,
		counter:  counter,
		index:    index,
		renderer: renderer,
		stage:    ui.StageBaseline,
		events:   make(chan string, 64),
		finished: make(chan struct{}),
		seen:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start launches the aggregator. Count queries use ctx.
func (t *Tracker) Start(ctx context.Context) {
	t.start.Do(func() {
		t.mu.Lock()
		t.started = true
		t.mu.Unlock()
		go t.run(ctx)
	})
}

// Done reports that path has been fully processed. It must not be called
// after Close.
func (t *Tracker) Done(path string) {
	t.events <- path
}

// Close stops accepting reports, waits for the aggregator to drain and
// returns the summary.
func (t *Tracker) Close() Summary {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	started := t.started
	t.mu.Unlock()

	if started {
		<-t.finished
	} else {
		// Never started: drain inline so nothing is lost.
		t.run(context.Background())
	}

	return Summary{
		Total:      t.total,
		Completed:  append([]string(nil), t.completed...),
		Duplicates: t.duplicates,
		Indexed:    t.indexed,
	}
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.finished)
	for path := range t.events {
		t.record(ctx, path)
	}
}

func (t *Tracker) record(ctx context.Context, path string) {
	if t.seen[path] {
		t.duplicates++
		slog.Warn("progress_duplicate_completion", slog.String("path", path))
		return
	}
	t.seen[path] = true
	t.completed = append(t.completed, path)

	if t.counter != nil {
		n, err := t.counter.Count(ctx, t.index)
		if err != nil {
			slog.Debug("progress_count_failed", slog.String("index", t.index), slog.String("error", err.Error()))
		} else {
			t.indexed = n
		}
	}

	if t.renderer != nil {
		t.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       t.stage,
			Current:     len(t.completed),
			Total:       t.total,
			CurrentFile: path,
			Indexed:     t.indexed,
		})
	}
}
