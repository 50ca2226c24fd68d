// Package index runs the baseline and extended indexing passes over a set
// of work units with a fixed pool of workers.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanrdf/internal/batch"
	"github.com/Aman-CERP/amanrdf/internal/document"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/metrics"
	"github.com/Aman-CERP/amanrdf/internal/partition"
	"github.com/Aman-CERP/amanrdf/internal/progress"
	"github.com/Aman-CERP/amanrdf/internal/source"
	"github.com/Aman-CERP/amanrdf/internal/store"
	"github.com/Aman-CERP/amanrdf/internal/triple"
	"github.com/Aman-CERP/amanrdf/internal/ui"
)

// Dependencies are the collaborators injected into a Runner.
type Dependencies struct {
	// Backend receives bulk writes and answers count queries (required).
	Backend store.Backend
	// Searcher serves property lookups; required for RunExtended.
	Searcher store.Searcher
	// Renderer shows progress; may be nil.
	Renderer ui.Renderer
	// Metrics records pipeline counters; may be nil.
	Metrics *metrics.Metrics
}

// Runner executes indexing passes. Options are fixed at construction.
type Runner struct {
	opts     Options
	backend  store.Backend
	searcher store.Searcher
	renderer ui.Renderer
	metrics  *metrics.Metrics
}

// NewRunner returns a Runner for opts.
func NewRunner(opts Options, deps Dependencies) (*Runner, error) {
	if deps.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	return &Runner{
		opts:     opts.withDefaults(),
		backend:  deps.Backend,
		searcher: deps.Searcher,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
	}, nil
}

// Options returns the options the Runner was built with.
func (r *Runner) Options() Options {
	return r.opts
}

// Result is the outcome of one pass.
type Result struct {
	Files   int
	Lines   int
	Triples int
	Skipped int
	// Documents counts documents accepted by the backend, per index.
	Documents        map[string]int
	DispatchFailures int
	// FileErrors counts files that could not be read to the end.
	FileErrors int
	Duration   time.Duration
	Progress   progress.Summary
}

// TotalDocuments sums Documents.
func (res *Result) TotalDocuments() int {
	n := 0
	for _, c := range res.Documents {
		n += c
	}
	return n
}

// Merge adds other's counts to res.
func (res *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	res.Files += other.Files
	res.Lines += other.Lines
	res.Triples += other.Triples
	res.Skipped += other.Skipped
	res.DispatchFailures += other.DispatchFailures
	res.FileErrors += other.FileErrors
	res.Duration += other.Duration
	if res.Documents == nil {
		res.Documents = make(map[string]int)
	}
	for k, v := range other.Documents {
		res.Documents[k] += v
	}
}

// CompletionStats converts res for the renderer.
func (res *Result) CompletionStats() ui.CompletionStats {
	return ui.CompletionStats{
		Files:            res.Files,
		Triples:          res.Triples,
		Skipped:          res.Skipped,
		Documents:        res.Documents,
		DispatchFailures: res.DispatchFailures,
		Duration:         res.Duration,
		Errors:           res.FileErrors,
		Warnings:         res.DispatchFailures,
	}
}

// tally is one worker's private counts, merged after the pool drains.
type tally struct {
	files      int
	stats      triple.Stats
	documents  map[string]int
	failures   int
	fileErrors int
}

// handleFunc turns one parsed triple into buffered documents.
type handleFunc func(ctx context.Context, w *worker, t triple.Triple) error

// RunBaseline writes one base document per triple, plus a property
// document for every triple whose predicate is a configured field.
func (r *Runner) RunBaseline(ctx context.Context, units []partition.WorkUnit) (*Result, error) {
	builder := document.NewBuilder(r.opts.Fields, r.opts.Properties)
	handle := func(ctx context.Context, w *worker, t triple.Triple) error {
		base, prop := builder.Build(t)
		if r.opts.BaseEnabled {
			w.append(ctx, r.opts.BaseIndex, base.Doc())
		}
		if prop != nil {
			w.append(ctx, prop.Alias, prop.Doc())
		}
		return nil
	}

	tracked := r.opts.BaseIndex
	if !r.opts.BaseEnabled {
		if aliases := r.opts.Fields.Aliases(); len(aliases) > 0 {
			tracked = aliases[0]
		}
	}
	return r.run(ctx, ui.StageBaseline, tracked, units, handle)
}

// RunExtended writes one extended document per triple, combining base
// fields with values looked up in the property indices. Every property
// index must exist; otherwise nothing is read and a fatal
// ERR_207_INDEX_MISSING is returned.
func (r *Runner) RunExtended(ctx context.Context, units []partition.WorkUnit) (*Result, error) {
	if r.searcher == nil {
		return nil, amerrors.InternalError("extended indexing needs a searcher", nil)
	}
	aliases := r.opts.Fields.Aliases()
	if len(aliases) == 0 {
		return nil, amerrors.ConfigError("extended indexing needs at least one field", nil)
	}
	if err := r.CheckPropertyIndices(ctx); err != nil {
		return nil, err
	}

	lookup, err := store.NewCachedLookup(r.searcher, r.opts.CacheSize)
	if err != nil {
		return nil, amerrors.InternalError("cannot create lookup cache", err)
	}
	builder := document.NewExtendedBuilder(r.opts.Fields, r.opts.Extended, lookup)
	handle := func(ctx context.Context, w *worker, t triple.Triple) error {
		doc, err := builder.Build(ctx, t)
		if err != nil {
			return fmt.Errorf("property lookup failed: %w", err)
		}
		w.append(ctx, r.opts.ExtendedIndex, doc)
		return nil
	}
	return r.run(ctx, ui.StageExtended, r.opts.ExtendedIndex, units, handle)
}

// CheckPropertyIndices verifies that the index of every configured alias
// exists.
func (r *Runner) CheckPropertyIndices(ctx context.Context) error {
	for _, alias := range r.opts.Fields.Aliases() {
		ok, err := r.backend.Exists(ctx, alias)
		if err != nil {
			return amerrors.Wrap(amerrors.ErrCodeBackendUnavailable, fmt.Errorf("checking index %q: %w", alias, err))
		}
		if !ok {
			slog.Error("property_index_missing", slog.String("index", alias))
			return amerrors.IndexMissingError(alias)
		}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, stage ui.Stage, tracked string, units []partition.WorkUnit, handle handleFunc) (*Result, error) {
	start := time.Now()

	total, err := partition.CountFiles(units)
	if err != nil {
		return nil, amerrors.IOError("cannot list input files", err)
	}
	workers := r.opts.Workers
	if workers > len(units) && len(units) > 0 {
		workers = len(units)
	}

	slog.Info("index_pass_started",
		slog.String("stage", stage.String()),
		slog.Int("units", len(units)),
		slog.Int("files", total),
		slog.Int("workers", workers),
		slog.Int("bulk_size", r.opts.BulkSize))
	if r.renderer != nil {
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   stage,
			Total:   total,
			Message: fmt.Sprintf("%d files in %d work units, %d workers", total, len(units), workers),
		})
	}

	tracker := progress.New(total, r.backend, tracked, r.renderer, progress.WithStage(stage))
	tracker.Start(ctx)

	tallies := make([]tally, workers)
	queue := make(chan partition.WorkUnit, workers)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for _, u := range units {
			select {
			case queue <- u:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			w := r.newWorker(tracker, handle)
			defer func() { tallies[i] = w.tally }()
			for u := range queue {
				if err := w.processUnit(gctx, u); err != nil {
					return err
				}
			}
			return nil
		})
	}

	runErr := g.Wait()
	summary := tracker.Close()

	res := &Result{Documents: make(map[string]int), Progress: summary}
	for _, t := range tallies {
		res.Files += t.files
		res.Lines += t.stats.Lines
		res.Triples += t.stats.Parsed
		res.Skipped += t.stats.Skipped()
		res.DispatchFailures += t.failures
		res.FileErrors += t.fileErrors
		for k, v := range t.documents {
			res.Documents[k] += v
		}
	}
	res.Duration = time.Since(start)

	if runErr != nil {
		slog.Warn("index_interrupted",
			slog.String("stage", stage.String()),
			slog.Int("files_done", res.Files),
			slog.String("error", runErr.Error()))
		return res, runErr
	}

	slog.Info("index_pass_complete",
		slog.String("stage", stage.String()),
		slog.Int("files", res.Files),
		slog.Int("lines", res.Lines),
		slog.Int("triples", res.Triples),
		slog.Int("skipped", res.Skipped),
		slog.Int("documents", res.TotalDocuments()),
		slog.Int("dispatch_failures", res.DispatchFailures),
		slog.Int("file_errors", res.FileErrors),
		slog.Int64("duration_ms", res.Duration.Milliseconds()))
	return res, nil
}

// worker owns a buffer and counts; nothing in it is shared.
type worker struct {
	r       *Runner
	tracker *progress.Tracker
	handle  handleFunc
	buffer  *batch.Buffer
	tally   tally
}

func (r *Runner) newWorker(tracker *progress.Tracker, handle handleFunc) *worker {
	w := &worker{
		r:       r,
		tracker: tracker,
		handle:  handle,
		tally:   tally{documents: make(map[string]int)},
	}
	w.buffer = batch.NewBuffer(r.backend, r.opts.BulkSize, batch.WithFlushHook(w.observeFlush))
	return w
}

func (w *worker) observeFlush(index string, size int, err error) {
	if err != nil {
		w.tally.failures++
	} else {
		w.tally.documents[index] += size
	}
	if w.r.metrics != nil {
		w.r.metrics.ObserveFlush(index, size, err)
	}
}

// append buffers doc. A failed flush loses that batch; it is reported and
// the worker moves on.
func (w *worker) append(ctx context.Context, index string, doc document.Doc) {
	if err := w.buffer.Append(ctx, index, doc); err != nil {
		w.reportDispatch(err)
	}
}

func (w *worker) reportDispatch(err error) {
	slog.Warn("bulk_dispatch_failed", amerrors.LogAttrs(err)...)
	if w.r.renderer != nil {
		w.r.renderer.AddError(ui.ErrorEvent{Err: err, IsWarn: true})
	}
}

// processUnit reads every file of u in order, then flushes what is left.
// Only cancellation stops it early.
func (w *worker) processUnit(ctx context.Context, u partition.WorkUnit) error {
	if w.r.metrics != nil {
		w.r.metrics.ActiveWorkers.Inc()
		defer w.r.metrics.ActiveWorkers.Dec()
	}

	files, err := u.Files()
	if err != nil {
		w.tally.fileErrors++
		slog.Warn("work_unit_unreadable", slog.String("path", u.Path), slog.String("error", err.Error()))
		return nil
	}

	var runErr error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := w.processFile(ctx, path); err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			w.tally.fileErrors++
			slog.Warn("index_file_failed", slog.String("path", path), slog.String("error", err.Error()))
			if w.r.renderer != nil {
				w.r.renderer.AddError(ui.ErrorEvent{File: path, Err: err})
			}
			continue
		}
		w.tally.files++
		w.tracker.Done(path)
		if w.r.metrics != nil {
			w.r.metrics.FilesProcessed.Inc()
		}
	}

	// Pending documents are written even after cancellation.
	if err := w.buffer.FlushAll(context.WithoutCancel(ctx)); err != nil {
		w.reportDispatch(err)
	}
	return runErr
}

func (w *worker) processFile(ctx context.Context, path string) error {
	rc, err := source.Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	sc := triple.NewScanner(rc)
	sc.OnSkip = func(line int, text string, err error) {
		switch {
		case errors.Is(err, triple.ErrUnclassifiableObject):
			slog.Debug("triple_object_unclassifiable",
				slog.String("path", path),
				slog.Int("line", line))
		case errors.Is(err, triple.ErrLineTooLong):
			slog.Warn("triple_line_too_long",
				slog.String("path", path),
				slog.Int("line", line),
				slog.Int("max_bytes", triple.MaxLineSize))
		}
	}
	defer func() {
		st := sc.Stats()
		w.tally.stats.Add(st)
		if w.r.metrics != nil {
			w.r.metrics.TriplesParsed.Add(float64(st.Parsed))
			w.r.metrics.LinesSkipped.WithLabelValues("no_marker").Add(float64(st.NoMarker))
			w.r.metrics.LinesSkipped.WithLabelValues("malformed").Add(float64(st.Malformed))
			w.r.metrics.LinesSkipped.WithLabelValues("unclassifiable").Add(float64(st.Unclassified))
			w.r.metrics.LinesSkipped.WithLabelValues("too_long").Add(float64(st.TooLong))
		}
	}()

	for sc.Scan() {
		if err := w.handle(ctx, w, sc.Triple()); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}
