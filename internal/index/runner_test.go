package index

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrdf/internal/config"
	"github.com/Aman-CERP/amanrdf/internal/document"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/metrics"
	"github.com/Aman-CERP/amanrdf/internal/partition"
	"github.com/Aman-CERP/amanrdf/internal/schema"
	"github.com/Aman-CERP/amanrdf/internal/store"
	"github.com/Aman-CERP/amanrdf/internal/triple"
	"github.com/Aman-CERP/amanrdf/internal/ui"
)

const titlePredicate = "http://purl.org/dc/terms/title"

// MockRenderer implements ui.Renderer for testing.
type MockRenderer struct {
	mu             sync.Mutex
	ProgressEvents []ui.ProgressEvent
	ErrorEvents    []ui.ErrorEvent
}

func (m *MockRenderer) Start(ctx context.Context) error { return nil }

func (m *MockRenderer) UpdateProgress(event ui.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProgressEvents = append(m.ProgressEvents, event)
}

func (m *MockRenderer) AddError(event ui.ErrorEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorEvents = append(m.ErrorEvents, event)
}

func (m *MockRenderer) Complete(stats ui.CompletionStats) {}

func (m *MockRenderer) Stop() error { return nil }

func (m *MockRenderer) errors() []ui.ErrorEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ui.ErrorEvent(nil), m.ErrorEvents...)
}

// recordingBackend keeps the size of every bulk write.
type recordingBackend struct {
	mu      sync.Mutex
	flushes map[string][]int
	docs    map[string][]document.Doc
	exists  map[string]bool
	failFor string
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		flushes: make(map[string][]int),
		docs:    make(map[string][]document.Doc),
		exists:  make(map[string]bool),
	}
}

func (b *recordingBackend) BulkIndex(ctx context.Context, index string, docs []document.Doc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushes[index] = append(b.flushes[index], len(docs))
	if index == b.failFor {
		return errors.New("backend rejected batch")
	}
	b.docs[index] = append(b.docs[index], docs...)
	return nil
}

func (b *recordingBackend) Count(ctx context.Context, index string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.docs[index])), nil
}

func (b *recordingBackend) Exists(ctx context.Context, index string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exists[index], nil
}

func (b *recordingBackend) CreateIndex(ctx context.Context, s schema.Schema) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exists[s.Index] = true
	return nil
}

func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) sizes(index string) []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.flushes[index]...)
}

func titleFields(t *testing.T) *config.FieldMap {
	t.Helper()
	m, err := config.NewFieldMap([]config.Field{{Alias: "title", Predicate: titlePredicate}})
	require.NoError(t, err)
	return m
}

// writeFile creates path with lines joined by newlines.
func writeFile(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

// genericLines returns n triples with distinct subjects and no field
// predicate.
func genericLines(prefix string, n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf(`<http://ex.org/res/%s%d> <http://ex.org/ont#rel> <http://ex.org/res/target%d> .`, prefix, i, i)
	}
	return lines
}

func units(t *testing.T, root string) []partition.WorkUnit {
	t.Helper()
	u, err := partition.Partition(root, config.DefaultPatterns())
	require.NoError(t, err)
	return u
}

// values flattens a stored field that may come back as a single value.
func values(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	}
	return nil
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestNewRunner_RequiresBackend(t *testing.T) {
	_, err := NewRunner(Options{}, Dependencies{})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Indexing.Workers = 4
	cfg.Indexing.Extended.Enabled = true
	cfg.Indexing.Extended.IncludeObject = true

	opts := OptionsFromConfig(cfg)

	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, cfg.Indexing.Base.Name, opts.BaseIndex)
	assert.True(t, opts.Properties)
	assert.True(t, opts.Extended.IncludeObject)
	assert.Equal(t, cfg.Backend.CacheSize, opts.CacheSize)
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, 1, opts.Workers)
	assert.Equal(t, config.DefaultBulkSize, opts.BulkSize)
	assert.NotNil(t, opts.Fields)
}

func TestRunBaseline_FlushesAboveThreshold(t *testing.T) {
	// Given: one work unit holding files of 10 and 5 triples
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "part1", "unit", "a.nt"), genericLines("a", 10))
	writeFile(t, filepath.Join(root, "part1", "unit", "b.nt"), genericLines("b", 5))

	backend := newRecordingBackend()
	r, err := NewRunner(Options{
		Workers:     1,
		BulkSize:    3,
		BaseIndex:   "bindex",
		BaseEnabled: true,
	}, Dependencies{Backend: backend})
	require.NoError(t, err)

	// When: the baseline pass runs
	res, err := r.RunBaseline(context.Background(), units(t, root))

	// Then: batches go out at threshold+1 and the remainder at the end
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 4, 3}, backend.sizes("bindex"))
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 15, res.Triples)
	assert.Equal(t, 15, res.Documents["bindex"])
	assert.Equal(t, 15, res.TotalDocuments())
	assert.Zero(t, res.DispatchFailures)
	assert.Len(t, res.Progress.Completed, 2)
}

func TestRunBaseline_SkippedLinesAreCounted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p", "u.ttl"), []string{
		"# comment",
		"",
		`<http://ex.org/a> <http://ex.org/p#rel> "hello" .`,
		`<http://ex.org/a> <http://ex.org/p#rel>`,
		`<http://ex.org/a> <http://ex.org/p#rel> plainvalue .`,
	})
	backend := newRecordingBackend()
	r, err := NewRunner(Options{BaseIndex: "bindex", BaseEnabled: true}, Dependencies{Backend: backend})
	require.NoError(t, err)

	res, err := r.RunBaseline(context.Background(), units(t, root))

	require.NoError(t, err)
	assert.Equal(t, 5, res.Lines)
	assert.Equal(t, 1, res.Triples)
	assert.Equal(t, 4, res.Skipped)
	assert.Equal(t, 1, res.Documents["bindex"])
}

func TestRunBaseline_PropertyDocuments(t *testing.T) {
	// Given: two title triples among generic ones
	root := t.TempDir()
	lines := append(genericLines("g", 3),
		`<http://ex.org/res/book1> <http://purl.org/dc/terms/title> "Zorba" .`,
		`<http://ex.org/res/book2> <http://purl.org/dc/terms/title> "Ulysses" .`,
	)
	writeFile(t, filepath.Join(root, "p", "u", "data.nt"), lines)

	tests := []struct {
		name       string
		properties bool
		wantTitle  int
	}{
		{"properties enabled", true, 2},
		{"properties disabled", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newRecordingBackend()
			r, err := NewRunner(Options{
				BulkSize:    100,
				BaseIndex:   "bindex",
				BaseEnabled: true,
				Properties:  tt.properties,
				Fields:      titleFields(t),
			}, Dependencies{Backend: backend})
			require.NoError(t, err)

			res, err := r.RunBaseline(context.Background(), units(t, root))

			require.NoError(t, err)
			assert.Equal(t, 5, res.Documents["bindex"])
			assert.Equal(t, tt.wantTitle, res.Documents["title"])
		})
	}
}

func TestRunBaseline_DispatchFailureContinues(t *testing.T) {
	// Given: a backend that rejects every property batch
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p", "u", "data.nt"), []string{
		`<http://ex.org/res/book1> <http://purl.org/dc/terms/title> "Zorba" .`,
		`<http://ex.org/res/book2> <http://purl.org/dc/terms/title> "Ulysses" .`,
		`<http://ex.org/res/book3> <http://purl.org/dc/terms/title> "Dune" .`,
	})
	backend := newRecordingBackend()
	backend.failFor = "title"
	renderer := &MockRenderer{}
	m := metrics.New()

	r, err := NewRunner(Options{
		BulkSize:    1,
		BaseIndex:   "bindex",
		BaseEnabled: true,
		Properties:  true,
		Fields:      titleFields(t),
	}, Dependencies{Backend: backend, Renderer: renderer, Metrics: m})
	require.NoError(t, err)

	// When: the pass runs
	res, err := r.RunBaseline(context.Background(), units(t, root))

	// Then: the base index is complete and failures are warnings
	require.NoError(t, err)
	assert.Equal(t, 3, res.Documents["bindex"])
	assert.Zero(t, res.Documents["title"])
	assert.Equal(t, 2, res.DispatchFailures)
	assert.Equal(t, 1, res.Files)

	events := renderer.errors()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.True(t, e.IsWarn)
		assert.Equal(t, amerrors.ErrCodeDispatchFailed, amerrors.GetCode(e.Err))
	}
	assert.Contains(t, scrape(t, m), `amanrdf_dispatch_failures_total{index="title"} 2`)
}

func TestRunBaseline_UnreadableFileIsReported(t *testing.T) {
	// Given: a corrupt gzip file next to a good one
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p", "u", "a.nt.gz"), []string{"not gzip"})
	writeFile(t, filepath.Join(root, "p", "u", "b.nt"), genericLines("b", 2))
	backend := newRecordingBackend()
	renderer := &MockRenderer{}

	r, err := NewRunner(Options{BaseIndex: "bindex", BaseEnabled: true},
		Dependencies{Backend: backend, Renderer: renderer})
	require.NoError(t, err)

	res, err := r.RunBaseline(context.Background(), units(t, root))

	require.NoError(t, err)
	assert.Equal(t, 1, res.FileErrors)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 2, res.Documents["bindex"])
	require.Len(t, renderer.errors(), 1)
	assert.False(t, renderer.errors()[0].IsWarn)
	assert.Contains(t, res.Progress.Completed, filepath.Join(root, "p", "u", "b.nt"))
}

func TestRunBaseline_OversizedLineIsSkipped(t *testing.T) {
	// Given: a file with a 2 MiB literal between good lines
	root := t.TempDir()
	path := filepath.Join(root, "p", "u", "data.nt")
	long := `<http://ex.org/res/big> <http://ex.org/ont#rel> "` + strings.Repeat("x", 2*triple.MaxLineSize) + `" .`
	lines := append(genericLines("a", 2), long)
	lines = append(lines, genericLines("b", 5)...)
	writeFile(t, path, lines)

	backend := newRecordingBackend()
	renderer := &MockRenderer{}
	m := metrics.New()
	r, err := NewRunner(Options{BaseIndex: "bindex", BaseEnabled: true},
		Dependencies{Backend: backend, Renderer: renderer, Metrics: m})
	require.NoError(t, err)

	// When: the baseline pass runs
	res, err := r.RunBaseline(context.Background(), units(t, root))

	// Then: the line counts as a skip and the file still completes
	require.NoError(t, err)
	assert.Zero(t, res.FileErrors)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 7, res.Triples)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 7, res.Documents["bindex"])
	assert.Equal(t, []string{path}, res.Progress.Completed)
	assert.Empty(t, renderer.errors())
	assert.Contains(t, scrape(t, m), `amanrdf_lines_skipped_total{reason="too_long"} 1`)
}

func TestRunBaseline_ManyWorkers(t *testing.T) {
	// Given: eight units spread over two partitions
	root := t.TempDir()
	for i := 0; i < 8; i++ {
		part := fmt.Sprintf("part%d", i%2)
		writeFile(t, filepath.Join(root, part, fmt.Sprintf("u%d.nt", i)), genericLines(fmt.Sprintf("u%d_", i), 7))
	}
	backend := newRecordingBackend()
	r, err := NewRunner(Options{Workers: 4, BulkSize: 2, BaseIndex: "bindex", BaseEnabled: true},
		Dependencies{Backend: backend})
	require.NoError(t, err)

	res, err := r.RunBaseline(context.Background(), units(t, root))

	// Then: every triple lands exactly once
	require.NoError(t, err)
	assert.Equal(t, 8, res.Files)
	assert.Equal(t, 56, res.Documents["bindex"])
	total := 0
	for _, n := range backend.sizes("bindex") {
		assert.LessOrEqual(t, n, 3)
		total += n
	}
	assert.Equal(t, 56, total)
	assert.Zero(t, res.Progress.Duplicates)
}

func TestRunBaseline_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p", "u.nt"), genericLines("a", 5))
	backend := newRecordingBackend()
	r, err := NewRunner(Options{BaseIndex: "bindex", BaseEnabled: true}, Dependencies{Backend: backend})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.RunBaseline(ctx, units(t, root))

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Files)
}

func TestRunExtended_MissingPropertyIndexIsFatal(t *testing.T) {
	// Given: no title index
	backend := newRecordingBackend()
	s := store.NewMemoryStore()
	defer func() { _ = s.Close() }()

	r, err := NewRunner(Options{
		ExtendedIndex: "extended",
		Fields:        titleFields(t),
		Extended:      document.ExtendedOptions{IncludeSubject: true},
	}, Dependencies{Backend: backend, Searcher: s})
	require.NoError(t, err)

	// When: the extended pass starts
	res, err := r.RunExtended(context.Background(), nil)

	// Then: it stops before reading anything
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, amerrors.ErrCodeIndexMissing, amerrors.GetCode(err))
	assert.True(t, amerrors.IsFatal(err))
	assert.Empty(t, backend.sizes("extended"))
}

func TestRunExtended_NeedsFields(t *testing.T) {
	backend := newRecordingBackend()
	r, err := NewRunner(Options{ExtendedIndex: "extended"},
		Dependencies{Backend: backend, Searcher: store.NewMemoryStore()})
	require.NoError(t, err)

	_, err = r.RunExtended(context.Background(), nil)
	assert.Equal(t, amerrors.ErrCodeConfigInvalid, amerrors.GetCode(err))
}

func TestRunBaselineThenExtended(t *testing.T) {
	// Given: a memory store with the base, title and extended indices
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p", "u", "data.nt"), []string{
		`<http://ex.org/res/book1> <http://purl.org/dc/terms/title> "Zorba" .`,
		`<http://ex.org/res/book1> <http://ex.org/ont#author> <http://ex.org/res/kazantzakis> .`,
		`<http://ex.org/res/kazantzakis> <http://purl.org/dc/terms/title> "Nikos" .`,
		`<http://ex.org/res/other> <http://ex.org/ont#rel> "x" .`,
	})
	ctx := context.Background()
	fields := titleFields(t)
	extOpts := document.ExtendedOptions{IncludeSubject: true, IncludeObject: true}

	s := store.NewMemoryStore()
	defer func() { _ = s.Close() }()
	for _, sc := range []schema.Schema{
		schema.Base("bindex", false),
		schema.Property("title"),
		schema.Extended("extended", schema.BaseOptions{IncludeURI: true}, fields, extOpts),
	} {
		require.NoError(t, s.CreateIndex(ctx, sc))
	}

	r, err := NewRunner(Options{
		BulkSize:      2,
		BaseIndex:     "bindex",
		BaseEnabled:   true,
		Properties:    true,
		Fields:        fields,
		ExtendedIndex: "extended",
		Extended:      extOpts,
	}, Dependencies{Backend: s, Searcher: s})
	require.NoError(t, err)

	// When: both passes run in order
	base, err := r.RunBaseline(ctx, units(t, root))
	require.NoError(t, err)
	ext, err := r.RunExtended(ctx, units(t, root))
	require.NoError(t, err)

	// Then: every index has the expected size
	assert.Equal(t, 4, base.Documents["bindex"])
	assert.Equal(t, 2, base.Documents["title"])
	assert.Equal(t, 4, ext.Documents["extended"])

	n, err := s.Count(ctx, "extended")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	// And the author triple carries the titles of both ends
	docs, err := s.Lookup(ctx, "title", document.FieldResourceTerms, "book1", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	hits, err := s.Search(ctx, "extended", "nikos", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	found := false
	for _, h := range hits {
		if h.Document["predicateKeywords"] == "author" {
			found = true
			assert.Equal(t, []string{"Zorba"}, values(h.Document[document.SubjectField("title")]))
			assert.Equal(t, []string{"Nikos"}, values(h.Document[document.ObjectField("title")]))
		}
	}
	assert.True(t, found, "author triple should match its object's title")

	var merged Result
	merged.Merge(base)
	merged.Merge(ext)
	assert.Equal(t, 10, merged.TotalDocuments())
	assert.Equal(t, 8, merged.Triples)
	stats := merged.CompletionStats()
	assert.Equal(t, 2, stats.Files)
}
