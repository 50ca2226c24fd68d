package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Aman-CERP/amanrdf/internal/document"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/schema"
)

const (
	// TermTokenizerName is the bleve tokenizer wrapping TokenizeTerm.
	TermTokenizerName = "rdf_term_tokenizer"

	// TermStopFilterName drops DefaultStopWords.
	TermStopFilterName = "rdf_term_stop"

	// TermAnalyzerName is the analyzer used for every Text field.
	TermAnalyzerName = "rdf_term_analyzer"

	schemaKey    = "amanrdf_schema"
	lockFileName = ".amanrdf.lock"
)

func init() {
	_ = registry.RegisterTokenizer(TermTokenizerName, termTokenizerConstructor)
	_ = registry.RegisterTokenFilter(TermStopFilterName, termStopFilterConstructor)
}

// BleveStore keeps one bleve index per name, either under a directory or
// in memory.
type BleveStore struct {
	mu      sync.RWMutex
	dir     string
	lock    *flock.Flock
	indices map[string]*bleveIndex
	closed  bool
}

type bleveIndex struct {
	idx    bleve.Index
	schema schema.Schema
}

var _ Store = (*BleveStore)(nil)

// NewBleveStore opens or creates a store under dir and locks it against
// other processes.
func NewBleveStore(dir string) (*BleveStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeFilePermission, "cannot create data directory "+dir, err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeFilePermission, "cannot lock data directory "+dir, err)
	}
	if !acquired {
		return nil, amerrors.New(amerrors.ErrCodeIndexLocked, "data directory "+dir+" is in use by another process", nil).
			WithSuggestion("stop the other amanrdf process or point backend.path elsewhere")
	}

	s := &BleveStore{dir: dir, lock: lock, indices: make(map[string]*bleveIndex)}
	if err := s.openExisting(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewMemoryStore returns a BleveStore that never touches disk.
func NewMemoryStore() *BleveStore {
	return &BleveStore{indices: make(map[string]*bleveIndex)}
}

// openExisting opens every index directory under s.dir. Corrupted indices
// are removed so the next run recreates them.
func (s *BleveStore) openExisting() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return amerrors.New(amerrors.ErrCodeFileNotFound, "cannot read data directory "+s.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() || schema.ValidateName(e.Name()) != nil {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		bi, err := openBleveIndex(path)
		if err != nil {
			slog.Warn("bleve_index_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return amerrors.New(amerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index %s is corrupted and cannot be removed", e.Name()), removeErr)
			}
			slog.Info("bleve_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
			continue
		}
		s.indices[bi.schema.Index] = bi
	}
	return nil
}

func openBleveIndex(path string) (*bleveIndex, error) {
	if err := validateIndexIntegrity(path); err != nil {
		return nil, err
	}
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, err
	}
	raw, err := idx.GetInternal([]byte(schemaKey))
	if err != nil || len(raw) == 0 {
		_ = idx.Close()
		return nil, fmt.Errorf("index has no stored schema")
	}
	var sc schema.Schema
	if err := json.Unmarshal(raw, &sc); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("stored schema is corrupt: %w", err)
	}
	return &bleveIndex{idx: idx, schema: sc}, nil
}

// validateIndexIntegrity checks index_meta.json before bleve.Open gets a
// chance to fail half way.
func validateIndexIntegrity(path string) error {
	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// buildMapping turns a schema into a bleve mapping. Every field is stored
// so documents can be returned from Lookup and Search.
func buildMapping(sc schema.Schema) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(TermAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     TermTokenizerName,
		"token_filters": []string{TermStopFilterName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add term analyzer: %w", err)
	}
	im.DefaultAnalyzer = TermAnalyzerName

	doc := bleve.NewDocumentMapping()
	for _, f := range sc.Fields {
		var fm *mapping.FieldMapping
		switch f.Type {
		case schema.Keyword:
			fm = bleve.NewKeywordFieldMapping()
		case schema.Stored:
			fm = bleve.NewTextFieldMapping()
			fm.Index = false
			fm.IncludeInAll = false
		default:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = TermAnalyzerName
		}
		fm.Store = true
		doc.AddFieldMappingsAt(f.Name, fm)
	}
	im.DefaultMapping = doc
	return im, nil
}

// CreateIndex creates the index unless it already exists.
func (s *BleveStore) CreateIndex(ctx context.Context, sc schema.Schema) error {
	if err := sc.Validate(); err != nil {
		return amerrors.ValidationError("invalid schema", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.indices[sc.Index]; ok {
		slog.Debug("index_exists", slog.String("index", sc.Index))
		return nil
	}

	im, err := buildMapping(sc)
	if err != nil {
		return amerrors.InternalError("cannot build mapping for "+sc.Index, err)
	}

	var idx bleve.Index
	if s.dir == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.New(filepath.Join(s.dir, sc.Index), im)
	}
	if err != nil {
		return amerrors.New(amerrors.ErrCodeIndexFailed, "cannot create index "+sc.Index, err)
	}

	raw, err := json.Marshal(sc)
	if err != nil {
		_ = idx.Close()
		return amerrors.InternalError("cannot encode schema", err)
	}
	if err := idx.SetInternal([]byte(schemaKey), raw); err != nil {
		_ = idx.Close()
		return amerrors.New(amerrors.ErrCodeIndexFailed, "cannot store schema of "+sc.Index, err)
	}

	s.indices[sc.Index] = &bleveIndex{idx: idx, schema: sc}
	slog.Info("index_created",
		slog.String("index", sc.Index),
		slog.String("role", string(sc.Role)),
		slog.Int("fields", len(sc.Fields)))
	return nil
}

// DeleteIndex closes and removes the index.
func (s *BleveStore) DeleteIndex(ctx context.Context, index string) error {
	if err := schema.ValidateName(index); err != nil {
		return amerrors.ValidationError("invalid index name", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	bi, ok := s.indices[index]
	if !ok {
		return nil
	}
	delete(s.indices, index)
	if err := bi.idx.Close(); err != nil {
		return amerrors.New(amerrors.ErrCodeIndexFailed, "cannot close index "+index, err)
	}
	if s.dir != "" {
		if err := os.RemoveAll(filepath.Join(s.dir, index)); err != nil {
			return amerrors.New(amerrors.ErrCodeFilePermission, "cannot remove index "+index, err)
		}
	}
	slog.Info("index_deleted", slog.String("index", index))
	return nil
}

func (s *BleveStore) get(index string) (*bleveIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	bi, ok := s.indices[index]
	if !ok {
		return nil, amerrors.IndexMissingError(index)
	}
	return bi, nil
}

// BulkIndex writes docs to index in one bleve batch, each under a fresh ID.
func (s *BleveStore) BulkIndex(ctx context.Context, index string, docs []document.Doc) error {
	if len(docs) == 0 {
		return nil
	}
	bi, err := s.get(index)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b := bi.idx.NewBatch()
	for _, doc := range docs {
		if err := b.Index(uuid.NewString(), map[string]any(doc)); err != nil {
			return fmt.Errorf("failed to add document to batch: %w", err)
		}
	}
	if err := bi.idx.Batch(b); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Count returns the document count of index.
func (s *BleveStore) Count(ctx context.Context, index string) (uint64, error) {
	bi, err := s.get(index)
	if err != nil {
		return 0, err
	}
	return bi.idx.DocCount()
}

// Exists reports whether index is open in this store.
func (s *BleveStore) Exists(ctx context.Context, index string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.indices[index]
	return ok, nil
}

// Indices returns the schemas of all indices sorted by name.
func (s *BleveStore) Indices(ctx context.Context) ([]schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]schema.Schema, 0, len(s.indices))
	for _, bi := range s.indices {
		out = append(out, bi.schema)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// Lookup returns the documents of index whose keyword field equals value.
func (s *BleveStore) Lookup(ctx context.Context, index, field, value string, limit int) ([]document.Doc, error) {
	bi, err := s.get(index)
	if err != nil {
		return nil, err
	}
	if f, ok := bi.schema.Field(field); !ok || f.Type != schema.Keyword {
		return nil, amerrors.New(amerrors.ErrCodeInvalidQuery,
			fmt.Sprintf("field %q of index %q is not a keyword field", field, index), nil)
	}

	q := bleve.NewTermQuery(value)
	q.SetField(field)
	req := bleve.NewSearchRequestOptions(q, lookupLimit(limit), 0, false)
	req.Fields = []string{"*"}

	res, err := bi.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeSearchFailed, "lookup failed", err)
	}
	docs := make([]document.Doc, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docs = append(docs, fieldsToDoc(hit.Fields))
	}
	return docs, nil
}

// Search matches query against every searchable field of index.
func (s *BleveStore) Search(ctx context.Context, index, queryStr string, limit int) ([]Hit, error) {
	bi, err := s.get(index)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(queryStr) == "" {
		return []Hit{}, nil
	}

	fields := bi.schema.SearchFields()
	queries := make([]query.Query, 0, len(fields))
	for _, f := range fields {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(f)
		queries = append(queries, mq)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(queries...), lookupLimit(limit), 0, false)
	req.Fields = []string{"*"}

	res, err := bi.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeSearchFailed, "search failed", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score, Document: fieldsToDoc(h.Fields)})
	}
	return hits, nil
}

// fieldsToDoc converts stored bleve fields back to a Doc. Multi-valued
// fields come back as []any and are narrowed to []string.
func fieldsToDoc(fields map[string]any) document.Doc {
	doc := make(document.Doc, len(fields))
	for k, v := range fields {
		if list, ok := v.([]any); ok {
			vals := make([]string, 0, len(list))
			for _, item := range list {
				vals = append(vals, fmt.Sprint(item))
			}
			doc[k] = vals
			continue
		}
		doc[k] = v
	}
	return doc
}

// Health fails only after Close.
func (s *BleveStore) Health(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Location returns the data directory, or "memory".
func (s *BleveStore) Location() string {
	if s.dir == "" {
		return "memory"
	}
	return s.dir
}

// Close closes every index and releases the directory lock.
func (s *BleveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for name, bi := range s.indices {
		if err := bi.idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close index %s: %w", name, err)
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to release lock: %w", err)
		}
	}
	return firstErr
}

func termTokenizerConstructor(config map[string]any, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &termTokenizer{}, nil
}

// termTokenizer adapts TokenizeTerm to bleve.
type termTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *termTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	lower := strings.ToLower(text)
	tokens := TokenizeTerm(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	offset := 0
	for i, token := range tokens {
		start := strings.Index(lower[offset:], token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)
		if end > len(text) {
			end = len(text)
		}
		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		offset = end
	}
	return result
}

func termStopFilterConstructor(config map[string]any, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &termStopFilter{stopWords: BuildStopWordMap(DefaultStopWords)}, nil
}

type termStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *termStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
