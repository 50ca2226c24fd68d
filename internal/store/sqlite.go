package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/amanrdf/internal/document"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/schema"
)

// SQLiteStore keeps every index in one SQLite database. Documents are
// stored as JSON; searchable text goes to an FTS5 table and keyword
// values to a plain lookup table.
type SQLiteStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	closed    bool
	stopWords map[string]struct{}
}

var _ Store = (*SQLiteStore)(nil)

// validateSQLiteIntegrity checks an existing database before it is used.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name IN ('indices', 'documents', 'fts_documents')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 3 {
		return fmt.Errorf("amanrdf tables missing")
	}
	return nil
}

// NewSQLiteStore opens or creates the database at path. An empty path
// gives an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeFilePermission, "cannot create data directory", err)
		}
		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, amerrors.New(amerrors.ErrCodeCorruptIndex,
					"database at "+path+" is corrupted and cannot be removed", removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("sqlite_store_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, amerrors.InternalError("failed to open database", err)
	}
	// One writer; WAL lets readers in other processes proceed.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, amerrors.InternalError("failed to set pragma", err)
		}
	}

	s := &SQLiteStore{db: db, path: path, stopWords: BuildStopWordMap(DefaultStopWords)}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, amerrors.InternalError("failed to initialize schema", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS indices (
		name   TEXT PRIMARY KEY,
		schema TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id         INTEGER PRIMARY KEY,
		doc_id     TEXT NOT NULL UNIQUE,
		index_name TEXT NOT NULL REFERENCES indices(name) ON DELETE CASCADE,
		body       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS documents_index ON documents(index_name);

	-- exact-match values of keyword fields
	CREATE TABLE IF NOT EXISTS keywords (
		doc      INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		index_name TEXT NOT NULL,
		field    TEXT NOT NULL,
		value    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS keywords_lookup ON keywords(index_name, field, value);

	-- rowid mirrors documents.id; content is pre-tokenized
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_documents USING fts5(
		index_name UNINDEXED,
		content,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// CreateIndex records sc unless the index exists.
func (s *SQLiteStore) CreateIndex(ctx context.Context, sc schema.Schema) error {
	if err := sc.Validate(); err != nil {
		return amerrors.ValidationError("invalid schema", err)
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return amerrors.InternalError("cannot encode schema", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO indices(name, schema) VALUES (?, ?)`, sc.Index, string(raw))
	if err != nil {
		return amerrors.New(amerrors.ErrCodeIndexFailed, "cannot create index "+sc.Index, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("index_created",
			slog.String("index", sc.Index),
			slog.String("role", string(sc.Role)),
			slog.Int("fields", len(sc.Fields)))
	}
	return nil
}

// DeleteIndex removes the index and all of its documents.
func (s *SQLiteStore) DeleteIndex(ctx context.Context, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fts_documents WHERE index_name = ?`, index); err != nil {
		return fmt.Errorf("failed to delete search rows: %w", err)
	}
	// documents and keywords cascade
	res, err := tx.ExecContext(ctx, `DELETE FROM indices WHERE name = ?`, index)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("index_deleted", slog.String("index", index))
	}
	return nil
}

func (s *SQLiteStore) schemaOf(ctx context.Context, index string) (schema.Schema, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM indices WHERE name = ?`, index).Scan(&raw)
	if err == sql.ErrNoRows {
		return schema.Schema{}, amerrors.IndexMissingError(index)
	}
	if err != nil {
		return schema.Schema{}, fmt.Errorf("failed to read schema: %w", err)
	}
	var sc schema.Schema
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return schema.Schema{}, amerrors.New(amerrors.ErrCodeCorruptIndex, "stored schema of "+index+" is corrupt", err)
	}
	return sc, nil
}

// BulkIndex writes docs to index in one transaction.
func (s *SQLiteStore) BulkIndex(ctx context.Context, index string, docs []document.Doc) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	sc, err := s.schemaOf(ctx, index)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	docStmt, err := tx.PrepareContext(ctx, `INSERT INTO documents(doc_id, index_name, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document statement: %w", err)
	}
	defer docStmt.Close()

	kwStmt, err := tx.PrepareContext(ctx, `INSERT INTO keywords(doc, index_name, field, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare keyword statement: %w", err)
	}
	defer kwStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_documents(rowid, index_name, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer ftsStmt.Close()

	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		res, err := docStmt.ExecContext(ctx, uuid.NewString(), index, string(body))
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read document id: %w", err)
		}

		var content []string
		for _, f := range sc.Fields {
			vals := docValues(doc[f.Name])
			switch f.Type {
			case schema.Keyword:
				for _, v := range vals {
					if _, err := kwStmt.ExecContext(ctx, id, index, f.Name, v); err != nil {
						return fmt.Errorf("failed to insert keyword: %w", err)
					}
				}
			case schema.Text:
				for _, v := range vals {
					content = append(content, FilterStopWords(TokenizeTerm(v), s.stopWords)...)
				}
			}
		}
		if _, err := ftsStmt.ExecContext(ctx, id, index, strings.Join(content, " ")); err != nil {
			return fmt.Errorf("failed to index document text: %w", err)
		}
	}
	return tx.Commit()
}

// docValues flattens a field value into strings.
func docValues(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return []string{fmt.Sprint(val)}
	}
}

// Count returns the number of documents in index.
func (s *SQLiteStore) Count(ctx context.Context, index string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if _, err := s.schemaOf(ctx, index); err != nil {
		return 0, err
	}
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE index_name = ?`, index).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Exists reports whether index has been created.
func (s *SQLiteStore) Exists(ctx context.Context, index string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM indices WHERE name = ?`, index).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check index: %w", err)
	}
	return n > 0, nil
}

// Indices returns every schema sorted by index name.
func (s *SQLiteStore) Indices(ctx context.Context) ([]schema.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT schema FROM indices ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indices: %w", err)
	}
	defer rows.Close()

	var out []schema.Schema
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		var sc schema.Schema
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			return nil, amerrors.New(amerrors.ErrCodeCorruptIndex, "stored schema is corrupt", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Lookup returns documents of index whose keyword field equals value.
func (s *SQLiteStore) Lookup(ctx context.Context, index, field, value string, limit int) ([]document.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	sc, err := s.schemaOf(ctx, index)
	if err != nil {
		return nil, err
	}
	if f, ok := sc.Field(field); !ok || f.Type != schema.Keyword {
		return nil, amerrors.New(amerrors.ErrCodeInvalidQuery,
			fmt.Sprintf("field %q of index %q is not a keyword field", field, index), nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT d.body
		FROM keywords k JOIN documents d ON d.id = k.doc
		WHERE k.index_name = ? AND k.field = ? AND k.value = ?
		ORDER BY d.id
		LIMIT ?`, index, field, value, lookupLimit(limit))
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeSearchFailed, "lookup failed", err)
	}
	defer rows.Close()

	docs := []document.Doc{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc document.Doc
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Search ranks documents of index by FTS5 bm25 against the tokenized query.
func (s *SQLiteStore) Search(ctx context.Context, index, queryStr string, limit int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, err := s.schemaOf(ctx, index); err != nil {
		return nil, err
	}

	tokens := FilterStopWords(TokenizeTerm(queryStr), s.stopWords)
	if len(tokens) == 0 {
		return []Hit{}, nil
	}
	// Quote each token so FTS5 operators in user input are taken literally.
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	match := strings.Join(quoted, " OR ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.doc_id, d.body, bm25(fts_documents) AS score
		FROM fts_documents f JOIN documents d ON d.id = f.rowid
		WHERE fts_documents MATCH ? AND f.index_name = ?
		ORDER BY score
		LIMIT ?`, "content: ("+match+")", index, lookupLimit(limit))
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeSearchFailed, "search failed", err)
	}
	defer rows.Close()

	hits := []Hit{}
	for rows.Next() {
		var (
			id, body string
			score    float64
		)
		if err := rows.Scan(&id, &body, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var doc document.Doc
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		// bm25() is negative, lower is better.
		hits = append(hits, Hit{ID: id, Score: -score, Document: doc})
	}
	return hits, rows.Err()
}

// Health pings the database.
func (s *SQLiteStore) Health(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Location returns the database path, or "memory".
func (s *SQLiteStore) Location() string {
	if s.path == "" {
		return "memory"
	}
	return s.path
}

// Close checkpoints the WAL and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}
