// Package store persists documents, chunk embeddings and chat history
// in a single SQLite file.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the SQLite-backed embedding and history store. Reads run
// concurrently under WAL; writes to the same document are serialized by
// a per-document lock so a replace can never interleave with another
// writer of the same name.
type Store struct {
	db   *sql.DB
	path string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	name        TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	chunk_count INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_name    TEXT NOT NULL REFERENCES documents(name) ON DELETE CASCADE,
	chunk_index INTEGER NOT NULL,
	text        TEXT NOT NULL,
	embedding   BLOB NOT NULL,
	dim         INTEGER NOT NULL,
	UNIQUE(doc_name, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_name ON chunks(doc_name);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id    INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_id_id ON messages(chat_id, id);
`

// Open creates or opens the store at the given path. The parent
// directory is created if needed. Fails fast when the database cannot
// be opened or migrated; callers should abort startup on error.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Pragmas are per-connection; the DSN form applies them to every
	// connection the pool opens, not just the first.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:    db,
		path:  path,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Health verifies the database file is reachable.
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// lockDocument acquires the write lock for one document name.
// Locks are never evicted; the set of document names is small.
func (s *Store) lockDocument(name string) func() {
	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// PutDocument stores a document's chunks in a single transaction.
// When replace is false and the document already exists it returns
// ErrDocumentExists. When replace is true the previous chunks are
// deleted and the new set inserted atomically, so readers observe
// either the old document or the new one, never a mix.
// Returns the number of chunks written.
func (s *Store) PutDocument(ctx context.Context, name, model string, chunks []Chunk, replace bool) (int, error) {
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %q has no chunks", name)
	}

	dim := len(chunks[0].Embedding)
	for i, c := range chunks {
		if len(c.Embedding) != dim {
			return 0, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(c.Embedding), dim)
		}
	}

	unlock := s.lockDocument(name)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM documents WHERE name = ?)", name).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("checking document: %w", err)
	}
	if exists && !replace {
		return 0, fmt.Errorf("%w: %s", ErrDocumentExists, name)
	}
	// Dimension uniformity is checked inside the transaction so two
	// concurrent first writes cannot both commit. The document being
	// replaced is excluded: replacing the sole document may re-embed it
	// with a different model.
	var storedDim int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE((SELECT dim FROM chunks WHERE doc_name != ? LIMIT 1), 0)", name).Scan(&storedDim)
	if err != nil {
		return 0, fmt.Errorf("reading dimension: %w", err)
	}
	if storedDim != 0 && storedDim != dim {
		return 0, fmt.Errorf("%w: store holds %d-dimension vectors, got %d",
			ErrDimensionMismatch, storedDim, dim)
	}

	if exists {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_name = ?", name); err != nil {
			return 0, fmt.Errorf("deleting old chunks: %w", err)
		}
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (name, model, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			model = excluded.model,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at
	`, name, model, len(chunks), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("saving document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (doc_name, chunk_index, text, embedding, dim)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		blob := float32SliceToBytes(c.Embedding)
		if _, err := stmt.ExecContext(ctx, name, c.Index, c.Text, blob, dim); err != nil {
			return 0, fmt.Errorf("saving chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return len(chunks), nil
}

// AllChunks returns every stored chunk with its embedding, ordered by
// (doc_name, chunk_index). The read is fresh per call; deleted
// documents never appear.
func (s *Store) AllChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_name, chunk_index, text, embedding
		FROM chunks
		ORDER BY doc_name, chunk_index
	`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.DocName, &c.Index, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = bytesToFloat32Slice(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunks returns the chunks of one document in index order.
// Returns ErrDocumentNotFound when the name is unknown.
func (s *Store) GetChunks(ctx context.Context, name string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_name, chunk_index, text, embedding
		FROM chunks WHERE doc_name = ?
		ORDER BY chunk_index
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c Chunk
		var blob []byte
		if err := rows.Scan(&c.DocName, &c.Index, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.Embedding = bytesToFloat32Slice(blob)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	return chunks, nil
}

// DeleteDocument removes a document and its chunks.
// Reports whether the document existed.
func (s *Store) DeleteDocument(ctx context.Context, name string) (bool, error) {
	unlock := s.lockDocument(name)
	defer unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE name = ?", name)
	if err != nil {
		return false, fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearAll removes every document and chunk.
// Returns the number of chunks deleted.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM chunks")
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return 0, fmt.Errorf("deleting documents: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return int(n), nil
}

// ListDocuments returns all documents ordered by name.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, model, chunk_count, created_at, updated_at
		FROM documents ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var d Document
		var createdAt, updatedAt string
		if err := rows.Scan(&d.Name, &d.Model, &d.ChunkCount, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// IndexStatus reports document and chunk counts plus the stored
// dimension and most recent model.
func (s *Store) IndexStatus(ctx context.Context) (*Status, error) {
	var st Status
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE((SELECT dim FROM chunks LIMIT 1), 0) FROM chunks").
		Scan(&st.Chunks, &st.Dimension)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE((SELECT model FROM documents ORDER BY updated_at DESC LIMIT 1), '') FROM documents").
		Scan(&st.Documents, &st.Model)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	return &st, nil
}

// float32SliceToBytes converts a []float32 to a little-endian byte blob.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte blob back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
