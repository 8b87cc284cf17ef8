// Package sqlitevec implements VectorStore using sqlite-vec. It is the
// persistent alternative to the in-memory store for knowledge bases
// that must survive restarts.
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spetr/matwizard/pkg/provider"
	"github.com/spetr/matwizard/pkg/types"
)

var (
	// Ensure sqlite-vec Auto() is called exactly once before any db connection
	vecAutoOnce sync.Once
)

// Store implements the VectorStore interface using sqlite-vec.
type Store struct {
	mu         sync.Mutex
	db         *sql.DB
	path       string
	dimensions int
}

// New creates a new sqlite-vec store.
func New() *Store {
	return &Store{}
}

// Name returns the store name.
func (s *Store) Name() string {
	return "sqlitevec"
}

// Init opens the database at cfg.Path and creates the schema.
func (s *Store) Init(ctx context.Context, cfg provider.VectorStoreConfig) error {
	s.path = cfg.Path

	// Register sqlite-vec extension before opening any database connection.
	vecAutoOnce.Do(func() {
		sqlite_vec.Auto()
	})

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL mode for concurrent reads, busy_timeout to wait for locks
	// instead of failing immediately.
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if _, err := db.ExecContext(ctx, "SELECT vec_version()"); err != nil {
		return fmt.Errorf("sqlite-vec extension not available: %w", err)
	}

	if err := s.createSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// createSchema creates the chunks table. The vector table is created
// lazily once the embedding dimensions are known.
func (s *Store) createSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chunks (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			source TEXT NOT NULL,
			title TEXT,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`)
	return err
}

// createVectorTable creates the vec0 virtual table for the given dimensions.
func (s *Store) createVectorTable(dimensions int) error {
	if s.dimensions == dimensions {
		return nil // Already created
	}

	s.dimensions = dimensions

	// Drop existing vector table if dimensions changed
	_, _ = s.db.Exec("DROP TABLE IF EXISTS chunk_embeddings")

	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(
			embedding float[%d]
		)
	`, dimensions))
	if err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

// Add appends chunks with their embeddings.
func (s *Store) Add(ctx context.Context, chunks []*types.ChunkWithEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chunks[0].Embedding) > 0 {
		if err := s.createVectorTable(len(chunks[0].Embedding)); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	chunkStmt, err := tx.Prepare(`
		INSERT INTO chunks (id, source, title, chunk_index, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	embeddingStmt, err := tx.Prepare(`
		INSERT INTO chunk_embeddings (rowid, embedding)
		VALUES (?, ?)
	`)
	if err != nil {
		return err
	}
	defer embeddingStmt.Close()

	now := time.Now().Unix()
	for _, cwe := range chunks {
		c := cwe.Chunk

		res, err := chunkStmt.Exec(c.ID, c.Source, c.Title, c.Index, c.Content, now)
		if err != nil {
			return fmt.Errorf("failed to store chunk %s: %w", c.ID, err)
		}

		if len(cwe.Embedding) > 0 {
			seq, err := res.LastInsertId()
			if err != nil {
				return err
			}
			if _, err := embeddingStmt.Exec(seq, floatsToBytes(cwe.Embedding)); err != nil {
				return fmt.Errorf("failed to store embedding for %s: %w", c.ID, err)
			}
		}
	}

	return tx.Commit()
}

// Search returns up to topK chunks ranked by descending cosine
// similarity. Ties keep insertion order via the chunk sequence.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]*types.SearchResult, error) {
	if topK <= 0 {
		return []*types.SearchResult{}, nil
	}

	s.mu.Lock()
	dims := s.dimensions
	s.mu.Unlock()

	if dims == 0 {
		// Nothing indexed yet.
		return []*types.SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.source, c.title, c.chunk_index, c.content,
			vec_distance_cosine(ce.embedding, ?) AS distance
		FROM chunk_embeddings ce
		JOIN chunks c ON c.seq = ce.rowid
		ORDER BY distance ASC, c.seq ASC
		LIMIT ?
	`, floatsToBytes(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	var results []*types.SearchResult
	for rows.Next() {
		var (
			chunk    types.Chunk
			title    sql.NullString
			distance float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Source, &title, &chunk.Index, &chunk.Content, &distance); err != nil {
			return nil, err
		}
		chunk.Title = title.String

		// Cosine distance to similarity
		results = append(results, &types.SearchResult{
			Chunk: &chunk,
			Score: 1.0 - distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if results == nil {
		results = []*types.SearchResult{}
	}
	return results, nil
}

// Clear removes all stored chunks and embeddings.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return err
	}
	if s.dimensions > 0 {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM chunk_embeddings"); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBySource removes all chunks originating from a source.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimensions > 0 {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM chunk_embeddings
			WHERE rowid IN (SELECT seq FROM chunks WHERE source = ?)
		`, source)
		if err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source)
	return err
}

// Size returns the number of stored chunks.
func (s *Store) Size() int {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0
	}
	return count
}

// Stats returns store statistics.
func (s *Store) Stats() (*types.StoreStats, error) {
	stats := &types.StoreStats{}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&stats.TotalChunks); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow("SELECT COUNT(DISTINCT source) FROM chunks").Scan(&stats.TotalSources); err != nil {
		return nil, err
	}

	var last sql.NullInt64
	if err := s.db.QueryRow("SELECT MAX(created_at) FROM chunks").Scan(&last); err == nil && last.Valid {
		stats.LastIndexed = time.Unix(last.Int64, 0)
	}

	s.mu.Lock()
	stats.Dimensions = s.dimensions
	s.mu.Unlock()

	return stats, nil
}

// Close releases resources and closes connections.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// floatsToBytes converts float32 slice to bytes for sqlite-vec.
func floatsToBytes(floats []float32) []byte {
	bytes := make([]byte, len(floats)*4)
	for i, f := range floats {
		bits := math.Float32bits(f)
		bytes[i*4] = byte(bits)
		bytes[i*4+1] = byte(bits >> 8)
		bytes[i*4+2] = byte(bits >> 16)
		bytes[i*4+3] = byte(bits >> 24)
	}
	return bytes
}

// Interface assertions
var (
	_ provider.VectorStore   = (*Store)(nil)
	_ provider.SourceDeleter = (*Store)(nil)
)
