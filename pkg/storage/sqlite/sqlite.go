// Package sqlite persists documents and contexts in a single embedded
// SQLite database using the pure-Go modernc.org/sqlite driver. Embeddings
// are stored as little-endian float32 BLOBs; metadata and context content as
// JSON text. Each save replaces a namespace's rows inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/storage"
)

// Config holds SQLite backend settings.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string

	// Namespace scopes all rows. Defaults to storage.DefaultNamespace.
	Namespace string
}

// Store is a SQLite-backed storage.Persister.
type Store struct {
	db *sql.DB
	ns string
}

var _ storage.Persister = (*Store)(nil)

// Open opens (or creates) the database and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite storage: path is required")
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = storage.DefaultNamespace
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, ns: ns}, nil
}

// Name returns "sqlite".
func (s *Store) Name() string { return "sqlite" }

// SaveDocuments replaces the namespace's documents.
func (s *Store) SaveDocuments(ctx context.Context, docs []storage.Document) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE namespace = ?`, s.ns); err != nil {
			return fmt.Errorf("clearing documents: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO documents (namespace, position, id, content, meta, embedding) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, d := range docs {
			meta, err := marshalMap(d.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata for %s: %w", d.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, s.ns, i, d.ID, d.Content, meta, storage.EncodeEmbedding(d.Embedding)); err != nil {
				return fmt.Errorf("inserting document %s: %w", d.ID, err)
			}
		}
		debug.Log("storage", "documents saved", "backend", "sqlite", "count", len(docs))
		return nil
	})
}

// LoadDocuments returns the namespace's documents in saved order.
func (s *Store) LoadDocuments(ctx context.Context) ([]storage.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, meta, embedding FROM documents WHERE namespace = ? ORDER BY position`, s.ns)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []storage.Document{}
	for rows.Next() {
		var (
			d    storage.Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&d.ID, &d.Content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if d.Metadata, err = unmarshalMap(meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", d.ID, err)
		}
		if d.Embedding, err = storage.DecodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SaveContexts replaces the namespace's contexts and sequence counter.
func (s *Store) SaveContexts(ctx context.Context, snap storage.ContextSnapshot) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM contexts WHERE namespace = ?`, s.ns); err != nil {
			return fmt.Errorf("clearing contexts: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO contexts (namespace, position, id, name, content, meta, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range snap.Records {
			content, err := json.Marshal(r.Content)
			if err != nil {
				return fmt.Errorf("encoding content for %s: %w", r.ID, err)
			}
			meta, err := marshalMap(r.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata for %s: %w", r.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, s.ns, i, r.ID, r.Name, string(content), meta,
				r.CreatedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("inserting context %s: %w", r.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO context_sequences (namespace, next_seq) VALUES (?, ?)
			 ON CONFLICT (namespace) DO UPDATE SET next_seq = excluded.next_seq`,
			s.ns, snap.NextSeq); err != nil {
			return fmt.Errorf("saving context sequence: %w", err)
		}
		debug.Log("storage", "contexts saved", "backend", "sqlite", "count", len(snap.Records))
		return nil
	})
}

// LoadContexts returns the namespace's contexts in saved order.
func (s *Store) LoadContexts(ctx context.Context) (storage.ContextSnapshot, error) {
	snap := storage.ContextSnapshot{Records: []storage.ContextRecord{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT next_seq FROM context_sequences WHERE namespace = ?`, s.ns).Scan(&snap.NextSeq)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return snap, fmt.Errorf("loading context sequence: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, meta, created_at, updated_at FROM contexts WHERE namespace = ? ORDER BY position`, s.ns)
	if err != nil {
		return snap, fmt.Errorf("querying contexts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r                storage.ContextRecord
			content, meta    string
			created, updated string
		)
		if err := rows.Scan(&r.ID, &r.Name, &content, &meta, &created, &updated); err != nil {
			return snap, fmt.Errorf("scanning context: %w", err)
		}
		if err := json.Unmarshal([]byte(content), &r.Content); err != nil {
			return snap, fmt.Errorf("decoding content for %s: %w", r.ID, err)
		}
		if r.Metadata, err = unmarshalMap(meta); err != nil {
			return snap, fmt.Errorf("decoding metadata for %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return snap, fmt.Errorf("parsing created_at for %s: %w", r.ID, err)
		}
		if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
			return snap, fmt.Errorf("parsing updated_at for %s: %w", r.ID, err)
		}
		snap.Records = append(snap.Records, r)
	}
	return snap, rows.Err()
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func unmarshalMap(s string) (map[string]any, error) {
	m := map[string]any{}
	if s == "" {
		return m, nil
	}
	err := json.Unmarshal([]byte(s), &m)
	return m, err
}
