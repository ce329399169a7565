// Package postgres provides a PostgreSQL storage.Persister. It uses pgx/v5
// for connection pooling, JSONB for metadata and context content, and
// REAL[] for embeddings. Each save replaces a namespace's rows inside one
// transaction.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/lokal/pkg/debug"
	"github.com/rhuss/lokal/pkg/storage"
)

// Store is a PostgreSQL-backed Persister.
type Store struct {
	pool *pgxpool.Pool
	ns   string
}

// Ensure Store implements storage.Persister at compile time.
var _ storage.Persister = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, ns: cfg.Namespace}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Name returns "postgres".
func (s *Store) Name() string { return "postgres" }

// SaveDocuments replaces the namespace's documents.
func (s *Store) SaveDocuments(ctx context.Context, docs []storage.Document) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE namespace = $1`, s.ns); err != nil {
			return fmt.Errorf("clearing documents: %w", err)
		}

		batch := &pgx.Batch{}
		for i, d := range docs {
			meta, err := marshalMap(d.Metadata)
			if err != nil {
				return fmt.Errorf("marshaling metadata for %s: %w", d.ID, err)
			}
			batch.Queue(`
				INSERT INTO documents (namespace, position, id, content, metadata, embedding)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, s.ns, i, d.ID, d.Content, meta, d.Embedding)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	debug.Log("storage", "documents saved", "backend", "postgres", "count", len(docs))
	return nil
}

// LoadDocuments returns the namespace's documents in saved order.
func (s *Store) LoadDocuments(ctx context.Context) ([]storage.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content, metadata, embedding
		FROM documents
		WHERE namespace = $1
		ORDER BY position
	`, s.ns)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []storage.Document{}
	for rows.Next() {
		var (
			d    storage.Document
			meta []byte
		)
		if err := rows.Scan(&d.ID, &d.Content, &meta, &d.Embedding); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if d.Metadata, err = unmarshalMap(meta); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for %s: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SaveContexts replaces the namespace's contexts and sequence counter.
func (s *Store) SaveContexts(ctx context.Context, snap storage.ContextSnapshot) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM contexts WHERE namespace = $1`, s.ns); err != nil {
			return fmt.Errorf("clearing contexts: %w", err)
		}

		batch := &pgx.Batch{}
		for i, r := range snap.Records {
			content, err := json.Marshal(r.Content)
			if err != nil {
				return fmt.Errorf("marshaling content for %s: %w", r.ID, err)
			}
			meta, err := marshalMap(r.Metadata)
			if err != nil {
				return fmt.Errorf("marshaling metadata for %s: %w", r.ID, err)
			}
			batch.Queue(`
				INSERT INTO contexts (namespace, position, id, name, content, metadata, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, s.ns, i, r.ID, r.Name, content, meta, r.CreatedAt, r.UpdatedAt)
		}
		batch.Queue(`
			INSERT INTO context_sequences (namespace, next_seq) VALUES ($1, $2)
			ON CONFLICT (namespace) DO UPDATE SET next_seq = EXCLUDED.next_seq
		`, s.ns, snap.NextSeq)

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting contexts: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	debug.Log("storage", "contexts saved", "backend", "postgres", "count", len(snap.Records))
	return nil
}

// LoadContexts returns the namespace's contexts in saved order.
func (s *Store) LoadContexts(ctx context.Context) (storage.ContextSnapshot, error) {
	snap := storage.ContextSnapshot{Records: []storage.ContextRecord{}}

	err := s.pool.QueryRow(ctx,
		`SELECT next_seq FROM context_sequences WHERE namespace = $1`, s.ns,
	).Scan(&snap.NextSeq)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return snap, fmt.Errorf("loading context sequence: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, content, metadata, created_at, updated_at
		FROM contexts
		WHERE namespace = $1
		ORDER BY position
	`, s.ns)
	if err != nil {
		return snap, fmt.Errorf("querying contexts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r             storage.ContextRecord
			content, meta []byte
			created       time.Time
			updated       time.Time
		)
		if err := rows.Scan(&r.ID, &r.Name, &content, &meta, &created, &updated); err != nil {
			return snap, fmt.Errorf("scanning context: %w", err)
		}
		if err := json.Unmarshal(content, &r.Content); err != nil {
			return snap, fmt.Errorf("unmarshaling content for %s: %w", r.ID, err)
		}
		if r.Metadata, err = unmarshalMap(meta); err != nil {
			return snap, fmt.Errorf("unmarshaling metadata for %s: %w", r.ID, err)
		}
		r.CreatedAt = created.UTC()
		r.UpdatedAt = updated.UTC()
		snap.Records = append(snap.Records, r)
	}
	return snap, rows.Err()
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalMap(b []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(b) == 0 {
		return m, nil
	}
	err := json.Unmarshal(b, &m)
	return m, err
}
