// Package postgres stores user documents as jsonb rows and uses LISTEN/NOTIFY
// as the change feed.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/officecal/internal/storage"
)

// Channel is the notification channel written on every merge.
const Channel = "officecal_documents"

const schema = `CREATE TABLE IF NOT EXISTS officecal_documents (
	user_id    TEXT PRIMARY KEY,
	body       JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is a storage.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to url and makes sure the documents table exists.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the documents table.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, user string) (storage.Fields, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM officecal_documents WHERE user_id=$1`, user).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc := make(storage.Fields)
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document %q: %w", user, err)
	}
	return doc, nil
}

// SetMerge relies on jsonb concatenation, which replaces top-level keys and
// keeps the rest. The notify is sent inside the same transaction so listeners
// only hear about committed writes.
func (s *Store) SetMerge(ctx context.Context, user string, patch storage.Fields) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const upsert = `INSERT INTO officecal_documents (user_id, body, updated_at)
        VALUES ($1, $2::jsonb, now())
        ON CONFLICT (user_id) DO UPDATE
        SET body = officecal_documents.body || EXCLUDED.body, updated_at = now()`

	if _, err = tx.Exec(ctx, upsert, user, string(body)); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, "SELECT pg_notify($1, $2)", Channel, user); err != nil {
		return err
	}
	err = tx.Commit(ctx)
	return err
}

// Subscribe holds one pooled connection in LISTEN mode for the lifetime of the
// subscription and re-reads the document on every notification for user.
func (s *Store) Subscribe(ctx context.Context, user string, onChange func(storage.Fields)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	// A connection left in LISTEN mode must not go back to the pool.
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		conn.Close(context.Background())
		cancel()
		return nil, err
	}

	if doc, err := s.Get(ctx, user); err == nil {
		onChange(doc)
	} else if !errors.Is(err, storage.ErrNotFound) {
		conn.Close(context.Background())
		cancel()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close(context.Background())
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				return
			}
			if n.Payload != user {
				continue
			}
			doc, err := s.Get(ctx, user)
			if err != nil {
				continue
			}
			onChange(doc)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
