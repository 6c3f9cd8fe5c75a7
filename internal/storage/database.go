package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultPollInterval is how often subscriptions look for writes made by
// other processes.
const DefaultPollInterval = 2 * time.Second

// Database is the SQLite backend. Each user's document is one JSON row with a
// revision counter; subscribers are told about local writes immediately and
// about writes from other processes on the next poll.
type Database struct {
	db           *sql.DB
	hub          *Hub
	pollInterval time.Duration
}

func New(path string) (*Database, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// One writer keeps the read-merge-write in SetMerge serialised.
	db.SetMaxOpenConns(1)

	database := &Database{db: db, hub: NewHub(), pollInterval: DefaultPollInterval}
	if err := database.createTables(); err != nil {
		return nil, err
	}

	return database, nil
}

// SetPollInterval changes the cross-process change detection interval.
func (d *Database) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		d.pollInterval = interval
	}
}

func (d *Database) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			user_id TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			revision INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Get(ctx context.Context, user string) (Fields, error) {
	doc, _, err := d.load(ctx, d.db, user)
	return doc, err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *Database) load(ctx context.Context, q queryer, user string) (Fields, int64, error) {
	var body string
	var revision int64
	err := q.QueryRowContext(ctx,
		`SELECT body, revision FROM documents WHERE user_id = ?`,
		user,
	).Scan(&body, &revision)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	doc := make(Fields)
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, 0, fmt.Errorf("decode document %q: %w", user, err)
	}
	return doc, revision, nil
}

func (d *Database) SetMerge(ctx context.Context, user string, patch Fields) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, _, err := d.load(ctx, tx, user)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	doc := Merge(current, patch)

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %q: %w", user, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (user_id, body, revision, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   body = excluded.body,
		   revision = documents.revision + 1,
		   updated_at = excluded.updated_at`,
		user,
		string(body),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	var revision int64
	if err := tx.QueryRowContext(ctx, `SELECT revision FROM documents WHERE user_id = ?`, user).Scan(&revision); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	d.hub.Publish(user, withRevision(doc, revision))
	return nil
}

// revisionKey carries the row revision through the hub so a subscription can
// tell a local write from one it already delivered. It never reaches callers.
const revisionKey = "\x00revision"

func withRevision(doc Fields, revision int64) Fields {
	out := doc.Clone()
	out[revisionKey] = revision
	return out
}

// Subscribe delivers the current document, then every local write as it
// happens and every foreign write on the next poll.
func (d *Database) Subscribe(ctx context.Context, user string, onChange func(Fields)) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	var mu sync.Mutex
	var seen int64
	deliver := func(doc Fields, revision int64) {
		mu.Lock()
		if revision <= seen {
			mu.Unlock()
			return
		}
		seen = revision
		mu.Unlock()
		onChange(doc)
	}

	id := d.hub.Add(user, func(doc Fields) {
		revision, _ := doc[revisionKey].(int64)
		delete(doc, revisionKey)
		deliver(doc, revision)
	})

	if doc, revision, err := d.load(ctx, d.db, user); err == nil {
		deliver(doc, revision)
	} else if !errors.Is(err, ErrNotFound) {
		d.hub.Remove(user, id)
		cancel()
		return nil, err
	}

	go func() {
		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				doc, revision, err := d.load(ctx, d.db, user)
				if err != nil {
					continue
				}
				deliver(doc, revision)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.hub.Remove(user, id)
			cancel()
		})
	}, nil
}
