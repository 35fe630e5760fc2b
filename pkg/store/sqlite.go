package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-crudkit/pkg/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	UNIQUE (collection, id)
)`

// SQLite stores documents as JSON text, one row per document.
type SQLite struct {
	db     *sql.DB
	hub    *hub
	logger *zap.SugaredLogger

	// writeMu spans read-merge-write so concurrent patches of one
	// document do not drop each other's keys.
	writeMu sync.Mutex
}

// OpenSQLite opens (and migrates) the database at dsn, e.g.
// "file:crudkit.db" or "file::memory:".
func OpenSQLite(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// A single connection keeps in-memory databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate sqlite: %w", err)
	}
	s := &SQLite{db: db, logger: logger}
	s.hub = newHub(s.List, logger)
	logger.Debugw("sqlite store ready", "dsn", dsn)
	return s, nil
}

func (s *SQLite) Add(ctx context.Context, collection string, doc model.Record) (string, error) {
	id := uuid.NewString()
	if err := s.insert(ctx, collection, id, withoutID(doc)); err != nil {
		return "", err
	}
	s.hub.publish(ctx, collection)
	return id, nil
}

func (s *SQLite) Set(ctx context.Context, collection, id string, doc model.Record, mergeDoc bool) error {
	if id == "" {
		return missingID(collection)
	}
	if err := s.set(ctx, collection, id, withoutID(doc), mergeDoc); err != nil {
		return err
	}
	s.hub.publish(ctx, collection)
	return nil
}

func (s *SQLite) set(ctx context.Context, collection, id string, data model.Record, mergeDoc bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if mergeDoc {
		existing, err := s.read(ctx, collection, id)
		switch {
		case err == nil:
			data = merge(existing, data)
		case !errors.Is(err, ErrNotFound):
			return err
		}
	}
	return s.upsert(ctx, collection, id, data)
}

func (s *SQLite) Update(ctx context.Context, collection, id string, patch model.Record) error {
	if id == "" {
		return missingID(collection)
	}
	if err := s.update(ctx, collection, id, withoutID(patch)); err != nil {
		return err
	}
	s.hub.publish(ctx, collection)
	return nil
}

func (s *SQLite) update(ctx context.Context, collection, id string, patch model.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.read(ctx, collection, id)
	if err != nil {
		return err
	}
	return s.upsert(ctx, collection, id, merge(existing, patch))
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	if id == "" {
		return missingID(collection)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id); err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	s.hub.publish(ctx, collection)
	return nil
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (model.Record, error) {
	data, err := s.read(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return withID(data, id), nil
}

func (s *SQLite) List(ctx context.Context, collection string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("store: scan %s: %w", collection, err)
		}
		data, err := decodeDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("store: decode %s/%s: %w", collection, id, err)
		}
		out = append(out, withID(data, id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list %s: %w", collection, err)
	}
	return out, nil
}

func (s *SQLite) Where(ctx context.Context, collection string, conds ...Condition) ([]model.Record, error) {
	if err := ValidateConditions(conds); err != nil {
		return nil, err
	}
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return Filter(docs, conds), nil
}

func (s *SQLite) Subscribe(ctx context.Context, collection string, conds ...Condition) (<-chan Snapshot, error) {
	return s.hub.subscribe(ctx, collection, conds)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) read(ctx context.Context, collection, id string) (model.Record, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(raw)
}

func (s *SQLite) insert(ctx context.Context, collection, id string, data model.Record) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", collection, err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`, collection, id, string(raw)); err != nil {
		return fmt.Errorf("store: insert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *SQLite) upsert(ctx context.Context, collection, id string, data model.Record) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", collection, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`, collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("store: write %s/%s: %w", collection, id, err)
	}
	return nil
}

func decodeDocument(raw string) (model.Record, error) {
	var data model.Record
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = model.Record{}
	}
	return data, nil
}
