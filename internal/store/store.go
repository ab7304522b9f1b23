package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added ordered-scan index on records(collection, seq)
const currentSchemaVersion = 2

// Store is the durable local store.
//
// A Store is constructed with New and becomes usable after Init. It is safe
// for concurrent use; SQLite serializes writers on a single connection.
type Store struct {
	path        string
	byteBudget  int64
	collections map[string]Collection
	order       []string
	now         func() time.Time

	mu sync.RWMutex
	db *sql.DB
}

// Option configures a Store.
type Option func(*Store)

// WithByteBudget rejects writes that would push the total stored bytes over n.
// Zero or negative disables the check.
func WithByteBudget(n int64) Option {
	return func(s *Store) {
		s.byteBudget = n
	}
}

// WithCollections replaces DefaultCollections.
func WithCollections(cols ...Collection) Option {
	return func(s *Store) {
		s.collections = make(map[string]Collection, len(cols))
		s.order = s.order[:0]
		for _, c := range cols {
			s.collections[c.Name] = c
			s.order = append(s.order, c.Name)
		}
	}
}

// WithNow overrides the clock used for updated_at stamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an uninitialized store for the database at path.
// No I/O happens until Init. Use ":memory:" for a throwaway database.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path: path,
		now:  time.Now,
	}
	WithCollections(DefaultCollections...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open is New followed by Init.
func Open(path string, opts ...Option) (*Store, error) {
	s := New(path, opts...)
	if err := s.Init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Init opens the database, applies pragmas and the schema, and registers
// every configured collection with its indexes.
//
// Init is idempotent - safe to call on every process start and more than
// once on the same Store. It never drops or rewrites existing data.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	for _, name := range s.order {
		if err := s.collections[name].validate(); err != nil {
			return fmt.Errorf("init store: %w", err)
		}
	}

	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("init store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(s.path))
	if err != nil {
		return fmt.Errorf("init store: open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("init store: connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// A single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("init store: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("init store: %w", err)
	}
	if err := s.registerCollections(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("init store: %w", err)
	}

	s.db = db
	slog.Debug("local store ready", "path", s.path, "collections", len(s.order))
	return nil
}

// Close closes the database. Operations after Close fail with
// ErrStorageUnavailable until Init is called again.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Initialized reports whether Init has completed.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

// Path returns the database path the store was created with.
func (s *Store) Path() string {
	return s.path
}

// ByteBudget returns the configured byte budget (0 when unlimited).
func (s *Store) ByteBudget() int64 {
	return s.byteBudget
}

// Collections returns the registered collection names in declaration order.
func (s *Store) Collections() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// handle returns the open database or ErrStorageUnavailable.
func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrStorageUnavailable
	}
	return s.db, nil
}

// collection looks up a registered collection.
func (s *Store) collection(name string) (Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// dsn adds connection parameters unless the caller supplied their own.
// _txlock=immediate makes write transactions take the lock up front so
// read-then-write transactions cannot deadlock on upgrade.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_txlock=immediate"
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}
	if version < 2 {
		if err := migrateToV2(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the index used by insertion-ordered scans.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_records_collection_seq
		ON records(collection, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// migrateToV2 re-keys lessons from their bare id to courseId:id.
func migrateToV2(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v2: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`UPDATE records
		 SET value = json_set(value, '$.key', json_extract(value, '$.courseId') || ':' || key)
		 WHERE collection = 'lessons' AND json_extract(value, '$.key') IS NULL`,
		`UPDATE records
		 SET key = json_extract(value, '$.key'),
		     size = length(CAST(value AS BLOB)) + length(CAST(json_extract(value, '$.key') AS BLOB))
		 WHERE collection = 'lessons' AND key <> json_extract(value, '$.key')`,
		`UPDATE collections SET key_path = 'key' WHERE name = 'lessons'`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v2: commit: %w", err)
	}
	return nil
}

// registerCollections records every configured collection and creates a
// partial expression index per declared collection index. Existing
// registrations are left untouched.
func (s *Store) registerCollections(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("register collections: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(time.RFC3339Nano)
	for _, name := range s.order {
		c := s.collections[name]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collections (name, key_path, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(name) DO NOTHING
		`, c.Name, c.KeyPath, now); err != nil {
			return fmt.Errorf("register collection %s: %w", c.Name, err)
		}

		for _, idx := range c.indexNames() {
			path := c.Indexes[idx]
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO collection_indexes (collection, name, path)
				VALUES (?, ?, ?)
				ON CONFLICT(collection, name) DO NOTHING
			`, c.Name, idx, path); err != nil {
				return fmt.Errorf("register index %s.%s: %w", c.Name, idx, err)
			}

			// Identifiers were validated, so formatting them in is safe.
			ddl := fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %s ON records(json_extract(value, '%s'), seq) WHERE collection = '%s'`,
				sqlIndexName(c.Name, idx), jsonPath(path), c.Name,
			)
			if _, err := tx.ExecContext(ctx, ddl); err != nil {
				return fmt.Errorf("create index %s.%s: %w", c.Name, idx, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("register collections: commit: %w", err)
	}
	return nil
}

// RegisteredCollections reads the collection registry from the database.
// Collections registered by other builds of the store are included.
func (s *Store) RegisteredCollections(ctx context.Context) ([]string, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query collections: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return names, nil
}

// encodeValue marshals v to JSON unless it already is JSON.
func encodeValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case json.RawMessage:
		return val, nil
	case []byte:
		return val, nil
	default:
		return json.Marshal(v)
	}
}
