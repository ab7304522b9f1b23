package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one stored value.
type Record struct {
	Collection string
	Key        string
	Value      json.RawMessage
	Seq        int64 // Insertion order within the collection, preserved by upserts
	Size       int64 // Bytes charged against the byte budget
	UpdatedAt  time.Time
}

// Decode unmarshals the record value into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Value, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", r.Collection, r.Key, err)
	}
	return nil
}

// KeyRange restricts an index scan.
//
// When Only is set the scan matches values equal to it and the bounds are
// ignored. Otherwise Lower and Upper are inclusive bounds unless the matching
// Open flag is set; a nil bound is unbounded. Desc reverses the order.
type KeyRange struct {
	Only      any
	Lower     any
	Upper     any
	LowerOpen bool
	UpperOpen bool
	Desc      bool
}

// Only returns a KeyRange matching a single index value.
func Only(v any) KeyRange {
	return KeyRange{Only: v}
}

// Bound returns a KeyRange with inclusive bounds. Either may be nil.
func Bound(lower, upper any) KeyRange {
	return KeyRange{Lower: lower, Upper: upper}
}

// Put inserts or replaces value in collection and returns its key.
//
// The key is read from the value's key path. Replacing a value keeps its
// original insertion position.
func (s *Store) Put(ctx context.Context, collection string, value any) (string, error) {
	db, err := s.handle()
	if err != nil {
		return "", err
	}
	c, err := s.collection(collection)
	if err != nil {
		return "", err
	}

	data, key, err := prepareValue(c, value)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", collection, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("put %s: begin tx: %w", collection, err)
	}
	defer tx.Rollback()

	if err := s.putTx(ctx, tx, collection, key, data); err != nil {
		return "", fmt.Errorf("put %s/%s: %w", collection, key, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("put %s/%s: commit: %w", collection, key, err)
	}
	return key, nil
}

// putTx checks the byte budget and upserts one record.
func (s *Store) putTx(ctx context.Context, tx *sql.Tx, collection, key string, data []byte) error {
	size := int64(len(data) + len(key))

	if s.byteBudget > 0 {
		var used, old int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(size), 0) FROM records`,
		).Scan(&used); err != nil {
			return fmt.Errorf("read usage: %w", err)
		}
		err := tx.QueryRowContext(ctx,
			`SELECT size FROM records WHERE collection = ? AND key = ?`,
			collection, key,
		).Scan(&old)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read record size: %w", err)
		}
		if delta := size - old; delta > 0 && used+delta > s.byteBudget {
			return &QuotaError{
				Collection: collection,
				Key:        key,
				Used:       used,
				Delta:      delta,
				Budget:     s.byteBudget,
			}
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (collection, key, value, seq, size, updated_at)
		VALUES (?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM records WHERE collection = ?),
			?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET
			value = excluded.value,
			size = excluded.size,
			updated_at = excluded.updated_at
	`, collection, key, string(data), collection, size, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

// Get returns the record stored under key. The bool is false when absent.
func (s *Store) Get(ctx context.Context, collection, key string) (Record, bool, error) {
	db, err := s.handle()
	if err != nil {
		return Record{}, false, err
	}
	if _, err := s.collection(collection); err != nil {
		return Record{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT collection, key, value, seq, size, updated_at
		FROM records
		WHERE collection = ? AND key = ?
	`, collection, key)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return rec, true, nil
}

// GetAll returns every record in collection in insertion order.
func (s *Store) GetAll(ctx context.Context, collection string) ([]Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if _, err := s.collection(collection); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT collection, key, value, seq, size, updated_at
		FROM records
		WHERE collection = ?
		ORDER BY seq ASC
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", collection, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// GetAllByIndex returns the records whose index value falls in r, ordered by
// the index value and then by insertion order.
func (s *Store) GetAllByIndex(ctx context.Context, collection, index string, r KeyRange) ([]Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	field, ok := c.Indexes[index]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, collection, index)
	}

	// Must match the indexed expression exactly for SQLite to use the index.
	expr := fmt.Sprintf("json_extract(value, '%s')", jsonPath(field))

	var (
		where = []string{"collection = ?"}
		args  = []any{collection}
	)
	switch {
	case r.Only != nil:
		where = append(where, expr+" = ?")
		args = append(args, bindIndexValue(r.Only))
	default:
		if r.Lower != nil {
			op := " >= ?"
			if r.LowerOpen {
				op = " > ?"
			}
			where = append(where, expr+op)
			args = append(args, bindIndexValue(r.Lower))
		}
		if r.Upper != nil {
			op := " <= ?"
			if r.UpperOpen {
				op = " < ?"
			}
			where = append(where, expr+op)
			args = append(args, bindIndexValue(r.Upper))
		}
	}

	dir := "ASC"
	if r.Desc {
		dir = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT collection, key, value, seq, size, updated_at
		FROM records
		WHERE %s
		ORDER BY %s %s, seq %s
	`, strings.Join(where, " AND "), expr, dir, dir)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get by index %s.%s: %w", collection, index, err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// Delete removes key from collection. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := s.collection(collection); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND key = ?`,
		collection, key,
	); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// Clear removes every record in collection.
func (s *Store) Clear(ctx context.Context, collection string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := s.collection(collection); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ?`, collection,
	); err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}
	return nil
}

// Replace atomically swaps the contents of collection for values.
// Values keep the order given.
func (s *Store) Replace(ctx context.Context, collection string, values []any) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	type prepared struct {
		key  string
		data []byte
	}
	batch := make([]prepared, 0, len(values))
	for i, v := range values {
		data, key, err := prepareValue(c, v)
		if err != nil {
			return fmt.Errorf("replace %s: value %d: %w", collection, i, err)
		}
		batch = append(batch, prepared{key: key, data: data})
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace %s: begin tx: %w", collection, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ?`, collection,
	); err != nil {
		return fmt.Errorf("replace %s: clear: %w", collection, err)
	}
	for _, p := range batch {
		if err := s.putTx(ctx, tx, collection, p.key, p.data); err != nil {
			return fmt.Errorf("replace %s/%s: %w", collection, p.key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace %s: commit: %w", collection, err)
	}
	return nil
}

// Count returns the number of records in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	if _, err := s.collection(collection); err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Usage returns the total bytes stored across all collections.
func (s *Store) Usage(ctx context.Context) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}

	var used int64
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM records`,
	).Scan(&used); err != nil {
		return 0, fmt.Errorf("usage: %w", err)
	}
	return used, nil
}

// prepareValue encodes value and extracts its primary key.
func prepareValue(c Collection, value any) ([]byte, string, error) {
	data, err := encodeValue(value)
	if err != nil {
		return nil, "", fmt.Errorf("encode value: %w", err)
	}
	if !json.Valid(data) {
		return nil, "", fmt.Errorf("value is not valid JSON")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, "", fmt.Errorf("value must be a JSON object: %w", err)
	}

	key, err := keyFromJSON(fields[c.KeyPath])
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s.%s: %v", ErrMissingKey, c.Name, c.KeyPath, err)
	}
	return data, key, nil
}

// keyFromJSON accepts string and number keys.
func keyFromJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("absent")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errors.New("empty string")
		}
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported key %s", raw)
}

// bindIndexValue converts a Go value to what json_extract returns for it.
func bindIndexValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(val.String(), 64); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		value     string
		updatedAt string
	)
	if err := row.Scan(&rec.Collection, &rec.Key, &value, &rec.Seq, &rec.Size, &updatedAt); err != nil {
		return Record{}, err
	}
	rec.Value = json.RawMessage(value)
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}
