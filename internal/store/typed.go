package store

import (
	"context"
)

// GetAs reads key from collection and decodes it into a T.
func GetAs[T any](ctx context.Context, s *Store, collection, key string) (T, bool, error) {
	var out T
	rec, ok, err := s.Get(ctx, collection, key)
	if err != nil || !ok {
		return out, ok, err
	}
	if err := rec.Decode(&out); err != nil {
		return out, false, err
	}
	return out, true, nil
}

// AllAs decodes every record in collection, in insertion order.
func AllAs[T any](ctx context.Context, s *Store, collection string) ([]T, error) {
	recs, err := s.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](recs)
}

// AllByIndexAs decodes the records matched by an index scan.
func AllByIndexAs[T any](ctx context.Context, s *Store, collection, index string, r KeyRange) ([]T, error) {
	recs, err := s.GetAllByIndex(ctx, collection, index, r)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](recs)
}

func decodeAll[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := rec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
