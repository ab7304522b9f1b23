package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/store"
)

var (
	// ErrInvalidItemType is returned when enqueuing an unknown item type.
	ErrInvalidItemType = errors.New("invalid item type")

	// ErrInvalidPolicy is returned when an item carries an unknown conflictResolution.
	ErrInvalidPolicy = errors.New("invalid conflict resolution policy")

	// ErrDuplicateItem is returned when enqueuing an id already in the queue.
	ErrDuplicateItem = errors.New("item already queued")

	// ErrItemNotFound is returned by Update for ids not in the queue.
	ErrItemNotFound = errors.New("queue item not found")

	// ErrVersionRegression is returned when an update would lower an item's version.
	ErrVersionRegression = errors.New("version regression")
)

// Manager is the sync queue over the store's syncQueue collection.
//
// Thread-safety: Manager is safe for concurrent use. Writes that read the
// current item first (AddItem, Update) are serialized by an internal mutex.
type Manager struct {
	store *store.Store
	ids   IDGenerator
	now   func() time.Time

	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator sets the item id generator. The default is UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) {
		m.ids = g
	}
}

// WithClock sets the clock used to stamp enqueue times.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New returns a Manager backed by s.
func New(s *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store: s,
		ids:   UUIDv7Generator{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add enqueues a new item of type t with a fresh id, the current time and
// version 1.
func (m *Manager) Add(ctx context.Context, t model.ItemType, payload model.Payload) (model.SyncItem, error) {
	return m.AddItem(ctx, model.SyncItem{Type: t, Payload: payload})
}

// AddItem enqueues a caller-built item. A missing id, timestamp or version
// is filled in; everything else is kept.
func (m *Manager) AddItem(ctx context.Context, item model.SyncItem) (model.SyncItem, error) {
	if !item.Type.Valid() {
		return model.SyncItem{}, fmt.Errorf("%w: %q", ErrInvalidItemType, item.Type)
	}
	if item.ConflictResolution != "" && !item.ConflictResolution.Valid() {
		return model.SyncItem{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, item.ConflictResolution)
	}

	item = item.Clone()
	if item.ID == "" {
		item.ID = m.ids.Generate()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = m.now()
	}
	item.Timestamp = item.Timestamp.UTC()
	if item.Version < 1 {
		item.Version = 1
	}
	if item.Payload == nil {
		item.Payload = model.Payload{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists, err := m.store.Get(ctx, store.CollectionSyncQueue, item.ID)
	if err != nil {
		return model.SyncItem{}, fmt.Errorf("add to sync queue: %w", err)
	}
	if exists {
		return model.SyncItem{}, fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
	}

	if _, err := m.store.Put(ctx, store.CollectionSyncQueue, item); err != nil {
		return model.SyncItem{}, fmt.Errorf("add to sync queue: %w", err)
	}

	slog.Debug("item queued", "id", item.ID, "type", item.Type)
	return item, nil
}

// List returns every queued item in enqueue order.
func (m *Manager) List(ctx context.Context) ([]model.SyncItem, error) {
	items, err := store.AllAs[model.SyncItem](ctx, m.store, store.CollectionSyncQueue)
	if err != nil {
		return nil, fmt.Errorf("list sync queue: %w", err)
	}
	return items, nil
}

// Get returns the queued item with the given id.
func (m *Manager) Get(ctx context.Context, id string) (model.SyncItem, bool, error) {
	item, ok, err := store.GetAs[model.SyncItem](ctx, m.store, store.CollectionSyncQueue, id)
	if err != nil {
		return model.SyncItem{}, false, fmt.Errorf("get queue item %s: %w", id, err)
	}
	return item, ok, nil
}

// Remove deletes an item. Removing a missing item is not an error.
func (m *Manager) Remove(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, store.CollectionSyncQueue, id); err != nil {
		return fmt.Errorf("remove from sync queue: %w", err)
	}
	slog.Debug("item dequeued", "id", id)
	return nil
}

// Clear removes every queued item.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Clear(ctx, store.CollectionSyncQueue); err != nil {
		return fmt.Errorf("clear sync queue: %w", err)
	}
	return nil
}

// Update persists a changed item in place, keeping its queue position.
// The item must already be queued and its version must not go down.
func (m *Manager) Update(ctx context.Context, item model.SyncItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok, err := m.Get(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}
	if item.Version < current.Version {
		return fmt.Errorf("%w: item %s from %d to %d", ErrVersionRegression, item.ID, current.Version, item.Version)
	}

	if _, err := m.store.Put(ctx, store.CollectionSyncQueue, item); err != nil {
		return fmt.Errorf("update queue item %s: %w", item.ID, err)
	}
	return nil
}

// Len returns the number of queued items.
func (m *Manager) Len(ctx context.Context) (int, error) {
	n, err := m.store.Count(ctx, store.CollectionSyncQueue)
	if err != nil {
		return 0, fmt.Errorf("count sync queue: %w", err)
	}
	return n, nil
}

// Replace swaps the whole queue for items, in the order given.
// Items are validated as in AddItem but not filled in.
func (m *Manager) Replace(ctx context.Context, items []model.SyncItem) error {
	values := make([]any, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if !it.Type.Valid() {
			return fmt.Errorf("replace sync queue: %w: %q", ErrInvalidItemType, it.Type)
		}
		if it.ConflictResolution != "" && !it.ConflictResolution.Valid() {
			return fmt.Errorf("replace sync queue: %w: %q", ErrInvalidPolicy, it.ConflictResolution)
		}
		if seen[it.ID] {
			return fmt.Errorf("replace sync queue: %w: %s", ErrDuplicateItem, it.ID)
		}
		seen[it.ID] = true
		values = append(values, it)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Replace(ctx, store.CollectionSyncQueue, values); err != nil {
		return fmt.Errorf("replace sync queue: %w", err)
	}
	return nil
}
