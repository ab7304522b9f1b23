// Package offline is the public face of learnsync: course downloads,
// progress tracking, asset caching and synchronization behind one Service.
//
// A Service is inert until InitializeOfflineMode opens its store. Every
// other operation fails with ErrNotInitialized until then, and again after
// CleanupOfflineMode.
package offline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/learnsync/internal/conflict"
	"github.com/roach88/learnsync/internal/engine"
	"github.com/roach88/learnsync/internal/model"
	"github.com/roach88/learnsync/internal/queue"
	"github.com/roach88/learnsync/internal/quota"
	"github.com/roach88/learnsync/internal/remote"
	"github.com/roach88/learnsync/internal/store"
)

// Service wires the store, queue, resolver, orchestrator and quota monitor.
//
// Thread-safety: all methods are safe for concurrent use. Initialization
// and cleanup take an exclusive lock; other operations share it.
type Service struct {
	path       string
	gateway    remote.Gateway
	byteBudget int64
	now        func() time.Time
	itemIDs    queue.IDGenerator
	resultIDs  queue.IDGenerator
	history    int
	estimator  func(*store.Store) quota.Estimator
	defaults   engine.SyncOptions

	mu sync.RWMutex
	rt *components
}

// components are built by InitializeOfflineMode.
type components struct {
	store    *store.Store
	queue    *queue.Manager
	resolver *conflict.Resolver
	engine   *engine.Engine
	monitor  *quota.Monitor
}

// Option configures a Service.
type Option func(*Service)

// WithGateway sets the remote gateway. Default: an in-process
// remote.MemoryGateway.
func WithGateway(g remote.Gateway) Option {
	return func(s *Service) {
		s.gateway = g
	}
}

// WithByteBudget caps the bytes held by the local store.
func WithByteBudget(n int64) Option {
	return func(s *Service) {
		s.byteBudget = n
	}
}

// WithClock sets the clock shared by every component.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator sets the generator for queue item ids.
func WithIDGenerator(g queue.IDGenerator) Option {
	return func(s *Service) {
		s.itemIDs = g
	}
}

// WithResultIDs sets the generator for sync history ids.
func WithResultIDs(g queue.IDGenerator) Option {
	return func(s *Service) {
		s.resultIDs = g
	}
}

// WithHistoryLimit bounds the sync history.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		s.history = n
	}
}

// WithEstimator selects the storage estimator, built once the store is open.
// Default: quota.StoreEstimator, which falls back without a byte budget.
func WithEstimator(fn func(*store.Store) quota.Estimator) Option {
	return func(s *Service) {
		s.estimator = fn
	}
}

// WithSyncDefaults sets the options that fill the zero fields of every
// SyncData call.
func WithSyncDefaults(o engine.SyncOptions) Option {
	return func(s *Service) {
		s.defaults = o
	}
}

// New creates a Service backed by the database at path. No I/O happens
// until InitializeOfflineMode.
func New(path string, opts ...Option) *Service {
	s := &Service{
		path: path,
		now:  time.Now,
		estimator: func(st *store.Store) quota.Estimator {
			return quota.StoreEstimator{Store: st}
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gateway == nil {
		s.gateway = remote.NewMemoryGateway().WithClock(s.now)
	}
	return s
}

// InitializeOfflineMode opens the store and builds the sync components.
// Calling it again on an initialized Service is a no-op.
func (s *Service) InitializeOfflineMode(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rt != nil {
		return nil
	}

	st := store.New(s.path, store.WithByteBudget(s.byteBudget), store.WithNow(s.now))
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("initialize offline mode: %w", err)
	}

	queueOpts := []queue.Option{queue.WithClock(s.now)}
	if s.itemIDs != nil {
		queueOpts = append(queueOpts, queue.WithIDGenerator(s.itemIDs))
	}
	q := queue.New(st, queueOpts...)

	r := conflict.New(st, q, s.gateway,
		conflict.WithClock(s.now),
		conflict.WithLocalApplier(conflict.LocalApplierFunc(func(ctx context.Context, item model.SyncItem) error {
			return applyLocal(ctx, st, s.now, item)
		})),
	)

	engineOpts := []engine.EngineOption{
		engine.WithClock(s.now),
		engine.WithHistoryLimit(s.history),
		engine.WithDefaultOptions(s.defaults),
	}
	if s.resultIDs != nil {
		engineOpts = append(engineOpts, engine.WithResultIDs(s.resultIDs))
	}

	var est quota.Estimator
	if s.estimator != nil {
		est = s.estimator(st)
	}

	s.rt = &components{
		store:    st,
		queue:    q,
		resolver: r,
		engine:   engine.New(st, q, r, s.gateway, engineOpts...),
		monitor:  quota.New(est),
	}

	slog.Info("offline mode initialized", "path", s.path, "byte_budget", s.byteBudget)
	return nil
}

// CleanupOfflineMode closes the store. The Service can be initialized again.
func (s *Service) CleanupOfflineMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rt == nil {
		return ErrNotInitialized
	}
	s.rt.engine.Stop()
	err := s.rt.store.Close()
	s.rt = nil
	if err != nil {
		return fmt.Errorf("cleanup offline mode: %w", err)
	}
	slog.Info("offline mode cleaned up", "path", s.path)
	return nil
}

// Initialized reports whether InitializeOfflineMode has succeeded.
func (s *Service) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rt != nil
}

// ready returns the components or ErrNotInitialized.
func (s *Service) ready() (*components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rt == nil {
		return nil, ErrNotInitialized
	}
	return s.rt, nil
}

// Engine returns the orchestrator, for callers that drive its Run loop.
func (s *Service) Engine() (*engine.Engine, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, err
	}
	return rt.engine, nil
}

// ClearData empties every collection. The store stays open.
func (s *Service) ClearData(ctx context.Context) error {
	rt, err := s.ready()
	if err != nil {
		return err
	}
	for _, name := range rt.store.Collections() {
		if err := rt.store.Clear(ctx, name); err != nil {
			return fmt.Errorf("clear data: %w", err)
		}
	}
	slog.Info("offline data cleared")
	return nil
}

// GetStorageInfo reports storage usage; it falls back to a fixed budget
// when no estimate is available.
func (s *Service) GetStorageInfo(ctx context.Context) (quota.Info, error) {
	rt, err := s.ready()
	if err != nil {
		return quota.Info{}, err
	}
	return rt.monitor.StorageInfo(ctx), nil
}

// Collections lists the collections registered in the store.
func (s *Service) Collections(ctx context.Context) ([]string, error) {
	rt, err := s.ready()
	if err != nil {
		return nil, err
	}
	names, err := rt.store.RegisteredCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}
