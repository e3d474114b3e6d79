// Package history keeps the time series of aggregate counts used for trend reports.
package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-outcome/metrics"
	"github.com/ethereum-optimism/infra/op-outcome/requirements"
)

// Store persists snapshots in insertion order.
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	Append(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) ([]Snapshot, error)
	Clear(ctx context.Context) error
}

// Config holds the configuration for a History
type Config struct {
	Log   log.Logger
	Store Store
	Clock func() time.Time
}

// History is the append-only sequence of snapshots used for trend reports.
// Appends are serialized so concurrent aggregation passes never interleave.
type History struct {
	log   log.Logger
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

// New creates a History. Without a store, snapshots are kept in memory.
func New(cfg Config) *History {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &History{log: cfg.Log, store: cfg.Store, now: cfg.Clock}
}

// Append snapshots ro at the current time.
func (h *History) Append(ctx context.Context, runID string, ro *requirements.RequirementsOutcomes) (Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := NewSnapshot(h.now(), ro)
	snap.RunID = runID
	if err := h.store.Append(ctx, snap); err != nil {
		metrics.RecordErrorDetails("history_append", err)
		return Snapshot{}, fmt.Errorf("failed to append snapshot to %s history: %w", h.store.Name(), err)
	}
	metrics.RecordSnapshot(h.store.Name())
	h.log.Debug("Appended history snapshot", "backend", h.store.Name(), "run_id", runID, "total", snap.Overall.Total)
	return snap, nil
}

// Get returns every snapshot in the order it was appended.
func (h *History) Get(ctx context.Context) ([]Snapshot, error) {
	snaps, err := h.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s history: %w", h.store.Name(), err)
	}
	return snaps, nil
}

// Clear drops every snapshot. It cannot be undone.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear %s history: %w", h.store.Name(), err)
	}
	h.log.Info("Cleared history", "backend", h.store.Name())
	return nil
}

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots []Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Append(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := make([]Snapshot, len(s.snapshots))
	copy(snaps, s.snapshots)
	return snaps, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = nil
	return nil
}
