// Package memory is the non-persistent storage backend.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/storage"
)

type MemoryStorage struct {
	mu       sync.RWMutex
	events   []*domain.SecurityEvent
	snapshot *domain.Snapshot
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Events() storage.EventRepository       { return &EventRepo{store: s} }
func (s *MemoryStorage) Snapshots() storage.SnapshotRepository { return &SnapshotRepo{store: s} }
func (s *MemoryStorage) Close() error                          { return nil }

// -----------------------------------------------------------------------------
// Event Repository
// -----------------------------------------------------------------------------

type EventRepo struct {
	store *MemoryStorage
}

func (r *EventRepo) Append(ctx context.Context, events []*domain.SecurityEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.events = append(r.store.events, events...)
	return nil
}

func (r *EventRepo) List(ctx context.Context, since int64, limit int) ([]*domain.SecurityEvent, error) {
	return r.filter(limit, func(ev *domain.SecurityEvent) bool {
		return ev.Timestamp >= since
	}), nil
}

func (r *EventRepo) ListByWallet(ctx context.Context, wallet common.Address, limit int) ([]*domain.SecurityEvent, error) {
	return r.filter(limit, func(ev *domain.SecurityEvent) bool {
		return ev.Wallet == wallet
	}), nil
}

// filter keeps the (timestamp, insertion) order.
func (r *EventRepo) filter(limit int, keep func(*domain.SecurityEvent) bool) []*domain.SecurityEvent {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.SecurityEvent
	for _, ev := range r.store.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *EventRepo) DeleteOlderThan(ctx context.Context, before int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.events[:0]
	var removed int64
	for _, ev := range r.store.events {
		if ev.Timestamp < before {
			removed++
			continue
		}
		kept = append(kept, ev)
	}
	r.store.events = kept
	return removed, nil
}

// -----------------------------------------------------------------------------
// Snapshot Repository
// -----------------------------------------------------------------------------

type SnapshotRepo struct {
	store *MemoryStorage
}

func (r *SnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.snapshot = snap
	return nil
}

func (r *SnapshotRepo) Latest(ctx context.Context) (*domain.Snapshot, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if r.store.snapshot == nil {
		return nil, storage.ErrSnapshotNotFound
	}
	return r.store.snapshot, nil
}
