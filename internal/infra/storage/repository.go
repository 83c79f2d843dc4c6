package storage

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot was ever saved.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// EventRepository is the append-only security event log.
type EventRepository interface {
	// Append stores events in the given order.
	Append(ctx context.Context, events []*domain.SecurityEvent) error

	// List returns events with Timestamp >= since, oldest first. limit <= 0
	// means no limit.
	List(ctx context.Context, since int64, limit int) ([]*domain.SecurityEvent, error)

	// ListByWallet returns the events of one wallet, oldest first.
	ListByWallet(ctx context.Context, wallet common.Address, limit int) ([]*domain.SecurityEvent, error)

	// DeleteOlderThan removes events with Timestamp < before and reports how
	// many were removed.
	DeleteOlderThan(ctx context.Context, before int64) (int64, error)
}

// SnapshotRepository persists engine snapshots.
type SnapshotRepository interface {
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Latest returns the most recently saved snapshot or ErrSnapshotNotFound.
	Latest(ctx context.Context) (*domain.Snapshot, error)
}

// Store bundles the repositories of one backend.
type Store interface {
	Events() EventRepository
	Snapshots() SnapshotRepository
	Close() error
}
