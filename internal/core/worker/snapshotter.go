package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/storage"
	"github.com/vietddude/walletguard/internal/metrics"
)

// finalSaveTimeout bounds the snapshot written on shutdown.
const finalSaveTimeout = 10 * time.Second

// Source produces the state to persist.
type Source interface {
	Snapshot() *domain.Snapshot
}

// Snapshotter periodically persists the engine state.
type Snapshotter struct {
	interval time.Duration
	source   Source
	repo     storage.SnapshotRepository
}

func NewSnapshotter(interval time.Duration, source Source, repo storage.SnapshotRepository) *Snapshotter {
	return &Snapshotter{interval: interval, source: source, repo: repo}
}

// Start saves every interval and once more when ctx is cancelled.
func (s *Snapshotter) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.interval = time.Minute
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
			if err := s.Save(final); err != nil {
				slog.Error("Failed to save final snapshot", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Save(ctx); err != nil {
				slog.Error("Failed to save snapshot", "error", err)
			}
		}
	}
}

// Save persists the current state.
func (s *Snapshotter) Save(ctx context.Context) error {
	snap := s.source.Snapshot()
	if err := s.repo.Save(ctx, snap); err != nil {
		metrics.SnapshotsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotsTotal.WithLabelValues("ok").Inc()
	slog.Debug("Snapshot saved", "taken_at", snap.TakenAt, "wallets", len(snap.Wallets))
	return nil
}
