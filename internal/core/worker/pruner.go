package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/walletguard/internal/infra/storage"
	"github.com/vietddude/walletguard/internal/metrics"
)

// Pruner deletes security events based on retention policy.
type Pruner struct {
	retention time.Duration
	events    storage.EventRepository
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, events storage.EventRepository) *Pruner {
	return &Pruner{
		retention: retention,
		events:    events,
		now:       time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) int64 {
	threshold := p.now().Add(-p.retention).Unix()

	removed, err := p.events.DeleteOlderThan(ctx, threshold)
	if err != nil {
		slog.Error("Failed to prune security events", "before", threshold, "error", err)
		return 0
	}
	if removed > 0 {
		metrics.EventsPruned.Add(float64(removed))
		slog.Debug("Pruned security events", "removed", removed, "before", threshold)
	}
	return removed
}
