// Package emitter delivers committed security events to their sinks.
package emitter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/redis"
	"github.com/vietddude/walletguard/internal/infra/storage"
	"github.com/vietddude/walletguard/internal/metrics"
)

// Emitter defines the interface for emitting security events
type Emitter interface {
	// Name identifies the sink in logs and metrics
	Name() string

	// EmitBatch sends multiple events in order
	EmitBatch(ctx context.Context, events []*domain.SecurityEvent) error

	// Close releases the sink
	Close() error
}

// -----------------------------------------------------------------------------
// Log
// -----------------------------------------------------------------------------

// LogEmitter writes every event through slog. Integrity violations are logged
// at Warn.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Name() string { return "log" }

func (e *LogEmitter) EmitBatch(ctx context.Context, events []*domain.SecurityEvent) error {
	for _, ev := range events {
		level := slog.LevelInfo
		if ev.Type == domain.EventIntegrityViolation {
			level = slog.LevelWarn
		}
		attrs := []any{
			"type", ev.Type,
			"wallet", ev.Wallet.Hex(),
			"actor", ev.Actor.Hex(),
			"id", ev.ID,
		}
		for k, v := range ev.Details {
			attrs = append(attrs, k, v)
		}
		e.logger.Log(ctx, level, "Security event", attrs...)
	}
	return nil
}

func (e *LogEmitter) Close() error { return nil }

// -----------------------------------------------------------------------------
// Storage
// -----------------------------------------------------------------------------

// StorageEmitter appends events to the event repository.
type StorageEmitter struct {
	repo storage.EventRepository
}

func NewStorageEmitter(repo storage.EventRepository) *StorageEmitter {
	return &StorageEmitter{repo: repo}
}

func (e *StorageEmitter) Name() string { return "storage" }

func (e *StorageEmitter) EmitBatch(ctx context.Context, events []*domain.SecurityEvent) error {
	return e.repo.Append(ctx, events)
}

func (e *StorageEmitter) Close() error { return nil }

// -----------------------------------------------------------------------------
// Redis stream
// -----------------------------------------------------------------------------

// Publisher is the subset of the redis client the stream emitter needs.
type Publisher interface {
	Publish(ctx context.Context, events []*domain.SecurityEvent) error
	Close() error
}

var _ Publisher = (*redis.Client)(nil)

// StreamEmitter publishes events to a redis stream.
type StreamEmitter struct {
	pub Publisher
}

func NewStreamEmitter(pub Publisher) *StreamEmitter {
	return &StreamEmitter{pub: pub}
}

func (e *StreamEmitter) Name() string { return "redis" }

func (e *StreamEmitter) EmitBatch(ctx context.Context, events []*domain.SecurityEvent) error {
	return e.pub.Publish(ctx, events)
}

func (e *StreamEmitter) Close() error { return e.pub.Close() }

// -----------------------------------------------------------------------------
// Fan-out
// -----------------------------------------------------------------------------

// Fanout delivers each batch to every sink. A failing sink does not stop the
// others; the errors are joined.
type Fanout struct {
	sinks []Emitter
}

func NewFanout(sinks ...Emitter) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) EmitBatch(ctx context.Context, events []*domain.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}
	var errs []error
	for _, s := range f.sinks {
		if err := s.EmitBatch(ctx, events); err != nil {
			metrics.EmitErrorsTotal.WithLabelValues(s.Name()).Inc()
			slog.Error("Failed to emit events", "sink", s.Name(), "count", len(events), "error", err)
			errs = append(errs, err)
		}
	}
	for _, ev := range events {
		metrics.EventsEmitted.WithLabelValues(string(ev.Type)).Inc()
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
