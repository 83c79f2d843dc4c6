// Package badger is the embedded storage backend.
//
// Keys are prefix-partitioned:
//
//	e:<ts><seq>          event body
//	w:<wallet><ts><seq>  wallet index, value is the event key
//	s:<ts><seq>          snapshot body
//
// Integers are big endian so iteration order is timestamp order.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/storage"
)

var (
	eventPrefix    = []byte("e:")
	walletPrefix   = []byte("w:")
	snapshotPrefix = []byte("s:")
	sequenceKey    = []byte("seq")
)

// Config holds badger options.
type Config struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) the database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(logger{})
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, 1000)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func (s *Store) Events() storage.EventRepository       { return &EventRepo{store: s} }
func (s *Store) Snapshots() storage.SnapshotRepository { return &SnapshotRepo{store: s} }

func (s *Store) Close() error {
	return errors.Join(s.seq.Release(), s.db.Close())
}

// RunGC reclaims value log space every interval until ctx is done.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for s.db.RunValueLogGC(0.7) == nil {
			}
		}
	}
}

func buildKey(prefix []byte, parts ...any) []byte {
	key := append([]byte(nil), prefix...)
	for _, p := range parts {
		switch v := p.(type) {
		case []byte:
			key = append(key, v...)
		case common.Address:
			key = append(key, v.Bytes()...)
		case int64:
			key = binary.BigEndian.AppendUint64(key, uint64(v))
		case uint64:
			key = binary.BigEndian.AppendUint64(key, v)
		default:
			panic(fmt.Sprintf("unsupported key part %T", p))
		}
	}
	return key
}

func clampTs(ts int64) int64 {
	if ts < 0 {
		return 0
	}
	return ts
}

// -----------------------------------------------------------------------------
// Event Repository
// -----------------------------------------------------------------------------

type EventRepo struct {
	store *Store
}

func (r *EventRepo) Append(ctx context.Context, events []*domain.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.store.db.Update(func(txn *badger.Txn) error {
		for _, ev := range events {
			seq, err := r.store.seq.Next()
			if err != nil {
				return err
			}
			body, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			ts := clampTs(ev.Timestamp)
			key := buildKey(eventPrefix, ts, seq)
			if err := txn.Set(key, body); err != nil {
				return err
			}
			if err := txn.Set(buildKey(walletPrefix, ev.Wallet, ts, seq), key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *EventRepo) List(ctx context.Context, since int64, limit int) ([]*domain.SecurityEvent, error) {
	var out []*domain.SecurityEvent
	err := r.store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(buildKey(eventPrefix, clampTs(since))); it.ValidForPrefix(eventPrefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			ev, err := decodeEvent(it.Item())
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

func (r *EventRepo) ListByWallet(ctx context.Context, wallet common.Address, limit int) ([]*domain.SecurityEvent, error) {
	prefix := buildKey(walletPrefix, wallet)
	var out []*domain.SecurityEvent
	err := r.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			eventKey, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(eventKey)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			ev, err := decodeEvent(item)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	return out, err
}

func (r *EventRepo) DeleteOlderThan(ctx context.Context, before int64) (int64, error) {
	var keys [][]byte
	err := r.store.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		end := buildKey(eventPrefix, clampTs(before))
		for it.Seek(eventPrefix); it.ValidForPrefix(eventPrefix); it.Next() {
			item := it.Item()
			if string(item.Key()) >= string(end) {
				break
			}
			ev, err := decodeEvent(item)
			if err != nil {
				return err
			}
			key := item.KeyCopy(nil)
			keys = append(keys, key, buildKey(walletPrefix, ev.Wallet, key[len(eventPrefix):]))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := r.store.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return int64(len(keys) / 2), nil
}

func decodeEvent(item *badger.Item) (*domain.SecurityEvent, error) {
	var ev domain.SecurityEvent
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ev)
	}); err != nil {
		return nil, err
	}
	return &ev, nil
}

// -----------------------------------------------------------------------------
// Snapshot Repository
// -----------------------------------------------------------------------------

type SnapshotRepo struct {
	store *Store
}

func (r *SnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	seq, err := r.store.seq.Next()
	if err != nil {
		return err
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(buildKey(snapshotPrefix, clampTs(snap.TakenAt), seq), body)
	})
}

func (r *SnapshotRepo) Latest(ctx context.Context) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := r.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchSize = 1
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse seek lands on the last key not greater than the seek key.
		it.Seek(append(append([]byte(nil), snapshotPrefix...), 0xff))
		if !it.ValidForPrefix(snapshotPrefix) {
			return storage.ErrSnapshotNotFound
		}
		var s domain.Snapshot
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		}); err != nil {
			return err
		}
		snap = &s
		return nil
	})
	return snap, err
}

// logger routes badger's internal logging through slog.
type logger struct{}

func (logger) Errorf(format string, args ...any) {
	slog.Error("badger: " + fmt.Sprintf(format, args...))
}

func (logger) Warningf(format string, args ...any) {
	slog.Warn("badger: " + fmt.Sprintf(format, args...))
}

func (logger) Infof(format string, args ...any) {
	slog.Debug("badger: " + fmt.Sprintf(format, args...))
}

func (logger) Debugf(format string, args ...any) {
	slog.Debug("badger: " + fmt.Sprintf(format, args...))
}
