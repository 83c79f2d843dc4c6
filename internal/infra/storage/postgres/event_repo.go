package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"github.com/vietddude/walletguard/internal/core/domain"
)

// EventRepo implements storage.EventRepository using PostgreSQL.
type EventRepo struct {
	db *DB
}

func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

type eventRow struct {
	EventID string `db:"event_id"`
	Type    string `db:"type"`
	Wallet  string `db:"wallet"`
	Actor   string `db:"actor"`
	Details []byte `db:"details"`
	Ts      int64  `db:"ts"`
}

func (r eventRow) toDomain() (*domain.SecurityEvent, error) {
	ev := &domain.SecurityEvent{
		ID:        r.EventID,
		Type:      domain.EventType(r.Type),
		Wallet:    common.HexToAddress(r.Wallet),
		Actor:     common.HexToAddress(r.Actor),
		Timestamp: r.Ts,
	}
	if len(r.Details) > 0 {
		if err := json.Unmarshal(r.Details, &ev.Details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", r.EventID, err)
		}
	}
	return ev, nil
}

// Append inserts the batch in one statement, preserving order.
func (r *EventRepo) Append(ctx context.Context, events []*domain.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	n := len(events)
	ids := make(pq.StringArray, n)
	types := make(pq.StringArray, n)
	wallets := make(pq.StringArray, n)
	actors := make(pq.StringArray, n)
	details := make(pq.StringArray, n)
	ts := make(pq.Int64Array, n)
	for i, ev := range events {
		body, err := json.Marshal(ev.Details)
		if err != nil {
			return err
		}
		if ev.Details == nil {
			body = []byte("{}")
		}
		ids[i] = ev.ID
		types[i] = string(ev.Type)
		wallets[i] = ev.Wallet.Hex()
		actors[i] = ev.Actor.Hex()
		details[i] = string(body)
		ts[i] = ev.Timestamp
	}

	query := `
		INSERT INTO security_events (event_id, type, wallet, actor, details, ts)
		SELECT e.event_id, e.type, e.wallet, e.actor, e.details::jsonb, e.ts
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::bigint[])
			WITH ORDINALITY AS e(event_id, type, wallet, actor, details, ts, ord)
		ORDER BY e.ord
	`
	if _, err := r.db.ExecContext(ctx, query, ids, types, wallets, actors, details, ts); err != nil {
		return fmt.Errorf("failed to append events: %w", err)
	}
	return nil
}

func (r *EventRepo) List(ctx context.Context, since int64, limit int) ([]*domain.SecurityEvent, error) {
	query := `
		SELECT event_id, type, wallet, actor, details, ts
		FROM security_events
		WHERE ts >= $1
		ORDER BY ts, id
		LIMIT $2
	`
	return r.query(ctx, query, since, nullLimit(limit))
}

func (r *EventRepo) ListByWallet(ctx context.Context, wallet common.Address, limit int) ([]*domain.SecurityEvent, error) {
	query := `
		SELECT event_id, type, wallet, actor, details, ts
		FROM security_events
		WHERE wallet = $1
		ORDER BY ts, id
		LIMIT $2
	`
	return r.query(ctx, query, wallet.Hex(), nullLimit(limit))
}

func (r *EventRepo) DeleteOlderThan(ctx context.Context, before int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM security_events WHERE ts < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

func (r *EventRepo) query(ctx context.Context, query string, args ...any) ([]*domain.SecurityEvent, error) {
	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out := make([]*domain.SecurityEvent, 0, len(rows))
	for _, row := range rows {
		ev, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// nullLimit maps "no limit" to SQL NULL, which LIMIT treats as ALL.
func nullLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
