package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/storage"
)

// SnapshotRepo implements storage.SnapshotRepository using PostgreSQL.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

func (r *SnapshotRepo) Save(ctx context.Context, snap *domain.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO engine_snapshots (taken_at, version, body) VALUES ($1, $2, $3)`,
		snap.TakenAt, snap.Version, body,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Latest(ctx context.Context) (*domain.Snapshot, error) {
	var body []byte
	err := r.db.GetContext(ctx, &body, `SELECT body FROM engine_snapshots ORDER BY id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
