// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/storage"
)

var (
	walletA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	walletB = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func event(id string, typ domain.EventType, wallet common.Address, ts int64) *domain.SecurityEvent {
	return &domain.SecurityEvent{
		ID:        id,
		Type:      typ,
		Wallet:    wallet,
		Actor:     wallet,
		Details:   map[string]string{"amount": "1"},
		Timestamp: ts,
	}
}

func ids(events []*domain.SecurityEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}

// RunEventRepository exercises an empty EventRepository.
func RunEventRepository(t *testing.T, repo storage.EventRepository) {
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, []*domain.SecurityEvent{
		event("e1", domain.EventWalletCreated, walletA, 100),
		event("e2", domain.EventDeposit, walletA, 100),
	}))
	require.NoError(t, repo.Append(ctx, []*domain.SecurityEvent{
		event("e3", domain.EventWalletCreated, walletB, 200),
	}))
	require.NoError(t, repo.Append(ctx, []*domain.SecurityEvent{
		event("e4", domain.EventTransferExecuted, walletA, 300),
	}))
	require.NoError(t, repo.Append(ctx, nil))

	all, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, ids(all))
	assert.Equal(t, domain.EventDeposit, all[1].Type)
	assert.Equal(t, walletA, all[1].Wallet)
	assert.Equal(t, "1", all[1].Details["amount"])

	recent, err := repo.List(ctx, 200, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e4"}, ids(recent))

	limited, err := repo.List(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e3"}, ids(limited))

	byWallet, err := repo.ListByWallet(ctx, walletA, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e4"}, ids(byWallet))

	removed, err := repo.DeleteOlderThan(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	all, err = repo.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e4"}, ids(all))
	byWallet, err = repo.ListByWallet(ctx, walletA, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4"}, ids(byWallet))
}

// RunSnapshotRepository exercises an empty SnapshotRepository.
func RunSnapshotRepository(t *testing.T, repo storage.SnapshotRepository) {
	ctx := context.Background()

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)

	first := &domain.Snapshot{Version: domain.SnapshotVersion, TakenAt: 100, Stray: uint256.NewInt(7)}
	second := &domain.Snapshot{
		Version: domain.SnapshotVersion,
		TakenAt: 200,
		Stray:   uint256.NewInt(9),
		Wallets: []*domain.Wallet{{
			ID:            walletA,
			Owner:         walletB,
			Exists:        true,
			DailyLimit:    uint256.NewInt(1000),
			SecurityLevel: domain.SecurityLevelEnhanced,
			Balance:       uint256.NewInt(5),
			Nonce:         3,
		}},
	}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), latest.TakenAt)
	assert.Equal(t, uint256.NewInt(9), latest.Stray)
	require.Len(t, latest.Wallets, 1)
	assert.Equal(t, walletB, latest.Wallets[0].Owner)
	assert.Equal(t, uint64(3), latest.Wallets[0].Nonce)
}
