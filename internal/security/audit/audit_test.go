package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/chain/sim"
	"github.com/vietddude/walletguard/internal/security/engine"
	"github.com/vietddude/walletguard/internal/security/signer"
	"github.com/vietddude/walletguard/internal/units"
)

var (
	walletA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	walletB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	mallory = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func ev(typ domain.EventType, wallet common.Address, details map[string]string) *domain.SecurityEvent {
	return &domain.SecurityEvent{ID: string(typ), Type: typ, Wallet: wallet, Actor: wallet, Details: details}
}

func kinds(findings []Finding) []Kind {
	out := make([]Kind, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Kind)
	}
	return out
}

func TestLevelDecrease(t *testing.T) {
	findings := Check([]*domain.SecurityEvent{
		ev(domain.EventWalletCreated, walletA, map[string]string{"security_level": "2"}),
		ev(domain.EventSecurityLevelUpdated, walletA, map[string]string{"from": "2", "to": "3"}),
		ev(domain.EventSecurityLevelUpdated, walletA, map[string]string{"from": "3", "to": "1"}),
		// Stated "from" cannot hide an earlier, higher level.
		ev(domain.EventWalletCreated, walletB, map[string]string{"security_level": "3"}),
		ev(domain.EventSecurityLevelUpdated, walletB, map[string]string{"from": "1", "to": "2"}),
	}, 0)

	require.Len(t, findings, 2)
	assert.Equal(t, KindLevelDecrease, findings[0].Kind)
	assert.Equal(t, walletA, findings[0].Wallet)
	assert.Equal(t, "level 3 -> 1", findings[0].Detail)
	assert.Equal(t, walletB, findings[1].Wallet)
}

func TestNonceRegression(t *testing.T) {
	findings := Check([]*domain.SecurityEvent{
		ev(domain.EventTransferExecuted, walletA, map[string]string{"nonce": "0"}),
		ev(domain.EventTransferQueued, walletA, map[string]string{"nonce": "1"}),
		ev(domain.EventTransferExecuted, walletB, map[string]string{"nonce": "0"}),
		ev(domain.EventTransferExecuted, walletA, map[string]string{"nonce": "1"}),
		ev(domain.EventTransferExecuted, walletA, map[string]string{"nonce": "2"}),
	}, 0)

	require.Len(t, findings, 1)
	assert.Equal(t, KindNonceRegression, findings[0].Kind)
	assert.Equal(t, "nonce 1 after 1", findings[0].Detail)
}

func TestRecoveryBelowQuorum(t *testing.T) {
	findings := Check([]*domain.SecurityEvent{
		ev(domain.EventRecoveryInitiated, walletA, map[string]string{"quorum": "3"}),
		ev(domain.EventRecoveryExecuted, walletA, map[string]string{"approvals": "3", "quorum": "3"}),
		// The executed event claims a lower quorum than the one recorded.
		ev(domain.EventRecoveryInitiated, walletB, map[string]string{"quorum": "4"}),
		ev(domain.EventRecoveryExecuted, walletB, map[string]string{"approvals": "3", "quorum": "3"}),
	}, 0)

	require.Len(t, findings, 1)
	assert.Equal(t, KindRecoveryBelowQuorum, findings[0].Kind)
	assert.Equal(t, walletB, findings[0].Wallet)
	assert.Equal(t, "3 approvals, quorum 4", findings[0].Detail)
}

func TestRepeatedViolationsReportedOnce(t *testing.T) {
	c := NewChecker(2)
	violation := &domain.SecurityEvent{Type: domain.EventIntegrityViolation, Actor: mallory}

	assert.Empty(t, c.Observe(violation))
	raised := c.Observe(violation)
	require.Len(t, raised, 1)
	assert.Equal(t, KindRepeatedViolations, raised[0].Kind)
	assert.Equal(t, mallory, raised[0].Actor)
	assert.Empty(t, c.Observe(violation))
	assert.Len(t, c.Findings(), 1)
}

func TestTransferWhileLocked(t *testing.T) {
	findings := Check([]*domain.SecurityEvent{
		ev(domain.EventWalletLocked, walletA, nil),
		ev(domain.EventTransferExecuted, walletA, nil),
		ev(domain.EventQueuedTxExecuted, walletA, nil),
		ev(domain.EventTransferExecuted, walletB, nil),
		ev(domain.EventWalletUnlocked, walletA, nil),
		ev(domain.EventTransferExecuted, walletA, nil),
	}, 0)

	assert.Equal(t, []Kind{KindTransferWhileLocked, KindTransferWhileLocked}, kinds(findings))
}

type collector struct {
	mu     sync.Mutex
	events []*domain.SecurityEvent
}

func (c *collector) EmitBatch(_ context.Context, events []*domain.SecurityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func key(seed byte) (*btcec.PrivateKey, common.Address) {
	b := make([]byte, 32)
	b[0] = 0x77
	b[31] = seed
	k, _ := btcec.PrivKeyFromBytes(b)
	return k, signer.PubkeyToAddress(k.PubKey())
}

// The events of a real engine run carry no findings except the violations
// the run provokes on purpose.
func TestEngineStream(t *testing.T) {
	ctx := context.Background()
	sink := &collector{}
	clock := engine.NewManualClock(time.Unix(1_700_000_000, 0))
	host := sim.New()
	eng, err := engine.New(engine.Config{
		Self:   common.HexToAddress("0x00000000000000000000000000000000000e4e11"),
		Clock:  clock,
		Host:   host,
		Tokens: host,
		Sink:   sink,
	})
	require.NoError(t, err)

	_, admin := key(0xad)
	aliceKey, alice := key(1)
	_, bob := key(2)

	_, err = eng.Initialize(ctx, admin, admin)
	require.NoError(t, err)
	_, err = eng.CreateWallet(ctx, alice, units.Ether(100), domain.SecurityLevelBasic)
	require.NoError(t, err)
	host.Fund(alice, units.Ether(10))
	_, err = eng.Deposit(ctx, alice, alice, units.Ether(10))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		nonce, err := eng.GetNonce(alice)
		require.NoError(t, err)
		sig, err := signer.Sign(aliceKey, signer.TransferDigest(alice, domain.NativeToken, bob, units.Ether(1), nonce))
		require.NoError(t, err)
		_, err = eng.TransferNative(ctx, alice, bob, units.Ether(1), sig)
		require.NoError(t, err)
	}
	_, err = eng.UpdateSecurityLevel(ctx, alice, domain.SecurityLevelEnhanced)
	require.NoError(t, err)

	for i := 0; i < DefaultViolationThreshold; i++ {
		_, err = eng.TransferNative(ctx, alice, bob, units.Ether(1), make([]byte, 65))
		require.ErrorIs(t, err, engine.ErrInvalidSignature)
	}

	findings := Check(sink.events, 0)
	require.Len(t, findings, 1)
	assert.Equal(t, KindRepeatedViolations, findings[0].Kind)
	assert.Equal(t, alice, findings[0].Actor)
}
