package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/infra/chain/sim"
	"github.com/vietddude/walletguard/internal/security/access"
	"github.com/vietddude/walletguard/internal/security/ledger"
	"github.com/vietddude/walletguard/internal/security/signer"
	"github.com/vietddude/walletguard/internal/units"
)

// =============================================================================
// Fixture
// =============================================================================

var (
	engineAddr = common.HexToAddress("0x00000000000000000000000000000000000e4e11")
	startTime  = time.Unix(1_700_000_000, 0)
)

type account struct {
	key  *btcec.PrivateKey
	addr common.Address
}

func newAccount(seed byte) account {
	b := make([]byte, 32)
	b[0] = 0x42
	b[31] = seed
	key, _ := btcec.PrivKeyFromBytes(b)
	return account{key: key, addr: signer.PubkeyToAddress(key.PubKey())}
}

type recordingSink struct {
	mu     sync.Mutex
	events []*domain.SecurityEvent
}

func (s *recordingSink) EmitBatch(_ context.Context, events []*domain.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *recordingSink) ofType(typ domain.EventType) []*domain.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.SecurityEvent
	for _, ev := range s.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type recordingObserver struct {
	mu      sync.Mutex
	ops     map[string]int
	failed  map[Category]int
	pending int
}

func (o *recordingObserver) OperationDone(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops[op]++
	if err != nil {
		o.failed[Classify(err)]++
	}
}

func (o *recordingObserver) StateChanged(pending, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = pending
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	clock    *ManualClock
	chain    *sim.Chain
	sink     *recordingSink
	observer *recordingObserver
	eng      *Engine
	admin    account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		clock:    NewManualClock(startTime),
		chain:    sim.New(),
		sink:     &recordingSink{},
		observer: &recordingObserver{ops: map[string]int{}, failed: map[Category]int{}},
		admin:    newAccount(0xad),
	}
	eng, err := New(Config{
		Self:     engineAddr,
		Clock:    f.clock,
		Oracle:   f.chain,
		Host:     f.chain,
		Tokens:   f.chain,
		Sink:     f.sink,
		Observer: f.observer,
		Faucet:   f.chain,
	})
	require.NoError(t, err)
	f.eng = eng
	_, err = eng.Initialize(f.ctx, f.admin.addr, f.admin.addr)
	require.NoError(t, err)
	return f
}

func (f *fixture) createWallet(owner account, dailyLimitEth uint64, level domain.SecurityLevel) {
	f.t.Helper()
	_, err := f.eng.CreateWallet(f.ctx, owner.addr, units.Ether(dailyLimitEth), level)
	require.NoError(f.t, err)
}

func (f *fixture) deposit(owner account, amount *uint256.Int) {
	f.t.Helper()
	f.chain.Fund(owner.addr, amount)
	_, err := f.eng.Deposit(f.ctx, owner.addr, owner.addr, amount)
	require.NoError(f.t, err)
}

func (f *fixture) sign(owner account, token, to common.Address, amount *uint256.Int) []byte {
	f.t.Helper()
	nonce, err := f.eng.GetNonce(owner.addr)
	require.NoError(f.t, err)
	sig, err := signer.Sign(owner.key, signer.TransferDigest(owner.addr, token, to, amount, nonce))
	require.NoError(f.t, err)
	return sig
}

func (f *fixture) transfer(owner account, to common.Address, amount *uint256.Int) (*Receipt, error) {
	sig := f.sign(owner, domain.NativeToken, to, amount)
	return f.eng.TransferNative(f.ctx, owner.addr, to, amount, sig)
}

func (f *fixture) wallet(owner account) *WalletInfo {
	f.t.Helper()
	info, err := f.eng.GetWalletInfo(owner.addr)
	require.NoError(f.t, err)
	return info
}

func (f *fixture) grant(role domain.Role, to common.Address) {
	f.t.Helper()
	_, err := f.eng.GrantRole(f.ctx, f.admin.addr, role, to)
	require.NoError(f.t, err)
}

func eventTypes(r *Receipt) []domain.EventType {
	out := make([]domain.EventType, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Type)
	}
	return out
}

// =============================================================================
// Tests
// =============================================================================

func TestNewRequiresHost(t *testing.T) {
	_, err := New(Config{Tokens: sim.New()})
	assert.Error(t, err)
	_, err = New(Config{Host: sim.New()})
	assert.Error(t, err)
}

func TestInitializeOnce(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.eng.HasRole(domain.RoleDefaultAdmin, f.admin.addr))
	assert.True(t, f.eng.HasRole(domain.RoleEmergency, f.admin.addr))

	_, err := f.eng.Initialize(f.ctx, f.admin.addr, newAccount(1).addr)
	assert.EqualError(t, err, "Initializable: already initialized")
	assert.Equal(t, CategoryState, Classify(err))
}

func TestUninitializedEngineRejectsPrivilegedCalls(t *testing.T) {
	chain := sim.New()
	eng, err := New(Config{Host: chain, Tokens: chain})
	require.NoError(t, err)

	someone := newAccount(1).addr
	_, err = eng.Pause(context.Background(), someone)
	assert.ErrorIs(t, err, access.ErrAccessControl)
	_, err = eng.BlacklistAddress(context.Background(), someone, newAccount(2).addr)
	assert.ErrorIs(t, err, access.ErrAccessControl)
}

func TestRoleManagement(t *testing.T) {
	f := newFixture(t)
	op := newAccount(1)

	_, err := f.eng.GrantRole(f.ctx, op.addr, domain.RoleOperator, op.addr)
	assert.ErrorIs(t, err, access.ErrAccessControl)
	assert.Contains(t, err.Error(), "is missing role 0x0000000000000000000000000000000000000000000000000000000000000000")

	r, err := f.eng.GrantRole(f.ctx, f.admin.addr, domain.RoleOperator, op.addr)
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventRoleGranted}, eventTypes(r))
	assert.True(t, f.eng.HasRole(domain.RoleOperator, op.addr))

	_, err = f.eng.RenounceRole(f.ctx, op.addr, domain.RoleOperator)
	require.NoError(t, err)
	assert.False(t, f.eng.HasRole(domain.RoleOperator, op.addr))

	f.grant(domain.RoleAdmin, op.addr)
	_, err = f.eng.RevokeRole(f.ctx, f.admin.addr, domain.RoleAdmin, op.addr)
	require.NoError(t, err)
	assert.False(t, f.eng.HasRole(domain.RoleAdmin, op.addr))
}

func TestPauseControls(t *testing.T) {
	f := newFixture(t)
	alice := newAccount(1)
	f.createWallet(alice, 10, domain.SecurityLevelBasic)
	f.deposit(alice, units.Ether(5))

	_, err := f.eng.Unpause(f.ctx, f.admin.addr)
	assert.EqualError(t, err, "Pausable: not paused")

	_, err = f.eng.Pause(f.ctx, alice.addr)
	assert.ErrorIs(t, err, access.ErrAccessControl)

	_, err = f.eng.Pause(f.ctx, f.admin.addr)
	require.NoError(t, err)
	assert.True(t, f.eng.Paused())

	_, err = f.eng.CreateWallet(f.ctx, newAccount(2).addr, units.Ether(1), domain.SecurityLevelBasic)
	assert.EqualError(t, err, "Pausable: paused")
	_, err = f.transfer(alice, newAccount(3).addr, units.Ether(1))
	assert.EqualError(t, err, "Pausable: paused")

	_, err = f.eng.Unpause(f.ctx, f.admin.addr)
	require.NoError(t, err)
	_, err = f.transfer(alice, newAccount(3).addr, units.Ether(1))
	assert.NoError(t, err)
}

func TestLockAndFunctionPause(t *testing.T) {
	f := newFixture(t)
	alice := newAccount(1)
	f.createWallet(alice, 10, domain.SecurityLevelBasic)
	operator := newAccount(2)
	f.grant(domain.RoleAdmin, operator.addr)

	// ADMIN alone cannot lock
	_, err := f.eng.LockWallet(f.ctx, operator.addr, alice.addr)
	assert.ErrorIs(t, err, access.ErrAccessControl)

	_, err = f.eng.LockWallet(f.ctx, f.admin.addr, alice.addr)
	require.NoError(t, err)
	assert.True(t, f.wallet(alice).Locked)

	_, err = f.eng.AddGuardian(f.ctx, alice.addr, newAccount(3).addr)
	assert.ErrorIs(t, err, ErrWalletLocked)
	_, err = f.eng.SetDailyLimit(f.ctx, alice.addr, units.Ether(1))
	assert.ErrorIs(t, err, ErrWalletLocked)

	_, err = f.eng.UnlockWallet(f.ctx, f.admin.addr, alice.addr)
	require.NoError(t, err)

	_, err = f.eng.PauseFunction(f.ctx, operator.addr, alice.addr, domain.FuncAddGuardian)
	require.NoError(t, err)
	_, err = f.eng.AddGuardian(f.ctx, alice.addr, newAccount(3).addr)
	assert.ErrorIs(t, err, ErrFunctionPaused)
	// other functions stay available
	_, err = f.eng.SetDailyLimit(f.ctx, alice.addr, units.Ether(1))
	assert.NoError(t, err)

	_, err = f.eng.UnpauseFunction(f.ctx, operator.addr, alice.addr, domain.FuncAddGuardian)
	require.NoError(t, err)
	_, err = f.eng.AddGuardian(f.ctx, alice.addr, newAccount(3).addr)
	assert.NoError(t, err)

	_, err = f.eng.PauseFunction(f.ctx, operator.addr, alice.addr, domain.Function("selfDestruct"))
	assert.ErrorIs(t, err, ErrInvalidFunction)
}

func TestCreateWalletOnce(t *testing.T) {
	f := newFixture(t)
	alice := newAccount(1)

	r, err := f.eng.CreateWallet(f.ctx, alice.addr, units.Ether(10), domain.SecurityLevelBasic)
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventWalletCreated}, eventTypes(r))

	info := f.wallet(alice)
	assert.True(t, info.Exists)
	assert.Zero(t, info.Nonce)
	assert.False(t, info.Locked)

	for i := 0; i < 3; i++ {
		_, err = f.eng.CreateWallet(f.ctx, alice.addr, units.Ether(10), domain.SecurityLevelBasic)
		assert.ErrorIs(t, err, ErrWalletAlreadyExists)
	}
}

func TestCreateWalletValidation(t *testing.T) {
	f := newFixture(t)
	alice := newAccount(1)

	_, err := f.eng.CreateWallet(f.ctx, alice.addr, units.Ether(10), 0)
	assert.EqualError(t, err, "InvalidSecurityLevel")
	_, err = f.eng.CreateWallet(f.ctx, alice.addr, units.Ether(10), 4)
	assert.EqualError(t, err, "InvalidSecurityLevel")

	_, err = f.eng.CreateWallet(f.ctx, alice.addr, new(uint256.Int), domain.SecurityLevelBasic)
	assert.ErrorIs(t, err, ErrInvalidDailyLimit)
	_, err = f.eng.CreateWallet(f.ctx, alice.addr, units.Ether(101), domain.SecurityLevelMaximum)
	assert.ErrorIs(t, err, ErrInvalidDailyLimit)
	_, err = f.eng.CreateWallet(f.ctx, alice.addr, units.Ether(100), domain.SecurityLevelMaximum)
	assert.NoError(t, err)
}

func TestSecurityLevelMonotonic(t *testing.T) {
	f := newFixture(t)
	alice := newAccount(1)
	f.createWallet(alice, 800, domain.SecurityLevelBasic)

	_, err := f.eng.UpdateSecurityLevel(f.ctx, alice.addr, domain.SecurityLevelBasic)
	assert.NoError(t, err)

	r, err := f.eng.UpdateSecurityLevel(f.ctx, alice.addr, domain.SecurityLevelEnhanced)
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventSecurityLevelUpdated, domain.EventDailyLimitUpdated}, eventTypes(r))
	info := f.wallet(alice)
	assert.Equal(t, domain.SecurityLevelEnhanced, info.SecurityLevel)
	assert.Equal(t, units.Ether(500), info.DailyLimit)

	_, err = f.eng.UpdateSecurityLevel(f.ctx, alice.addr, domain.SecurityLevelBasic)
	assert.ErrorIs(t, err, ErrCannotDecreaseSecurityLevel)
	_, err = f.eng.UpdateSecurityLevel(f.ctx, alice.addr, 4)
	assert.EqualError(t, err, "InvalidSecurityLevel")

	cfg, err := f.eng.GetSecurityConfig(alice.addr)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxTxPerPeriod)
}

func TestSetDailyLimit(t *testing.T) {
	f := newFixture(t)
	alice := newAccount(1)
	f.createWallet(alice, 10, domain.SecurityLevelBasic)

	_, err := f.eng.SetDailyLimit(f.ctx, alice.addr, units.Ether(1001))
	assert.ErrorIs(t, err, ErrInvalidDailyLimit)
	_, err = f.eng.SetDailyLimit(f.ctx, alice.addr, new(uint256.Int))
	assert.ErrorIs(t, err, ErrInvalidDailyLimit)
	_, err = f.eng.SetDailyLimit(f.ctx, newAccount(9).addr, units.Ether(1))
	assert.ErrorIs(t, err, ErrWalletNotFound)

	_, err = f.eng.SetDailyLimit(f.ctx, alice.addr, units.Ether(1000))
	require.NoError(t, err)
	assert.Equal(t, units.Ether(1000), f.wallet(alice).DailyLimit)
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t)
	stranger := newAccount(1)

	_, err := f.eng.EmergencyWithdraw(f.ctx, f.admin.addr)
	assert.ErrorIs(t, err, ledger.ErrNothingToWithdraw)

	_, err = f.eng.Receive(f.ctx, stranger.addr, units.Ether(2))
	assert.ErrorIs(t, err, ErrExternalCallFailed)
	assert.ErrorIs(t, err, sim.ErrInsufficientFunds)

	f.chain.Fund(stranger.addr, units.Ether(2))
	_, err = f.eng.Receive(f.ctx, stranger.addr, units.Ether(2))
	require.NoError(t, err)
	assert.True(t, f.chain.Balance(stranger.addr).IsZero())
	assert.Equal(t, units.Ether(2), f.chain.Balance(engineAddr))

	_, err = f.eng.EmergencyWithdraw(f.ctx, stranger.addr)
	assert.ErrorIs(t, err, access.ErrAccessControl)

	r, err := f.eng.EmergencyWithdraw(f.ctx, f.admin.addr)
	require.NoError(t, err)
	assert.Equal(t, []domain.EventType{domain.EventEmergencyWithdrawal}, eventTypes(r))
	assert.Equal(t, units.Ether(2), f.chain.Balance(f.admin.addr))
	assert.True(t, f.chain.Balance(engineAddr).IsZero())
	assert.True(t, f.eng.Stats().Stray.IsZero())
}

func TestEmergencyWithdrawRevertsOnDeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.chain.RegisterContract(f.admin.addr, func(context.Context, common.Address, *uint256.Int) error {
		return errors.New("rejects value")
	})
	sender := newAccount(1).addr
	f.chain.Fund(sender, units.Ether(2))
	_, err := f.eng.Receive(f.ctx, sender, units.Ether(2))
	require.NoError(t, err)

	_, err = f.eng.EmergencyWithdraw(f.ctx, f.admin.addr)
	assert.ErrorIs(t, err, ErrExternalCallFailed)
	assert.Equal(t, units.Ether(2), f.eng.Stats().Stray)
}

func TestBlacklistAndTokenWhitelist(t *testing.T) {
	f := newFixture(t)
	bad := newAccount(1).addr
	token := common.HexToAddress("0x00000000000000000000000000000000000070c3")

	_, err := f.eng.BlacklistAddress(f.ctx, bad, bad)
	assert.ErrorIs(t, err, access.ErrAccessControl)

	_, err = f.eng.BlacklistAddress(f.ctx, f.admin.addr, bad)
	require.NoError(t, err)
	assert.True(t, f.eng.IsBlacklisted(bad))
	_, err = f.eng.UnblacklistAddress(f.ctx, f.admin.addr, bad)
	require.NoError(t, err)
	assert.False(t, f.eng.IsBlacklisted(bad))

	_, err = f.eng.WhitelistToken(f.ctx, f.admin.addr, token)
	require.NoError(t, err)
	assert.True(t, f.eng.IsTokenWhitelisted(token))
	_, err = f.eng.DelistToken(f.ctx, f.admin.addr, token)
	require.NoError(t, err)
	assert.False(t, f.eng.IsTokenWhitelisted(token))
}

func TestEventsReachSinkOnlyOnCommit(t *testing.T) {
	f := newFixture(t)
	alice := newAccount(1)
	f.createWallet(alice, 10, domain.SecurityLevelBasic)

	_, err := f.eng.CreateWallet(f.ctx, alice.addr, units.Ether(10), domain.SecurityLevelBasic)
	require.Error(t, err)

	created := f.sink.ofType(domain.EventWalletCreated)
	require.Len(t, created, 1)
	assert.Equal(t, alice.addr, created[0].Actor)
	assert.Equal(t, alice.addr, created[0].Wallet)
	assert.Equal(t, startTime.Unix(), created[0].Timestamp)
	assert.NotEmpty(t, created[0].ID)
	assert.Equal(t, "10000000000000000000", created[0].Details["daily_limit"])

	assert.Equal(t, 2, f.observer.ops["createWallet"])
	assert.Equal(t, 1, f.observer.failed[CategoryState])
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t)
	alice, g1 := newAccount(1), newAccount(2)
	f.createWallet(alice, 500, domain.SecurityLevelBasic)
	f.deposit(alice, units.Ether(300))
	_, err := f.eng.AddGuardian(f.ctx, alice.addr, g1.addr)
	require.NoError(t, err)
	r, err := f.transfer(alice, newAccount(3).addr, units.Ether(150))
	require.NoError(t, err)
	require.NotNil(t, r.QueuedTx)

	raw, err := json.Marshal(f.eng.Snapshot())
	require.NoError(t, err)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	chain := sim.New()
	restored, err := New(Config{Self: engineAddr, Clock: f.clock, Host: chain, Tokens: chain, Faucet: chain})
	require.NoError(t, err)
	require.NoError(t, restored.Restore(&snap))
	assert.Equal(t, units.Ether(300), chain.Balance(engineAddr))

	info, err := restored.GetWalletInfo(alice.addr)
	require.NoError(t, err)
	assert.Equal(t, units.Ether(300), info.Balance)
	assert.Equal(t, uint64(1), info.Nonce)
	assert.Equal(t, 1, info.Guardians)
	assert.True(t, restored.HasRole(domain.RoleDefaultAdmin, f.admin.addr))

	tx, err := restored.GetQueuedTransaction(r.QueuedTx.Hash)
	require.NoError(t, err)
	assert.Equal(t, units.Ether(150), tx.Amount)

	limits, err := restored.GetRateLimitInfo(alice.addr)
	require.NoError(t, err)
	assert.Equal(t, 1, limits.TxCount)
	assert.Equal(t, units.Ether(150), limits.SpentToday)

	snap.Version = 99
	assert.ErrorIs(t, restored.Restore(&snap), ErrUnsupportedSnapshot)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Category
	}{
		{nil, CategoryNone},
		{&access.MissingRoleError{Role: domain.RoleAdmin}, CategoryAuthorization},
		{ErrWalletLocked, CategoryState},
		{access.ErrPaused, CategoryState},
		{ErrInsufficientAllowance, CategoryPolicy},
		{ErrInvalidSignature, CategoryIntegrity},
		{ErrReentrantCall, CategoryIntegrity},
		{ErrContractsNotAllowed, CategoryIntegrity},
		{fmt.Errorf("%w: %w", ErrExternalCallFailed, ErrReentrantCall), CategoryState},
		{errors.New("disk full"), CategoryInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.err), "%v", tc.err)
	}
}
