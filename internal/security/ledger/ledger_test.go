package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func create(t *testing.T, l *Ledger, owner common.Address) *domain.Wallet {
	t.Helper()
	w, _, err := l.Create(owner, uint256.NewInt(100), domain.SecurityLevelBasic, 1)
	require.NoError(t, err)
	return w
}

func TestCreateOnce(t *testing.T) {
	l := New()
	w := create(t, l, alice)
	assert.Equal(t, alice, w.ID)
	assert.True(t, w.Exists)
	assert.Zero(t, w.Nonce)
	assert.False(t, w.Locked)

	_, _, err := l.Create(alice, uint256.NewInt(1), domain.SecurityLevelBasic, 2)
	assert.ErrorIs(t, err, ErrWalletAlreadyExists)
}

func TestCreateUndo(t *testing.T) {
	l := New()
	_, undo, err := l.Create(alice, uint256.NewInt(1), domain.SecurityLevelBasic, 1)
	require.NoError(t, err)
	undo()
	assert.False(t, l.HasWallet(alice))
	assert.Zero(t, l.Count())
}

func TestBalanceDeltaUndo(t *testing.T) {
	l := New()
	create(t, l, alice)

	l.Credit(alice, uint256.NewInt(50))
	undoDebit, err := l.Debit(alice, uint256.NewInt(20))
	require.NoError(t, err)

	// a credit that lands between the debit and its undo survives the undo
	l.Credit(alice, uint256.NewInt(5))
	undoDebit()

	w, err := l.Get(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(55), w.Balance.Uint64())

	_, err = l.Debit(alice, uint256.NewInt(56))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestSetOwnerRewritesIndex(t *testing.T) {
	l := New()
	create(t, l, alice)

	undo, err := l.SetOwner(alice, bob)
	require.NoError(t, err)
	assert.False(t, l.HasWallet(alice))
	w, err := l.ByOwner(bob)
	require.NoError(t, err)
	assert.Equal(t, alice, w.ID)
	assert.Equal(t, bob, w.Owner)

	undo()
	assert.True(t, l.HasWallet(alice))
	assert.False(t, l.HasWallet(bob))
}

func TestCreateAfterLosingWallet(t *testing.T) {
	l := New()
	create(t, l, alice)
	_, err := l.SetOwner(alice, bob)
	require.NoError(t, err)

	w := create(t, l, alice)
	assert.NotEqual(t, alice, w.ID)
	id, err := l.Resolve(alice)
	require.NoError(t, err)
	assert.Equal(t, w.ID, id)
	assert.Equal(t, 2, l.Count())
}

func TestFieldMutators(t *testing.T) {
	l := New()
	create(t, l, alice)

	undoLock := l.SetLocked(alice, true)
	undoPause := l.SetFunctionPaused(alice, domain.FuncTransferNative, true)
	undoNonce := l.IncrementNonce(alice)

	w, _ := l.Get(alice)
	assert.True(t, w.Locked)
	assert.True(t, w.IsPaused(domain.FuncTransferNative))
	assert.Equal(t, uint64(1), w.Nonce)

	undoNonce()
	undoPause()
	undoLock()
	w, _ = l.Get(alice)
	assert.False(t, w.Locked)
	assert.Empty(t, w.PausedFunctions)
	assert.Zero(t, w.Nonce)
}

func TestStray(t *testing.T) {
	l := New()
	_, _, err := l.TakeStray()
	assert.ErrorIs(t, err, ErrNothingToWithdraw)

	l.AddStray(uint256.NewInt(9))
	got, undo, err := l.TakeStray()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.Uint64())
	assert.True(t, l.Stray().IsZero())
	undo()
	assert.Equal(t, uint64(9), l.Stray().Uint64())
}

func TestRestore(t *testing.T) {
	l := New()
	create(t, l, alice)
	_, err := l.SetOwner(alice, bob)
	require.NoError(t, err)
	l.AddStray(uint256.NewInt(3))

	other := New()
	other.Restore(l.Wallets(), l.Stray())
	id, err := other.Resolve(bob)
	require.NoError(t, err)
	assert.Equal(t, alice, id)
	assert.Equal(t, uint64(3), other.Stray().Uint64())
}
