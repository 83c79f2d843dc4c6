package guardian

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	wallet = common.HexToAddress("0x1000000000000000000000000000000000000001")
	owner  = wallet
)

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{0xaa, b})
}

func TestAddBound(t *testing.T) {
	r := New()
	for i := byte(1); i <= 5; i++ {
		_, err := r.Add(wallet, owner, addr(i), false, 5)
		require.NoError(t, err)
	}
	_, err := r.Add(wallet, owner, addr(6), false, 5)
	assert.ErrorIs(t, err, ErrMaxGuardiansReached)

	_, err = r.Add(wallet, owner, addr(1), false, 5)
	assert.ErrorIs(t, err, ErrGuardianAlreadyExists)
	assert.Equal(t, 5, r.Count(wallet))
}

func TestAddChecksOrder(t *testing.T) {
	r := New()
	_, err := r.Add(wallet, owner, owner, true, 5)
	assert.ErrorIs(t, err, ErrGuardianIsOwner)

	_, err = r.Add(wallet, owner, addr(1), true, 5)
	assert.ErrorIs(t, err, ErrGuardianIsBlacklisted)
	assert.False(t, r.Is(wallet, addr(1)))
}

func TestRemoveAndUndo(t *testing.T) {
	r := New()
	_, err := r.Add(wallet, owner, addr(1), false, 5)
	require.NoError(t, err)

	undo, err := r.Remove(wallet, addr(1))
	require.NoError(t, err)
	assert.False(t, r.Is(wallet, addr(1)))

	_, err = r.Remove(wallet, addr(1))
	assert.ErrorIs(t, err, ErrGuardianNotFound)

	undo()
	assert.True(t, r.Is(wallet, addr(1)))
}

func TestSnapshotRestore(t *testing.T) {
	r := New()
	_, err := r.Add(wallet, owner, addr(2), false, 5)
	require.NoError(t, err)
	_, err = r.Add(wallet, owner, addr(1), false, 5)
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, []common.Address{addr(1), addr(2)}, snap[wallet])

	other := New()
	other.Restore(snap)
	assert.Equal(t, []common.Address{addr(1), addr(2)}, other.List(wallet))
	assert.Empty(t, other.List(addr(9)))
}
