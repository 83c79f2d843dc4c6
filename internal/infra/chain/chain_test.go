package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/infra/chain/sim"
	"github.com/vietddude/walletguard/internal/units"
)

type fixedOracle map[common.Address]bool

func (o fixedOracle) IsContract(_ context.Context, addr common.Address) (bool, error) {
	return o[addr], nil
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSim, m)

	m, err = ParseMode("evm")
	require.NoError(t, err)
	assert.Equal(t, ModeEVM, m)

	_, err = ParseMode("solana")
	assert.Error(t, err)
}

func TestComposite(t *testing.T) {
	ctx := context.Background()
	contract := common.HexToAddress("0xc0")
	user := common.HexToAddress("0x01")
	book := sim.New()
	host := Compose(fixedOracle{contract: true}, book)

	ok, err := host.IsContract(ctx, contract)
	require.NoError(t, err)
	assert.True(t, ok)
	// the book knows nothing about contracts, the oracle decides
	ok, err = book.IsContract(ctx, contract)
	require.NoError(t, err)
	assert.False(t, ok)

	vault := common.HexToAddress("0x02")
	book.Fund(user, units.Ether(3))
	require.NoError(t, host.Collect(ctx, user, vault, units.Ether(2)))
	require.NoError(t, host.Deliver(ctx, vault, user, units.Ether(1)))
	assert.Equal(t, units.Ether(2), book.Balance(user))
	assert.Equal(t, units.Ether(1), book.Balance(vault))
}
