package control

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletguard/internal/core/config"
	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/security/access"
	"github.com/vietddude/walletguard/internal/units"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func parseConfig(t *testing.T, yaml string) *config.AppConfig {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func TestNewGuardBootstrapsAdmin(t *testing.T) {
	cfg := parseConfig(t, `
engine:
  self: "0x00000000000000000000000000000000000e4e11"
  admin: "0x00000000000000000000000000000000000000ad"
  contracts: ["0x00000000000000000000000000000000000000c0"]
`)
	g, err := NewGuard(context.Background(), cfg)
	require.NoError(t, err)
	defer g.close()

	stats := g.Engine().Stats()
	assert.True(t, stats.Initialized)
	assert.Equal(t, []common.Address{admin}, stats.Admins)
	assert.True(t, g.Engine().HasRole(domain.RoleEmergency, admin))
}

func TestNewGuardEVMHost(t *testing.T) {
	cfg := parseConfig(t, `
engine:
  host: evm
  rpc_urls: ["http://127.0.0.1:1"]
`)
	// No request is made until the first code lookup.
	g, err := NewGuard(context.Background(), cfg)
	require.NoError(t, err)
	defer g.close()
	assert.NotNil(t, g.rpc)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 0
badger:
  path: ` + dir + `
engine:
  admin: "0x00000000000000000000000000000000000000ad"
worker:
  snapshot_interval: 1h
`
	ctx := context.Background()

	g, err := NewGuard(ctx, parseConfig(t, yaml))
	require.NoError(t, err)
	require.NoError(t, g.Start(ctx))
	_, err = g.Engine().CreateWallet(ctx, alice, units.Ether(10), domain.SecurityLevelBasic)
	require.NoError(t, err)
	_, err = g.Engine().GrantRole(ctx, admin, domain.RoleOperator, admin)
	require.NoError(t, err)
	_, err = g.Engine().FundAccount(ctx, admin, alice, units.Ether(3))
	require.NoError(t, err)
	_, err = g.Engine().Deposit(ctx, alice, alice, units.Ether(2))
	require.NoError(t, err)

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, g.Stop(stopCtx))

	g, err = NewGuard(ctx, parseConfig(t, yaml))
	require.NoError(t, err)
	defer g.close()

	info, err := g.Engine().GetWalletInfo(alice)
	require.NoError(t, err)
	assert.Equal(t, alice, info.Owner)
	assert.Equal(t, units.Ether(10), info.DailyLimit)
	assert.Equal(t, units.Ether(2), info.Balance)

	// so does the host book
	acct, err := g.Engine().GetHostAccount(ctx, alice, domain.NativeToken)
	require.NoError(t, err)
	assert.Equal(t, units.Ether(1), acct.Balance)

	// The restored engine is already initialized.
	_, err = g.Engine().Initialize(ctx, admin, admin)
	assert.ErrorIs(t, err, access.ErrAlreadyInitialized)
}
