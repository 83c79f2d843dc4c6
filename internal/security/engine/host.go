package engine

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
)

// CodeOracle tells whether an account holds contract code.
type CodeOracle interface {
	IsContract(ctx context.Context, addr common.Address) (bool, error)
}

// Host moves native value in and out of the engine. Collect pulls value sent
// by from into the engine account. Deliver pays to and runs its receive hook
// when to is a contract; a hook error aborts the transfer.
type Host interface {
	Collect(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	Deliver(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}

// Faucet seeds the accounts of a simulated host. Its state travels in engine
// snapshots.
type Faucet interface {
	Fund(addr common.Address, amount *uint256.Int)
	Mint(token, to common.Address, amount *uint256.Int)
	Approve(token, owner, spender common.Address, amount *uint256.Int)
	Balance(addr common.Address) *uint256.Int
	TokenBalance(token, owner common.Address) *uint256.Int
	ExportState() *domain.HostState
	ImportState(st *domain.HostState)
}

// TokenLedger is the ERC-20 book the engine pulls tokens through.
type TokenLedger interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*uint256.Int, error)
	TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *uint256.Int) error
}

// Sink receives the events of every committed operation.
type Sink interface {
	EmitBatch(ctx context.Context, events []*domain.SecurityEvent) error
}

// Observer is notified after every operation.
type Observer interface {
	OperationDone(op string, err error)
	StateChanged(pendingQueued, activeRecoveries int)
}

// Clock supplies the engine's notion of now.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type nopOracle struct{}

func (nopOracle) IsContract(context.Context, common.Address) (bool, error) { return false, nil }
