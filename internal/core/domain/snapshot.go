package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SnapshotVersion is bumped whenever the snapshot layout changes incompatibly.
const SnapshotVersion = 1

// Snapshot is the full persisted engine state.
type Snapshot struct {
	Version    int                                 `json:"version"`
	TakenAt    int64                               `json:"taken_at"`
	Global     GlobalSnapshot                      `json:"global"`
	Wallets    []*Wallet                           `json:"wallets"`
	Guardians  map[common.Address][]common.Address `json:"guardians"`
	Recoveries []*RecoveryRequest                  `json:"recoveries"`
	Windows    []*RateLimitWindow                  `json:"windows"`
	Queue      []*QueuedTransaction                `json:"queue"`
	Stray      *uint256.Int                        `json:"stray"`
	Host       *HostState                          `json:"host,omitempty"`
}

// HostState is the account book of a simulated host.
type HostState struct {
	Balances map[common.Address]*uint256.Int    `json:"balances"`
	Tokens   map[common.Address]*TokenBookState `json:"tokens"`
}

// TokenBookState holds one ERC-20 token's balances and allowances, the
// latter keyed by owner then spender.
type TokenBookState struct {
	Balances   map[common.Address]*uint256.Int                    `json:"balances"`
	Allowances map[common.Address]map[common.Address]*uint256.Int `json:"allowances"`
}

// GlobalSnapshot holds the contract-wide security state.
type GlobalSnapshot struct {
	Initialized bool                      `json:"initialized"`
	Paused      bool                      `json:"paused"`
	Roles       map[Role][]common.Address `json:"roles"`
	Blacklist   []common.Address          `json:"blacklist"`
	Tokens      []common.Address          `json:"tokens"`
}
