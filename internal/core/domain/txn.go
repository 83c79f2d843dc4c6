package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeToken is the token address used for native-value transfers.
var NativeToken = common.Address{}

// QueuedTransaction is an oversized transfer waiting out the large-transaction delay.
type QueuedTransaction struct {
	Hash         common.Hash    `json:"hash"`
	WalletID     common.Address `json:"wallet_id"`
	From         common.Address `json:"from"`
	To           common.Address `json:"to"`
	Token        common.Address `json:"token"`
	Amount       *uint256.Int   `json:"amount"`
	QueuedAt     int64          `json:"queued_at"`
	ExecutableAt int64          `json:"executable_at"`
	ReservedDay  int64          `json:"reserved_day"`
	Executed     bool           `json:"executed"`
	ExecutedAt   int64          `json:"executed_at,omitempty"`
	Cancelled    bool           `json:"cancelled"`
}

// IsNative reports whether the queued transfer moves native value.
func (q *QueuedTransaction) IsNative() bool {
	return q.Token == NativeToken
}

// Ready reports whether the delay has elapsed at now.
func (q *QueuedTransaction) Ready(now int64) bool {
	return now >= q.ExecutableAt
}

// Copy returns a deep copy.
func (q *QueuedTransaction) Copy() *QueuedTransaction {
	c := *q
	c.Amount = new(uint256.Int).Set(q.Amount)
	return &c
}
