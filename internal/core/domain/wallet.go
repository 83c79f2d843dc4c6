package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Wallet is the core per-wallet state held by the ledger.
// ID is the account that created the wallet and never changes; Owner moves on recovery.
type Wallet struct {
	ID              common.Address    `json:"id"`
	Owner           common.Address    `json:"owner"`
	Exists          bool              `json:"exists"`
	DailyLimit      *uint256.Int      `json:"daily_limit"`
	SecurityLevel   SecurityLevel     `json:"security_level"`
	Locked          bool              `json:"locked"`
	PausedFunctions map[Function]bool `json:"paused_functions,omitempty"`
	Nonce           uint64            `json:"nonce"`
	Balance         *uint256.Int      `json:"balance"`
	CreatedAt       int64             `json:"created_at"`
}

// Copy returns a deep copy safe to hand out of the ledger.
func (w *Wallet) Copy() *Wallet {
	c := *w
	c.DailyLimit = new(uint256.Int).Set(w.DailyLimit)
	c.Balance = new(uint256.Int).Set(w.Balance)
	c.PausedFunctions = make(map[Function]bool, len(w.PausedFunctions))
	for fn, paused := range w.PausedFunctions {
		if paused {
			c.PausedFunctions[fn] = true
		}
	}
	return &c
}

// IsPaused reports whether fn is disabled for this wallet.
func (w *Wallet) IsPaused(fn Function) bool {
	return w.PausedFunctions[fn]
}

// Function identifies a wallet-scoped operation that can be paused individually.
type Function string

const (
	FuncTransferNative   Function = "transferNative"
	FuncTransferTokens   Function = "transferTokens"
	FuncAddGuardian      Function = "addGuardian"
	FuncRemoveGuardian   Function = "removeGuardian"
	FuncInitiateRecovery Function = "initiateRecovery"
	FuncApproveRecovery  Function = "approveRecovery"
	FuncUpdateSecurity   Function = "updateSecurityLevel"
	FuncSetDailyLimit    Function = "setDailyLimit"
	FuncConfirmQueuedTx  Function = "confirmQueuedTransaction"
)

// Functions lists every pausable function.
var Functions = []Function{
	FuncTransferNative,
	FuncTransferTokens,
	FuncAddGuardian,
	FuncRemoveGuardian,
	FuncInitiateRecovery,
	FuncApproveRecovery,
	FuncUpdateSecurity,
	FuncSetDailyLimit,
	FuncConfirmQueuedTx,
}

// ParseFunction validates a function identifier.
func ParseFunction(s string) (Function, bool) {
	for _, fn := range Functions {
		if string(fn) == s {
			return fn, true
		}
	}
	return "", false
}
