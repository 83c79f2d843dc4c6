package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SecurityLevel selects a SecurityConfig profile. Valid levels are 1..3.
type SecurityLevel uint8

const (
	SecurityLevelBasic    SecurityLevel = 1
	SecurityLevelEnhanced SecurityLevel = 2
	SecurityLevelMaximum  SecurityLevel = 3
)

// MinSecurityLevel and MaxSecurityLevel bound the valid range.
const (
	MinSecurityLevel = SecurityLevelBasic
	MaxSecurityLevel = SecurityLevelMaximum
)

// Valid reports whether l is inside [1,3].
func (l SecurityLevel) Valid() bool {
	return l >= MinSecurityLevel && l <= MaxSecurityLevel
}

// SecurityConfig is the policy profile derived from a wallet's security level.
type SecurityConfig struct {
	Level                SecurityLevel `json:"level"`
	MinGuardians         int           `json:"min_guardians"`
	MaxGuardians         int           `json:"max_guardians"`
	MinGuardianApprovals int           `json:"min_guardian_approvals"`
	RecoveryDelay        time.Duration `json:"recovery_delay"`
	LargeTxDelay         time.Duration `json:"large_tx_delay"`
	RateLimitPeriod      time.Duration `json:"rate_limit_period"`
	MaxTxPerPeriod       int           `json:"max_tx_per_period"`
	LargeTxThreshold     *uint256.Int  `json:"large_tx_threshold"`
	MaxDailyLimit        *uint256.Int  `json:"max_daily_limit"`
}

// DailyWindow is the length of the daily-limit accounting window.
const DailyWindow = 24 * time.Hour

// RateLimitWindow tracks per-wallet transaction frequency and daily volume.
type RateLimitWindow struct {
	WalletID         common.Address `json:"wallet_id"`
	TxCount          int            `json:"tx_count"`
	WindowStart      int64          `json:"window_start"`
	LastTxTimestamp  int64          `json:"last_tx_timestamp"`
	SpentToday       *uint256.Int   `json:"spent_today"`
	DailyWindowStart int64          `json:"daily_window_start"`
}
