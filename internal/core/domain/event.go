package domain

import "github.com/ethereum/go-ethereum/common"

// SecurityEvent is an audit record emitted by every committed mutation.
type SecurityEvent struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Wallet    common.Address    `json:"wallet"`
	Actor     common.Address    `json:"actor"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

type EventType string

const (
	EventInitialized          EventType = "initialized"
	EventRoleGranted          EventType = "role_granted"
	EventRoleRevoked          EventType = "role_revoked"
	EventPaused               EventType = "paused"
	EventUnpaused             EventType = "unpaused"
	EventAddressBlacklisted   EventType = "address_blacklisted"
	EventAddressUnblacklisted EventType = "address_unblacklisted"
	EventTokenWhitelisted     EventType = "token_whitelisted"
	EventTokenDelisted        EventType = "token_delisted"
	EventEmergencyWithdrawal  EventType = "emergency_withdrawal"
	EventStrayReceived        EventType = "stray_received"

	EventWalletCreated        EventType = "wallet_created"
	EventDeposit              EventType = "deposit"
	EventWalletLocked         EventType = "wallet_locked"
	EventWalletUnlocked       EventType = "wallet_unlocked"
	EventFunctionPaused       EventType = "function_paused"
	EventFunctionUnpaused     EventType = "function_unpaused"
	EventSecurityLevelUpdated EventType = "security_level_updated"
	EventDailyLimitUpdated    EventType = "daily_limit_updated"

	EventTransferExecuted  EventType = "transfer_executed"
	EventTransferQueued    EventType = "transfer_queued"
	EventQueuedTxExecuted  EventType = "queued_transfer_executed"
	EventQueuedTxCancelled EventType = "queued_transfer_cancelled"

	EventGuardianAdded     EventType = "guardian_added"
	EventGuardianRemoved   EventType = "guardian_removed"
	EventRecoveryInitiated EventType = "recovery_initiated"
	EventRecoveryApproved  EventType = "recovery_approved"
	EventRecoveryExecuted  EventType = "recovery_executed"
	EventRecoveryCancelled EventType = "recovery_cancelled"

	EventHostFunded    EventType = "host_funded"
	EventTokenMinted   EventType = "token_minted"
	EventTokenApproved EventType = "token_approved"

	EventIntegrityViolation EventType = "integrity_violation"
)
