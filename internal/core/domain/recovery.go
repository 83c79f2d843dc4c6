package domain

import "github.com/ethereum/go-ethereum/common"

// RecoveryState is the lifecycle position of a wallet's recovery request.
type RecoveryState string

const (
	RecoveryStateNone      RecoveryState = "none"
	RecoveryStateInitiated RecoveryState = "initiated"
	RecoveryStateApproving RecoveryState = "approving"
	RecoveryStateExecuted  RecoveryState = "executed"
	RecoveryStateExpired   RecoveryState = "expired"
	RecoveryStateCancelled RecoveryState = "cancelled"
)

// RecoveryRequest is a guardian-driven proposal to replace a wallet's owner.
type RecoveryRequest struct {
	WalletID    common.Address   `json:"wallet_id"`
	NewOwner    common.Address   `json:"new_owner"`
	InitiatedBy common.Address   `json:"initiated_by"`
	InitiatedAt int64            `json:"initiated_at"`
	ExpiresAt   int64            `json:"expires_at"`
	Quorum      int              `json:"quorum"`
	Approvals   []common.Address `json:"approvals"`
	Executed    bool             `json:"executed"`
	ExecutedAt  int64            `json:"executed_at,omitempty"`
	Cancelled   bool             `json:"cancelled"`
}

// ApprovalsCount is the number of distinct guardians that approved.
func (r *RecoveryRequest) ApprovalsCount() int {
	return len(r.Approvals)
}

// Expired reports whether approvals are no longer accepted at now.
func (r *RecoveryRequest) Expired(now int64) bool {
	return now > r.ExpiresAt
}

// State derives the lifecycle state at now.
func (r *RecoveryRequest) State(now int64) RecoveryState {
	switch {
	case r == nil:
		return RecoveryStateNone
	case r.Executed:
		return RecoveryStateExecuted
	case r.Cancelled:
		return RecoveryStateCancelled
	case r.Expired(now):
		return RecoveryStateExpired
	case len(r.Approvals) > 1:
		return RecoveryStateApproving
	default:
		return RecoveryStateInitiated
	}
}

// Active reports whether the request can still collect approvals.
func (r *RecoveryRequest) Active(now int64) bool {
	s := r.State(now)
	return s == RecoveryStateInitiated || s == RecoveryStateApproving
}
