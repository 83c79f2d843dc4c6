package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/security/ratelimit"
)

// WalletInfo is the read-only view of a wallet.
type WalletInfo struct {
	*domain.Wallet
	Guardians int `json:"guardians"`
}

// RecoveryInfo describes a wallet's latest recovery request.
type RecoveryInfo struct {
	State          domain.RecoveryState `json:"state"`
	NewOwner       common.Address       `json:"new_owner"`
	InitiatedBy    common.Address       `json:"initiated_by"`
	InitiatedAt    int64                `json:"initiated_at"`
	ExpiresAt      int64                `json:"expires_at"`
	ApprovalsCount int                  `json:"approvals_count"`
	Quorum         int                  `json:"quorum"`
	Executed       bool                 `json:"executed"`
	Expired        bool                 `json:"expired"`
	Approvers      []common.Address     `json:"approvers"`
}

// Stats summarizes engine state.
type Stats struct {
	Initialized      bool             `json:"initialized"`
	Paused           bool             `json:"paused"`
	Wallets          int              `json:"wallets"`
	PendingQueued    int              `json:"pending_queued"`
	ActiveRecoveries int              `json:"active_recoveries"`
	TotalBalance     *uint256.Int     `json:"total_balance"`
	Stray            *uint256.Int     `json:"stray"`
	Admins           []common.Address `json:"admins"`
}

func (e *Engine) now() int64 { return e.clock.Now().Unix() }

// readable fails while an operation holding wallet waits on the host; its
// state may still be rolled back.
func (e *Engine) readable(wallet common.Address) error {
	if e.entered[wallet] != nil {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) GetWalletInfo(owner common.Address) (*WalletInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, err := e.wallets.ByOwner(owner)
	if err != nil {
		return nil, err
	}
	if err := e.readable(w.ID); err != nil {
		return nil, err
	}
	return &WalletInfo{Wallet: w, Guardians: e.guardians.Count(w.ID)}, nil
}

// GetSecurityConfig returns the profile in force for owner's wallet.
func (e *Engine) GetSecurityConfig(owner common.Address) (domain.SecurityConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, err := e.wallets.ByOwner(owner)
	if err != nil {
		return domain.SecurityConfig{}, err
	}
	if err := e.readable(w.ID); err != nil {
		return domain.SecurityConfig{}, err
	}
	return e.policy.MustConfig(w.SecurityLevel), nil
}

func (e *Engine) GetNonce(owner common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, err := e.wallets.ByOwner(owner)
	if err != nil {
		return 0, err
	}
	if err := e.readable(w.ID); err != nil {
		return 0, err
	}
	return w.Nonce, nil
}

// GetRateLimitInfo reports the reset-adjusted counters at the current time.
func (e *Engine) GetRateLimitInfo(owner common.Address) (ratelimit.Info, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, err := e.wallets.ByOwner(owner)
	if err != nil {
		return ratelimit.Info{}, err
	}
	if err := e.readable(w.ID); err != nil {
		return ratelimit.Info{}, err
	}
	return e.limiter.Info(w.ID, e.policy.MustConfig(w.SecurityLevel), w.DailyLimit, e.now()), nil
}

// GetRecoveryInfo returns the latest request, or a NONE state when there is none.
func (e *Engine) GetRecoveryInfo(owner common.Address) (*RecoveryInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.wallets.Resolve(owner)
	if err != nil {
		return nil, err
	}
	if err := e.readable(id); err != nil {
		return nil, err
	}
	now := e.now()
	req := e.recoveries.Get(id)
	if req == nil {
		return &RecoveryInfo{State: domain.RecoveryStateNone, Approvers: []common.Address{}}, nil
	}
	return &RecoveryInfo{
		State:          req.State(now),
		NewOwner:       req.NewOwner,
		InitiatedBy:    req.InitiatedBy,
		InitiatedAt:    req.InitiatedAt,
		ExpiresAt:      req.ExpiresAt,
		ApprovalsCount: req.ApprovalsCount(),
		Quorum:         req.Quorum,
		Executed:       req.Executed,
		Expired:        !req.Executed && req.Expired(now),
		Approvers:      req.Approvals,
	}, nil
}

func (e *Engine) GetQueuedTransaction(hash common.Hash) (*domain.QueuedTransaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tx, err := e.queue.Get(hash)
	if err != nil {
		return nil, err
	}
	if err := e.readable(tx.WalletID); err != nil {
		return nil, err
	}
	return tx, nil
}

func (e *Engine) ListQueuedTransactions(owner common.Address) ([]*domain.QueuedTransaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.wallets.Resolve(owner)
	if err != nil {
		return nil, err
	}
	if err := e.readable(id); err != nil {
		return nil, err
	}
	return e.queue.List(id), nil
}

func (e *Engine) IsGuardian(owner, addr common.Address) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.wallets.Resolve(owner)
	if err != nil {
		return false, err
	}
	if err := e.readable(id); err != nil {
		return false, err
	}
	return e.guardians.Is(id, addr), nil
}

func (e *Engine) GetGuardians(owner common.Address) ([]common.Address, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.wallets.Resolve(owner)
	if err != nil {
		return nil, err
	}
	if err := e.readable(id); err != nil {
		return nil, err
	}
	return e.guardians.List(id), nil
}

func (e *Engine) HasRole(role domain.Role, account common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global.HasRole(role, account)
}

func (e *Engine) RoleMembers(role domain.Role) []common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global.Members(role)
}

func (e *Engine) IsBlacklisted(addr common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global.IsBlacklisted(addr)
}

func (e *Engine) IsTokenWhitelisted(token common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global.IsTokenWhitelisted(token)
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.global.Paused()
}

// Stats waits for operations out on the host so the totals are committed ones.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.inflight > 0 {
		e.idle.Wait()
	}
	return Stats{
		Initialized:      e.global.Initialized(),
		Paused:           e.global.Paused(),
		Wallets:          e.wallets.Count(),
		PendingQueued:    e.queue.PendingCount(),
		ActiveRecoveries: e.recoveries.ActiveCount(e.now()),
		TotalBalance:     e.wallets.TotalBalance(),
		Stray:            e.wallets.Stray(),
		Admins:           e.global.Members(domain.RoleDefaultAdmin),
	}
}
