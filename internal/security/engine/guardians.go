package engine

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/security/recovery"
)

// AddGuardian adds g to the caller's wallet.
func (e *Engine) AddGuardian(ctx context.Context, caller, g common.Address) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncAddGuardian), caller, func(c *call) error {
		return c.addGuardian(g)
	})
}

func (c *call) addGuardian(g common.Address) error {
	w, err := c.openWallet(c.caller, domain.FuncAddGuardian, false)
	if err != nil {
		return err
	}
	if g == domain.ZeroAddress {
		return ErrInvalidAddress
	}
	undo, err := c.e.guardians.Add(w.ID, w.Owner, g, c.e.global.IsBlacklisted(g), c.config(w).MaxGuardians)
	if err != nil {
		return err
	}
	c.record(undo)
	c.emit(domain.EventGuardianAdded, w.ID, map[string]string{"guardian": g.Hex()})
	return nil
}

// RemoveGuardian removes g from the caller's wallet and withdraws its
// approval from an active recovery request.
func (e *Engine) RemoveGuardian(ctx context.Context, caller, g common.Address) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncRemoveGuardian), caller, func(c *call) error {
		return c.removeGuardian(g)
	})
}

func (c *call) removeGuardian(g common.Address) error {
	w, err := c.openWallet(c.caller, domain.FuncRemoveGuardian, false)
	if err != nil {
		return err
	}
	return c.dropGuardian(w.ID, g, "removed")
}

func (c *call) dropGuardian(wallet, g common.Address, reason string) error {
	undo, err := c.e.guardians.Remove(wallet, g)
	if err != nil {
		return err
	}
	c.record(undo)
	withdrawn, undo := c.e.recoveries.Withdraw(wallet, g, c.now)
	c.record(undo)
	c.emit(domain.EventGuardianRemoved, wallet, map[string]string{
		"guardian":           g.Hex(),
		"reason":             reason,
		"approval_withdrawn": strconv.FormatBool(withdrawn),
	})
	return nil
}

// InitiateRecovery opens a request to move owner's wallet to newOwner. The
// caller must be one of the wallet's guardians and counts as first approval.
func (e *Engine) InitiateRecovery(ctx context.Context, caller, owner, newOwner common.Address) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncInitiateRecovery), caller, func(c *call) error {
		return c.initiateRecovery(owner, newOwner)
	})
}

func (c *call) initiateRecovery(owner, newOwner common.Address) error {
	w, err := c.openWallet(owner, domain.FuncInitiateRecovery, false)
	if err != nil {
		return err
	}
	if !c.e.guardians.Is(w.ID, c.caller) {
		return ErrNotGuardian
	}
	switch {
	case newOwner == domain.ZeroAddress:
		return ErrInvalidAddress
	case c.e.global.IsBlacklisted(newOwner):
		return ErrRecipientBlacklisted
	case newOwner == w.Owner:
		return recovery.ErrNewOwnerIsCurrentOwner
	case c.e.wallets.HasWallet(newOwner):
		return ErrWalletAlreadyExists
	}
	cfg := c.config(w)
	if c.e.guardians.Count(w.ID) < cfg.MinGuardianApprovals {
		return recovery.ErrInsufficientGuardians
	}
	req, undo, err := c.e.recoveries.Initiate(w.ID, newOwner, c.caller, cfg.MinGuardianApprovals, cfg.RecoveryDelay, c.now)
	if err != nil {
		return err
	}
	c.record(undo)
	c.emit(domain.EventRecoveryInitiated, w.ID, map[string]string{
		"new_owner":  newOwner.Hex(),
		"quorum":     strconv.Itoa(req.Quorum),
		"expires_at": strconv.FormatInt(req.ExpiresAt, 10),
	})
	if recovery.QuorumReached(req) {
		return c.executeRecovery(w, req)
	}
	return nil
}

// ApproveRecovery adds the calling guardian's approval and executes the
// recovery once quorum is reached.
func (e *Engine) ApproveRecovery(ctx context.Context, caller, owner common.Address) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncApproveRecovery), caller, func(c *call) error {
		return c.approveRecovery(owner)
	})
}

func (c *call) approveRecovery(owner common.Address) error {
	w, err := c.openWallet(owner, domain.FuncApproveRecovery, false)
	if err != nil {
		return err
	}
	if !c.e.guardians.Is(w.ID, c.caller) {
		return ErrNotGuardian
	}
	req, undo, err := c.e.recoveries.Approve(w.ID, c.caller, c.now)
	if err != nil {
		return err
	}
	c.record(undo)
	c.emit(domain.EventRecoveryApproved, w.ID, map[string]string{
		"new_owner": req.NewOwner.Hex(),
		"approvals": strconv.Itoa(req.ApprovalsCount()),
		"quorum":    strconv.Itoa(req.Quorum),
	})
	if recovery.QuorumReached(req) {
		return c.executeRecovery(w, req)
	}
	return nil
}

// executeRecovery hands the wallet to the new owner. A new owner that was a
// guardian stops being one, and transfers queued under the old key are
// cancelled.
func (c *call) executeRecovery(w *domain.Wallet, req *domain.RecoveryRequest) error {
	if c.e.global.IsBlacklisted(req.NewOwner) {
		return ErrRecipientBlacklisted
	}
	undo, err := c.e.wallets.SetOwner(w.ID, req.NewOwner)
	if err != nil {
		return err
	}
	c.record(undo)
	c.record(c.e.recoveries.Execute(w.ID, c.now))
	c.emit(domain.EventRecoveryExecuted, w.ID, map[string]string{
		"old_owner": w.Owner.Hex(),
		"new_owner": req.NewOwner.Hex(),
		"approvals": strconv.Itoa(req.ApprovalsCount()),
		"quorum":    strconv.Itoa(req.Quorum),
	})

	if c.e.guardians.Is(w.ID, req.NewOwner) {
		if err := c.dropGuardian(w.ID, req.NewOwner, "became_owner"); err != nil {
			return err
		}
	}
	for _, tx := range c.e.queue.List(w.ID) {
		if !tx.Executed && !tx.Cancelled {
			c.cancelQueuedTx(tx, "recovery")
		}
	}
	return nil
}

// CancelRecovery closes the active request on the caller's wallet.
func (e *Engine) CancelRecovery(ctx context.Context, caller common.Address) (*Receipt, error) {
	return e.do(ctx, "cancelRecovery", caller, func(c *call) error {
		return c.cancelRecovery()
	})
}

func (c *call) cancelRecovery() error {
	w, err := c.openWallet(c.caller, "", false)
	if err != nil {
		return err
	}
	req, undo, err := c.e.recoveries.Cancel(w.ID, c.now)
	if err != nil {
		return err
	}
	c.record(undo)
	c.emit(domain.EventRecoveryCancelled, w.ID, map[string]string{
		"new_owner": req.NewOwner.Hex(),
		"approvals": strconv.Itoa(req.ApprovalsCount()),
	})
	return nil
}
