package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/security/access"
	"github.com/vietddude/walletguard/internal/security/signer"
	"github.com/vietddude/walletguard/internal/security/txqueue"
)

// TransferNative moves native value from the caller's wallet to to. sig is
// the owner's signature over TransferDigest with the native token address.
// Oversized transfers are queued and the receipt carries the queued entry.
func (e *Engine) TransferNative(ctx context.Context, caller, to common.Address, amount *uint256.Int, sig []byte) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncTransferNative), caller, func(c *call) error {
		return c.transfer(domain.FuncTransferNative, domain.NativeToken, to, amount, sig)
	})
}

// TransferTokens pulls amount of token from the owner to to through the
// owner's allowance to the engine.
func (e *Engine) TransferTokens(ctx context.Context, caller, token, to common.Address, amount *uint256.Int, sig []byte) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncTransferTokens), caller, func(c *call) error {
		return c.transfer(domain.FuncTransferTokens, token, to, amount, sig)
	})
}

func (c *call) transfer(fn domain.Function, token, to common.Address, amount *uint256.Int, sig []byte) error {
	contract, err := c.callerIsContract()
	if err != nil {
		return err
	}
	w, err := c.openWallet(c.caller, fn, true)
	if err != nil {
		return err
	}
	if to == domain.ZeroAddress || (fn == domain.FuncTransferTokens && token == domain.NativeToken) {
		return ErrInvalidAddress
	}
	if c.e.global.IsBlacklisted(to) {
		return ErrRecipientBlacklisted
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}

	digest := signer.TransferDigest(w.Owner, token, to, amount, w.Nonce)
	if err := c.e.verifier.Verify(digest, sig, w.Owner); err != nil {
		return err
	}
	c.record(c.e.wallets.IncrementNonce(w.ID))

	if contract {
		return ErrContractsNotAllowed
	}
	if err := c.checkFunds(w, token, amount); err != nil {
		return err
	}

	cfg := c.config(w)
	if err := c.e.limiter.Check(w.ID, cfg, w.DailyLimit, amount, c.now); err != nil {
		return err
	}
	day, undo := c.e.limiter.Consume(w.ID, cfg, amount, c.now)
	c.record(undo)

	if c.e.policy.IsLarge(w.SecurityLevel, amount) {
		return c.enqueue(w, cfg, token, to, amount, day)
	}
	return c.move(w, token, to, amount, domain.EventTransferExecuted, map[string]string{
		"nonce": strconv.FormatUint(w.Nonce, 10),
	})
}

// checkFunds verifies the wallet can cover amount: balance for native value,
// whitelist then allowance for tokens.
func (c *call) checkFunds(w *domain.Wallet, token common.Address, amount *uint256.Int) error {
	if token == domain.NativeToken {
		if w.Balance.Lt(amount) {
			return ErrInsufficientBalance
		}
		return nil
	}
	if !c.e.global.IsTokenWhitelisted(token) {
		return ErrTokenNotWhitelisted
	}
	allowance, err := c.e.tokens.Allowance(c.ctx, token, w.Owner, c.e.self)
	if err != nil {
		return fmt.Errorf("%w: allowance: %w", ErrExternalCallFailed, err)
	}
	if allowance.Lt(amount) {
		return ErrInsufficientAllowance
	}
	return nil
}

func (c *call) enqueue(w *domain.Wallet, cfg domain.SecurityConfig, token, to common.Address, amount *uint256.Int, day int64) error {
	tx := &domain.QueuedTransaction{
		Hash:         txqueue.Hash(w.Owner, to, amount, token, c.now),
		WalletID:     w.ID,
		From:         w.Owner,
		To:           to,
		Token:        token,
		Amount:       new(uint256.Int).Set(amount),
		QueuedAt:     c.now,
		ExecutableAt: c.now + int64(cfg.LargeTxDelay/time.Second),
		ReservedDay:  day,
	}
	undo, err := c.e.queue.Enqueue(tx)
	if err != nil {
		return err
	}
	c.record(undo)
	c.queued = tx.Copy()
	c.emit(domain.EventTransferQueued, w.ID, map[string]string{
		"hash":          tx.Hash.Hex(),
		"to":            to.Hex(),
		"token":         token.Hex(),
		"amount":        amountDetail(amount),
		"executable_at": strconv.FormatInt(tx.ExecutableAt, 10),
		"nonce":         strconv.FormatUint(w.Nonce, 10),
	})
	return nil
}

// move performs the value movement. The engine mutex is released for the
// host call; a host failure reverts the whole operation.
func (c *call) move(w *domain.Wallet, token, to common.Address, amount *uint256.Int, typ domain.EventType, extra map[string]string) error {
	var err error
	if token == domain.NativeToken {
		undo, derr := c.e.wallets.Debit(w.ID, amount)
		if derr != nil {
			return derr
		}
		c.record(undo)
		err = c.external(func(ctx context.Context) error {
			return c.e.host.Deliver(ctx, c.e.self, to, amount)
		})
	} else {
		err = c.external(func(ctx context.Context) error {
			return c.e.tokens.TransferFrom(ctx, token, c.e.self, w.Owner, to, amount)
		})
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExternalCallFailed, err)
	}

	details := map[string]string{
		"from":   w.Owner.Hex(),
		"to":     to.Hex(),
		"token":  token.Hex(),
		"amount": amountDetail(amount),
	}
	for k, v := range extra {
		details[k] = v
	}
	c.emit(typ, w.ID, details)
	return nil
}

// ConfirmQueuedTransaction executes a queued transfer once its delay has
// elapsed. The wallet owner or an OPERATOR may confirm.
func (e *Engine) ConfirmQueuedTransaction(ctx context.Context, caller common.Address, hash common.Hash) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncConfirmQueuedTx), caller, func(c *call) error {
		return c.confirmQueued(hash)
	})
}

func (c *call) confirmQueued(hash common.Hash) error {
	tx, err := c.e.queue.Get(hash)
	if err != nil {
		return err
	}
	if err := c.enter(tx.WalletID); err != nil {
		return err
	}
	if err := c.e.global.RequireNotPaused(); err != nil {
		return err
	}
	w, err := c.e.wallets.Get(tx.WalletID)
	if err != nil {
		return err
	}
	if c.caller != w.Owner && !c.e.global.HasRole(domain.RoleOperator, c.caller) {
		return &access.MissingRoleError{Account: c.caller, Role: domain.RoleOperator}
	}
	if _, err := c.e.queue.Executable(hash, c.now); err != nil {
		return err
	}
	if w.Locked {
		return ErrWalletLocked
	}
	if w.IsPaused(domain.FuncConfirmQueuedTx) {
		return ErrFunctionPaused
	}
	if c.e.global.IsBlacklisted(tx.To) {
		return ErrRecipientBlacklisted
	}
	if err := c.checkFunds(w, tx.Token, tx.Amount); err != nil {
		return err
	}
	c.record(c.e.queue.MarkExecuted(hash, c.now))
	return c.move(w, tx.Token, tx.To, tx.Amount, domain.EventQueuedTxExecuted, map[string]string{
		"hash": hash.Hex(),
	})
}

// CancelQueuedTransaction drops a pending queued transfer. The wallet owner,
// its guardians, ADMIN and EMERGENCY may cancel; only the privileged roles
// may cancel on a locked wallet. The reserved daily spend is
// released while its daily window is still current.
func (e *Engine) CancelQueuedTransaction(ctx context.Context, caller common.Address, hash common.Hash) (*Receipt, error) {
	return e.do(ctx, "cancelQueuedTransaction", caller, func(c *call) error {
		return c.cancelQueued(hash)
	})
}

func (c *call) cancelQueued(hash common.Hash) error {
	tx, err := c.e.queue.Get(hash)
	if err != nil {
		return err
	}
	w, err := c.e.wallets.Get(tx.WalletID)
	if err != nil {
		return err
	}
	privileged := c.e.global.HasRole(domain.RoleAdmin, c.caller) || c.e.global.HasRole(domain.RoleEmergency, c.caller)
	if !privileged && c.caller != w.Owner && !c.e.guardians.Is(w.ID, c.caller) {
		return &access.MissingRoleError{Account: c.caller, Role: domain.RoleAdmin}
	}
	if err := c.enter(w.ID); err != nil {
		return err
	}
	if !privileged && w.Locked {
		return ErrWalletLocked
	}
	if _, err := c.e.queue.Pending(hash); err != nil {
		return err
	}
	c.cancelQueuedTx(tx, "cancelled")
	return nil
}

func (c *call) cancelQueuedTx(tx *domain.QueuedTransaction, reason string) {
	c.record(c.e.queue.MarkCancelled(tx.Hash))
	c.record(c.e.limiter.Release(tx.WalletID, tx.Amount, tx.ReservedDay, c.now))
	c.emit(domain.EventQueuedTxCancelled, tx.WalletID, map[string]string{
		"hash":   tx.Hash.Hex(),
		"amount": amountDetail(tx.Amount),
		"reason": reason,
	})
}
