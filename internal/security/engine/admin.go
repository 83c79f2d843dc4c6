package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
)

// Initialize grants DEFAULT_ADMIN, ADMIN and EMERGENCY to admin. It succeeds once.
func (e *Engine) Initialize(ctx context.Context, caller, admin common.Address) (*Receipt, error) {
	return e.do(ctx, "initialize", caller, func(c *call) error {
		return c.initialize(admin)
	})
}

func (c *call) initialize(admin common.Address) error {
	if admin == domain.ZeroAddress {
		return ErrInvalidAddress
	}
	if err := c.e.global.Initialize(admin); err != nil {
		return err
	}
	c.emit(domain.EventInitialized, domain.ZeroAddress, map[string]string{"admin": admin.Hex()})
	return nil
}

// GrantRole requires DEFAULT_ADMIN.
func (e *Engine) GrantRole(ctx context.Context, caller common.Address, role domain.Role, account common.Address) (*Receipt, error) {
	return e.do(ctx, "grantRole", caller, func(c *call) error {
		return c.setRole(role, account, true)
	})
}

// RevokeRole requires DEFAULT_ADMIN.
func (e *Engine) RevokeRole(ctx context.Context, caller common.Address, role domain.Role, account common.Address) (*Receipt, error) {
	return e.do(ctx, "revokeRole", caller, func(c *call) error {
		return c.setRole(role, account, false)
	})
}

func (c *call) setRole(role domain.Role, account common.Address, grant bool) error {
	if err := c.e.global.Require(c.caller, domain.RoleDefaultAdmin); err != nil {
		return err
	}
	if account == domain.ZeroAddress {
		return ErrInvalidAddress
	}
	return c.applyRole(role, account, grant)
}

// RenounceRole drops the caller's own grant of role.
func (e *Engine) RenounceRole(ctx context.Context, caller common.Address, role domain.Role) (*Receipt, error) {
	return e.do(ctx, "renounceRole", caller, func(c *call) error {
		return c.applyRole(role, caller, false)
	})
}

func (c *call) applyRole(role domain.Role, account common.Address, grant bool) error {
	var (
		changed bool
		err     error
		typ     = domain.EventRoleGranted
	)
	if grant {
		changed, err = c.e.global.Grant(role, account)
	} else {
		typ = domain.EventRoleRevoked
		changed, err = c.e.global.Revoke(role, account)
	}
	if err != nil {
		return err
	}
	if changed {
		c.emit(typ, domain.ZeroAddress, map[string]string{
			"role":    string(role),
			"account": account.Hex(),
		})
	}
	return nil
}

// Pause stops wallet creation, transfers and queued confirmations.
func (e *Engine) Pause(ctx context.Context, caller common.Address) (*Receipt, error) {
	return e.do(ctx, "pause", caller, func(c *call) error {
		return c.setPaused(true)
	})
}

func (e *Engine) Unpause(ctx context.Context, caller common.Address) (*Receipt, error) {
	return e.do(ctx, "unpause", caller, func(c *call) error {
		return c.setPaused(false)
	})
}

func (c *call) setPaused(paused bool) error {
	if err := c.e.global.Require(c.caller, domain.RoleEmergency, domain.RoleAdmin); err != nil {
		return err
	}
	if paused {
		if err := c.e.global.Pause(); err != nil {
			return err
		}
		c.emit(domain.EventPaused, domain.ZeroAddress, nil)
		return nil
	}
	if err := c.e.global.Unpause(); err != nil {
		return err
	}
	c.emit(domain.EventUnpaused, domain.ZeroAddress, nil)
	return nil
}

func (e *Engine) BlacklistAddress(ctx context.Context, caller, addr common.Address) (*Receipt, error) {
	return e.do(ctx, "blacklistAddress", caller, func(c *call) error {
		return c.setBlacklisted(addr, true)
	})
}

func (e *Engine) UnblacklistAddress(ctx context.Context, caller, addr common.Address) (*Receipt, error) {
	return e.do(ctx, "unblacklistAddress", caller, func(c *call) error {
		return c.setBlacklisted(addr, false)
	})
}

func (c *call) setBlacklisted(addr common.Address, listed bool) error {
	if err := c.e.global.Require(c.caller, domain.RoleAdmin); err != nil {
		return err
	}
	if addr == domain.ZeroAddress {
		return ErrInvalidAddress
	}
	details := map[string]string{"address": addr.Hex()}
	if listed {
		if c.e.global.Blacklist(addr) {
			c.emit(domain.EventAddressBlacklisted, domain.ZeroAddress, details)
		}
		return nil
	}
	if c.e.global.Unblacklist(addr) {
		c.emit(domain.EventAddressUnblacklisted, domain.ZeroAddress, details)
	}
	return nil
}

func (e *Engine) WhitelistToken(ctx context.Context, caller, token common.Address) (*Receipt, error) {
	return e.do(ctx, "whitelistToken", caller, func(c *call) error {
		return c.setTokenListed(token, true)
	})
}

func (e *Engine) DelistToken(ctx context.Context, caller, token common.Address) (*Receipt, error) {
	return e.do(ctx, "delistToken", caller, func(c *call) error {
		return c.setTokenListed(token, false)
	})
}

func (c *call) setTokenListed(token common.Address, listed bool) error {
	if err := c.e.global.Require(c.caller, domain.RoleAdmin); err != nil {
		return err
	}
	if token == domain.ZeroAddress {
		return ErrInvalidAddress
	}
	details := map[string]string{"token": token.Hex()}
	if listed {
		if c.e.global.WhitelistToken(token) {
			c.emit(domain.EventTokenWhitelisted, domain.ZeroAddress, details)
		}
		return nil
	}
	if c.e.global.DelistToken(token) {
		c.emit(domain.EventTokenDelisted, domain.ZeroAddress, details)
	}
	return nil
}

// Receive pulls amount from the sender and books it outside any wallet.
func (e *Engine) Receive(ctx context.Context, from common.Address, amount *uint256.Int) (*Receipt, error) {
	return e.do(ctx, "receive", from, func(c *call) error {
		return c.receive(amount)
	})
}

func (c *call) receive(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := c.collect(amount); err != nil {
		return err
	}
	c.record(c.e.wallets.AddStray(amount))
	c.emit(domain.EventStrayReceived, domain.ZeroAddress, map[string]string{"amount": amountDetail(amount)})
	return nil
}

// EmergencyWithdraw sweeps the stray balance to a DEFAULT_ADMIN caller.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller common.Address) (*Receipt, error) {
	return e.do(ctx, "emergencyWithdraw", caller, func(c *call) error {
		return c.emergencyWithdraw()
	})
}

func (c *call) emergencyWithdraw() error {
	if err := c.e.global.Require(c.caller, domain.RoleDefaultAdmin); err != nil {
		return err
	}
	amount, undo, err := c.e.wallets.TakeStray()
	if err != nil {
		return err
	}
	c.record(undo)
	if err := c.external(func(ctx context.Context) error {
		return c.e.host.Deliver(ctx, c.e.self, c.caller, amount)
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrExternalCallFailed, err)
	}
	c.emit(domain.EventEmergencyWithdrawal, domain.ZeroAddress, map[string]string{
		"to":     c.caller.Hex(),
		"amount": amountDetail(amount),
	})
	return nil
}

// LockWallet freezes every owner and guardian operation on owner's wallet.
func (e *Engine) LockWallet(ctx context.Context, caller, owner common.Address) (*Receipt, error) {
	return e.do(ctx, "lockWallet", caller, func(c *call) error {
		return c.setLocked(owner, true)
	})
}

func (e *Engine) UnlockWallet(ctx context.Context, caller, owner common.Address) (*Receipt, error) {
	return e.do(ctx, "unlockWallet", caller, func(c *call) error {
		return c.setLocked(owner, false)
	})
}

func (c *call) setLocked(owner common.Address, locked bool) error {
	if err := c.e.global.Require(c.caller, domain.RoleEmergency); err != nil {
		return err
	}
	w, err := c.e.wallets.ByOwner(owner)
	if err != nil {
		return err
	}
	if err := c.enter(w.ID); err != nil {
		return err
	}
	if w.Locked == locked {
		return nil
	}
	c.record(c.e.wallets.SetLocked(w.ID, locked))
	typ := domain.EventWalletLocked
	if !locked {
		typ = domain.EventWalletUnlocked
	}
	c.emit(typ, w.ID, map[string]string{"owner": w.Owner.Hex()})
	return nil
}

// PauseFunction disables fn for owner's wallet.
func (e *Engine) PauseFunction(ctx context.Context, caller, owner common.Address, fn domain.Function) (*Receipt, error) {
	return e.do(ctx, "pauseFunction", caller, func(c *call) error {
		return c.setFunctionPaused(owner, fn, true)
	})
}

func (e *Engine) UnpauseFunction(ctx context.Context, caller, owner common.Address, fn domain.Function) (*Receipt, error) {
	return e.do(ctx, "unpauseFunction", caller, func(c *call) error {
		return c.setFunctionPaused(owner, fn, false)
	})
}

func (c *call) setFunctionPaused(owner common.Address, fn domain.Function, paused bool) error {
	if err := c.e.global.Require(c.caller, domain.RoleAdmin, domain.RoleEmergency); err != nil {
		return err
	}
	if _, ok := domain.ParseFunction(string(fn)); !ok {
		return ErrInvalidFunction
	}
	w, err := c.e.wallets.ByOwner(owner)
	if err != nil {
		return err
	}
	if err := c.enter(w.ID); err != nil {
		return err
	}
	if w.IsPaused(fn) == paused {
		return nil
	}
	c.record(c.e.wallets.SetFunctionPaused(w.ID, fn, paused))
	typ := domain.EventFunctionPaused
	if !paused {
		typ = domain.EventFunctionUnpaused
	}
	c.emit(typ, w.ID, map[string]string{"function": string(fn)})
	return nil
}
