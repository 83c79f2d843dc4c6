package engine

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
	"github.com/vietddude/walletguard/internal/security/policy"
)

// CreateWallet registers a wallet owned by caller.
func (e *Engine) CreateWallet(ctx context.Context, caller common.Address, dailyLimit *uint256.Int, level domain.SecurityLevel) (*Receipt, error) {
	return e.do(ctx, "createWallet", caller, func(c *call) error {
		return c.createWallet(dailyLimit, level)
	})
}

func (c *call) createWallet(dailyLimit *uint256.Int, level domain.SecurityLevel) error {
	if err := c.e.global.RequireNotPaused(); err != nil {
		return err
	}
	if c.e.wallets.HasWallet(c.caller) {
		return ErrWalletAlreadyExists
	}
	cfg, err := c.e.policy.Config(level)
	if err != nil {
		return err
	}
	if err := validDailyLimit(dailyLimit, cfg); err != nil {
		return err
	}
	w, undo, err := c.e.wallets.Create(c.caller, dailyLimit, level, c.now)
	if err != nil {
		return err
	}
	c.record(undo)
	c.record(c.e.limiter.Open(w.ID, c.now))
	c.emit(domain.EventWalletCreated, w.ID, map[string]string{
		"owner":          w.Owner.Hex(),
		"daily_limit":    amountDetail(dailyLimit),
		"security_level": levelDetail(level),
	})
	return nil
}

func validDailyLimit(limit *uint256.Int, cfg domain.SecurityConfig) error {
	if limit == nil || limit.IsZero() || limit.Gt(cfg.MaxDailyLimit) {
		return ErrInvalidDailyLimit
	}
	return nil
}

// Deposit pulls amount from caller into the engine account and credits it to
// owner's wallet.
func (e *Engine) Deposit(ctx context.Context, caller, owner common.Address, amount *uint256.Int) (*Receipt, error) {
	return e.do(ctx, "deposit", caller, func(c *call) error {
		return c.deposit(owner, amount)
	})
}

func (c *call) deposit(owner common.Address, amount *uint256.Int) error {
	id, err := c.e.wallets.Resolve(owner)
	if err != nil {
		return err
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := c.enter(id); err != nil {
		return err
	}
	if err := c.collect(amount); err != nil {
		return err
	}
	c.record(c.e.wallets.Credit(id, amount))
	c.emit(domain.EventDeposit, id, map[string]string{
		"from":   c.caller.Hex(),
		"amount": amountDetail(amount),
	})
	return nil
}

// UpdateSecurityLevel raises the caller's wallet level. The daily limit is
// clamped to the new level's cap.
func (e *Engine) UpdateSecurityLevel(ctx context.Context, caller common.Address, level domain.SecurityLevel) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncUpdateSecurity), caller, func(c *call) error {
		return c.updateSecurityLevel(level)
	})
}

func (c *call) updateSecurityLevel(level domain.SecurityLevel) error {
	w, err := c.openWallet(c.caller, domain.FuncUpdateSecurity, false)
	if err != nil {
		return err
	}
	if !level.Valid() {
		return policy.ErrInvalidSecurityLevel
	}
	if level < w.SecurityLevel {
		return ErrCannotDecreaseSecurityLevel
	}
	if level == w.SecurityLevel {
		return nil
	}
	c.record(c.e.wallets.SetSecurityLevel(w.ID, level))
	c.emit(domain.EventSecurityLevelUpdated, w.ID, map[string]string{
		"from": levelDetail(w.SecurityLevel),
		"to":   levelDetail(level),
	})
	clamped := c.e.policy.ClampDailyLimit(level, w.DailyLimit)
	if !clamped.Eq(w.DailyLimit) {
		c.record(c.e.wallets.SetDailyLimit(w.ID, clamped))
		c.emit(domain.EventDailyLimitUpdated, w.ID, map[string]string{
			"from":   amountDetail(w.DailyLimit),
			"to":     amountDetail(clamped),
			"reason": "security_level_cap",
		})
	}
	return nil
}

// SetDailyLimit changes the caller's wallet daily limit within the level cap.
func (e *Engine) SetDailyLimit(ctx context.Context, caller common.Address, limit *uint256.Int) (*Receipt, error) {
	return e.do(ctx, string(domain.FuncSetDailyLimit), caller, func(c *call) error {
		return c.setDailyLimit(limit)
	})
}

func (c *call) setDailyLimit(limit *uint256.Int) error {
	w, err := c.openWallet(c.caller, domain.FuncSetDailyLimit, false)
	if err != nil {
		return err
	}
	if err := validDailyLimit(limit, c.config(w)); err != nil {
		return err
	}
	c.record(c.e.wallets.SetDailyLimit(w.ID, limit))
	c.emit(domain.EventDailyLimitUpdated, w.ID, map[string]string{
		"from": amountDetail(w.DailyLimit),
		"to":   amountDetail(limit),
	})
	return nil
}

func levelDetail(l domain.SecurityLevel) string {
	return strconv.Itoa(int(l))
}
