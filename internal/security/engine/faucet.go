package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
)

// FundAccount credits account with native value on a simulated host.
// Requires OPERATOR.
func (e *Engine) FundAccount(ctx context.Context, caller, account common.Address, amount *uint256.Int) (*Receipt, error) {
	return e.do(ctx, "fundAccount", caller, func(c *call) error {
		return c.seed(domain.NativeToken, account, amount)
	})
}

// MintToken credits account with amount of token on a simulated host.
// Requires OPERATOR.
func (e *Engine) MintToken(ctx context.Context, caller, token, account common.Address, amount *uint256.Int) (*Receipt, error) {
	return e.do(ctx, "mintToken", caller, func(c *call) error {
		if token == domain.NativeToken {
			return ErrInvalidAddress
		}
		return c.seed(token, account, amount)
	})
}

func (c *call) seed(token, account common.Address, amount *uint256.Int) error {
	if err := c.e.global.Require(c.caller, domain.RoleOperator); err != nil {
		return err
	}
	if c.e.faucet == nil {
		return ErrHostNotSimulated
	}
	if account == domain.ZeroAddress {
		return ErrInvalidAddress
	}
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	details := map[string]string{
		"account": account.Hex(),
		"amount":  amountDetail(amount),
	}
	if token == domain.NativeToken {
		c.e.faucet.Fund(account, amount)
		c.emit(domain.EventHostFunded, domain.ZeroAddress, details)
		return nil
	}
	c.e.faucet.Mint(token, account, amount)
	details["token"] = token.Hex()
	c.emit(domain.EventTokenMinted, domain.ZeroAddress, details)
	return nil
}

// ApproveToken sets the caller's allowance of token for the engine account,
// which token transfers spend. Zero revokes it.
func (e *Engine) ApproveToken(ctx context.Context, caller, token common.Address, amount *uint256.Int) (*Receipt, error) {
	return e.do(ctx, "approveToken", caller, func(c *call) error {
		if c.e.faucet == nil {
			return ErrHostNotSimulated
		}
		if token == domain.NativeToken {
			return ErrInvalidAddress
		}
		if amount == nil {
			return ErrInvalidAmount
		}
		c.e.faucet.Approve(token, c.caller, c.e.self, amount)
		c.emit(domain.EventTokenApproved, domain.ZeroAddress, map[string]string{
			"token":  token.Hex(),
			"owner":  c.caller.Hex(),
			"amount": amountDetail(amount),
		})
		return nil
	})
}

// HostAccount is an account's standing on the simulated host.
type HostAccount struct {
	Balance   *uint256.Int `json:"balance"`
	Allowance *uint256.Int `json:"allowance,omitempty"`
}

// GetHostAccount reports addr's native balance, or its token balance and
// allowance for the engine when token is set.
func (e *Engine) GetHostAccount(ctx context.Context, addr, token common.Address) (*HostAccount, error) {
	if e.faucet == nil {
		return nil, ErrHostNotSimulated
	}
	if token == domain.NativeToken {
		return &HostAccount{Balance: e.faucet.Balance(addr)}, nil
	}
	allowance, err := e.tokens.Allowance(ctx, token, addr, e.self)
	if err != nil {
		return nil, err
	}
	return &HostAccount{Balance: e.faucet.TokenBalance(token, addr), Allowance: allowance}, nil
}
