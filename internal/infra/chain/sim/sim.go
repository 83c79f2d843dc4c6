// Package sim is an in-memory host for the security engine: external account
// balances, an ERC-20 token book and contract accounts with receive hooks.
package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/vietddude/walletguard/internal/core/domain"
)

var (
	ErrInsufficientFunds          = errors.New("sim: insufficient funds")
	ErrInsufficientTokenBalance   = errors.New("ERC20: transfer amount exceeds balance")
	ErrInsufficientTokenAllowance = errors.New("ERC20: insufficient allowance")
)

// Hook runs when a contract account receives native value. Returning an error
// reverts the delivery. Engine calls made from a hook must pass on ctx.
type Hook func(ctx context.Context, from common.Address, amount *uint256.Int) error

type token struct {
	balances   map[common.Address]*uint256.Int
	allowances map[common.Address]map[common.Address]*uint256.Int
}

// Chain is safe for concurrent use. Hooks run without the chain lock held.
type Chain struct {
	mu        sync.Mutex
	balances  map[common.Address]*uint256.Int
	contracts map[common.Address]Hook
	tokens    map[common.Address]*token
}

func New() *Chain {
	return &Chain{
		balances:  make(map[common.Address]*uint256.Int),
		contracts: make(map[common.Address]Hook),
		tokens:    make(map[common.Address]*token),
	}
}

func get(m map[common.Address]*uint256.Int, a common.Address) *uint256.Int {
	if v, ok := m[a]; ok {
		return v
	}
	v := new(uint256.Int)
	m[a] = v
	return v
}

// Fund credits addr with native value.
func (c *Chain) Fund(addr common.Address, amount *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := get(c.balances, addr)
	b.Add(b, amount)
}

func (c *Chain) Balance(addr common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(uint256.Int).Set(get(c.balances, addr))
}

// RegisterContract marks addr as a contract. hook may be nil.
func (c *Chain) RegisterContract(addr common.Address, hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[addr] = hook
}

func (c *Chain) IsContract(_ context.Context, addr common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.contracts[addr]
	return ok, nil
}

// Collect moves amount from from to to. It is how value enters the engine.
func (c *Chain) Collect(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := get(c.balances, from)
	if src.Lt(amount) {
		return ErrInsufficientFunds
	}
	src.Sub(src, amount)
	dst := get(c.balances, to)
	dst.Add(dst, amount)
	return nil
}

// Deliver moves amount from from to to and runs the receive hook of to. A
// failing hook takes the value back.
func (c *Chain) Deliver(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	src := get(c.balances, from)
	if src.Lt(amount) {
		c.mu.Unlock()
		return ErrInsufficientFunds
	}
	src.Sub(src, amount)
	dst := get(c.balances, to)
	dst.Add(dst, amount)
	hook := c.contracts[to]
	c.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, from, amount); err != nil {
		c.mu.Lock()
		dst := get(c.balances, to)
		dst.Sub(dst, amount)
		src := get(c.balances, from)
		src.Add(src, amount)
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Chain) book(addr common.Address) *token {
	t, ok := c.tokens[addr]
	if !ok {
		t = &token{
			balances:   make(map[common.Address]*uint256.Int),
			allowances: make(map[common.Address]map[common.Address]*uint256.Int),
		}
		c.tokens[addr] = t
	}
	return t
}

// Mint credits to with amount of tok.
func (c *Chain) Mint(tok, to common.Address, amount *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := get(c.book(tok).balances, to)
	b.Add(b, amount)
}

// Approve sets owner's allowance for spender on tok.
func (c *Chain) Approve(tok, owner, spender common.Address, amount *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.book(tok)
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*uint256.Int)
	}
	t.allowances[owner][spender] = new(uint256.Int).Set(amount)
}

func (c *Chain) TokenBalance(tok, owner common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(uint256.Int).Set(get(c.book(tok).balances, owner))
}

func (c *Chain) Allowance(_ context.Context, tok, owner, spender common.Address) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.book(tok).allowances[owner][spender]; ok {
		return new(uint256.Int).Set(a), nil
	}
	return new(uint256.Int), nil
}

// TransferFrom moves amount of tok from from to to, spending spender's allowance.
func (c *Chain) TransferFrom(_ context.Context, tok, spender, from, to common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.book(tok)
	allowance := t.allowances[from][spender]
	if allowance == nil || allowance.Lt(amount) {
		return ErrInsufficientTokenAllowance
	}
	src := get(t.balances, from)
	if src.Lt(amount) {
		return ErrInsufficientTokenBalance
	}
	allowance.Sub(allowance, amount)
	src.Sub(src, amount)
	dst := get(t.balances, to)
	dst.Add(dst, amount)
	return nil
}

// ExportState copies every balance and allowance. Contract registrations are
// configuration and are not included.
func (c *Chain) ExportState() *domain.HostState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := &domain.HostState{
		Balances: copyBalances(c.balances),
		Tokens:   make(map[common.Address]*domain.TokenBookState, len(c.tokens)),
	}
	for addr, t := range c.tokens {
		book := &domain.TokenBookState{
			Balances:   copyBalances(t.balances),
			Allowances: make(map[common.Address]map[common.Address]*uint256.Int, len(t.allowances)),
		}
		for owner, spenders := range t.allowances {
			book.Allowances[owner] = copyBalances(spenders)
		}
		st.Tokens[addr] = book
	}
	return st
}

// ImportState replaces every balance and allowance with those in st.
func (c *Chain) ImportState(st *domain.HostState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = make(map[common.Address]*token)
	if st == nil {
		c.balances = make(map[common.Address]*uint256.Int)
		return
	}
	c.balances = copyBalances(st.Balances)
	for addr, book := range st.Tokens {
		t := c.book(addr)
		t.balances = copyBalances(book.Balances)
		for owner, spenders := range book.Allowances {
			t.allowances[owner] = copyBalances(spenders)
		}
	}
}

func copyBalances(m map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(m))
	for a, v := range m {
		if v != nil && !v.IsZero() {
			out[a] = new(uint256.Int).Set(v)
		}
	}
	return out
}
