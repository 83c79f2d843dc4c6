// Package chain holds the host side of the security engine: where code
// lookups and value movements go.
package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Mode selects the host the engine runs against.
type Mode string

const (
	// ModeSim keeps everything in the in-memory book.
	ModeSim Mode = "sim"
	// ModeEVM asks an EVM node whether callers are contracts and settles
	// value in the in-memory book.
	ModeEVM Mode = "evm"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSim, "":
		return ModeSim, nil
	case ModeEVM:
		return ModeEVM, nil
	}
	return "", fmt.Errorf("unknown host mode %q", s)
}

// CodeOracle tells whether an account holds contract code.
type CodeOracle interface {
	IsContract(ctx context.Context, addr common.Address) (bool, error)
}

// Book settles native value and ERC-20 pulls.
type Book interface {
	Collect(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	Deliver(ctx context.Context, from, to common.Address, amount *uint256.Int) error
	Allowance(ctx context.Context, token, owner, spender common.Address) (*uint256.Int, error)
	TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *uint256.Int) error
}

// Composite routes code lookups to an oracle and value movements to a book.
type Composite struct {
	oracle CodeOracle
	book   Book
}

func Compose(oracle CodeOracle, book Book) *Composite {
	return &Composite{oracle: oracle, book: book}
}

func (c *Composite) IsContract(ctx context.Context, addr common.Address) (bool, error) {
	return c.oracle.IsContract(ctx, addr)
}

func (c *Composite) Collect(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return c.book.Collect(ctx, from, to, amount)
}

func (c *Composite) Deliver(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	return c.book.Deliver(ctx, from, to, amount)
}

func (c *Composite) Allowance(ctx context.Context, token, owner, spender common.Address) (*uint256.Int, error) {
	return c.book.Allowance(ctx, token, owner, spender)
}

func (c *Composite) TransferFrom(ctx context.Context, token, spender, from, to common.Address, amount *uint256.Int) error {
	return c.book.TransferFrom(ctx, token, spender, from, to, amount)
}
