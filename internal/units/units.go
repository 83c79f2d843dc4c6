// Package units converts between decimal ether strings and wei amounts.
package units

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei decimals in one ether.
const EtherDecimals = 18

var (
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrFractionalWei    = errors.New("amount has more than 18 decimals")
	ErrAmountOverflow   = errors.New("amount overflows 256 bits")
	ErrInvalidAmountStr = errors.New("invalid amount")
)

// ParseEther parses a decimal ether string ("1.5") into wei.
func ParseEther(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmountStr, s)
	}
	return FromEther(d)
}

// FromEther converts an ether decimal into wei.
func FromEther(d decimal.Decimal) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, ErrFractionalWei
	}
	v, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, ErrAmountOverflow
	}
	return v, nil
}

// ToEther renders wei as a decimal ether value.
func ToEther(wei *uint256.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei.ToBig(), -EtherDecimals)
}

// FormatEther renders wei as a trimmed ether string ("1.5").
func FormatEther(wei *uint256.Int) string {
	return ToEther(wei).String()
}

// Ether returns n whole ether in wei.
func Ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1e18))
}

// ParseAmount accepts either a plain wei integer or an ether value with an "eth" suffix.
func ParseAmount(s string) (*uint256.Int, error) {
	if n := len(s); n > 3 && (s[n-3:] == "eth" || s[n-3:] == "ETH") {
		return ParseEther(s[:n-3])
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmountStr, s)
	}
	return v, nil
}
