package parser

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToSmallestUnit converts a human-entered decimal amount into the
// token's smallest unit as an integer string. Amounts with more
// fractional digits than the token carries are rejected rather than
// silently truncated.
func ToSmallestUnit(amount string, decimals int) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount format: %s", amount)
	}
	if d.Sign() <= 0 {
		return "", fmt.Errorf("amount must be greater than 0")
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return "", fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}

	return shifted.BigInt().String(), nil
}

// ToSmallestUnitBig is ToSmallestUnit returning a big.Int for on-chain
// arithmetic.
func ToSmallestUnitBig(amount string, decimals int) (*big.Int, error) {
	s, err := ToSmallestUnit(amount, decimals)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}
	return v, nil
}

// FromSmallestUnit renders a smallest-unit integer string back into a
// human-readable decimal amount.
func FromSmallestUnit(amount string, decimals int) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount format: %s", amount)
	}
	return d.Shift(int32(-decimals)).String(), nil
}
