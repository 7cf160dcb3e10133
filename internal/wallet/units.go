package wallet

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a human decimal amount ("1.5") to the chain's
// integer minor units (wei, lamports, token base units). Fractional
// remainders below one minor unit are truncated.
func ToMinorUnits(amount string, decimals int) (*big.Int, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	scaled := value.Shift(int32(decimals)).Truncate(0)
	if scaled.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount below one minor unit", ErrInvalidAmount)
	}

	return scaled.BigInt(), nil
}

// FromMinorUnits formats integer minor units as a human decimal string
func FromMinorUnits(value *big.Int, decimals int) string {
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}
