package zrx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of decimals of the ZRX token.
const Decimals = 18

var ErrInvalidAmount = errors.New("invalid token amount")

// ToBaseUnits converts a token amount into integer base units (amount * 10^decimals).  The
// conversion is exact - amounts w/ more precision than the token supports are rejected rather
// than rounded.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*uint256.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	scaled := amount.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, amount, decimals)
	}
	val, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows uint256", ErrInvalidAmount, amount)
	}
	return val, nil
}

func FromBaseUnits(baseUnits *uint256.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(baseUnits.ToBig(), -decimals)
}

// FormattedZrxAmount renders an amount to cents, chopping trailing zeros.
func FormattedZrxAmount(amount decimal.Decimal) string {
	formattedAmount := amount.Truncate(2).StringFixed(2)
	// chop trailing 0's and decimal (if nothing else)
	formattedAmount = strings.TrimRight(formattedAmount, "0")
	formattedAmount = strings.TrimRight(formattedAmount, ".")
	if formattedAmount == "" || formattedAmount == "-" {
		return "0"
	}
	return formattedAmount
}
