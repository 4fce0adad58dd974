// Package units converts between human decimal amounts and integer base units (wei).
// Conversions happen only at the edges: config parsing and log output.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	EtherDecimals = 18
	GweiDecimals  = 9
)

// ToBaseUnits converts a decimal amount into the smallest unit for the given decimals.
// Fractional digits beyond the precision are rejected rather than rounded.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("negative decimals %d", decimals)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount.String())
	}
	scaled := amount.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("too many fractional digits in %s for %d decimals", amount.String(), decimals)
	}
	return scaled.BigInt(), nil
}

// FromBaseUnits is the inverse of ToBaseUnits.
func FromBaseUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

func EtherToWei(amount decimal.Decimal) (*big.Int, error) {
	return ToBaseUnits(amount, EtherDecimals)
}

func GweiToWei(amount decimal.Decimal) (*big.Int, error) {
	return ToBaseUnits(amount, GweiDecimals)
}

// Human-readable helpers (ETH/gwei).
func FormatEther(x *big.Int) string {
	return FromBaseUnits(x, EtherDecimals).StringFixed(6)
}

func FormatGwei(x *big.Int) string {
	return FromBaseUnits(x, GweiDecimals).StringFixed(2)
}

// FormatTokens prints a token amount without trailing zeros.
func FormatTokens(x *big.Int, decimals int32) string {
	return FromBaseUnits(x, decimals).String()
}
