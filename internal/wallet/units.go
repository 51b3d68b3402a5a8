package wallet

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	etherDecimals = 18
	gweiDecimals  = 9
)

// ParseEther converts a decimal ether amount such as "0.01" to wei
func ParseEther(amount string) (*big.Int, error) {
	return parseUnits(amount, etherDecimals)
}

// ParseGwei converts a decimal gwei amount such as "61.5" to wei
func ParseGwei(amount string) (*big.Int, error) {
	return parseUnits(amount, gweiDecimals)
}

func parseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", amount)
	}

	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatEther renders wei as a trimmed decimal ether string
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
