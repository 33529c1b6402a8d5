package wallet

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount of satoshis in BTC,
// keeping all eight decimals.
func FormatAmount(sats uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(sats), -8).StringFixed(8)
}
