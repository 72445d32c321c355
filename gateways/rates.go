package gateways

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRateConsistency signals that a locked crypto amount no longer
// recomputes to the fiat total within tolerance.
var ErrRateConsistency = errors.New("locked rate does not reproduce fiat amount within tolerance")

// rateTolerance is the maximum allowed drift between cryptoAmount × rate
// and the fiat amount, in fiat units.
var rateTolerance = decimal.NewFromFloat(0.01)

// RateQuote is a fiat↔crypto exchange rate with a validity window.
type RateQuote struct {
	Rate       decimal.Decimal `json:"rate"` // fiat per 1 crypto unit
	ValidUntil time.Time       `json:"valid_until"`
}

// LockCryptoAmount freezes the crypto amount owed for a fiat total at the
// quoted rate: cryptoAmount = fiatAmount / rate, rounded to the rail's
// precision. The amount is computed once and never recomputed, even if the
// rate later drifts.
func LockCryptoAmount(fiatAmount, rate decimal.Decimal, precision int32) (decimal.Decimal, error) {
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid exchange rate %s", rate)
	}
	return fiatAmount.DivRound(rate, precision), nil
}

// CheckRateConsistency enforces the persisted-data invariant
// |cryptoAmount × rate − fiatAmount| ≤ 0.01 at write time.
func CheckRateConsistency(cryptoAmount, rate, fiatAmount decimal.Decimal) error {
	diff := cryptoAmount.Mul(rate).Sub(fiatAmount).Abs()
	if diff.GreaterThan(rateTolerance) {
		return fmt.Errorf("%w: %s × %s differs from %s by %s",
			ErrRateConsistency, cryptoAmount, rate, fiatAmount, diff)
	}
	return nil
}
