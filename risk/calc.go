package risk

import (
	"fmt"
	"math"
)

// QtyForNotional sizes a position so margin × leverage buys qty at price.
func QtyForNotional(marginUSD, leverage, price float64) (float64, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: price must be positive, got %v", ErrInvalidRiskInput, price)
	}
	if marginUSD <= 0 || leverage <= 0 {
		return 0, fmt.Errorf("%w: margin %v and leverage %v must be positive", ErrInvalidRiskInput, marginUSD, leverage)
	}
	return marginUSD * leverage / price, nil
}
