// Package indicators provides technical analysis indicators over candles.
//
// The slice functions expect candles ordered oldest first (see
// market.Ascending). Streaming indicators consume one closed candle at a time.
package indicators

import (
	"fmt"

	"github.com/rustyeddy/llmtrader/market"
)

// Indicator computes a single streaming value from candles.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value, or 0 before warmup completes.
	Value() float64
}

// Run feeds candles into ind and returns its final value.
func Run(ind Indicator, candles []market.Candle) (float64, error) {
	for _, c := range candles {
		ind.Update(c)
	}
	if !ind.Ready() {
		return 0, fmt.Errorf("%s: not enough candles: need %d, got %d", ind.Name(), ind.Warmup(), len(candles))
	}
	return ind.Value(), nil
}

func checkPeriod(period, have, need int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if have < need {
		return fmt.Errorf("not enough candles: need %d, got %d", need, have)
	}
	return nil
}
