package indicators

import (
	"math"

	"github.com/rustyeddy/llmtrader/market"
)

// Bands are Bollinger bands around a simple moving average.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Width is the band spread relative to the middle band.
func (b Bands) Width() float64 {
	if b.Middle == 0 {
		return 0
	}
	return (b.Upper - b.Lower) / b.Middle
}

// PercentB locates price within the bands: 0 at the lower band, 1 at the
// upper band.
func (b Bands) PercentB(price float64) float64 {
	if b.Upper == b.Lower {
		return 0.5
	}
	return (price - b.Lower) / (b.Upper - b.Lower)
}

// Bollinger computes bands k population standard deviations around the MA of
// the last period closes.
func Bollinger(candles []market.Candle, period int, k float64) (Bands, error) {
	mid, err := MA(candles, period)
	if err != nil {
		return Bands{}, err
	}

	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		d := candles[i].Close - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return Bands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}, nil
}
