package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/llmtrader/market"
)

// AverageTrueRange is a streaming Average True Range with Wilder smoothing.
type AverageTrueRange struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prev      market.Candle
	havePrev  bool
}

func NewATR(period int) *AverageTrueRange {
	return &AverageTrueRange{period: period}
}

func (a *AverageTrueRange) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Warmup is period+1 because the first true range needs a previous candle.
func (a *AverageTrueRange) Warmup() int { return a.period + 1 }

func (a *AverageTrueRange) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.havePrev = false
}

func (a *AverageTrueRange) Update(c market.Candle) {
	if !a.havePrev {
		a.prev = c
		a.havePrev = true
		return
	}

	tr := trueRange(c, a.prev)
	a.prev = c

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *AverageTrueRange) Ready() bool { return a.period > 0 && a.count >= a.period }

func (a *AverageTrueRange) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

func trueRange(current, previous market.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}
