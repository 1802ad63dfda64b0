package indicators

import (
	"fmt"

	"github.com/rustyeddy/llmtrader/market"
)

// RSI calculates Wilder's Relative Strength Index over closes.
func RSI(candles []market.Candle, period int) (float64, error) {
	if err := checkPeriod(period, len(candles), period+1); err != nil {
		return 0, err
	}
	return Run(NewRSI(period), candles)
}

// RelativeStrength is a streaming RSI.
type RelativeStrength struct {
	period    int
	avgGain   float64
	avgLoss   float64
	count     int
	prevClose float64
	havePrev  bool
}

func NewRSI(period int) *RelativeStrength {
	return &RelativeStrength{period: period}
}

func (r *RelativeStrength) Name() string { return fmt.Sprintf("RSI(%d)", r.period) }
func (r *RelativeStrength) Warmup() int  { return r.period + 1 }

func (r *RelativeStrength) Reset() {
	*r = RelativeStrength{period: r.period}
}

func (r *RelativeStrength) Update(c market.Candle) {
	if !r.havePrev {
		r.prevClose = c.Close
		r.havePrev = true
		return
	}

	change := c.Close - r.prevClose
	r.prevClose = c.Close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	p := float64(r.period)
	if r.count < r.period {
		r.avgGain += gain / p
		r.avgLoss += loss / p
		r.count++
		return
	}
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

func (r *RelativeStrength) Ready() bool { return r.period > 0 && r.count >= r.period }

// Value is 100 when there were no losing closes in the window and 50 on a
// completely flat series.
func (r *RelativeStrength) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
