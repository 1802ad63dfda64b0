package indicators

import (
	"fmt"

	"github.com/rustyeddy/llmtrader/market"
)

// StochRSIValue holds the smoothed %K and %D lines, both on a 0..100 scale.
type StochRSIValue struct {
	K float64
	D float64
}

// StochRSI applies the stochastic oscillator to an RSI series: the raw value
// locates the latest RSI within its recent range, %K smooths it and %D
// smooths %K.
type StochRSI struct {
	length int
	rsi    *RelativeStrength
	window []float64
	k, d   *SimpleMA
}

func NewStochRSI(length, rsiLength, k, d int) *StochRSI {
	return &StochRSI{
		length: length,
		rsi:    NewRSI(rsiLength),
		window: make([]float64, 0, length),
		k:      NewMA(k),
		d:      NewMA(d),
	}
}

func (s *StochRSI) Name() string {
	return fmt.Sprintf("STOCHRSI(%d,%d,%d,%d)", s.length, s.rsi.period, s.k.period, s.d.period)
}

func (s *StochRSI) Warmup() int {
	return s.rsi.Warmup() + s.length - 1 + s.k.period - 1 + s.d.period - 1
}

func (s *StochRSI) Reset() {
	s.rsi.Reset()
	s.window = s.window[:0]
	s.k.Reset()
	s.d.Reset()
}

func (s *StochRSI) Update(c market.Candle) {
	s.rsi.Update(c)
	if !s.rsi.Ready() {
		return
	}

	s.window = append(s.window, s.rsi.Value())
	if len(s.window) > s.length {
		s.window = s.window[1:]
	}
	if len(s.window) < s.length {
		return
	}

	lo, hi := s.window[0], s.window[0]
	for _, v := range s.window[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	raw := 50.0
	if hi > lo {
		raw = 100 * (s.window[len(s.window)-1] - lo) / (hi - lo)
	}

	s.k.Update(market.Candle{Close: raw})
	if s.k.Ready() {
		s.d.Update(market.Candle{Close: s.k.Value()})
	}
}

func (s *StochRSI) Ready() bool { return s.d.Ready() }

// Value returns %K.
func (s *StochRSI) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.k.Value()
}

func (s *StochRSI) Reading() StochRSIValue {
	if !s.Ready() {
		return StochRSIValue{}
	}
	return StochRSIValue{K: s.k.Value(), D: s.d.Value()}
}
