package indicators

import (
	"fmt"

	"github.com/rustyeddy/llmtrader/market"
)

// MACDValue is one reading of the MACD line, its signal line and the
// histogram between them.
type MACDValue struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD is a streaming moving average convergence/divergence indicator.
type MACD struct {
	fast, slow, signal *ExponentialMA
	last               MACDValue
}

func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: NewEMA(fast), slow: NewEMA(slow), signal: NewEMA(signal)}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fast.period, m.slow.period, m.signal.period)
}

// Warmup is the slow EMA seed plus the signal EMA seed over MACD values.
func (m *MACD) Warmup() int { return m.slow.period + m.signal.period - 1 }

func (m *MACD) Reset() {
	m.fast.Reset()
	m.slow.Reset()
	m.signal.Reset()
	m.last = MACDValue{}
}

func (m *MACD) Update(c market.Candle) {
	m.fast.Update(c)
	m.slow.Update(c)
	if !m.slow.Ready() || !m.fast.Ready() {
		return
	}
	line := m.fast.Value() - m.slow.Value()
	m.signal.Update(market.Candle{Close: line})
	m.last.MACD = line
	if m.signal.Ready() {
		m.last.Signal = m.signal.Value()
		m.last.Histogram = line - m.last.Signal
	}
}

func (m *MACD) Ready() bool { return m.signal.Ready() }

// Value returns the MACD line.
func (m *MACD) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.last.MACD
}

func (m *MACD) Reading() MACDValue {
	if !m.Ready() {
		return MACDValue{}
	}
	return m.last
}
