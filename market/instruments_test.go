package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseCoin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		symbol string
		want   string
	}{
		{"XRPUSDT", "XRP"},
		{"btcusdt", "BTC"},
		{"ETHUSDC", "ETH"},
		{"ETHBTC", "ETH"},
		{"USDT", "USDT"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.symbol, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BaseCoin(tt.symbol))
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("perp")
	require.NoError(t, err)
	assert.Equal(t, Derivative, m)
	assert.Equal(t, CategoryLinear, m.Category())

	m, err = ParseMode(" Spot ")
	require.NoError(t, err)
	assert.Equal(t, CategorySpot, m.Category())

	_, err = ParseMode("margin")
	assert.Error(t, err)
}

func TestCandleOrdering(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := []Candle{
		{Time: t0, Close: 1},
		{Time: t0.Add(2 * time.Minute), Close: 3},
		{Time: t0.Add(time.Minute), Close: 2},
	}

	SortDescending(cs)
	assert.Equal(t, []float64{3, 2, 1}, []float64{cs[0].Close, cs[1].Close, cs[2].Close})

	asc := Ascending(cs)
	assert.Equal(t, 1.0, asc[0].Close)
	assert.Equal(t, 3.0, asc[2].Close)
	assert.Equal(t, 3.0, cs[0].Close, "Ascending must not reorder its input")
}

func TestTickerStore(t *testing.T) {
	t.Parallel()

	ts := NewTickerStore()
	_, err := ts.Get("XRPUSDT")
	assert.ErrorIs(t, err, ErrNoPrice)

	ts.Set(Ticker{Symbol: "xrpusdt", LastPrice: 0.5})
	got, err := ts.Get("XRPUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Price())

	got.MarkPrice = 0.51
	assert.Equal(t, 0.51, got.Price())
}
