package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleMAStreaming(t *testing.T) {
	t.Parallel()
	candles := createTestCandles()

	t.Run("basic functionality", func(t *testing.T) {
		ma := NewMA(3)
		assert.Equal(t, "MA(3)", ma.Name())
		assert.Equal(t, 3, ma.Warmup())
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())

		ma.Update(candles[0])
		ma.Update(candles[1])
		assert.False(t, ma.Ready())

		ma.Update(candles[2])
		assert.True(t, ma.Ready())
		assert.InDelta(t, (102.0+105.0+106.0)/3.0, ma.Value(), 0.001)

		ma.Update(candles[3])
		assert.InDelta(t, (105.0+106.0+108.0)/3.0, ma.Value(), 0.001)
	})

	t.Run("reset functionality", func(t *testing.T) {
		ma := NewMA(2)
		ma.Update(candles[0])
		ma.Update(candles[1])
		assert.True(t, ma.Ready())

		ma.Reset()
		assert.False(t, ma.Ready())
		assert.Equal(t, 0.0, ma.Value())
	})

	t.Run("matches batch calculation", func(t *testing.T) {
		streaming, err := Run(NewMA(5), candles)
		require.NoError(t, err)
		batch, err := MA(candles, 5)
		require.NoError(t, err)
		assert.InDelta(t, batch, streaming, 1e-9)
	})
}

func TestStreamingIndicators(t *testing.T) {
	t.Parallel()

	candles := createTestCandles()
	tests := []struct {
		ind    Indicator
		name   string
		warmup int
	}{
		{NewEMA(4), "EMA(4)", 4},
		{NewATR(4), "ATR(4)", 5},
		{NewRSI(4), "RSI(4)", 5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.name, tt.ind.Name())
			assert.Equal(t, tt.warmup, tt.ind.Warmup())

			for _, c := range candles[:tt.warmup-1] {
				tt.ind.Update(c)
			}
			assert.False(t, tt.ind.Ready())
			assert.Zero(t, tt.ind.Value())

			tt.ind.Update(candles[tt.warmup-1])
			assert.True(t, tt.ind.Ready())
			assert.Greater(t, tt.ind.Value(), 0.0)

			tt.ind.Reset()
			assert.False(t, tt.ind.Ready())
		})
	}
}

func TestRun_NotEnough(t *testing.T) {
	t.Parallel()

	_, err := Run(NewRSI(14), createTestCandles())
	assert.ErrorContains(t, err, "RSI(14)")
}
