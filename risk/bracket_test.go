package risk

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/rustyeddy/llmtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBracket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		side   market.Side
		wantSL float64
		wantTP float64
	}{
		{"long", market.Long, 99.95, 100.1},
		{"short", market.Short, 100.05, 99.9},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := ComputeBracket(100, tt.side, 10, 0.5, 1.0)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantSL, b.StopLossPrice, 1e-9)
			assert.InDelta(t, tt.wantTP, b.TakeProfitPrice, 1e-9)
			assert.NoError(t, b.Check())
		})
	}
}

func TestComputeBracketRoundsToSixPlaces(t *testing.T) {
	t.Parallel()

	b, err := ComputeBracket(0.5123, market.Long, 3, 0.5, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.345633, b.StopLossPrice, 1e-12)
	assert.InDelta(t, 0.845633, b.TakeProfitPrice, 1e-12)
}

func TestComputeBracketInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		price   float64
		side    market.Side
		qty     float64
		loss    float64
		profit  float64
		wantErr error
	}{
		{"zero qty", 100, market.Long, 0, 0.5, 1, ErrInvalidRiskInput},
		{"negative qty", 100, market.Long, -2, 0.5, 1, ErrInvalidRiskInput},
		{"zero price", 0, market.Long, 1, 0.5, 1, ErrInvalidRiskInput},
		{"no side", 100, market.None, 1, 0.5, 1, ErrInvalidRiskInput},
		{"zero loss target", 100, market.Long, 1, 0, 1, ErrInvalidRiskInput},
		{"long stop below zero", 0.01, market.Long, 1, 0.5, 1, ErrInvalidRiskInput},
		{"short target below zero", 0.5, market.Short, 1, 0.5, 1, ErrInvalidRiskInput},
		{"distance rounds away", 100, market.Long, 1e9, 0.5, 1, ErrInvalidBracketDirection},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ComputeBracket(tt.price, tt.side, tt.qty, tt.loss, tt.profit)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBracketCheckCatchesReversedPrices(t *testing.T) {
	t.Parallel()

	b := Bracket{CurrentPrice: 100, Side: market.Long, StopLossPrice: 101, TakeProfitPrice: 102}
	assert.ErrorIs(t, b.Check(), ErrInvalidBracketDirection)

	b = Bracket{CurrentPrice: 100, Side: market.Short, StopLossPrice: 99, TakeProfitPrice: 98}
	assert.ErrorIs(t, b.Check(), ErrInvalidBracketDirection)
}

func TestComputeBracketDirectionProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	ok := 0
	for i := 0; i < 5000; i++ {
		price := 0.01 + rng.Float64()*100000
		qty := 0.001 + rng.Float64()*1000
		loss := 0.1 + rng.Float64()*10
		profit := 0.1 + rng.Float64()*10
		side := market.Long
		if rng.Intn(2) == 1 {
			side = market.Short
		}

		b, err := ComputeBracket(price, side, qty, loss, profit)
		if err != nil {
			require.True(t, errors.Is(err, ErrInvalidRiskInput) || errors.Is(err, ErrInvalidBracketDirection), err)
			continue
		}
		ok++
		if side == market.Long {
			require.Less(t, b.StopLossPrice, price)
			require.Less(t, price, b.TakeProfitPrice)
		} else {
			require.Less(t, b.TakeProfitPrice, price)
			require.Less(t, price, b.StopLossPrice)
		}
	}
	assert.Greater(t, ok, 4000)
}

func TestQtyForNotional(t *testing.T) {
	t.Parallel()

	q, err := QtyForNotional(50, 10, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, q, 1e-9)

	_, err = QtyForNotional(50, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidRiskInput)
	_, err = QtyForNotional(0, 10, 1)
	assert.ErrorIs(t, err, ErrInvalidRiskInput)
}

func TestPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	require.NoError(t, p.Validate())

	b, err := p.Bracket(0.5, market.Long, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.4995, b.StopLossPrice, 1e-12)
	assert.InDelta(t, 0.501, b.TakeProfitPrice, 1e-12)

	p.Leverage = 0
	assert.Error(t, p.Validate())
}
