package sim

import (
	"context"
	"testing"
	"time"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaper_MarketDataFromFeed(t *testing.T) {
	ctx := context.Background()
	feed := newTestEngine(t)
	feed.AddCandles("BTCUSDT", market.Candle{Time: time.UnixMilli(1700000000000), Close: 100})
	feed.SetInstrument(market.Instrument{Symbol: "BTCUSDT", Category: market.CategorySpot, QtyStep: "0.1", MinOrderQty: "0.1"})

	p := NewPaper(NewEngine(DefaultConfig()), feed)

	cs, err := p.GetKlines(ctx, broker.KlineRequest{Symbol: "BTCUSDT", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, cs, 1)

	tk, err := p.GetTicker(ctx, market.CategorySpot, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 100.0, tk.LastPrice)

	inst, err := p.GetInstrument(ctx, market.CategorySpot, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "0.1", inst.QtyStep)

	// Orders fill locally at the fed price.
	ack, err := p.PlaceOrder(ctx, broker.OrderRequest{
		Category: market.CategorySpot, Symbol: "BTCUSDT", Side: broker.Buy, OrderType: "Market", Qty: "1",
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, ack.AvgPrice)
	assert.Zero(t, feed.OrderCount())
}

func TestPaper_TickerTriggersBrackets(t *testing.T) {
	ctx := context.Background()
	feed := newTestEngine(t)
	local := NewEngine(DefaultConfig())
	local.OpenPosition(Position{Symbol: "BTCUSDT", Side: market.Long, Size: 1, AvgPrice: 101, StopLoss: 100.5})

	p := NewPaper(local, feed)
	_, err := p.GetTicker(ctx, market.CategoryLinear, "BTCUSDT")
	require.NoError(t, err)

	recs, err := p.GetPositions(ctx, market.CategoryLinear, "BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, recs)
}
