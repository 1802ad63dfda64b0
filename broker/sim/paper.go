package sim

import (
	"context"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/market"
)

// Paper fills orders in the engine while market data comes from feed, usually
// the live venue's public endpoints. Every ticker read is pushed into the
// engine so attached brackets trigger on real prices.
type Paper struct {
	*Engine
	feed broker.Venue
}

func NewPaper(engine *Engine, feed broker.Venue) *Paper {
	return &Paper{Engine: engine, feed: feed}
}

func (p *Paper) GetKlines(ctx context.Context, req broker.KlineRequest) ([]market.Candle, error) {
	return p.feed.GetKlines(ctx, req)
}

func (p *Paper) GetTicker(ctx context.Context, category market.Category, symbol string) (market.Ticker, error) {
	t, err := p.feed.GetTicker(ctx, category, symbol)
	if err != nil {
		return market.Ticker{}, err
	}
	if err := p.Engine.UpdatePrice(t); err != nil {
		return market.Ticker{}, err
	}
	return t, nil
}

func (p *Paper) GetInstrument(ctx context.Context, category market.Category, symbol string) (market.Instrument, error) {
	inst, err := p.feed.GetInstrument(ctx, category, symbol)
	if err != nil {
		return market.Instrument{}, err
	}
	p.Engine.SetInstrument(inst)
	return inst, nil
}
