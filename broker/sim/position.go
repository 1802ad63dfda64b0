package sim

import (
	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/market"
)

// Position is an open linear position on the paper venue.
type Position struct {
	Symbol     string
	Side       market.Side
	Size       float64
	AvgPrice   float64
	Leverage   float64
	StopLoss   float64
	TakeProfit float64
}

type record struct {
	broker.Execution
	category market.Category
}

func (p *Position) hitStopLoss(mark float64) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.Side == market.Long {
		return mark <= p.StopLoss
	}
	return mark >= p.StopLoss
}

func (p *Position) hitTakeProfit(mark float64) bool {
	if p.TakeProfit <= 0 {
		return false
	}
	if p.Side == market.Long {
		return mark >= p.TakeProfit
	}
	return mark <= p.TakeProfit
}

func (p *Position) unrealized(mark float64) float64 {
	if mark <= 0 {
		return 0
	}
	pl := p.Size * (mark - p.AvgPrice)
	if p.Side == market.Short {
		return -pl
	}
	return pl
}

func (p *Position) record(mark float64) broker.PositionRecord {
	rec := broker.PositionRecord{
		Symbol:        p.Symbol,
		Side:          string(broker.SideFor(p.Side)),
		Size:          fstr(p.Size),
		AvgPrice:      fstr(p.AvgPrice),
		UnrealisedPnl: fstr(p.unrealized(mark)),
		Leverage:      fstr(p.Leverage),
	}
	if mark > 0 {
		rec.MarkPrice = fstr(mark)
		rec.PositionValue = fstr(p.Size * mark)
	}
	return rec
}
