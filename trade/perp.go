package trade

import (
	"context"
	"fmt"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/decision"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/risk"
)

// Bracket trigger settings for linear orders.
const (
	tpslModeFull  = "Full"
	triggerByMark = "MarkPrice"
)

// Perp trades linear perpetuals. Opens carry a full-size bracket triggered
// on mark price; closes are reduce-only market orders for the whole position.
type Perp struct {
	base
}

func (p *Perp) Mode() market.Mode { return market.Derivative }

func (p *Perp) Execute(ctx context.Context, symbol string, d decision.Decision) (Fill, error) {
	symbol = normSymbol(symbol)
	switch d.Action {
	case decision.Buy:
		return p.open(ctx, symbol, market.Long, d.Quantity)
	case decision.Sell:
		return p.open(ctx, symbol, market.Short, d.Quantity)
	case decision.CloseLong:
		return p.close(ctx, symbol, market.Long)
	case decision.CloseShort:
		return p.close(ctx, symbol, market.Short)
	case decision.Close:
		return p.close(ctx, symbol, market.None)
	}
	return Fill{}, fmt.Errorf("%w: derivative %s", ErrUnsupportedAction, d.Action)
}

func (p *Perp) open(ctx context.Context, symbol string, side market.Side, desired float64) (Fill, error) {
	price, err := p.confirmedPrice(ctx, market.CategoryLinear, symbol)
	if err != nil {
		return Fill{}, err
	}
	inst := p.instrument(ctx, market.CategoryLinear, symbol)

	if desired <= 0 {
		if desired, err = risk.QtyForNotional(p.policy.MarginUSD, p.policy.Leverage, price); err != nil {
			return Fill{}, err
		}
	}
	qty, qs, err := p.size(desired, inst)
	if err != nil {
		return Fill{}, err
	}

	br, err := p.policy.Bracket(price, side, qty)
	if err != nil {
		return Fill{}, fmt.Errorf("bracket for %s: %w", symbol, err)
	}

	return p.submit(ctx, broker.OrderRequest{
		Category:    market.CategoryLinear,
		Symbol:      symbol,
		Side:        broker.SideFor(side),
		Qty:         qs,
		StopLoss:    formatPrice(br.StopLossPrice),
		TakeProfit:  formatPrice(br.TakeProfitPrice),
		TpslMode:    tpslModeFull,
		TpTriggerBy: triggerByMark,
		SlTriggerBy: triggerByMark,
	}, qty, price, &br)
}

// close exits want (long or short), or whatever is open when want is None.
func (p *Perp) close(ctx context.Context, symbol string, want market.Side) (Fill, error) {
	pos, err := p.currentPosition(ctx, symbol, market.Derivative)
	if err != nil {
		return Fill{}, err
	}
	if !pos.HasPosition || (want != market.None && pos.Side != want) {
		return Fill{}, fmt.Errorf("%w: %s has no open %s position", ErrNoPosition, symbol, sideLabel(want))
	}

	price, err := p.confirmedPrice(ctx, market.CategoryLinear, symbol)
	if err != nil {
		return Fill{}, err
	}
	inst := p.instrument(ctx, market.CategoryLinear, symbol)
	qty, qs, err := p.closeSize(pos.Size, inst)
	if err != nil {
		return Fill{}, err
	}

	return p.submit(ctx, broker.OrderRequest{
		Category:   market.CategoryLinear,
		Symbol:     symbol,
		Side:       broker.SideFor(pos.Side.Opposite()),
		Qty:        qs,
		ReduceOnly: true,
	}, qty, price, nil)
}

func sideLabel(s market.Side) string {
	if s == market.None {
		return "any"
	}
	return string(s)
}
