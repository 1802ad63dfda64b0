package trade

import (
	"context"
	"fmt"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/decision"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/risk"
)

// Spot buys with a bracket and sells the whole base-coin balance to close.
type Spot struct {
	base
}

func (s *Spot) Mode() market.Mode { return market.Spot }

func (s *Spot) Execute(ctx context.Context, symbol string, d decision.Decision) (Fill, error) {
	symbol = normSymbol(symbol)
	switch d.Action {
	case decision.Buy:
		return s.buy(ctx, symbol, d.Quantity)
	case decision.Sell, decision.Close, decision.CloseLong:
		return s.closeAll(ctx, symbol)
	}
	return Fill{}, fmt.Errorf("%w: spot %s", ErrUnsupportedAction, d.Action)
}

func (s *Spot) buy(ctx context.Context, symbol string, desired float64) (Fill, error) {
	price, err := s.confirmedPrice(ctx, market.CategorySpot, symbol)
	if err != nil {
		return Fill{}, err
	}
	inst := s.instrument(ctx, market.CategorySpot, symbol)

	if desired <= 0 {
		// Without a quantity, spend the margin budget unlevered.
		if desired, err = risk.QtyForNotional(s.policy.MarginUSD, 1, price); err != nil {
			return Fill{}, err
		}
	}
	qty, qs, err := s.size(desired, inst)
	if err != nil {
		return Fill{}, err
	}

	br, err := s.policy.Bracket(price, market.Long, qty)
	if err != nil {
		return Fill{}, fmt.Errorf("bracket for %s: %w", symbol, err)
	}

	return s.submit(ctx, broker.OrderRequest{
		Category:   market.CategorySpot,
		Symbol:     symbol,
		Side:       broker.Buy,
		Qty:        qs,
		MarketUnit: "baseCoin",
		StopLoss:   formatPrice(br.StopLossPrice),
		TakeProfit: formatPrice(br.TakeProfitPrice),
	}, qty, price, &br)
}

func (s *Spot) closeAll(ctx context.Context, symbol string) (Fill, error) {
	// The whole wallet balance is sold, including holdings the oracle
	// reports as dust.
	held, err := s.oracle.SpotBalance(ctx, symbol)
	if err != nil {
		return Fill{}, fmt.Errorf("read balance %s: %w", symbol, err)
	}
	if held <= 0 {
		return Fill{}, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
	}

	price, err := s.confirmedPrice(ctx, market.CategorySpot, symbol)
	if err != nil {
		return Fill{}, err
	}
	inst := s.instrument(ctx, market.CategorySpot, symbol)
	qty, qs, err := s.closeSize(held, inst)
	if err != nil {
		return Fill{}, err
	}

	return s.submit(ctx, broker.OrderRequest{
		Category:   market.CategorySpot,
		Symbol:     symbol,
		Side:       broker.Sell,
		Qty:        qs,
		MarketUnit: "baseCoin",
	}, qty, price, nil)
}
