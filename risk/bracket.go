package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/llmtrader/market"
	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimals bracket prices are rounded to.
const PriceScale = 6

var (
	ErrInvalidRiskInput        = errors.New("invalid risk input")
	ErrInvalidBracketDirection = errors.New("invalid bracket direction")
)

// Bracket is the stop-loss and take-profit pair attached to an opening order.
type Bracket struct {
	CurrentPrice    float64     `json:"current_price"`
	Side            market.Side `json:"side"`
	StopLossPrice   float64     `json:"stop_loss"`
	TakeProfitPrice float64     `json:"take_profit"`
}

// ComputeBracket derives absolute stop-loss and take-profit prices from fixed
// dollar targets. The position is treated as linear in price: one unit of
// quantity moves one dollar of P&L per unit of price.
func ComputeBracket(currentPrice float64, side market.Side, qty, targetLossUSD, targetProfitUSD float64) (Bracket, error) {
	inputs := []struct {
		name string
		v    float64
	}{
		{"current price", currentPrice},
		{"quantity", qty},
		{"target loss", targetLossUSD},
		{"target profit", targetProfitUSD},
	}
	for _, in := range inputs {
		if math.IsNaN(in.v) || math.IsInf(in.v, 0) || in.v <= 0 {
			return Bracket{}, fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidRiskInput, in.name, in.v)
		}
	}

	price := decimal.NewFromFloat(currentPrice)
	q := decimal.NewFromFloat(qty)
	lossDist := decimal.NewFromFloat(targetLossUSD).Div(q)
	profitDist := decimal.NewFromFloat(targetProfitUSD).Div(q)

	var sl, tp decimal.Decimal
	switch side {
	case market.Long:
		sl = price.Sub(lossDist)
		tp = price.Add(profitDist)
	case market.Short:
		sl = price.Add(lossDist)
		tp = price.Sub(profitDist)
	default:
		return Bracket{}, fmt.Errorf("%w: side must be long or short, got %q", ErrInvalidRiskInput, side)
	}

	b := Bracket{
		CurrentPrice:    currentPrice,
		Side:            side,
		StopLossPrice:   sl.Round(PriceScale).InexactFloat64(),
		TakeProfitPrice: tp.Round(PriceScale).InexactFloat64(),
	}
	if b.StopLossPrice <= 0 || b.TakeProfitPrice <= 0 {
		return Bracket{}, fmt.Errorf("%w: derived prices sl=%v tp=%v must be positive",
			ErrInvalidRiskInput, b.StopLossPrice, b.TakeProfitPrice)
	}
	if err := b.Check(); err != nil {
		return Bracket{}, err
	}
	return b, nil
}

// Check verifies the prices straddle the current price in the right order.
func (b Bracket) Check() error {
	switch b.Side {
	case market.Long:
		if !(b.StopLossPrice < b.CurrentPrice && b.CurrentPrice < b.TakeProfitPrice) {
			return fmt.Errorf("%w: long needs sl %v < price %v < tp %v",
				ErrInvalidBracketDirection, b.StopLossPrice, b.CurrentPrice, b.TakeProfitPrice)
		}
	case market.Short:
		if !(b.TakeProfitPrice < b.CurrentPrice && b.CurrentPrice < b.StopLossPrice) {
			return fmt.Errorf("%w: short needs tp %v < price %v < sl %v",
				ErrInvalidBracketDirection, b.TakeProfitPrice, b.CurrentPrice, b.StopLossPrice)
		}
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidBracketDirection, b.Side)
	}
	return nil
}
