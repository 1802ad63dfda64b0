package risk

import (
	"fmt"

	"github.com/rustyeddy/llmtrader/market"
)

// Policy holds the fixed dollar risk parameters every opening order uses.
type Policy struct {
	TargetLossUSD   float64 // 0.50
	TargetProfitUSD float64 // 1.00

	// Derivative sizing when a decision carries no quantity.
	MarginUSD float64 // 50
	Leverage  float64 // 10
}

func DefaultPolicy() Policy {
	return Policy{
		TargetLossUSD:   0.50,
		TargetProfitUSD: 1.00,
		MarginUSD:       50,
		Leverage:        10,
	}
}

func (p Policy) Validate() error {
	if p.TargetLossUSD <= 0 {
		return fmt.Errorf("risk.target_loss_usd must be positive")
	}
	if p.TargetProfitUSD <= 0 {
		return fmt.Errorf("risk.target_profit_usd must be positive")
	}
	if p.MarginUSD <= 0 {
		return fmt.Errorf("risk.margin_usd must be positive")
	}
	if p.Leverage < 1 {
		return fmt.Errorf("risk.leverage must be at least 1")
	}
	return nil
}

// Bracket derives the bracket for qty at price using the policy targets.
func (p Policy) Bracket(price float64, side market.Side, qty float64) (Bracket, error) {
	return ComputeBracket(price, side, qty, p.TargetLossUSD, p.TargetProfitUSD)
}
