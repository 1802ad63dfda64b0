package journal

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/llmtrader/market"
)

// PnLScale is the number of decimals ledger PnL is rounded to.
const PnLScale = 6

// PnL is a cash-flow proxy for realized profit, computed from one fill in
// isolation. The ledger has no entry prices, so a spot buy books its full
// cost and a spot sell its full proceeds; only pairing fills over time yields
// true trade PnL.
//
//	spot:            buy  -(value+fee)   sell  value-fee
//	linear/inverse:  closedSize > 0 as spot, otherwise -fee (opening fill)
//	anything else:   as spot
func PnL(category market.Category, side string, execValue, execFee, closedSize float64) float64 {
	value := decimal.NewFromFloat(execValue)
	fee := decimal.NewFromFloat(execFee)

	var pnl decimal.Decimal
	switch market.Category(strings.ToLower(string(category))) {
	case market.CategoryLinear, market.CategoryInverse:
		if closedSize > 0 {
			pnl = cashFlow(side, value, fee)
		} else {
			pnl = fee.Neg()
		}
	default:
		pnl = cashFlow(side, value, fee)
	}
	return pnl.Round(PnLScale).InexactFloat64()
}

func cashFlow(side string, value, fee decimal.Decimal) decimal.Decimal {
	if strings.EqualFold(side, "buy") {
		return value.Add(fee).Neg()
	}
	return value.Sub(fee)
}

// ComputePnL applies PnL to a ledger row.
func ComputePnL(e Execution) float64 {
	return PnL(market.Category(e.Category), e.Side, e.ExecValue, e.ExecFee, e.ClosedSize)
}
