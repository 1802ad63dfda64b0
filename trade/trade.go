// Package trade turns a validated decision into a venue order. Spot and
// derivative executors share price confirmation, quantity normalization and
// bracket construction; they differ only in sizing and close semantics.
package trade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/decision"
	"github.com/rustyeddy/llmtrader/internal/logger"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/pkg/id"
	"github.com/rustyeddy/llmtrader/position"
	"github.com/rustyeddy/llmtrader/risk"
)

var (
	ErrNoPrice           = errors.New("no confirmed market price")
	ErrNoPosition        = errors.New("no open position to close")
	ErrUnsupportedAction = errors.New("action not supported in this mode")
	ErrZeroQuantity      = errors.New("order quantity normalizes to zero")
)

// linkPrefix tags client order ids so our orders are recognisable in the
// venue's history.
const linkPrefix = "llm"

// Fill is what the venue accepted.
type Fill struct {
	OrderID     string           `json:"order_id"`
	OrderLinkID string           `json:"order_link_id"`
	Symbol      string           `json:"symbol"`
	Side        broker.OrderSide `json:"side"`
	Qty         float64          `json:"qty"`
	// Price is the venue's average fill price, or the confirmed reference
	// price the order was built from when the venue did not report one.
	Price    float64             `json:"price"`
	RefPrice float64             `json:"ref_price"`
	Bracket  *risk.Bracket       `json:"bracket,omitempty"`
	Request  broker.OrderRequest `json:"request"`
}

type Executor interface {
	Mode() market.Mode
	Execute(ctx context.Context, symbol string, d decision.Decision) (Fill, error)
}

// New returns the executor for mode.
func New(mode market.Mode, venue broker.Venue, oracle *position.Oracle, policy risk.Policy, log *zap.Logger) (Executor, error) {
	b := base{venue: venue, oracle: oracle, policy: policy, log: logger.OrNop(log)}
	switch mode {
	case market.Spot:
		return &Spot{base: b}, nil
	case market.Derivative:
		return &Perp{base: b}, nil
	}
	return nil, fmt.Errorf("no executor for mode %q", mode)
}

type base struct {
	venue  broker.Venue
	oracle *position.Oracle
	policy risk.Policy
	log    *zap.Logger
}

// confirmedPrice returns a strictly positive current price or ErrNoPrice.
// No order or bracket is ever built without one.
func (b base) confirmedPrice(ctx context.Context, cat market.Category, symbol string) (float64, error) {
	t, err := b.venue.GetTicker(ctx, cat, symbol)
	if err != nil {
		return 0, fmt.Errorf("%w for %s: %v", ErrNoPrice, symbol, err)
	}
	p := t.Price()
	if p <= 0 {
		return 0, fmt.Errorf("%w for %s: venue reported %v", ErrNoPrice, symbol, p)
	}
	return p, nil
}

// instrument falls back to empty lot rules, which Normalize resolves to its
// default precision, when metadata is unavailable.
func (b base) instrument(ctx context.Context, cat market.Category, symbol string) market.Instrument {
	inst, err := b.venue.GetInstrument(ctx, cat, symbol)
	if err != nil {
		b.log.Warn("instrument metadata unavailable, using default precision",
			zap.String("symbol", symbol),
			zap.Int("precision", risk.DefaultPrecision),
			zap.Error(err))
		return market.Instrument{Symbol: symbol, Category: cat, BaseCoin: market.BaseCoin(symbol)}
	}
	return inst
}

func (b base) size(desired float64, inst market.Instrument) (float64, string, error) {
	q, err := risk.Normalize(desired, inst.QtyStep, inst.MinOrderQty)
	if err != nil {
		return 0, "", err
	}
	if q <= 0 {
		return 0, "", fmt.Errorf("%w: desired %v", ErrZeroQuantity, desired)
	}
	return q, risk.FormatQty(q, inst.QtyStep, inst.MinOrderQty), nil
}

// closeSize rounds an existing position down to the lot step without lifting
// it to the minimum, so a close never asks for more than is held.
func (b base) closeSize(held float64, inst market.Instrument) (float64, string, error) {
	q, qs, err := b.size(held, inst)
	if err != nil {
		return 0, "", err
	}
	if q > held {
		return 0, "", fmt.Errorf("%w: %v held is below the minimum order size %s", ErrNoPosition, held, inst.MinOrderQty)
	}
	return q, qs, nil
}

func (b base) submit(ctx context.Context, req broker.OrderRequest, qty, ref float64, br *risk.Bracket) (Fill, error) {
	req.OrderType = "Market"
	req.OrderLinkID = id.OrderLink(linkPrefix)

	b.log.Info("submitting order",
		zap.String("symbol", req.Symbol),
		zap.String("category", string(req.Category)),
		zap.String("side", string(req.Side)),
		zap.String("qty", req.Qty),
		zap.Bool("reduce_only", req.ReduceOnly),
		zap.String("stop_loss", req.StopLoss),
		zap.String("take_profit", req.TakeProfit),
		zap.Float64("ref_price", ref))

	ack, err := b.venue.PlaceOrder(ctx, req)
	if err != nil {
		return Fill{}, fmt.Errorf("place order %s %s: %w", req.Side, req.Symbol, err)
	}

	price := ack.AvgPrice
	if price <= 0 {
		price = ref
	}
	return Fill{
		OrderID:     ack.OrderID,
		OrderLinkID: orDefault(ack.OrderLinkID, req.OrderLinkID),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         qty,
		Price:       price,
		RefPrice:    ref,
		Bracket:     br,
		Request:     req,
	}, nil
}

// currentPosition reads exposure through the oracle and turns an oracle
// fault back into an error.
func (b base) currentPosition(ctx context.Context, symbol string, mode market.Mode) (position.Position, error) {
	p := b.oracle.Get(ctx, symbol, mode)
	if p.Side == position.SideError {
		return p, fmt.Errorf("read position %s: %s", symbol, p.Err)
	}
	return p, nil
}

func formatPrice(p float64) string {
	return decimal.NewFromFloat(p).Round(risk.PriceScale).String()
}

func normSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
