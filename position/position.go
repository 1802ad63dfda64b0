// Package position reports current exposure for a symbol in either trading
// mode and guards opening orders against stacking a second position.
package position

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/internal/logger"
	"github.com/rustyeddy/llmtrader/market"
)

// SideError marks a Position that could not be observed. Err carries the cause.
const SideError market.Side = "error"

// DustThreshold is the smallest spot balance counted as a position.
const DustThreshold = 1.0

const spotPnLNote = "spot entry price is not tracked; unrealized pnl reported as 0"

// Position is a point-in-time view of exposure. It is never stored.
type Position struct {
	Symbol        string      `json:"symbol"`
	Mode          market.Mode `json:"mode"`
	Side          market.Side `json:"side"`
	Size          float64     `json:"size"`
	AvgEntryPrice float64     `json:"avg_entry_price"`
	MarkPrice     float64     `json:"mark_price"`
	UnrealizedPnL float64     `json:"unrealized_pnl"`
	Leverage      float64     `json:"leverage"`
	PositionValue float64     `json:"position_value"`
	HasPosition   bool        `json:"has_position"`
	Note          string      `json:"note,omitempty"`
	Err           string      `json:"error,omitempty"`
}

func (p Position) String() string {
	switch {
	case p.Side == SideError:
		return fmt.Sprintf("%s %s: position unavailable: %s", p.Mode, p.Symbol, p.Err)
	case !p.HasPosition:
		return fmt.Sprintf("%s %s: flat", p.Mode, p.Symbol)
	}
	return fmt.Sprintf("%s %s: %s %g @ %g (mark %g, upnl %g)",
		p.Mode, p.Symbol, p.Side, p.Size, p.AvgEntryPrice, p.MarkPrice, p.UnrealizedPnL)
}

func flat(symbol string, mode market.Mode) Position {
	return Position{Symbol: symbol, Mode: mode, Side: market.None}
}

func failed(symbol string, mode market.Mode, err error) Position {
	return Position{Symbol: symbol, Mode: mode, Side: SideError, Err: err.Error()}
}

// Source reads exposure for one trading mode.
type Source interface {
	Position(ctx context.Context, symbol string) (Position, error)
}

// Spot reads the base-coin wallet balance. Spot exposure is always long.
type Spot struct {
	Venue       broker.Venue
	AccountType string
}

// Balance is the raw wallet balance of the symbol's base coin, dust included.
func (s Spot) Balance(ctx context.Context, symbol string) (float64, error) {
	coin := market.BaseCoin(symbol)
	accts, err := s.Venue.GetWalletBalance(ctx, s.AccountType, coin)
	if err != nil {
		return 0, fmt.Errorf("wallet balance %s: %w", coin, err)
	}

	balance := 0.0
	for _, a := range accts {
		for _, c := range a.Coins {
			if !strings.EqualFold(c.Coin, coin) {
				continue
			}
			if balance, err = broker.Float(c.WalletBalance); err != nil {
				return 0, fmt.Errorf("wallet balance %s: %w", coin, err)
			}
		}
	}
	return balance, nil
}

func (s Spot) Position(ctx context.Context, symbol string) (Position, error) {
	balance, err := s.Balance(ctx, symbol)
	if err != nil {
		return Position{}, err
	}

	p := flat(symbol, market.Spot)
	p.Note = spotPnLNote
	if balance < DustThreshold {
		return p, nil
	}

	t, err := s.Venue.GetTicker(ctx, market.CategorySpot, symbol)
	if err != nil {
		return Position{}, fmt.Errorf("mark price %s: %w", symbol, err)
	}

	p.Side = market.Long
	p.Size = balance
	p.MarkPrice = t.Price()
	p.PositionValue = balance * p.MarkPrice
	p.Leverage = 1
	p.HasPosition = true
	return p, nil
}

// Derivative reads the venue's linear position record.
type Derivative struct {
	Venue broker.Venue
}

func (d Derivative) Position(ctx context.Context, symbol string) (Position, error) {
	recs, err := d.Venue.GetPositions(ctx, market.CategoryLinear, symbol)
	if err != nil {
		return Position{}, fmt.Errorf("positions %s: %w", symbol, err)
	}

	for _, r := range recs {
		size, err := broker.Float(r.Size)
		if err != nil {
			return Position{}, fmt.Errorf("position size: %w", err)
		}
		if size <= 0 {
			continue
		}
		return fromRecord(symbol, size, r)
	}
	return flat(symbol, market.Derivative), nil
}

func fromRecord(symbol string, size float64, r broker.PositionRecord) (Position, error) {
	p := Position{Symbol: symbol, Mode: market.Derivative, Size: size, HasPosition: true}
	switch r.Side {
	case string(broker.Buy):
		p.Side = market.Long
	case string(broker.Sell):
		p.Side = market.Short
	default:
		return Position{}, fmt.Errorf("position side %q with size %g", r.Side, size)
	}

	fields := []struct {
		raw string
		dst *float64
	}{
		{r.AvgPrice, &p.AvgEntryPrice},
		{r.MarkPrice, &p.MarkPrice},
		{r.UnrealisedPnl, &p.UnrealizedPnL},
		{r.Leverage, &p.Leverage},
		{r.PositionValue, &p.PositionValue},
	}
	for _, f := range fields {
		v, err := broker.Float(f.raw)
		if err != nil {
			return Position{}, fmt.Errorf("position %s: %w", symbol, err)
		}
		*f.dst = v
	}
	return p, nil
}

// Oracle answers "what do I hold" for any mode. It never returns an error:
// faults come back as a Position with Side == SideError.
type Oracle struct {
	sources map[market.Mode]Source
	log     *zap.Logger
}

func NewOracle(venue broker.Venue, accountType string, log *zap.Logger) *Oracle {
	return &Oracle{
		sources: map[market.Mode]Source{
			market.Spot:       Spot{Venue: venue, AccountType: accountType},
			market.Derivative: Derivative{Venue: venue},
		},
		log: logger.OrNop(log),
	}
}

// Balancer is a spot source that can report the unfiltered wallet balance.
type Balancer interface {
	Balance(ctx context.Context, symbol string) (float64, error)
}

// SpotBalance returns the full base-coin balance held for symbol. Unlike Get
// it does not apply DustThreshold, so small holdings can still be sold.
func (o *Oracle) SpotBalance(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	src, ok := o.sources[market.Spot]
	if !ok {
		return 0, fmt.Errorf("no spot source for %s", symbol)
	}
	if b, ok := src.(Balancer); ok {
		return b.Balance(ctx, symbol)
	}
	p, err := src.Position(ctx, symbol)
	return p.Size, err
}

// WithSource overrides the reader for mode.
func (o *Oracle) WithSource(mode market.Mode, s Source) *Oracle {
	o.sources[mode] = s
	return o
}

func (o *Oracle) Get(ctx context.Context, symbol string, mode market.Mode) (p Position) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	defer func() {
		if r := recover(); r != nil {
			p = failed(symbol, mode, fmt.Errorf("panic reading position: %v", r))
			o.log.Error("position oracle panic", zap.String("symbol", symbol), zap.Any("panic", r))
		}
	}()

	src, ok := o.sources[mode]
	if !ok {
		return failed(symbol, mode, fmt.Errorf("unsupported mode %q", mode))
	}
	p, err := src.Position(ctx, symbol)
	if err != nil {
		o.log.Warn("position lookup failed",
			zap.String("symbol", symbol),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return failed(symbol, mode, err)
	}
	return p
}
