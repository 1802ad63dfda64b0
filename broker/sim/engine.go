// Package sim is an in-memory paper venue. It fills market orders at the
// current ticker, tracks spot wallets and linear positions, triggers attached
// brackets on price updates and records executions the way the live venue
// reports them.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/pkg/id"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownInstrument   = errors.New("unknown instrument")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoPosition          = errors.New("no open position to close")
)

// Paper venue error codes, mirroring the live venue's retCode values.
const (
	codeInsufficient = 110007
	codeNoPosition   = 110017
	codeBadRequest   = 10001
)

type Config struct {
	QuoteCoin      string
	StartingQuote  float64
	FeeRate        float64
	DefaultQtyStep string
	DefaultMinQty  string
	Leverage       float64
}

func DefaultConfig() Config {
	return Config{
		QuoteCoin:      "USDT",
		StartingQuote:  10000,
		FeeRate:        0.001,
		DefaultQtyStep: "0.001",
		DefaultMinQty:  "0.001",
		Leverage:       10,
	}
}

type Engine struct {
	mu          sync.Mutex
	cfg         Config
	tickers     *market.TickerStore
	candles     map[string][]market.Candle
	instruments map[string]market.Instrument
	wallet      map[string]float64
	positions   map[string]*Position
	executions  []record
	orders      int
	now         func() time.Time
}

var _ broker.Venue = (*Engine)(nil)

func NewEngine(cfg Config) *Engine {
	if cfg.QuoteCoin == "" {
		cfg.QuoteCoin = "USDT"
	}
	if cfg.DefaultQtyStep == "" {
		cfg.DefaultQtyStep = "0.001"
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	if cfg.DefaultMinQty == "" {
		cfg.DefaultMinQty = cfg.DefaultQtyStep
	}
	return &Engine{
		cfg:         cfg,
		tickers:     market.NewTickerStore(),
		candles:     make(map[string][]market.Candle),
		instruments: make(map[string]market.Instrument),
		wallet:      map[string]float64{cfg.QuoteCoin: cfg.StartingQuote},
		positions:   make(map[string]*Position),
		now:         time.Now,
	}
}

// SetClock replaces the engine's wall clock.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Engine) SetInstrument(inst market.Instrument) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instruments[key(inst.Category, inst.Symbol)] = inst
}

// SetBalance overwrites the wallet balance of coin.
func (e *Engine) SetBalance(coin string, amount float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wallet[strings.ToUpper(coin)] = amount
}

// Balance returns the wallet balance of coin.
func (e *Engine) Balance(coin string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wallet[strings.ToUpper(coin)]
}

// OpenPosition seeds a linear position without going through an order.
func (e *Engine) OpenPosition(p Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := p
	cp.Symbol = strings.ToUpper(cp.Symbol)
	e.positions[cp.Symbol] = &cp
}

// AddCandles appends history for symbol. Candles may arrive in any order.
func (e *Engine) AddCandles(symbol string, cs ...market.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sym := strings.ToUpper(symbol)
	e.candles[sym] = append(e.candles[sym], cs...)
}

// OrderCount reports how many orders were accepted or rejected so far.
func (e *Engine) OrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orders
}

// UpdatePrice stores t and closes any linear position whose stop-loss or
// take-profit the new price crosses.
func (e *Engine) UpdatePrice(t market.Ticker) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t.Time.IsZero() {
		t.Time = e.now()
	}
	e.tickers.Set(t)

	p, ok := e.positions[strings.ToUpper(t.Symbol)]
	if !ok || p.Size <= 0 {
		return nil
	}
	mark := t.Price()
	reason := ""
	switch {
	case p.hitStopLoss(mark):
		reason = "StopLoss"
	case p.hitTakeProfit(mark):
		reason = "TakeProfit"
	}
	if reason == "" {
		return nil
	}
	_, err := e.reduceLocked(p, p.Size, mark, broker.Execution{StopOrderType: reason})
	return err
}

func (e *Engine) GetKlines(ctx context.Context, req broker.KlineRequest) ([]market.Candle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := e.candles[strings.ToUpper(req.Symbol)]
	out := make([]market.Candle, len(src))
	copy(out, src)
	market.SortDescending(out)
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[:req.Limit]
	}
	return out, nil
}

func (e *Engine) GetTicker(ctx context.Context, category market.Category, symbol string) (market.Ticker, error) {
	t, err := e.tickers.Get(symbol)
	if err != nil {
		return market.Ticker{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	return t, nil
}

func (e *Engine) GetInstrument(ctx context.Context, category market.Category, symbol string) (market.Instrument, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instrumentLocked(category, symbol), nil
}

func (e *Engine) GetWalletBalance(ctx context.Context, accountType, coin string) ([]broker.WalletAccount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	coins := make([]string, 0, len(e.wallet))
	for c := range e.wallet {
		if coin == "" || strings.EqualFold(c, coin) {
			coins = append(coins, c)
		}
	}
	sort.Strings(coins)

	acct := broker.WalletAccount{AccountType: accountType}
	total := 0.0
	for _, c := range coins {
		bal := e.wallet[c]
		usd := bal
		if c != e.cfg.QuoteCoin {
			usd = bal * e.priceLocked(c+e.cfg.QuoteCoin)
		}
		total += usd
		acct.Coins = append(acct.Coins, broker.CoinBalance{
			Coin:          c,
			Equity:        fstr(bal),
			WalletBalance: fstr(bal),
			UsdValue:      fstr(usd),
		})
	}
	for _, p := range e.positions {
		if p.Size > 0 {
			total += p.unrealized(e.priceLocked(p.Symbol))
		}
	}
	acct.TotalEquity = fstr(total)
	return []broker.WalletAccount{acct}, nil
}

func (e *Engine) GetPositions(ctx context.Context, category market.Category, symbol string) ([]broker.PositionRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[strings.ToUpper(symbol)]
	if !ok || p.Size <= 0 {
		return nil, nil
	}
	return []broker.PositionRecord{p.record(e.priceLocked(p.Symbol))}, nil
}

func (e *Engine) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderAck, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders++

	qty, err := broker.Float(req.Qty)
	if err != nil || qty <= 0 {
		return broker.OrderAck{}, &broker.APIError{Code: codeBadRequest, Msg: fmt.Sprintf("invalid qty %q", req.Qty)}
	}
	t, err := e.tickers.Get(req.Symbol)
	if err != nil {
		return broker.OrderAck{}, &broker.APIError{Code: codeBadRequest, Msg: fmt.Sprintf("no market price for %s", req.Symbol)}
	}
	price := fillPrice(t, req.Side)

	ack := broker.OrderAck{OrderID: id.New(), OrderLinkID: req.OrderLinkID, AvgPrice: price}
	base := broker.Execution{OrderID: ack.OrderID, OrderLinkID: req.OrderLinkID, OrderType: req.OrderType, OrderQty: req.Qty}

	if req.Category == market.CategorySpot {
		if err := e.fillSpotLocked(req, qty, price, base); err != nil {
			return broker.OrderAck{}, err
		}
		return ack, nil
	}
	if err := e.fillLinearLocked(req, qty, price, base); err != nil {
		return broker.OrderAck{}, err
	}
	return ack, nil
}

func (e *Engine) GetExecutions(ctx context.Context, q broker.ExecutionQuery) (broker.ExecutionPage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	matched := make([]broker.Execution, 0, len(e.executions))
	for _, x := range e.executions {
		if x.category != q.Category {
			continue
		}
		if q.Symbol != "" && !strings.EqualFold(x.Symbol, q.Symbol) {
			continue
		}
		ms, _ := strconv.ParseInt(x.ExecTime, 10, 64)
		if !q.StartTime.IsZero() && ms < q.StartTime.UnixMilli() {
			continue
		}
		if !q.EndTime.IsZero() && ms > q.EndTime.UnixMilli() {
			continue
		}
		matched = append(matched, x.Execution)
	}

	offset := 0
	if q.Cursor != "" {
		n, err := strconv.Atoi(q.Cursor)
		if err != nil || n < 0 {
			return broker.ExecutionPage{}, &broker.APIError{Code: codeBadRequest, Msg: "invalid cursor"}
		}
		offset = n
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	page := broker.ExecutionPage{}
	if end < len(matched) {
		page.NextCursor = strconv.Itoa(end)
	} else {
		end = len(matched)
	}
	page.Executions = append(page.Executions, matched[offset:end]...)
	return page, nil
}

func (e *Engine) fillSpotLocked(req broker.OrderRequest, qty, price float64, x broker.Execution) error {
	baseCoin := market.BaseCoin(req.Symbol)
	quote := e.cfg.QuoteCoin
	value := qty * price
	fee := value * e.cfg.FeeRate

	switch req.Side {
	case broker.Buy:
		if e.wallet[quote] < value+fee {
			return &broker.APIError{Code: codeInsufficient, Msg: ErrInsufficientBalance.Error()}
		}
		e.wallet[quote] -= value + fee
		e.wallet[baseCoin] += qty
	case broker.Sell:
		if e.wallet[baseCoin] < qty {
			return &broker.APIError{Code: codeInsufficient, Msg: ErrInsufficientBalance.Error()}
		}
		e.wallet[baseCoin] -= qty
		e.wallet[quote] += value - fee
	default:
		return &broker.APIError{Code: codeBadRequest, Msg: fmt.Sprintf("invalid side %q", req.Side)}
	}

	x.Side = string(req.Side)
	e.recordLocked(market.CategorySpot, req.Symbol, x, qty, price, fee, 0)
	return nil
}

func (e *Engine) fillLinearLocked(req broker.OrderRequest, qty, price float64, x broker.Execution) error {
	sym := strings.ToUpper(req.Symbol)
	side := market.Long
	if req.Side == broker.Sell {
		side = market.Short
	}

	p, ok := e.positions[sym]
	open := ok && p.Size > 0

	if req.ReduceOnly {
		if !open || p.Side == side {
			return &broker.APIError{Code: codeNoPosition, Msg: ErrNoPosition.Error()}
		}
		if qty > p.Size {
			qty = p.Size
		}
		x.Side = string(req.Side)
		_, err := e.reduceLocked(p, qty, price, x)
		return err
	}

	if open && p.Side != side {
		// Opposite-side order without reduceOnly nets against the position.
		x.Side = string(req.Side)
		closing := minf(qty, p.Size)
		if _, err := e.reduceLocked(p, closing, price, x); err != nil {
			return err
		}
		qty -= closing
		if qty <= 0 {
			return nil
		}
		open = false
	}

	fee := qty * price * e.cfg.FeeRate
	if e.wallet[e.cfg.QuoteCoin] < fee {
		return &broker.APIError{Code: codeInsufficient, Msg: ErrInsufficientBalance.Error()}
	}
	e.wallet[e.cfg.QuoteCoin] -= fee

	if !open {
		p = &Position{Symbol: sym, Side: side, Leverage: e.cfg.Leverage}
		e.positions[sym] = p
	}
	p.AvgPrice = (p.AvgPrice*p.Size + price*qty) / (p.Size + qty)
	p.Size += qty
	if sl, err := broker.Float(req.StopLoss); err == nil && sl > 0 {
		p.StopLoss = sl
	}
	if tp, err := broker.Float(req.TakeProfit); err == nil && tp > 0 {
		p.TakeProfit = tp
	}

	x.Side = string(req.Side)
	e.recordLocked(market.CategoryLinear, sym, x, qty, price, fee, 0)
	return nil
}

// reduceLocked closes qty of p at price and books the realised PnL.
func (e *Engine) reduceLocked(p *Position, qty, price float64, x broker.Execution) (float64, error) {
	if qty <= 0 || p.Size <= 0 {
		return 0, &broker.APIError{Code: codeNoPosition, Msg: ErrNoPosition.Error()}
	}
	pl := qty * (price - p.AvgPrice)
	if p.Side == market.Short {
		pl = -pl
	}
	fee := qty * price * e.cfg.FeeRate
	e.wallet[e.cfg.QuoteCoin] += pl - fee

	p.Size -= qty
	if p.Size <= 1e-12 {
		delete(e.positions, p.Symbol)
	}

	if x.Side == "" {
		x.Side = string(broker.SideFor(p.Side.Opposite()))
	}
	x.OrderType = orDefault(x.OrderType, "Market")
	if x.OrderID == "" {
		x.OrderID = id.New()
	}
	e.recordLocked(market.CategoryLinear, p.Symbol, x, qty, price, fee, qty)
	return pl, nil
}

func (e *Engine) recordLocked(cat market.Category, symbol string, x broker.Execution, qty, price, fee, closed float64) {
	x.ExecID = id.New()
	x.Symbol = strings.ToUpper(symbol)
	x.OrderType = orDefault(x.OrderType, "Market")
	x.ExecPrice = fstr(price)
	x.ExecQty = fstr(qty)
	x.ExecValue = fstr(qty * price)
	x.ExecFee = fstr(fee)
	x.FeeCurrency = e.cfg.QuoteCoin
	x.FeeRate = fstr(e.cfg.FeeRate)
	x.ExecType = "Trade"
	x.LeavesQty = "0"
	x.ClosedSize = fstr(closed)
	x.MarkPrice = fstr(price)
	x.Seq = int64(len(e.executions) + 1)
	x.ExecTime = strconv.FormatInt(e.now().UnixMilli(), 10)
	e.executions = append(e.executions, record{Execution: x, category: cat})
}

func (e *Engine) instrumentLocked(category market.Category, symbol string) market.Instrument {
	if inst, ok := e.instruments[key(category, symbol)]; ok {
		return inst
	}
	return market.Instrument{
		Symbol:      strings.ToUpper(symbol),
		Category:    category,
		BaseCoin:    market.BaseCoin(symbol),
		QuoteCoin:   e.cfg.QuoteCoin,
		QtyStep:     e.cfg.DefaultQtyStep,
		MinOrderQty: e.cfg.DefaultMinQty,
	}
}

func (e *Engine) priceLocked(symbol string) float64 {
	t, err := e.tickers.Get(symbol)
	if err != nil {
		return 0
	}
	return t.Price()
}

func fillPrice(t market.Ticker, side broker.OrderSide) float64 {
	if side == broker.Buy && t.Ask > 0 {
		return t.Ask
	}
	if side == broker.Sell && t.Bid > 0 {
		return t.Bid
	}
	return t.Price()
}

func key(c market.Category, symbol string) string {
	return string(c) + ":" + strings.ToUpper(symbol)
}

func fstr(f float64) string {
	return decimal.NewFromFloat(f).Round(8).String()
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
