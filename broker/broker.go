package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/llmtrader/market"
	"github.com/shopspring/decimal"
)

// Venue is the exchange REST contract the trading core consumes.
type Venue interface {
	GetKlines(ctx context.Context, req KlineRequest) ([]market.Candle, error)
	GetTicker(ctx context.Context, category market.Category, symbol string) (market.Ticker, error)
	GetInstrument(ctx context.Context, category market.Category, symbol string) (market.Instrument, error)
	GetWalletBalance(ctx context.Context, accountType, coin string) ([]WalletAccount, error)
	GetPositions(ctx context.Context, category market.Category, symbol string) ([]PositionRecord, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	GetExecutions(ctx context.Context, q ExecutionQuery) (ExecutionPage, error)
}

// APIError is a non-zero venue response code.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue error %d: %s", e.Code, e.Msg)
}

type KlineRequest struct {
	Category market.Category
	Symbol   string
	Interval string // minutes as the venue spells them: "1", "5", "15", "60", "D"
	Limit    int
}

// WalletAccount and the other wire records keep the venue's numeric strings;
// callers decide how absent or blank fields are read.
type WalletAccount struct {
	AccountType string        `json:"accountType"`
	TotalEquity string        `json:"totalEquity"`
	Coins       []CoinBalance `json:"coin"`
}

type CoinBalance struct {
	Coin          string `json:"coin"`
	Equity        string `json:"equity"`
	WalletBalance string `json:"walletBalance"`
	UsdValue      string `json:"usdValue"`
	UnrealisedPnl string `json:"unrealisedPnl"`
}

type PositionRecord struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	MarkPrice     string `json:"markPrice"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	Leverage      string `json:"leverage"`
	PositionValue string `json:"positionValue"`
}

type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// SideFor returns the order side that opens exposure on s.
func SideFor(s market.Side) OrderSide {
	if s == market.Short {
		return Sell
	}
	return Buy
}

type OrderRequest struct {
	Category    market.Category `json:"category"`
	Symbol      string          `json:"symbol"`
	Side        OrderSide       `json:"side"`
	OrderType   string          `json:"orderType"`
	Qty         string          `json:"qty"`
	MarketUnit  string          `json:"marketUnit,omitempty"`
	TakeProfit  string          `json:"takeProfit,omitempty"`
	StopLoss    string          `json:"stopLoss,omitempty"`
	TpTriggerBy string          `json:"tpTriggerBy,omitempty"`
	SlTriggerBy string          `json:"slTriggerBy,omitempty"`
	TpslMode    string          `json:"tpslMode,omitempty"`
	ReduceOnly  bool            `json:"reduceOnly,omitempty"`
	OrderLinkID string          `json:"orderLinkId,omitempty"`
}

type OrderAck struct {
	OrderID     string
	OrderLinkID string
	// AvgPrice is zero unless the venue reports a fill price with the ack.
	AvgPrice float64
}

type ExecutionQuery struct {
	Category  market.Category
	Symbol    string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Cursor    string
}

type ExecutionPage struct {
	Executions []Execution
	NextCursor string
}

// Execution is a single fill as returned by the venue's trade-history API.
type Execution struct {
	ExecID        string `json:"execId"`
	Symbol        string `json:"symbol"`
	OrderID       string `json:"orderId"`
	OrderLinkID   string `json:"orderLinkId"`
	Side          string `json:"side"`
	OrderType     string `json:"orderType"`
	OrderPrice    string `json:"orderPrice"`
	OrderQty      string `json:"orderQty"`
	LeavesQty     string `json:"leavesQty"`
	ExecPrice     string `json:"execPrice"`
	ExecQty       string `json:"execQty"`
	ExecValue     string `json:"execValue"`
	ExecFee       string `json:"execFee"`
	FeeCurrency   string `json:"feeCurrency"`
	FeeRate       string `json:"feeRate"`
	IsMaker       bool   `json:"isMaker"`
	ExecType      string `json:"execType"`
	StopOrderType string `json:"stopOrderType"`
	MarkPrice     string `json:"markPrice"`
	ClosedSize    string `json:"closedSize"`
	Seq           int64  `json:"seq"`
	ExecTime      string `json:"execTime"`
}

// Float reads a venue numeric string. Blank means absent and reads as zero.
func Float(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
