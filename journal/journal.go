// Package journal is the persistent ledger: the per-cycle decision log, the
// idempotent execution ledger with realized-PnL accounting, balance snapshots
// and reasoning token usage.
package journal

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// DecisionEntry is one row of the decision log. Price stays 0 and OrderID nil
// until an order for the decision fills.
type DecisionEntry struct {
	ID        int64           `json:"id"`
	Time      time.Time       `json:"timestamp"`
	CycleID   string          `json:"cycle_id,omitempty"`
	Mode      string          `json:"mode,omitempty"`
	Symbol    string          `json:"symbol"`
	Action    string          `json:"action"`
	Quantity  float64         `json:"quantity"`
	Price     float64         `json:"price"`
	Reasoning string          `json:"reasoning"`
	OrderID   *string         `json:"order_id"`
	Payload   json.RawMessage `json:"llm_decision,omitempty"`
}

// Execution is a ledger row. PnL is nil only for rows written before PnL was
// computed; RecalcMissingPnL fills those in.
type Execution struct {
	ID            int64     `json:"id"`
	ExecID        string    `json:"exec_id"`
	Symbol        string    `json:"symbol"`
	OrderID       string    `json:"order_id"`
	OrderLinkID   string    `json:"order_link_id,omitempty"`
	Side          string    `json:"side"`
	OrderType     string    `json:"order_type"`
	OrderPrice    float64   `json:"order_price"`
	OrderQty      float64   `json:"order_qty"`
	LeavesQty     float64   `json:"leaves_qty"`
	ExecPrice     float64   `json:"exec_price"`
	ExecQty       float64   `json:"exec_qty"`
	ExecValue     float64   `json:"exec_value"`
	ExecFee       float64   `json:"exec_fee"`
	FeeCurrency   string    `json:"fee_currency"`
	FeeRate       float64   `json:"fee_rate"`
	IsMaker       bool      `json:"is_maker"`
	ExecType      string    `json:"exec_type"`
	StopOrderType string    `json:"stop_order_type,omitempty"`
	MarkPrice     float64   `json:"mark_price"`
	ClosedSize    float64   `json:"closed_size"`
	Seq           int64     `json:"seq"`
	ExecTime      int64     `json:"exec_time"`
	Category      string    `json:"category"`
	PnL           *float64  `json:"pnl"`
	InsertedAt    time.Time `json:"inserted_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExecutedAt converts the venue's epoch-millisecond timestamp.
func (e Execution) ExecutedAt() time.Time {
	return time.UnixMilli(e.ExecTime).UTC()
}

type BalanceSnapshot struct {
	ID           int64     `json:"id"`
	Time         time.Time `json:"timestamp"`
	AccountLabel string    `json:"account_type"`
	Coin         string    `json:"coin"`
	Equity       float64   `json:"balance"`
}

type TokenUsage struct {
	ID           int64     `json:"id"`
	Time         time.Time `json:"timestamp"`
	Model        string    `json:"model_name"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
}

// UpsertResult says what an upsert did to the ledger.
type UpsertResult int

const (
	Inserted UpsertResult = iota + 1
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	}
	return "unknown"
}

// BatchSummary reports one UpsertMany call.
type BatchSummary struct {
	Inserted       int `json:"inserted"`
	Updated        int `json:"updated"`
	Errors         int `json:"errors"`
	TotalProcessed int `json:"total_processed"`
}

// Add folds o into s.
func (s *BatchSummary) Add(o BatchSummary) {
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Errors += o.Errors
	s.TotalProcessed += o.TotalProcessed
}
