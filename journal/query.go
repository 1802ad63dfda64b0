package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const executionColumns = `id, exec_id, symbol, order_id, order_link_id, side, order_type, order_price,
	order_qty, leaves_qty, exec_price, exec_qty, exec_value, exec_fee, fee_currency, fee_rate, is_maker,
	exec_type, stop_order_type, mark_price, closed_size, seq, exec_time, category, pnl, created_at, updated_at`

// GetExecution returns a single ledger row by exec id.
func (j *SQLite) GetExecution(ctx context.Context, execID string) (Execution, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM bybit_trade_history WHERE exec_id = ?`, execID)
	e, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Execution{}, fmt.Errorf("execution %q: %w", execID, ErrNotFound)
	}
	return e, err
}

type ExecutionFilter struct {
	Symbol   string
	Category string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

func (f ExecutionFilter) where() (string, []any) {
	where, args := []string{"1=1"}, []any{}
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(f.Symbol))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, strings.ToLower(f.Category))
	}
	if !f.Since.IsZero() {
		where = append(where, "exec_time >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	if !f.Until.IsZero() {
		where = append(where, "exec_time < ?")
		args = append(args, f.Until.UnixMilli())
	}
	return strings.Join(where, " AND "), args
}

// ListExecutions returns ledger rows newest first plus the total matching count.
func (j *SQLite) ListExecutions(ctx context.Context, f ExecutionFilter) ([]Execution, int, error) {
	cond, args := f.where()

	var total int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bybit_trade_history WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count executions: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `SELECT `+executionColumns+` FROM bybit_trade_history WHERE `+cond+`
		ORDER BY exec_time DESC, id DESC LIMIT ? OFFSET ?`, append(args, limitOrDefault(f.Limit), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// LatestExecTime returns the newest exec_time in the ledger for category and
// symbol (any symbol when empty). ok is false when there is none.
func (j *SQLite) LatestExecTime(ctx context.Context, category, symbol string) (t time.Time, ok bool, err error) {
	f := ExecutionFilter{Category: category, Symbol: symbol}
	cond, args := f.where()

	var ms sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(exec_time) FROM bybit_trade_history WHERE `+cond, args...).Scan(&ms); err != nil {
		return time.Time{}, false, err
	}
	if !ms.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64).UTC(), true, nil
}

// SymbolPnL aggregates the ledger for one symbol.
type SymbolPnL struct {
	Symbol     string  `json:"symbol"`
	Trades     int     `json:"trade_count"`
	TotalPnL   float64 `json:"total_pnl"`
	TotalFees  float64 `json:"total_fees"`
	TotalValue float64 `json:"total_value"`
}

// PnLSummary groups ledger rows executed at or after since by symbol.
func (j *SQLite) PnLSummary(ctx context.Context, since time.Time) ([]SymbolPnL, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, COUNT(*), COALESCE(SUM(pnl), 0), COALESCE(SUM(exec_fee), 0), COALESCE(SUM(exec_value), 0)
		FROM bybit_trade_history
		WHERE exec_time >= ?
		GROUP BY symbol
		ORDER BY symbol`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("pnl summary: %w", err)
	}
	defer rows.Close()

	var out []SymbolPnL
	for rows.Next() {
		var s SymbolPnL
		if err := rows.Scan(&s.Symbol, &s.Trades, &s.TotalPnL, &s.TotalFees, &s.TotalValue); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanExecution(s scanner) (Execution, error) {
	var (
		e   Execution
		pnl sql.NullFloat64
	)
	err := s.Scan(&e.ID, &e.ExecID, &e.Symbol, &e.OrderID, &e.OrderLinkID, &e.Side, &e.OrderType, &e.OrderPrice,
		&e.OrderQty, &e.LeavesQty, &e.ExecPrice, &e.ExecQty, &e.ExecValue, &e.ExecFee, &e.FeeCurrency, &e.FeeRate, &e.IsMaker,
		&e.ExecType, &e.StopOrderType, &e.MarkPrice, &e.ClosedSize, &e.Seq, &e.ExecTime, &e.Category, &pnl,
		&e.InsertedAt, &e.UpdatedAt)
	if err != nil {
		return Execution{}, err
	}
	if pnl.Valid {
		v := pnl.Float64
		e.PnL = &v
	}
	return e, nil
}
