package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/market"
)

type upsertOptions struct {
	recalcPnL bool
}

type UpsertOption func(*upsertOptions)

// WithPnLRecalc recomputes pnl on update. Without it an existing row keeps
// the pnl booked when it was first inserted.
func WithPnLRecalc() UpsertOption {
	return func(o *upsertOptions) { o.recalcPnL = true }
}

// FromVenue converts a venue fill into a ledger row with its PnL computed.
func FromVenue(category market.Category, x broker.Execution) (Execution, error) {
	if strings.TrimSpace(x.ExecID) == "" {
		return Execution{}, fmt.Errorf("execution without exec id")
	}
	if x.Symbol == "" {
		return Execution{}, fmt.Errorf("execution %s without symbol", x.ExecID)
	}

	e := Execution{
		ExecID:        x.ExecID,
		Symbol:        strings.ToUpper(x.Symbol),
		OrderID:       x.OrderID,
		OrderLinkID:   x.OrderLinkID,
		Side:          x.Side,
		OrderType:     x.OrderType,
		FeeCurrency:   x.FeeCurrency,
		IsMaker:       x.IsMaker,
		ExecType:      x.ExecType,
		StopOrderType: x.StopOrderType,
		Seq:           x.Seq,
		Category:      string(category),
	}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"orderPrice", x.OrderPrice, &e.OrderPrice},
		{"orderQty", x.OrderQty, &e.OrderQty},
		{"leavesQty", x.LeavesQty, &e.LeavesQty},
		{"execPrice", x.ExecPrice, &e.ExecPrice},
		{"execQty", x.ExecQty, &e.ExecQty},
		{"execValue", x.ExecValue, &e.ExecValue},
		{"execFee", x.ExecFee, &e.ExecFee},
		{"feeRate", x.FeeRate, &e.FeeRate},
		{"markPrice", x.MarkPrice, &e.MarkPrice},
		{"closedSize", x.ClosedSize, &e.ClosedSize},
	}
	for _, f := range fields {
		v, err := broker.Float(f.raw)
		if err != nil {
			return Execution{}, fmt.Errorf("execution %s %s: %w", x.ExecID, f.name, err)
		}
		*f.dst = v
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(x.ExecTime), 10, 64)
	if err != nil {
		return Execution{}, fmt.Errorf("execution %s execTime %q: %w", x.ExecID, x.ExecTime, err)
	}
	e.ExecTime = ms

	pnl := ComputePnL(e)
	e.PnL = &pnl
	return e, nil
}

// UpsertExecution writes one venue fill keyed by exec id. Re-ingesting the
// same exec id updates the row in place.
func (j *SQLite) UpsertExecution(ctx context.Context, category market.Category, x broker.Execution, opts ...UpsertOption) (UpsertResult, error) {
	e, err := FromVenue(category, x)
	if err != nil {
		return 0, err
	}
	return j.upsert(ctx, j.db, e, applyOptions(opts))
}

// UpsertMany writes a batch in one transaction. A record that fails to
// convert or write is counted in Errors and skipped; a failure to begin or
// commit rolls the whole batch back.
func (j *SQLite) UpsertMany(ctx context.Context, category market.Category, xs []broker.Execution, opts ...UpsertOption) (BatchSummary, error) {
	o := applyOptions(opts)
	sum := BatchSummary{TotalProcessed: len(xs)}
	if len(xs) == 0 {
		return sum, nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, x := range xs {
		if err := ctx.Err(); err != nil {
			return BatchSummary{}, fmt.Errorf("batch aborted: %w", err)
		}
		e, err := FromVenue(category, x)
		if err != nil {
			sum.Errors++
			continue
		}
		res, err := j.upsert(ctx, tx, e, o)
		if err != nil {
			sum.Errors++
			continue
		}
		switch res {
		case Inserted:
			sum.Inserted++
		case Updated:
			sum.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return BatchSummary{}, fmt.Errorf("commit batch: %w", err)
	}
	return sum, nil
}

func applyOptions(opts []UpsertOption) upsertOptions {
	var o upsertOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (j *SQLite) upsert(ctx context.Context, ex execer, e Execution, o upsertOptions) (UpsertResult, error) {
	now := j.now()
	res, err := ex.ExecContext(ctx, `
		INSERT INTO bybit_trade_history
		(exec_id, symbol, order_id, order_link_id, side, order_type, order_price, order_qty, leaves_qty,
		 exec_price, exec_qty, exec_value, exec_fee, fee_currency, fee_rate, is_maker, exec_type,
		 stop_order_type, mark_price, closed_size, seq, exec_time, category, pnl, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(exec_id) DO NOTHING`,
		e.ExecID, e.Symbol, e.OrderID, e.OrderLinkID, e.Side, e.OrderType, e.OrderPrice, e.OrderQty, e.LeavesQty,
		e.ExecPrice, e.ExecQty, e.ExecValue, e.ExecFee, e.FeeCurrency, e.FeeRate, e.IsMaker, e.ExecType,
		e.StopOrderType, e.MarkPrice, e.ClosedSize, e.Seq, e.ExecTime, e.Category, e.PnL, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert execution %s: %w", e.ExecID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		return Inserted, nil
	}

	res, err = ex.ExecContext(ctx, `
		UPDATE bybit_trade_history SET
			symbol = ?, order_id = ?, order_link_id = ?, side = ?, order_type = ?, order_price = ?,
			order_qty = ?, leaves_qty = ?, exec_price = ?, exec_qty = ?, exec_value = ?, exec_fee = ?,
			fee_currency = ?, fee_rate = ?, is_maker = ?, exec_type = ?, stop_order_type = ?,
			mark_price = ?, closed_size = ?, seq = ?, exec_time = ?, category = ?,
			pnl = CASE WHEN ? THEN ? ELSE COALESCE(pnl, ?) END,
			updated_at = ?
		WHERE exec_id = ?`,
		e.Symbol, e.OrderID, e.OrderLinkID, e.Side, e.OrderType, e.OrderPrice,
		e.OrderQty, e.LeavesQty, e.ExecPrice, e.ExecQty, e.ExecValue, e.ExecFee,
		e.FeeCurrency, e.FeeRate, e.IsMaker, e.ExecType, e.StopOrderType,
		e.MarkPrice, e.ClosedSize, e.Seq, e.ExecTime, e.Category,
		o.recalcPnL, e.PnL, e.PnL,
		now, e.ExecID,
	)
	if err != nil {
		return 0, fmt.Errorf("update execution %s: %w", e.ExecID, err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("update execution %s: %w", e.ExecID, sql.ErrNoRows)
	}
	return Updated, nil
}

// RecalcMissingPnL computes pnl for every ledger row that has none and
// returns how many rows were filled in.
func (j *SQLite) RecalcMissingPnL(ctx context.Context) (int, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, side, exec_value, exec_fee, closed_size, category
		FROM bybit_trade_history WHERE pnl IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("select missing pnl: %w", err)
	}

	type pending struct {
		id  int64
		pnl float64
	}
	var todo []pending
	for rows.Next() {
		var e Execution
		if err := rows.Scan(&e.ID, &e.Side, &e.ExecValue, &e.ExecFee, &e.ClosedSize, &e.Category); err != nil {
			rows.Close()
			return 0, err
		}
		todo = append(todo, pending{id: e.ID, pnl: ComputePnL(e)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, p := range todo {
		if _, err := tx.ExecContext(ctx, `UPDATE bybit_trade_history SET pnl = ?, updated_at = ? WHERE id = ?`,
			p.pnl, j.now(), p.id); err != nil {
			return 0, fmt.Errorf("update pnl %d: %w", p.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(todo), nil
}
