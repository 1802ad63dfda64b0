package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RecordDecision appends a decision-log entry and returns its id. Price and
// OrderID are stored as given; the pipeline passes 0 and nil.
func (j *SQLite) RecordDecision(ctx context.Context, d DecisionEntry) (int64, error) {
	if d.Time.IsZero() {
		d.Time = j.now()
	}
	var payload any
	if len(d.Payload) > 0 {
		payload = string(d.Payload)
	}

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO trade_history
		(timestamp, cycle_id, mode, symbol, action, quantity, price, reasoning, order_id, llm_decision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Time.UTC(), d.CycleID, d.Mode, strings.ToUpper(d.Symbol), d.Action,
		d.Quantity, d.Price, d.Reasoning, d.OrderID, payload,
	)
	if err != nil {
		return 0, fmt.Errorf("record decision: %w", err)
	}
	return res.LastInsertId()
}

// MarkFilled stamps the most recent entry for symbol and action with the fill
// price and venue order id.
func (j *SQLite) MarkFilled(ctx context.Context, symbol, action string, price float64, orderID string) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE trade_history SET price = ?, order_id = ?
		WHERE id = (
			SELECT id FROM trade_history
			WHERE symbol = ? AND action = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT 1
		)`,
		price, orderID, strings.ToUpper(symbol), action,
	)
	if err != nil {
		return fmt.Errorf("mark filled: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("mark filled %s %s: %w", symbol, action, ErrNotFound)
	}
	return nil
}

// GetDecision returns a single entry by id.
func (j *SQLite) GetDecision(ctx context.Context, id int64) (DecisionEntry, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, timestamp, cycle_id, mode, symbol, action, quantity, price, reasoning, order_id, llm_decision
		FROM trade_history WHERE id = ?`, id)

	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DecisionEntry{}, fmt.Errorf("decision %d: %w", id, ErrNotFound)
	}
	return d, err
}

type DecisionFilter struct {
	Symbol string
	Since  time.Time
	Limit  int
	Offset int
}

// ListDecisions returns entries newest first and the total matching count.
func (j *SQLite) ListDecisions(ctx context.Context, f DecisionFilter) ([]DecisionEntry, int, error) {
	where, args := []string{"1=1"}, []any{}
	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(f.Symbol))
	}
	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_history WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count decisions: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, timestamp, cycle_id, mode, symbol, action, quantity, price, reasoning, order_id, llm_decision
		FROM trade_history WHERE `+cond+`
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?`, append(args, limitOrDefault(f.Limit), f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(s scanner) (DecisionEntry, error) {
	var (
		d       DecisionEntry
		orderID sql.NullString
		payload sql.NullString
	)
	if err := s.Scan(&d.ID, &d.Time, &d.CycleID, &d.Mode, &d.Symbol, &d.Action,
		&d.Quantity, &d.Price, &d.Reasoning, &orderID, &payload); err != nil {
		return DecisionEntry{}, err
	}
	if orderID.Valid {
		v := orderID.String
		d.OrderID = &v
	}
	if payload.Valid {
		d.Payload = []byte(payload.String)
	}
	return d, nil
}

func limitOrDefault(n int) int {
	switch {
	case n <= 0:
		return 50
	case n > 1000:
		return 1000
	}
	return n
}
