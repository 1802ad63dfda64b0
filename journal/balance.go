package journal

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RecordBalances appends snapshots in one transaction.
func (j *SQLite) RecordBalances(ctx context.Context, snaps []BalanceSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := j.now()
	for _, s := range snaps {
		if s.Time.IsZero() {
			s.Time = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO balance_history (timestamp, account_type, coin, balance)
			VALUES (?, ?, ?, ?)`,
			s.Time.UTC(), s.AccountLabel, strings.ToUpper(s.Coin), s.Equity,
		); err != nil {
			return fmt.Errorf("record balance %s: %w", s.Coin, err)
		}
	}
	return tx.Commit()
}

// ListBalances returns snapshots newest first. Empty coin matches all coins.
func (j *SQLite) ListBalances(ctx context.Context, coin string, since time.Time, limit int) ([]BalanceSnapshot, error) {
	where, args := []string{"timestamp >= ?"}, []any{since.UTC()}
	if coin != "" {
		where = append(where, "coin = ?")
		args = append(args, strings.ToUpper(coin))
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, timestamp, account_type, coin, balance
		FROM balance_history WHERE `+strings.Join(where, " AND ")+`
		ORDER BY timestamp DESC, id DESC LIMIT ?`, append(args, limitOrDefault(limit))...)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var out []BalanceSnapshot
	for rows.Next() {
		var b BalanceSnapshot
		if err := rows.Scan(&b.ID, &b.Time, &b.AccountLabel, &b.Coin, &b.Equity); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
