package journal

import (
	"context"
	"fmt"
	"time"
)

func (j *SQLite) RecordTokenUsage(ctx context.Context, u TokenUsage) error {
	if u.Time.IsZero() {
		u.Time = j.now()
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO agent_token_usage (timestamp, model_name, input_tokens, output_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?)`,
		u.Time.UTC(), u.Model, u.InputTokens, u.OutputTokens, u.TotalTokens,
	)
	if err != nil {
		return fmt.Errorf("record token usage: %w", err)
	}
	return nil
}

// TokenUsageByModel sums usage per model since the given time.
func (j *SQLite) TokenUsageByModel(ctx context.Context, since time.Time) ([]TokenUsage, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT model_name, SUM(input_tokens), SUM(output_tokens), SUM(total_tokens)
		FROM agent_token_usage
		WHERE timestamp >= ?
		GROUP BY model_name
		ORDER BY model_name`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("token usage: %w", err)
	}
	defer rows.Close()

	var out []TokenUsage
	for rows.Next() {
		var u TokenUsage
		if err := rows.Scan(&u.Model, &u.InputTokens, &u.OutputTokens, &u.TotalTokens); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
