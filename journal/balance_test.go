package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalances(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordBalances(ctx, []BalanceSnapshot{
		{Time: base, AccountLabel: "UNIFIED_spot", Coin: "usdt", Equity: 1000},
		{Time: base, AccountLabel: "UNIFIED_spot", Coin: "BTC", Equity: 0.5},
		{Time: base.Add(time.Minute), AccountLabel: "UNIFIED_spot", Coin: "USDT", Equity: 990},
	}))
	require.NoError(t, j.RecordBalances(ctx, nil))

	got, err := j.ListBalances(ctx, "USDT", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 990.0, got[0].Equity)
	assert.Equal(t, "UNIFIED_spot", got[0].AccountLabel)

	got, err = j.ListBalances(ctx, "", base.Add(30*time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTokenUsage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	require.NoError(t, j.RecordTokenUsage(ctx, TokenUsage{Model: "gpt-4o-mini", InputTokens: 100, OutputTokens: 20}))
	require.NoError(t, j.RecordTokenUsage(ctx, TokenUsage{Model: "gpt-4o-mini", InputTokens: 50, OutputTokens: 5, TotalTokens: 55}))
	require.NoError(t, j.RecordTokenUsage(ctx, TokenUsage{Model: "other", InputTokens: 1, OutputTokens: 1}))

	got, err := j.TokenUsageByModel(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, TokenUsage{Model: "gpt-4o-mini", InputTokens: 150, OutputTokens: 25, TotalTokens: 175}, got[0])
	assert.Equal(t, 2, got[1].TotalTokens)
}
