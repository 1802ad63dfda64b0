package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPnL(t *testing.T) {
	tests := []struct {
		name     string
		category market.Category
		side     string
		value    float64
		fee      float64
		closed   float64
		want     float64
	}{
		{"spot buy", market.CategorySpot, "Buy", 100, 0.1, 0, -100.1},
		{"spot sell", market.CategorySpot, "Sell", 100, 0.1, 0, 99.9},
		{"spot lower-case side", market.CategorySpot, "buy", 100, 0.1, 0, -100.1},
		{"linear closing sell", market.CategoryLinear, "Sell", 500, 0.25, 50, 499.75},
		{"linear closing buy", market.CategoryLinear, "Buy", 500, 0.25, 50, -500.25},
		{"linear opening buy", market.CategoryLinear, "Buy", 500, 0.3, 0, -0.3},
		{"linear opening sell", market.CategoryLinear, "Sell", 500, 0.3, 0, -0.3},
		{"inverse closing sell", market.CategoryInverse, "Sell", 10, 0.01, 1, 9.99},
		{"option falls back to spot rules", market.CategoryOption, "Sell", 20, 0.5, 0, 19.5},
		{"rounded to 6 places", market.CategorySpot, "Sell", 1.23456789, 0.0000001, 0, 1.234568},
		{"zero fill", market.CategoryLinear, "Buy", 0, 0, 0, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, PnL(tt.category, tt.side, tt.value, tt.fee, tt.closed))
		})
	}
}

func execution(id string) broker.Execution {
	return broker.Execution{
		ExecID:      id,
		Symbol:      "btcusdt",
		OrderID:     "order-" + id,
		Side:        "Buy",
		OrderType:   "Market",
		ExecPrice:   "100",
		ExecQty:     "1",
		ExecValue:   "100",
		ExecFee:     "0.1",
		FeeCurrency: "USDT",
		ClosedSize:  "",
		Seq:         7,
		ExecTime:    "1700000000000",
	}
}

func TestUpsertExecution_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	res, err := j.UpsertExecution(ctx, market.CategorySpot, execution("e-1"))
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)

	res, err = j.UpsertExecution(ctx, market.CategorySpot, execution("e-1"))
	require.NoError(t, err)
	assert.Equal(t, Updated, res)
	assert.Equal(t, "updated", res.String())

	rows, total, err := j.ListExecutions(ctx, ExecutionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)

	got := rows[0]
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "spot", got.Category)
	assert.Equal(t, int64(1700000000000), got.ExecTime)
	assert.Equal(t, int64(7), got.Seq)
	require.NotNil(t, got.PnL)
	assert.Equal(t, -100.1, *got.PnL)
	assert.False(t, got.InsertedAt.IsZero())
}

func TestUpsertExecution_UpdateKeepsPnL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	_, err := j.UpsertExecution(ctx, market.CategorySpot, execution("e-1"))
	require.NoError(t, err)

	// Late fee correction.
	corrected := execution("e-1")
	corrected.ExecFee = "0.2"
	_, err = j.UpsertExecution(ctx, market.CategorySpot, corrected)
	require.NoError(t, err)

	got, err := j.GetExecution(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, 0.2, got.ExecFee)
	assert.Equal(t, -100.1, *got.PnL, "pnl is fixed at insert time")

	_, err = j.UpsertExecution(ctx, market.CategorySpot, corrected, WithPnLRecalc())
	require.NoError(t, err)
	got, err = j.GetExecution(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, -100.2, *got.PnL)
}

func TestUpsertExecution_Invalid(t *testing.T) {
	t.Parallel()
	j, _ := newTestSQLite(t)

	bad := execution("")
	_, err := j.UpsertExecution(context.Background(), market.CategorySpot, bad)
	assert.Error(t, err)

	bad = execution("e-2")
	bad.ExecValue = "n/a"
	_, err = j.UpsertExecution(context.Background(), market.CategorySpot, bad)
	assert.ErrorContains(t, err, "execValue")

	bad = execution("e-3")
	bad.ExecTime = ""
	_, err = j.UpsertExecution(context.Background(), market.CategorySpot, bad)
	assert.ErrorContains(t, err, "execTime")

	_, err = j.GetExecution(context.Background(), "e-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	_, err := j.UpsertExecution(ctx, market.CategoryLinear, execution("e-0"))
	require.NoError(t, err)

	batch := []broker.Execution{execution("e-0"), execution("e-1"), execution("e-2")}
	broken := execution("e-3")
	broken.ExecFee = "abc"
	batch = append(batch, broken, execution(""))

	sum, err := j.UpsertMany(ctx, market.CategoryLinear, batch)
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{Inserted: 2, Updated: 1, Errors: 2, TotalProcessed: 5}, sum)

	_, total, err := j.ListExecutions(ctx, ExecutionFilter{Category: "linear"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	// Replaying the batch inserts nothing new.
	sum, err = j.UpsertMany(ctx, market.CategoryLinear, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted)
	assert.Equal(t, 3, sum.Updated)

	sum, err = j.UpsertMany(ctx, market.CategoryLinear, nil)
	require.NoError(t, err)
	assert.Equal(t, BatchSummary{}, sum)
}

func TestUpsertMany_CancelledRollsBack(t *testing.T) {
	t.Parallel()
	j, _ := newTestSQLite(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := make([]broker.Execution, 10)
	for i := range batch {
		batch[i] = execution(fmt.Sprintf("e-%d", i))
	}
	_, err := j.UpsertMany(ctx, market.CategorySpot, batch)
	require.Error(t, err)

	_, total, err := j.ListExecutions(context.Background(), ExecutionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRecalcMissingPnL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	sell := execution("e-1")
	sell.Side = "Sell"
	sell.ExecValue = "500"
	sell.ExecFee = "0.25"
	sell.ClosedSize = "50"
	_, err := j.UpsertExecution(ctx, market.CategoryLinear, sell)
	require.NoError(t, err)
	_, err = j.UpsertExecution(ctx, market.CategoryLinear, execution("e-2"))
	require.NoError(t, err)

	// Simulate rows written before pnl was tracked.
	_, err = j.db.Exec(`UPDATE bybit_trade_history SET pnl = NULL`)
	require.NoError(t, err)

	n, err := j.RecalcMissingPnL(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := j.GetExecution(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, 499.75, *got.PnL)
	got, err = j.GetExecution(ctx, "e-2")
	require.NoError(t, err)
	assert.Equal(t, -0.1, *got.PnL) // opening linear fill books only its fee

	n, err = j.RecalcMissingPnL(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListExecutionsAndSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	add := func(id, symbol, side string, at time.Time) {
		x := execution(id)
		x.Symbol = symbol
		x.Side = side
		x.ExecTime = fmt.Sprint(at.UnixMilli())
		_, err := j.UpsertExecution(ctx, market.CategorySpot, x)
		require.NoError(t, err)
	}
	add("a", "BTCUSDT", "Buy", base)
	add("b", "BTCUSDT", "Sell", base.Add(time.Hour))
	add("c", "ETHUSDT", "Buy", base.Add(2*time.Hour))
	add("old", "ETHUSDT", "Buy", base.Add(-48*time.Hour))

	rows, total, err := j.ListExecutions(ctx, ExecutionFilter{Symbol: "btcusdt", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].ExecID, "newest first")

	rows, total, err = j.ListExecutions(ctx, ExecutionFilter{Since: base, Until: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rows, 2)

	latest, ok, err := j.LatestExecTime(ctx, "spot", "ETHUSDT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, latest.Equal(base.Add(2*time.Hour)))

	_, ok, err = j.LatestExecTime(ctx, "linear", "")
	require.NoError(t, err)
	assert.False(t, ok)

	sum, err := j.PnLSummary(ctx, base)
	require.NoError(t, err)
	require.Len(t, sum, 2)
	assert.Equal(t, SymbolPnL{Symbol: "BTCUSDT", Trades: 2, TotalPnL: -0.2, TotalFees: 0.2, TotalValue: 200}, roundSummary(sum[0]))
	assert.Equal(t, "ETHUSDT", sum[1].Symbol)
	assert.Equal(t, 1, sum[1].Trades)
}

func roundSummary(s SymbolPnL) SymbolPnL {
	s.TotalPnL = PnL(market.CategorySpot, "Sell", s.TotalPnL, 0, 0)
	s.TotalFees = PnL(market.CategorySpot, "Sell", s.TotalFees, 0, 0)
	return s
}
