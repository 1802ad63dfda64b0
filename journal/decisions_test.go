package journal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDecision_Hold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	id, err := j.RecordDecision(ctx, DecisionEntry{
		Symbol:    "btcusdt",
		Action:    "HOLD",
		Reasoning: "range bound",
		Payload:   json.RawMessage(`{"action":"HOLD"}`),
	})
	require.NoError(t, err)

	d, err := j.GetDecision(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", d.Symbol)
	assert.Equal(t, "HOLD", d.Action)
	assert.Zero(t, d.Price)
	assert.Nil(t, d.OrderID)
	assert.JSONEq(t, `{"action":"HOLD"}`, string(d.Payload))
	assert.False(t, d.Time.IsZero())

	_, err = j.GetDecision(ctx, id+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkFilled_MostRecent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	older, err := j.RecordDecision(ctx, DecisionEntry{Time: base, Symbol: "BTCUSDT", Action: "BUY", Quantity: 1})
	require.NoError(t, err)
	newer, err := j.RecordDecision(ctx, DecisionEntry{Time: base.Add(time.Minute), Symbol: "BTCUSDT", Action: "BUY", Quantity: 2})
	require.NoError(t, err)
	other, err := j.RecordDecision(ctx, DecisionEntry{Time: base.Add(2 * time.Minute), Symbol: "BTCUSDT", Action: "SELL"})
	require.NoError(t, err)

	require.NoError(t, j.MarkFilled(ctx, "btcusdt", "BUY", 101.5, "ord-1"))

	d, err := j.GetDecision(ctx, newer)
	require.NoError(t, err)
	assert.Equal(t, 101.5, d.Price)
	require.NotNil(t, d.OrderID)
	assert.Equal(t, "ord-1", *d.OrderID)

	for _, id := range []int64{older, other} {
		d, err := j.GetDecision(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, d.OrderID)
		assert.Zero(t, d.Price)
	}

	assert.ErrorIs(t, j.MarkFilled(ctx, "ETHUSDT", "BUY", 1, "x"), ErrNotFound)
}

func TestListDecisions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	j, _ := newTestSQLite(t)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, sym := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT", "BTCUSDT"} {
		_, err := j.RecordDecision(ctx, DecisionEntry{Time: base.Add(time.Duration(i) * time.Minute), Symbol: sym, Action: "HOLD"})
		require.NoError(t, err)
	}

	got, total, err := j.ListDecisions(ctx, DecisionFilter{Symbol: "BTCUSDT", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, got, 2)
	assert.True(t, got[0].Time.After(got[1].Time))

	got, total, err = j.ListDecisions(ctx, DecisionFilter{Since: base.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, got, 2)

	got, _, err = j.ListDecisions(ctx, DecisionFilter{Limit: 10, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
