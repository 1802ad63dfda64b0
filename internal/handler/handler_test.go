package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/llmtrader/analysis"
	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/decision"
	"github.com/rustyeddy/llmtrader/ingest"
	"github.com/rustyeddy/llmtrader/journal"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	res pipeline.Result
	err error
}

func (f *fakeRunner) RunCycle(ctx context.Context, symbol string) (pipeline.Result, error) {
	f.res.Symbol = symbol
	return f.res, f.err
}

type fakeAnalyzer struct {
	mode market.Mode
	err  error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, symbol string, mode market.Mode) (analysis.Snapshot, error) {
	f.mode = mode
	if f.err != nil {
		return analysis.Snapshot{}, f.err
	}
	return analysis.Snapshot{Symbol: symbol, Mode: mode, Price: 101.5}, nil
}

type fakeBackfiller struct {
	got ingest.BackfillRequest
	sum journal.BatchSummary
	err error
}

func (f *fakeBackfiller) Backfill(ctx context.Context, req ingest.BackfillRequest) (journal.BatchSummary, error) {
	f.got = req
	return f.sum, f.err
}

func newTestJournal(t *testing.T) *journal.SQLite {
	t.Helper()
	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, apiResponseBody) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out apiResponseBody
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

type apiResponseBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func TestHealth(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)

	r := NewRouter(nil, &HealthHandler{DB: j})
	w, _ := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	r = NewRouter(nil, &HealthHandler{})
	w, _ = do(t, r, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCycles_Run(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		runner *fakeRunner
		status int
	}{
		{"ok", &fakeRunner{res: pipeline.Result{Action: "HOLD"}}, http.StatusOK},
		{"in progress", &fakeRunner{err: pipeline.ErrCycleInProgress}, http.StatusConflict},
		{"other error", &fakeRunner{err: errors.New("boom")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewRouter(nil, &CycleHandler{Runner: tt.runner})
			w, body := do(t, r, http.MethodPost, "/api/v1/cycles/BTCUSDT", nil)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				var res pipeline.Result
				require.NoError(t, json.Unmarshal(body.Data, &res))
				assert.Equal(t, "BTCUSDT", res.Symbol)
				assert.Equal(t, decision.Hold, res.Action)
				assert.Equal(t, false, body.Meta["trade_executed"])
			}
		})
	}
}

func TestCycles_Analyze(t *testing.T) {
	t.Parallel()
	a := &fakeAnalyzer{}
	r := NewRouter(nil, &CycleHandler{Analyzer: a, Mode: market.Spot})

	w, body := do(t, r, http.MethodGet, "/api/v1/analyze/BTCUSDT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, market.Spot, a.mode)
	assert.Contains(t, body.Meta["summary"], "BTCUSDT")

	w, _ = do(t, r, http.MethodGet, "/api/v1/analyze/BTCUSDT?mode=derivative", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, market.Derivative, a.mode)

	w, _ = do(t, r, http.MethodGet, "/api/v1/analyze/BTCUSDT?mode=options", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	a.err = analysis.ErrNoMarketData
	w, _ = do(t, r, http.MethodGet, "/api/v1/analyze/ETHUSDT", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func seedLedger(t *testing.T, j *journal.SQLite) {
	t.Helper()
	ctx := context.Background()
	xs := make([]broker.Execution, 0, 3)
	for i, id := range []string{"e-1", "e-2", "e-3"} {
		xs = append(xs, broker.Execution{
			ExecID:      id,
			Symbol:      "BTCUSDT",
			OrderID:     "order-" + id,
			Side:        "Sell",
			OrderType:   "Market",
			ExecPrice:   "100",
			ExecQty:     "1",
			ExecValue:   "100",
			ExecFee:     "0.1",
			FeeCurrency: "USDT",
			ExecTime:    strconv.FormatInt(1700000000000+int64(i)*1000, 10),
		})
	}
	_, err := j.UpsertMany(ctx, market.CategorySpot, xs)
	require.NoError(t, err)
}

func TestLedger_ListExecutions(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	seedLedger(t, j)
	r := NewRouter(nil, &LedgerHandler{Journal: j})

	w, body := do(t, r, http.MethodGet, "/api/v1/executions?symbol=btcusdt&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []journal.Execution
	require.NoError(t, json.Unmarshal(body.Data, &items))
	assert.Len(t, items, 2)
	assert.Equal(t, float64(3), body.Meta["total"])
	assert.Equal(t, true, body.Meta["has_next"])

	w, _ = do(t, r, http.MethodGet, "/api/v1/executions?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/v1/executions?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = do(t, r, http.MethodGet, "/api/v1/executions?category=linear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(body.Data))
}

func TestLedger_PnLSummary(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	seedLedger(t, j)
	h := &LedgerHandler{Journal: j, now: func() time.Time { return time.UnixMilli(1700000000000).Add(time.Hour) }}
	r := NewRouter(nil, h)

	w, body := do(t, r, http.MethodGet, "/api/v1/pnl/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []journal.SymbolPnL
	require.NoError(t, json.Unmarshal(body.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "BTCUSDT", rows[0].Symbol)
	assert.Equal(t, 3, rows[0].Trades)
	assert.InDelta(t, 299.7, body.Meta["total_pnl"], 1e-9)
	assert.Equal(t, float64(7), body.Meta["days"])

	w, _ = do(t, r, http.MethodGet, "/api/v1/pnl/summary?days=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLedger_Backfill(t *testing.T) {
	t.Parallel()
	bf := &fakeBackfiller{sum: journal.BatchSummary{Inserted: 4, TotalProcessed: 4}}
	r := NewRouter(nil, &LedgerHandler{Journal: newTestJournal(t), Backfiller: bf})

	w, body := do(t, r, http.MethodPost, "/api/v1/executions/backfill", map[string]any{
		"category": "linear",
		"symbol":   "BTCUSDT",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, market.CategoryLinear, bf.got.Category)
	assert.Equal(t, "BTCUSDT", bf.got.Symbol)
	var sum journal.BatchSummary
	require.NoError(t, json.Unmarshal(body.Data, &sum))
	assert.Equal(t, 4, sum.Inserted)

	w, _ = do(t, r, http.MethodPost, "/api/v1/executions/backfill", "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	bf.err = errors.New("venue down")
	w, body = do(t, r, http.MethodPost, "/api/v1/executions/backfill", map[string]any{"category": "spot"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "venue down", body.Message)
	assert.NotNil(t, body.Meta["summary"])
}

func TestLedger_Decisions(t *testing.T) {
	t.Parallel()
	j := newTestJournal(t)
	ctx := context.Background()
	for _, sym := range []string{"BTCUSDT", "ETHUSDT", "BTCUSDT"} {
		_, err := j.RecordDecision(ctx, journal.DecisionEntry{Symbol: sym, Action: "HOLD", Reasoning: "flat"})
		require.NoError(t, err)
	}
	r := NewRouter(nil, &LedgerHandler{Journal: j})

	w, body := do(t, r, http.MethodGet, "/api/v1/decisions?symbol=BTCUSDT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []journal.DecisionEntry
	require.NoError(t, json.Unmarshal(body.Data, &items))
	assert.Len(t, items, 2)
	assert.Equal(t, float64(2), body.Meta["total"])
	assert.Equal(t, false, body.Meta["has_next"])
}
