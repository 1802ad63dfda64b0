package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/llmtrader/ingest"
	"github.com/rustyeddy/llmtrader/journal"
)

// Journal is the read side of the ledger the HTTP surface serves.
type Journal interface {
	ListExecutions(ctx context.Context, f journal.ExecutionFilter) ([]journal.Execution, int, error)
	PnLSummary(ctx context.Context, since time.Time) ([]journal.SymbolPnL, error)
	ListDecisions(ctx context.Context, f journal.DecisionFilter) ([]journal.DecisionEntry, int, error)
	ListBalances(ctx context.Context, coin string, since time.Time, limit int) ([]journal.BalanceSnapshot, error)
}

type Backfiller interface {
	Backfill(ctx context.Context, req ingest.BackfillRequest) (journal.BatchSummary, error)
}

type LedgerHandler struct {
	Journal    Journal
	Backfiller Backfiller
	now        func() time.Time
}

func (h *LedgerHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.POST("/executions/backfill", h.backfill)
	group.GET("/executions", h.listExecutions)
	group.GET("/pnl/summary", h.pnlSummary)
	group.GET("/decisions", h.listDecisions)
	group.GET("/balances", h.listBalances)
}

func (h *LedgerHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *LedgerHandler) backfill(c *gin.Context) {
	if h.Backfiller == nil {
		Error(c, http.StatusInternalServerError, "backfill unavailable", nil)
		return
	}
	var req ingest.BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body: "+err.Error(), nil)
		return
	}
	sum, err := h.Backfiller.Backfill(c.Request.Context(), req)
	if err != nil {
		// pages committed before the failure are reported alongside it
		Error(c, http.StatusBadGateway, err.Error(), map[string]any{"summary": sum})
		return
	}
	Ok(c, sum, nil)
}

func (h *LedgerHandler) listExecutions(c *gin.Context) {
	since, ok := timeQuery(c, "since")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid since", nil)
		return
	}
	until, ok := timeQuery(c, "until")
	if !ok {
		Error(c, http.StatusBadRequest, "invalid until", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	if limit <= 0 || limit > 1000 || offset < 0 {
		Error(c, http.StatusBadRequest, "limit must be 1..1000 and offset non-negative", nil)
		return
	}

	items, total, err := h.Journal.ListExecutions(c.Request.Context(), journal.ExecutionFilter{
		Symbol:   strings.TrimSpace(c.Query("symbol")),
		Category: strings.TrimSpace(c.Query("category")),
		Since:    since,
		Until:    until,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if items == nil {
		items = []journal.Execution{}
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *LedgerHandler) pnlSummary(c *gin.Context) {
	days := intQuery(c, "days", 7)
	if days <= 0 {
		Error(c, http.StatusBadRequest, "days must be positive", nil)
		return
	}
	since := h.clock().Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := h.Journal.PnLSummary(c.Request.Context(), since)
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if rows == nil {
		rows = []journal.SymbolPnL{}
	}
	total := 0.0
	for _, r := range rows {
		total += r.TotalPnL
	}
	Ok(c, rows, map[string]any{"days": days, "since": since.UTC(), "total_pnl": total})
}

func (h *LedgerHandler) listDecisions(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	if limit <= 0 || limit > 1000 || offset < 0 {
		Error(c, http.StatusBadRequest, "limit must be 1..1000 and offset non-negative", nil)
		return
	}
	items, total, err := h.Journal.ListDecisions(c.Request.Context(), journal.DecisionFilter{
		Symbol: strings.TrimSpace(c.Query("symbol")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if items == nil {
		items = []journal.DecisionEntry{}
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *LedgerHandler) listBalances(c *gin.Context) {
	days := intQuery(c, "days", 1)
	since := h.clock().Add(-time.Duration(days) * 24 * time.Hour)
	items, err := h.Journal.ListBalances(c.Request.Context(), c.Query("coin"), since, intQuery(c, "limit", 100))
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if items == nil {
		items = []journal.BalanceSnapshot{}
	}
	Ok(c, items, nil)
}
