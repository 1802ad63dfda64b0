package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rustyeddy/llmtrader/analysis"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/pipeline"
)

type CycleRunner interface {
	RunCycle(ctx context.Context, symbol string) (pipeline.Result, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, symbol string, mode market.Mode) (analysis.Snapshot, error)
}

// CycleHandler triggers trading cycles and read-only market analysis.
type CycleHandler struct {
	Runner   CycleRunner
	Analyzer Analyzer
	Mode     market.Mode
}

func (h *CycleHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1")
	group.POST("/cycles/:symbol", h.run)
	group.GET("/analyze/:symbol", h.analyze)
}

// run answers 200 with the cycle result even when the cycle itself failed;
// the result's error field carries the failure.
func (h *CycleHandler) run(c *gin.Context) {
	if h.Runner == nil {
		Error(c, http.StatusInternalServerError, "runner unavailable", nil)
		return
	}
	res, err := h.Runner.RunCycle(c.Request.Context(), c.Param("symbol"))
	switch {
	case errors.Is(err, pipeline.ErrCycleInProgress):
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	case err != nil:
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, res, map[string]any{"trade_executed": res.TradeExecuted, "blocked": res.Blocked != nil})
}

func (h *CycleHandler) analyze(c *gin.Context) {
	if h.Analyzer == nil {
		Error(c, http.StatusInternalServerError, "analyzer unavailable", nil)
		return
	}
	mode := h.Mode
	if q := strings.TrimSpace(c.Query("mode")); q != "" {
		m, err := market.ParseMode(q)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		mode = m
	}

	snap, err := h.Analyzer.Analyze(c.Request.Context(), c.Param("symbol"), mode)
	if errors.Is(err, analysis.ErrNoMarketData) {
		Error(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, snap, map[string]any{"summary": snap.Summary()})
}
