// Package pipeline runs one trading cycle for a symbol:
//
//	ANALYZE -> DECIDE -> LOG -> GATE -> EXECUTE -> DONE
//	                              \------------------> DONE
//
// Every cycle writes exactly one decision-log entry and attempts at most one
// order.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/analysis"
	"github.com/rustyeddy/llmtrader/decision"
	"github.com/rustyeddy/llmtrader/internal/logger"
	"github.com/rustyeddy/llmtrader/journal"
	"github.com/rustyeddy/llmtrader/market"
	"github.com/rustyeddy/llmtrader/pkg/id"
	"github.com/rustyeddy/llmtrader/position"
	"github.com/rustyeddy/llmtrader/reasoner"
	"github.com/rustyeddy/llmtrader/trade"
)

type State string

const (
	Analyze State = "ANALYZE"
	Decide  State = "DECIDE"
	Log     State = "LOG"
	Gate    State = "GATE"
	Execute State = "EXECUTE"
	Done    State = "DONE"
)

type Analyzer interface {
	Analyze(ctx context.Context, symbol string, mode market.Mode) (analysis.Snapshot, error)
}

type Reasoner interface {
	Decide(ctx context.Context, mode market.Mode, summary string) (reasoner.Reply, error)
}

// Journal is the slice of the ledger a cycle writes to.
type Journal interface {
	RecordDecision(ctx context.Context, d journal.DecisionEntry) (int64, error)
	MarkFilled(ctx context.Context, symbol, action string, price float64, orderID string) error
	RecordTokenUsage(ctx context.Context, u journal.TokenUsage) error
}

type Guard interface {
	AssertOpenable(ctx context.Context, symbol string, mode market.Mode, action decision.Action) error
}

// Reconciler pulls venue executions into the ledger after an order attempt.
type Reconciler interface {
	Reconcile(ctx context.Context, category market.Category, symbol string, since time.Time) (journal.BatchSummary, error)
}

// reconcileSkew widens the reconcile window for venue clock drift.
const reconcileSkew = time.Minute

// Result is the structured outcome of one cycle. Err is nil for HOLD, for a
// guard block and for a filled order.
type Result struct {
	CycleID       string                `json:"cycle_id"`
	Symbol        string                `json:"symbol"`
	Mode          market.Mode           `json:"mode"`
	Trail         []State               `json:"trail"`
	Action        decision.Action       `json:"action,omitempty"`
	Quantity      float64               `json:"quantity"`
	Reasoning     string                `json:"reasoning,omitempty"`
	DecisionID    int64                 `json:"decision_id,omitempty"`
	TradeExecuted bool                  `json:"trade_executed"`
	Fill          *trade.Fill           `json:"fill,omitempty"`
	Blocked       *position.Position    `json:"blocked_by,omitempty"`
	Position      *position.Position    `json:"position,omitempty"`
	Reconciled    *journal.BatchSummary `json:"reconciled,omitempty"`
	Error         string                `json:"error,omitempty"`
	LogError      string                `json:"log_error,omitempty"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`

	Err error `json:"-"`
}

func (r *Result) enter(s State) { r.Trail = append(r.Trail, s) }

func (r *Result) fail(err error) {
	r.Err = err
	r.Error = err.Error()
}

func (r *Result) logFailure(err error) {
	if r.LogError == "" {
		r.LogError = err.Error()
		return
	}
	r.LogError += "; " + err.Error()
}

type Deps struct {
	Analyzer   Analyzer
	Reasoner   Reasoner
	Journal    Journal
	Guard      Guard
	Executor   trade.Executor
	Reconciler Reconciler // optional

	// Model is recorded with token usage.
	Model       string
	StepTimeout time.Duration
}

type Pipeline struct {
	Deps
	mode market.Mode
	log  *zap.Logger
	now  func() time.Time
}

func New(d Deps, log *zap.Logger) (*Pipeline, error) {
	switch {
	case d.Analyzer == nil:
		return nil, errors.New("pipeline: analyzer is required")
	case d.Reasoner == nil:
		return nil, errors.New("pipeline: reasoner is required")
	case d.Journal == nil:
		return nil, errors.New("pipeline: journal is required")
	case d.Guard == nil:
		return nil, errors.New("pipeline: guard is required")
	case d.Executor == nil:
		return nil, errors.New("pipeline: executor is required")
	}
	if d.StepTimeout <= 0 {
		d.StepTimeout = 30 * time.Second
	}
	return &Pipeline{Deps: d, mode: d.Executor.Mode(), log: logger.OrNop(log), now: time.Now}, nil
}

func (p *Pipeline) Mode() market.Mode { return p.mode }

// Run executes one cycle. It never panics and never returns without having
// attempted the LOG step.
func (p *Pipeline) Run(ctx context.Context, symbol string) Result {
	res := Result{
		CycleID:   id.New(),
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Mode:      p.mode,
		StartedAt: p.now(),
	}
	log := p.log.With(zap.String("symbol", res.Symbol), zap.String("cycle_id", res.CycleID))
	defer func() {
		res.enter(Done)
		res.FinishedAt = p.now()
		log.Info("cycle done",
			zap.String("state", string(Done)),
			zap.String("action", string(res.Action)),
			zap.Bool("trade_executed", res.TradeExecuted),
			zap.String("error", res.Error))
	}()

	// ANALYZE
	res.enter(Analyze)
	log.Info("state", zap.String("state", string(Analyze)))
	snap, err := p.analyze(ctx, res.Symbol)
	var (
		d        decision.Decision
		decErr   error
		response string
	)
	if err != nil {
		decErr = fmt.Errorf("analyze: %w", err)
	} else {
		res.Position = &snap.Position
		log.Info("position", zap.Stringer("position", snap.Position))

		// DECIDE
		res.enter(Decide)
		log.Info("state", zap.String("state", string(Decide)))
		d, response, decErr = p.decide(ctx, snap)
	}

	// LOG
	res.enter(Log)
	log.Info("state", zap.String("state", string(Log)))
	if decErr != nil {
		res.Action = decision.Invalid
		res.Reasoning = decErr.Error()
	} else {
		res.Action, res.Quantity, res.Reasoning = d.Action, d.Quantity, d.Reasoning
	}
	entry := journal.DecisionEntry{
		Time:      res.StartedAt,
		CycleID:   res.CycleID,
		Mode:      string(p.mode),
		Symbol:    res.Symbol,
		Action:    string(res.Action),
		Quantity:  res.Quantity,
		Reasoning: res.Reasoning,
		Payload:   payload(d, decErr, response),
	}
	if res.DecisionID, err = p.Journal.RecordDecision(p.detached(ctx), entry); err != nil {
		log.Error("decision log write failed", zap.Error(err))
		res.logFailure(fmt.Errorf("record decision: %w", err))
	}

	// GATE
	res.enter(Gate)
	if decErr != nil {
		res.fail(decErr)
		log.Warn("no decision", zap.Error(decErr))
		return res
	}
	if !d.Action.Executable() {
		log.Info("gate closed", zap.String("action", string(d.Action)))
		return res
	}

	// EXECUTE
	res.enter(Execute)
	log.Info("state", zap.String("state", string(Execute)), zap.String("action", string(d.Action)))
	p.execute(ctx, &res, d, log)
	return res
}

func (p *Pipeline) analyze(ctx context.Context, symbol string) (analysis.Snapshot, error) {
	sctx, cancel := context.WithTimeout(ctx, p.StepTimeout)
	defer cancel()
	return p.Analyzer.Analyze(sctx, symbol, p.mode)
}

func (p *Pipeline) decide(ctx context.Context, snap analysis.Snapshot) (decision.Decision, string, error) {
	sctx, cancel := context.WithTimeout(ctx, p.StepTimeout)
	defer cancel()

	reply, err := p.Reasoner.Decide(sctx, p.mode, snap.Summary())
	if err != nil {
		return decision.Decision{}, "", fmt.Errorf("decide: %w", err)
	}

	usage := journal.TokenUsage{
		Model:        reply.Model,
		InputTokens:  reply.Usage.PromptTokens,
		OutputTokens: reply.Usage.CompletionTokens,
		TotalTokens:  reply.Usage.TotalTokens,
	}
	if usage.Model == "" {
		usage.Model = p.Model
	}
	if err := p.Journal.RecordTokenUsage(p.detached(ctx), usage); err != nil {
		p.log.Warn("token usage write failed", zap.Error(err))
	}

	d, err := decision.Parse(reply.Text)
	if err != nil {
		return decision.Decision{}, reply.Text, fmt.Errorf("decide: %w", err)
	}
	return d, reply.Text, nil
}

func (p *Pipeline) execute(ctx context.Context, res *Result, d decision.Decision, log *zap.Logger) {
	gctx, cancel := context.WithTimeout(ctx, p.StepTimeout)
	err := p.Guard.AssertOpenable(gctx, res.Symbol, p.mode, d.Action)
	cancel()
	if blocked, ok := position.AsBlocked(err); ok {
		res.Blocked = &blocked.Position
		log.Warn("execution blocked", zap.Stringer("position", blocked.Position))
		return
	}
	if err != nil {
		res.fail(fmt.Errorf("guard: %w", err))
		return
	}

	ectx, cancel := context.WithTimeout(ctx, p.StepTimeout)
	fill, err := p.Executor.Execute(ectx, res.Symbol, d)
	cancel()

	switch {
	case err == nil:
		res.TradeExecuted = true
		res.Fill = &fill
		log.Info("order filled",
			zap.String("order_id", fill.OrderID),
			zap.Float64("qty", fill.Qty),
			zap.Float64("price", fill.Price))
		p.markFilled(ctx, res, d, fill, log)
		p.reconcile(ctx, res, log)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// The venue may still have taken the order.
		res.fail(fmt.Errorf("execute: %w", err))
		log.Error("order submission interrupted", zap.Error(err))
		p.reconcile(ctx, res, log)
	default:
		res.fail(fmt.Errorf("execute: %w", err))
		log.Warn("order failed", zap.Error(err))
	}
}

// markFilled stamps this cycle's decision with the fill. Without a recorded
// decision the newest matching row belongs to an earlier cycle, so nothing is
// written.
func (p *Pipeline) markFilled(ctx context.Context, res *Result, d decision.Decision, fill trade.Fill, log *zap.Logger) {
	if res.DecisionID == 0 {
		log.Error("fill not recorded, decision entry missing", zap.String("order_id", fill.OrderID))
		res.logFailure(fmt.Errorf("mark filled: decision was not recorded, order %s", fill.OrderID))
		return
	}
	if err := p.Journal.MarkFilled(p.detached(ctx), res.Symbol, string(d.Action), fill.Price, fill.OrderID); err != nil {
		log.Error("decision fill update failed", zap.Error(err))
		res.logFailure(fmt.Errorf("mark filled: %w", err))
	}
}

func (p *Pipeline) reconcile(ctx context.Context, res *Result, log *zap.Logger) {
	if p.Reconciler == nil {
		return
	}
	rctx, cancel := context.WithTimeout(p.detached(ctx), p.StepTimeout)
	defer cancel()

	sum, err := p.Reconciler.Reconcile(rctx, p.mode.Category(), res.Symbol, res.StartedAt.Add(-reconcileSkew))
	if err != nil {
		log.Warn("reconcile failed", zap.Error(err))
		return
	}
	res.Reconciled = &sum
}

// detached keeps ctx values but not its deadline, so the journal writes that
// record an outcome still happen when the cycle ran out of time.
func (p *Pipeline) detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func payload(d decision.Decision, err error, response string) json.RawMessage {
	if err == nil && len(d.Raw) > 0 {
		return d.Raw
	}
	m := map[string]string{}
	if err != nil {
		m["error"] = err.Error()
	}
	if response != "" {
		m["response"] = response
	}
	raw, _ := json.Marshal(m)
	return raw
}
