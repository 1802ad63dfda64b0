package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/internal/lock"
	"github.com/rustyeddy/llmtrader/internal/logger"
)

var ErrCycleInProgress = errors.New("cycle already in progress")

// Runner serialises cycles per symbol and bounds each cycle's duration.
type Runner struct {
	pipeline     *Pipeline
	locker       lock.Locker
	cycleTimeout time.Duration
	log          *zap.Logger
}

func NewRunner(p *Pipeline, locker lock.Locker, cycleTimeout time.Duration, log *zap.Logger) *Runner {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Runner{pipeline: p, locker: locker, cycleTimeout: cycleTimeout, log: logger.OrNop(log)}
}

func (r *Runner) Pipeline() *Pipeline { return r.pipeline }

// RunCycle runs one cycle for symbol unless one is already running, in which
// case it returns ErrCycleInProgress without touching the venue.
func (r *Runner) RunCycle(ctx context.Context, symbol string) (Result, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Result{}, errors.New("symbol is required")
	}

	key := string(r.pipeline.Mode()) + ":" + symbol
	release, ok, err := r.locker.TryLock(ctx, key)
	if err != nil {
		return Result{}, fmt.Errorf("cycle lock: %w", err)
	}
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", symbol, ErrCycleInProgress)
	}
	defer release()

	if r.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cycleTimeout)
		defer cancel()
	}
	return r.pipeline.Run(ctx, symbol), nil
}

// RunAll runs one cycle per symbol in order. It is the scheduled job body.
func (r *Runner) RunAll(ctx context.Context, symbols []string) []Result {
	out := make([]Result, 0, len(symbols))
	for _, s := range symbols {
		if ctx.Err() != nil {
			break
		}
		res, err := r.RunCycle(ctx, s)
		if err != nil {
			r.log.Warn("cycle skipped", zap.String("symbol", s), zap.Error(err))
			continue
		}
		out = append(out, res)
	}
	return out
}
