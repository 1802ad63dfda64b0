package position

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/decision"
	"github.com/rustyeddy/llmtrader/internal/logger"
	"github.com/rustyeddy/llmtrader/market"
)

// BlockedError is a deliberate safety stop: an opening order was refused
// because exposure already exists, or could not be ruled out.
type BlockedError struct {
	Position Position
}

func (e *BlockedError) Error() string {
	if e.Position.Side == SideError {
		return fmt.Sprintf("order blocked: cannot confirm %s is flat: %s", e.Position.Symbol, e.Position.Err)
	}
	return fmt.Sprintf("order blocked: %s already has an open %s position of %g",
		e.Position.Symbol, e.Position.Side, e.Position.Size)
}

// AsBlocked unwraps a BlockedError from err.
func AsBlocked(err error) (*BlockedError, bool) {
	var b *BlockedError
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}

// Opening reports whether action adds exposure in mode. Spot has no borrowing,
// so only BUY opens there.
func Opening(mode market.Mode, action decision.Action) bool {
	switch action {
	case decision.Buy:
		return true
	case decision.Sell:
		return mode == market.Derivative
	}
	return false
}

// Guard keeps at most one open position per symbol.
type Guard struct {
	oracle *Oracle
	log    *zap.Logger
}

func NewGuard(o *Oracle, log *zap.Logger) *Guard {
	return &Guard{oracle: o, log: logger.OrNop(log)}
}

// AssertOpenable re-reads the position right before an order. Closing actions
// always pass. An unreadable position blocks.
func (g *Guard) AssertOpenable(ctx context.Context, symbol string, mode market.Mode, action decision.Action) error {
	if !Opening(mode, action) {
		return nil
	}

	p := g.oracle.Get(ctx, symbol, mode)
	if p.Side == SideError || p.HasPosition {
		g.log.Warn("opening order blocked",
			zap.String("symbol", p.Symbol),
			zap.String("action", string(action)),
			zap.Stringer("position", p))
		return &BlockedError{Position: p}
	}
	return nil
}
