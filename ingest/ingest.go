// Package ingest copies venue state into the journal: execution history into
// the ledger and wallet balances into balance history.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/internal/logger"
	"github.com/rustyeddy/llmtrader/journal"
	"github.com/rustyeddy/llmtrader/market"
)

const (
	// MaxWindow is the widest time range the venue serves per execution query.
	MaxWindow = 7 * 24 * time.Hour
	// PageLimit is the venue's maximum page size for execution history.
	PageLimit = 100
	// maxPages bounds one window's paging in case a cursor never ends.
	maxPages = 1000
)

// Ledger is the part of the journal ingestion writes to.
type Ledger interface {
	UpsertMany(ctx context.Context, category market.Category, xs []broker.Execution, opts ...journal.UpsertOption) (journal.BatchSummary, error)
	LatestExecTime(ctx context.Context, category, symbol string) (time.Time, bool, error)
	RecordBalances(ctx context.Context, snaps []journal.BalanceSnapshot) error
}

type Service struct {
	venue  broker.Venue
	ledger Ledger
	log    *zap.Logger
	now    func() time.Time
}

func New(venue broker.Venue, ledger Ledger, log *zap.Logger) *Service {
	return &Service{venue: venue, ledger: ledger, log: logger.OrNop(log), now: time.Now}
}

// BackfillRequest selects executions in [Start, End). A zero End means now and
// a zero Start means one window before End.
type BackfillRequest struct {
	Category  market.Category `json:"category"`
	Symbol    string          `json:"symbol,omitempty"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	RecalcPnL bool            `json:"recalc_pnl,omitempty"`
}

func (r *BackfillRequest) normalize(now time.Time) error {
	switch r.Category {
	case market.CategorySpot, market.CategoryLinear, market.CategoryInverse, market.CategoryOption:
	case "":
		return errors.New("category is required")
	default:
		return fmt.Errorf("unknown category %q", r.Category)
	}
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	if r.End.IsZero() {
		r.End = now
	}
	if r.Start.IsZero() {
		r.Start = r.End.Add(-MaxWindow)
	}
	if !r.Start.Before(r.End) {
		return fmt.Errorf("start %s is not before end %s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	return nil
}

// Windows splits [start, end) into consecutive ranges no wider than MaxWindow.
func Windows(start, end time.Time) [][2]time.Time {
	var out [][2]time.Time
	for ws := start; ws.Before(end); {
		we := ws.Add(MaxWindow)
		if we.After(end) {
			we = end
		}
		out = append(out, [2]time.Time{ws, we})
		ws = we
	}
	return out
}

// Backfill pages every window of the request and commits each page as one
// ledger batch. Pages committed before a failure stay committed; replaying the
// same range is safe because the ledger upserts by execution id.
func (s *Service) Backfill(ctx context.Context, req BackfillRequest) (journal.BatchSummary, error) {
	var total journal.BatchSummary
	if err := req.normalize(s.now()); err != nil {
		return total, fmt.Errorf("backfill: %w", err)
	}

	var opts []journal.UpsertOption
	if req.RecalcPnL {
		opts = append(opts, journal.WithPnLRecalc())
	}

	for _, w := range Windows(req.Start, req.End) {
		sum, err := s.window(ctx, req, w[0], w[1], opts)
		total.Add(sum)
		if err != nil {
			return total, err
		}
	}

	s.log.Info("backfill done",
		zap.String("category", string(req.Category)),
		zap.String("symbol", req.Symbol),
		zap.Time("start", req.Start),
		zap.Time("end", req.End),
		zap.Int("inserted", total.Inserted),
		zap.Int("updated", total.Updated),
		zap.Int("errors", total.Errors))
	return total, nil
}

func (s *Service) window(ctx context.Context, req BackfillRequest, start, end time.Time, opts []journal.UpsertOption) (journal.BatchSummary, error) {
	var sum journal.BatchSummary
	cursor := ""
	for page := 0; page < maxPages; page++ {
		res, err := s.venue.GetExecutions(ctx, broker.ExecutionQuery{
			Category:  req.Category,
			Symbol:    req.Symbol,
			StartTime: start,
			// the venue treats endTime as inclusive
			EndTime: end.Add(-time.Millisecond),
			Limit:   PageLimit,
			Cursor:  cursor,
		})
		if err != nil {
			return sum, fmt.Errorf("executions %s..%s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), err)
		}

		if len(res.Executions) > 0 {
			b, err := s.ledger.UpsertMany(ctx, req.Category, res.Executions, opts...)
			sum.Add(b)
			if err != nil {
				return sum, fmt.Errorf("ledger batch: %w", err)
			}
		}

		if res.NextCursor == "" || res.NextCursor == cursor {
			return sum, nil
		}
		cursor = res.NextCursor
	}
	s.log.Warn("execution paging stopped at page limit",
		zap.Time("start", start), zap.Int("pages", maxPages))
	return sum, nil
}

// Reconcile pulls executions since the given time so fills from an order
// attempt reach the ledger whatever the order call itself reported.
func (s *Service) Reconcile(ctx context.Context, category market.Category, symbol string, since time.Time) (journal.BatchSummary, error) {
	return s.Backfill(ctx, BackfillRequest{Category: category, Symbol: symbol, Start: since})
}

// Sync backfills from the newest ledger row for category and symbol, or one
// window back when the ledger has none.
func (s *Service) Sync(ctx context.Context, category market.Category, symbol string) (journal.BatchSummary, error) {
	latest, ok, err := s.ledger.LatestExecTime(ctx, string(category), symbol)
	if err != nil {
		return journal.BatchSummary{}, fmt.Errorf("sync: %w", err)
	}
	req := BackfillRequest{Category: category, Symbol: symbol}
	if ok {
		req.Start = latest
	}
	return s.Backfill(ctx, req)
}

// AccountLabel names a balance snapshot series, e.g. "UNIFIED_spot".
func AccountLabel(accountType string, mode market.Mode) string {
	return accountType + "_" + string(mode)
}

// SnapshotBalances appends every coin of the wallet to balance history and
// returns how many rows were written.
func (s *Service) SnapshotBalances(ctx context.Context, accountType string, mode market.Mode) (int, error) {
	accts, err := s.venue.GetWalletBalance(ctx, accountType, "")
	if err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}

	now := s.now()
	label := AccountLabel(accountType, mode)
	var snaps []journal.BalanceSnapshot
	for _, a := range accts {
		for _, c := range a.Coins {
			raw := c.Equity
			if strings.TrimSpace(raw) == "" {
				raw = c.WalletBalance
			}
			equity, err := broker.Float(raw)
			if err != nil {
				s.log.Warn("skipping unreadable balance", zap.String("coin", c.Coin), zap.Error(err))
				continue
			}
			snaps = append(snaps, journal.BalanceSnapshot{
				Time:         now,
				AccountLabel: label,
				Coin:         c.Coin,
				Equity:       equity,
			})
		}
	}

	if err := s.ledger.RecordBalances(ctx, snaps); err != nil {
		return 0, err
	}
	s.log.Debug("balances recorded", zap.String("account", label), zap.Int("coins", len(snaps)))
	return len(snaps), nil
}
