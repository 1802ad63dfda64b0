package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/llmtrader/ingest"
	"github.com/rustyeddy/llmtrader/market"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Pull execution history into the ledger",
	Long: `Fetch executions from the venue in 7-day windows and upsert them into
the ledger. Re-running over the same range only updates rows.

Without --from the ledger's latest execution is the starting point.

Examples:
  trader backfill --category linear --symbol BTCUSDT --from 2025-01-01
  trader backfill --category spot --from 2025-01-01 --to 2025-02-01 --recalc-pnl`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

var (
	backfillCategory string
	backfillSymbol   string
	backfillFrom     string
	backfillTo       string
	backfillRecalc   bool
)

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().StringVar(&backfillCategory, "category", "", "spot, linear, inverse or option (default from trading mode)")
	backfillCmd.Flags().StringVar(&backfillSymbol, "symbol", "", "limit to one symbol")
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "start date YYYY-MM-DD or RFC3339")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "end date YYYY-MM-DD or RFC3339, exclusive (default now)")
	backfillCmd.Flags().BoolVar(&backfillRecalc, "recalc-pnl", false, "recompute pnl on rows that already exist")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	category := cfg.Mode().Category()
	if backfillCategory != "" {
		category = market.Category(backfillCategory)
	}

	ctx := cmd.Context()
	if backfillFrom == "" && backfillTo == "" && !backfillRecalc {
		sum, err := a.ingest.Sync(ctx, category, backfillSymbol)
		fmt.Printf("Sync %s: inserted %d, updated %d, errors %d\n", category, sum.Inserted, sum.Updated, sum.Errors)
		return err
	}

	req := ingest.BackfillRequest{Category: category, Symbol: backfillSymbol, RecalcPnL: backfillRecalc}
	if req.Start, err = parseDate(backfillFrom); err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	if req.End, err = parseDate(backfillTo); err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	sum, err := a.ingest.Backfill(ctx, req)
	fmt.Printf("Backfill %s: inserted %d, updated %d, errors %d, processed %d\n",
		category, sum.Inserted, sum.Updated, sum.Errors, sum.TotalProcessed)
	return err
}

// parseDate accepts a day in local time or an RFC3339 timestamp. Empty is zero.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
