package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/llmtrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the decision log and execution ledger",
	Long: `Query and export records from the SQLite journal.

Subcommands:
  executions  - List ledger rows (org, csv or csv.xz)
  decisions   - List decision log entries
  pnl         - PnL grouped by symbol
  recalc-pnl  - Compute pnl for ledger rows that have none
  usage       - Token usage per model

Examples:
  trader journal executions --symbol BTCUSDT --days 7
  trader journal executions --csv --xz --out ledger.csv.xz
  trader journal decisions --org
  trader journal pnl --days 30`,
}

var journalExecutionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List ledger rows, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalExecutions,
}

var journalDecisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "List decision log entries, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalDecisions,
}

var journalPnLCmd = &cobra.Command{
	Use:   "pnl",
	Short: "Show PnL grouped by symbol",
	Args:  cobra.NoArgs,
	RunE:  runJournalPnL,
}

var journalRecalcCmd = &cobra.Command{
	Use:   "recalc-pnl",
	Short: "Compute pnl for ledger rows that have none",
	Args:  cobra.NoArgs,
	RunE:  runJournalRecalc,
}

var journalUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show reasoning token usage per model",
	Args:  cobra.NoArgs,
	RunE:  runJournalUsage,
}

var (
	journalDBPath string
	journalSymbol string
	journalDays   int
	journalLimit  int
	journalOrg    bool
	journalCSV    bool
	journalXZ     bool
	journalOut    string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalExecutionsCmd)
	journalCmd.AddCommand(journalDecisionsCmd)
	journalCmd.AddCommand(journalPnLCmd)
	journalCmd.AddCommand(journalRecalcCmd)
	journalCmd.AddCommand(journalUsageCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "", "path to SQLite journal DB (default journal.db_path)")
	journalCmd.PersistentFlags().StringVar(&journalSymbol, "symbol", "", "filter by symbol")
	journalCmd.PersistentFlags().IntVar(&journalDays, "days", 7, "look back this many days (0 for all)")
	journalCmd.PersistentFlags().IntVar(&journalLimit, "limit", 100, "maximum rows")

	for _, c := range []*cobra.Command{journalExecutionsCmd, journalDecisionsCmd} {
		c.Flags().BoolVar(&journalOrg, "org", false, "render as Org-mode entries")
		c.Flags().BoolVar(&journalCSV, "csv", false, "render as CSV")
		c.Flags().BoolVar(&journalXZ, "xz", false, "xz-compress the CSV output")
		c.Flags().StringVarP(&journalOut, "out", "o", "", "write to file instead of stdout")
	}
}

func openJournalFromFlags() (*journal.SQLite, error) {
	if journalDBPath != "" {
		return journal.NewSQLite(journalDBPath)
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openJournal(cfg)
}

func journalSince() time.Time {
	if journalDays <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-time.Duration(journalDays) * 24 * time.Hour)
}

// exportWriter returns the destination for list output and a func that
// flushes and closes it.
func exportWriter() (io.Writer, func() error, error) {
	var w io.Writer = os.Stdout
	closers := []io.Closer{}
	if journalOut != "" {
		f, err := os.Create(journalOut)
		if err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", journalOut, err)
		}
		w = f
		closers = append(closers, f)
	}
	if journalXZ {
		if !journalCSV {
			return nil, nil, fmt.Errorf("--xz requires --csv")
		}
		zw, err := journal.Compressed(w)
		if err != nil {
			return nil, nil, err
		}
		w = zw
		closers = append([]io.Closer{zw}, closers...)
	}
	done := func() error {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				return err
			}
		}
		return nil
	}
	return w, done, nil
}

func runJournalExecutions(cmd *cobra.Command, args []string) error {
	j, err := openJournalFromFlags()
	if err != nil {
		return err
	}
	defer j.Close()

	rows, total, err := j.ListExecutions(cmd.Context(), journal.ExecutionFilter{
		Symbol: journalSymbol,
		Since:  journalSince(),
		Limit:  journalLimit,
	})
	if err != nil {
		return fmt.Errorf("query executions: %w", err)
	}

	w, done, err := exportWriter()
	if err != nil {
		return err
	}
	switch {
	case journalCSV:
		err = journal.WriteExecutionsCSV(w, rows)
	case journalOrg:
		_, err = fmt.Fprintln(w, journal.FormatExecutionsOrg(rows))
	default:
		tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSYMBOL\tSIDE\tQTY\tPRICE\tFEE\tPNL\tEXEC ID")
		for _, e := range rows {
			pnl := "-"
			if e.PnL != nil {
				pnl = fmt.Sprintf("%.4f", *e.PnL)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%g\t%s\t%s\n",
				e.ExecutedAt().Format(time.RFC3339), e.Symbol, e.Side, e.ExecQty, e.ExecPrice, e.ExecFee, pnl, e.ExecID)
		}
		fmt.Fprintf(tw, "\n%d of %d rows\n", len(rows), total)
		err = tw.Flush()
	}
	if cerr := done(); err == nil {
		err = cerr
	}
	return err
}

func runJournalDecisions(cmd *cobra.Command, args []string) error {
	j, err := openJournalFromFlags()
	if err != nil {
		return err
	}
	defer j.Close()

	rows, total, err := j.ListDecisions(cmd.Context(), journal.DecisionFilter{
		Symbol: journalSymbol,
		Since:  journalSince(),
		Limit:  journalLimit,
	})
	if err != nil {
		return fmt.Errorf("query decisions: %w", err)
	}

	w, done, err := exportWriter()
	if err != nil {
		return err
	}
	switch {
	case journalCSV:
		err = journal.WriteDecisionsCSV(w, rows)
	case journalOrg:
		_, err = fmt.Fprintln(w, journal.FormatDecisionsOrg(rows))
	default:
		tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSYMBOL\tACTION\tQTY\tPRICE\tORDER\tREASONING")
		for _, d := range rows {
			order := "-"
			if d.OrderID != nil {
				order = *d.OrderID
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%s\t%s\n",
				d.Time.Format(time.RFC3339), d.Symbol, d.Action, d.Quantity, d.Price, order, truncate(d.Reasoning, 60))
		}
		fmt.Fprintf(tw, "\n%d of %d entries\n", len(rows), total)
		err = tw.Flush()
	}
	if cerr := done(); err == nil {
		err = cerr
	}
	return err
}

func runJournalPnL(cmd *cobra.Command, args []string) error {
	j, err := openJournalFromFlags()
	if err != nil {
		return err
	}
	defer j.Close()

	rows, err := j.PnLSummary(cmd.Context(), journalSince())
	if err != nil {
		return fmt.Errorf("pnl summary: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tTRADES\tPNL\tFEES\tVALUE")
	var total float64
	for _, r := range rows {
		total += r.TotalPnL
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.2f\n", r.Symbol, r.Trades, r.TotalPnL, r.TotalFees, r.TotalValue)
	}
	fmt.Fprintf(tw, "TOTAL\t\t%.4f\t\t\n", total)
	return tw.Flush()
}

func runJournalRecalc(cmd *cobra.Command, args []string) error {
	j, err := openJournalFromFlags()
	if err != nil {
		return err
	}
	defer j.Close()

	n, err := j.RecalcMissingPnL(cmd.Context())
	if err != nil {
		return fmt.Errorf("recalc pnl: %w", err)
	}
	fmt.Printf("✓ Computed pnl for %d rows\n", n)
	return nil
}

func runJournalUsage(cmd *cobra.Command, args []string) error {
	j, err := openJournalFromFlags()
	if err != nil {
		return err
	}
	defer j.Close()

	rows, err := j.TokenUsageByModel(cmd.Context(), journalSince())
	if err != nil {
		return fmt.Errorf("token usage: %w", err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tINPUT\tOUTPUT\tTOTAL")
	for _, u := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", u.Model, u.InputTokens, u.OutputTokens, u.TotalTokens)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
