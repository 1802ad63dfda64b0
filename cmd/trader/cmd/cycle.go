package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle <symbol>",
	Short: "Run a single decision cycle",
	Long: `Analyze the symbol, ask for a decision, log it and execute it if the
guard allows. The cycle result is printed as JSON.

Example:
  trader cycle BTCUSDT --paper`,
	Args: cobra.ExactArgs(1),
	RunE: runCycle,
}

var analyzeOnly bool

func init() {
	rootCmd.AddCommand(cycleCmd)

	cycleCmd.Flags().BoolVar(&analyzeOnly, "analyze-only", false, "print the market snapshot without deciding")
}

func runCycle(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	if analyzeOnly {
		snap, err := a.analyzer.Analyze(ctx, args[0], cfg.Mode())
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		fmt.Println(snap.Summary())
		return nil
	}

	res, err := a.runner.RunCycle(ctx, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return res.Err
}
