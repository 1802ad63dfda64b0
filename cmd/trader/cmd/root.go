package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/llmtrader/config"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "An LLM-driven crypto trading loop",
	Long: `Trader asks a language model for a trading decision on a schedule and
executes it against Bybit spot or linear perpetual markets.

It provides tools for:
  - Running the scheduled decision loop with an optional HTTP surface
  - Running a single cycle by hand
  - Backfilling execution history into the SQLite ledger
  - Querying and exporting the decision log and ledger

Every decision is recorded before anything is sent to the venue, and an
opening trade is refused while a position is already open.`,
	SilenceUsage: true,
}

var (
	cfgFile   string
	paperMode bool
	modeFlag  string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml or json); TRADER_* env vars override it")
	rootCmd.PersistentFlags().BoolVar(&paperMode, "paper", false, "fill orders in the in-memory paper venue")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "trading mode override: spot or derivative")
}

// loadConfig applies the global flags on top of the loaded file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if paperMode {
		cfg.Venue.Kind = "paper"
	}
	if modeFlag != "" {
		cfg.Trading.Mode = modeFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
