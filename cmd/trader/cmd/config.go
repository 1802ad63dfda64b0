package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/llmtrader/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage trader configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init -o trader.yaml
  trader config validate -f trader.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings. Secrets are left
empty; set them in .env as TRADER_VENUE_API_KEY, TRADER_VENUE_API_SECRET and
TRADER_REASONER_API_KEY.

Example:
  trader config init -o trader.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  trader config validate -f trader.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trader.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	_ = configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  trader run --config %s --paper\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Venue: %s (%s, account %s)\n", cfg.Venue.Kind, cfg.Venue.Network, cfg.Venue.AccountType)
	fmt.Printf("  Trading: %s %v on %q\n", cfg.Mode(), cfg.Trading.Symbols, cfg.Trading.Schedule)
	fmt.Printf("  Risk: margin $%.2f x%.0f, loss $%.2f, profit $%.2f\n",
		cfg.Risk.MarginUSD, cfg.Risk.Leverage, cfg.Risk.TargetLossUSD, cfg.Risk.TargetProfitUSD)
	fmt.Printf("  Reasoner: %s @ %s\n", cfg.Reasoner.Model, cfg.Reasoner.BaseURL)
	fmt.Printf("  Journal: %s (lock: %s)\n", cfg.Journal.DBPath, cfg.Lock.Backend)
	return nil
}
