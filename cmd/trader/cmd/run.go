package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/internal/cronrunner"
	"github.com/rustyeddy/llmtrader/internal/handler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduled trading loop",
	Long: `Run one decision cycle per configured symbol on trading.schedule and
snapshot wallet balances on trading.balance_schedule. With server.enabled the
HTTP surface is served alongside the loop.

Example:
  trader run --config trader.yaml
  trader run --config trader.yaml --paper --mode derivative`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runNow bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runNow, "now", false, "run one cycle per symbol immediately before the first scheduled tick")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("trader starting",
		zap.String("mode", string(cfg.Mode())),
		zap.Bool("live", cfg.Live()),
		zap.Strings("symbols", cfg.Trading.Symbols),
		zap.String("schedule", cfg.Trading.Schedule))

	jobs := cronrunner.New(log.Named("cron"), ctx)
	tradeJob := func(ctx context.Context) {
		for _, res := range a.runner.RunAll(ctx, cfg.Trading.Symbols) {
			logResult(log, res.Symbol, string(res.Action), res.TradeExecuted, res.Err)
		}
	}
	if _, err := jobs.Add(cfg.Trading.Schedule, tradeJob); err != nil {
		return fmt.Errorf("trading schedule: %w", err)
	}
	if cfg.Trading.BalanceSchedule != "" {
		if _, err := jobs.Add(cfg.Trading.BalanceSchedule, a.snapshotBalances); err != nil {
			return fmt.Errorf("balance schedule: %w", err)
		}
	}

	var srv *http.Server
	errc := make(chan error, 1)
	if cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           handler.NewRouter(log.Named("http"), a.handlers()...),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("http listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
	}

	if runNow {
		tradeJob(ctx)
	}
	jobs.Start()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errc:
		log.Error("http server failed", zap.Error(err))
	}

	jobs.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return err
}

func logResult(log *zap.Logger, symbol, action string, executed bool, err error) {
	if err != nil {
		log.Warn("cycle finished with error",
			zap.String("symbol", symbol), zap.String("action", action), zap.Error(err))
		return
	}
	log.Info("cycle finished",
		zap.String("symbol", symbol), zap.String("action", action), zap.Bool("trade_executed", executed))
}
