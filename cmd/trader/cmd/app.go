package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/llmtrader/analysis"
	"github.com/rustyeddy/llmtrader/broker"
	"github.com/rustyeddy/llmtrader/broker/bybit"
	"github.com/rustyeddy/llmtrader/broker/sim"
	"github.com/rustyeddy/llmtrader/config"
	"github.com/rustyeddy/llmtrader/ingest"
	"github.com/rustyeddy/llmtrader/internal/handler"
	"github.com/rustyeddy/llmtrader/internal/lock"
	"github.com/rustyeddy/llmtrader/internal/logger"
	"github.com/rustyeddy/llmtrader/journal"
	"github.com/rustyeddy/llmtrader/pipeline"
	"github.com/rustyeddy/llmtrader/position"
	"github.com/rustyeddy/llmtrader/reasoner"
	"github.com/rustyeddy/llmtrader/risk"
	"github.com/rustyeddy/llmtrader/trade"
)

// app holds the wired components for one process.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	venue    broker.Venue
	journal  *journal.SQLite
	analyzer *analysis.Analyzer
	ingest   *ingest.Service
	runner   *pipeline.Runner
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

func newVenue(cfg *config.Config) broker.Venue {
	base := cfg.Venue.BaseURL
	if base == "" {
		switch cfg.Venue.Network {
		case "testnet":
			base = bybit.TestnetURL
		case "demo":
			base = bybit.DemoURL
		default:
			base = bybit.MainnetURL
		}
	}
	live := bybit.NewClient(bybit.Config{
		BaseURL:    base,
		APIKey:     cfg.Venue.APIKey,
		APISecret:  cfg.Venue.APISecret,
		RecvWindow: cfg.Venue.RecvWindow,
		Timeout:    cfg.Venue.Timeout,
	})
	if cfg.Live() {
		return live
	}

	sc := sim.DefaultConfig()
	sc.QuoteCoin = cfg.Venue.Paper.QuoteCoin
	sc.StartingQuote = cfg.Venue.Paper.StartingQuote
	sc.FeeRate = cfg.Venue.Paper.FeeRate
	sc.Leverage = cfg.Risk.Leverage
	return sim.NewPaper(sim.NewEngine(sc), live)
}

func policyFrom(cfg *config.Config) risk.Policy {
	return risk.Policy{
		TargetLossUSD:   cfg.Risk.TargetLossUSD,
		TargetProfitUSD: cfg.Risk.TargetProfitUSD,
		MarginUSD:       cfg.Risk.MarginUSD,
		Leverage:        cfg.Risk.Leverage,
	}
}

// openJournal is enough for the read-only commands.
func openJournal(cfg *config.Config) (*journal.SQLite, error) {
	j, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	j, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}

	venue := newVenue(cfg)
	mode := cfg.Mode()
	policy := policyFrom(cfg)

	oracle := position.NewOracle(venue, cfg.Venue.AccountType, log.Named("position"))
	exec, err := trade.New(mode, venue, oracle, policy, log.Named("trade"))
	if err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("executor: %w", err)
	}
	analyzer := analysis.New(venue, oracle, analysis.Options{
		Interval: cfg.Venue.KlineInterval,
		Limit:    cfg.Venue.KlineLimit,
	}, log.Named("analysis"))

	client := reasoner.NewClient(cfg.Reasoner)
	svc := ingest.New(venue, j, log.Named("ingest"))

	deps := pipeline.Deps{
		Analyzer:    analyzer,
		Reasoner:    reasoner.New(client, policy),
		Journal:     j,
		Guard:       position.NewGuard(oracle, log.Named("guard")),
		Executor:    exec,
		Model:       client.Model(),
		StepTimeout: cfg.Trading.StepTimeout,
	}
	if cfg.Trading.Reconcile {
		deps.Reconciler = svc
	}
	p, err := pipeline.New(deps, log.Named("pipeline"))
	if err != nil {
		_ = j.Close()
		return nil, err
	}

	locker, err := lock.New(cfg.Lock)
	if err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("cycle lock: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		venue:    venue,
		journal:  j,
		analyzer: analyzer,
		ingest:   svc,
		runner:   pipeline.NewRunner(p, locker, cfg.Trading.CycleTimeout, log.Named("runner")),
	}, nil
}

func (a *app) Close() error {
	return a.journal.Close()
}

func (a *app) handlers() []handler.Registrar {
	return []handler.Registrar{
		&handler.HealthHandler{DB: a.journal},
		&handler.CycleHandler{Runner: a.runner, Analyzer: a.analyzer, Mode: a.cfg.Mode()},
		&handler.LedgerHandler{Journal: a.journal, Backfiller: a.ingest},
	}
}

func (a *app) snapshotBalances(ctx context.Context) {
	n, err := a.ingest.SnapshotBalances(ctx, a.cfg.Venue.AccountType, a.cfg.Mode())
	if err != nil {
		a.log.Warn("balance snapshot failed", zap.Error(err))
		return
	}
	a.log.Debug("balance snapshot", zap.Int("coins", n))
}
