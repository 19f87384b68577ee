package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/guanacodev/guanaco/internal/backtest"
	"github.com/guanacodev/guanaco/internal/config"
	"github.com/guanacodev/guanaco/internal/exchange"
	"github.com/guanacodev/guanaco/internal/history"
	"github.com/guanacodev/guanaco/internal/notifier"
	"github.com/guanacodev/guanaco/internal/scheduler"
	"github.com/guanacodev/guanaco/internal/store"
	"github.com/guanacodev/guanaco/internal/strategy"
	"github.com/guanacodev/guanaco/internal/symbol"
)

func main() {
	cfg := config.MustLoad()

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case "backtest":
		err = runBacktest(ctx, cfg, logger)
	case "live":
		err = runLive(ctx, cfg, logger)
	default:
		err = fmt.Errorf("unknown mode: %q", cfg.Mode)
	}
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zapCfg.Build()
}

func runBacktest(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	symbols, err := cfg.SymbolList()
	if err != nil {
		return err
	}
	interval, err := cfg.IntervalValue()
	if err != nil {
		return err
	}
	executionInterval, err := cfg.ExecutionIntervalValue()
	if err != nil {
		return err
	}
	start, err := cfg.FromTime()
	if err != nil {
		return err
	}
	end, err := cfg.ToTime()
	if err != nil {
		return err
	}
	fn, err := buildStrategy(cfg, symbols)
	if err != nil {
		return err
	}

	initial := make(backtest.Ledger, len(cfg.Portfolio))
	for asset, balance := range cfg.Portfolio {
		initial[symbol.Asset(asset)] = balance
	}

	source := history.NewCoinbaseSource(logger,
		history.WithRequestEvery(cfg.RequestEvery),
		history.WithRetry(3, cfg.RequestEvery))

	var opts []history.FetcherOption
	if cfg.DBConnStr != "" {
		pg, err := store.NewPostgres(ctx, cfg.DBConnStr, cfg.DBMaxOpen, cfg.DBMaxIdle)
		if err != nil {
			return fmt.Errorf("connecting to candle store: %w", err)
		}
		defer pg.Close()
		opts = append(opts, history.WithCache(pg))
	} else {
		opts = append(opts, history.WithCache(store.NewMemory()))
	}
	fetcher := history.NewFetcher(source, symbols, logger, opts...)

	bt, err := backtest.New(backtest.Config{
		Interval:          interval,
		ExecutionInterval: executionInterval,
		ExecutionCount:    cfg.ExecutionCount,
		Start:             start,
		End:               end,
	}, fetcher, logger)
	if err != nil {
		return err
	}

	delta, err := bt.Run(ctx, initial, fn)
	if err != nil {
		return err
	}
	for asset, d := range delta {
		logger.Info("backtest result",
			zap.String("asset", string(asset)),
			zap.Float64("spent", d))
	}
	return nil
}

func runLive(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	symbols, err := cfg.SymbolList()
	if err != nil {
		return err
	}
	interval, err := cfg.IntervalValue()
	if err != nil {
		return err
	}
	fn, err := buildStrategy(cfg, symbols)
	if err != nil {
		return err
	}

	var client exchange.Client
	switch cfg.Exchange {
	case "coinbase":
		if cfg.CoinbaseKey == "" || cfg.CoinbaseSecret == "" {
			return fmt.Errorf("live coinbase trading requires COINBASE_API_KEY and COINBASE_API_SECRET")
		}
		client = exchange.NewCoinbase(exchange.CoinbaseOptions{
			Key:        cfg.CoinbaseKey,
			Secret:     cfg.CoinbaseSecret,
			Passphrase: cfg.CoinbasePassphrase,
		}, logger)
	case "wallex":
		if cfg.WallexAPIKey == "" {
			return fmt.Errorf("live wallex trading requires WALLEX_API_KEY")
		}
		client = exchange.NewWallex(cfg.WallexAPIKey, logger)
	default:
		return fmt.Errorf("unknown exchange: %q", cfg.Exchange)
	}

	var notify notifier.Notifier = notifier.Noop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notify = notifier.WithRetry(
			notifier.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID),
			cfg.NotificationRetries, cfg.NotificationDelay, logger)
	}

	sched := scheduler.New(logger)
	defer sched.Stop()
	err = sched.Every(ctx, interval.Duration(), func(ctx context.Context) {
		if err := fn(ctx, client); err != nil {
			logger.Error("strategy tick failed", zap.Error(err))
			if nerr := notify.SendWithRetry(fmt.Sprintf("strategy tick failed: %v", err)); nerr != nil {
				logger.Error("notification failed", zap.Error(nerr))
			}
		}
	})
	if err != nil {
		return err
	}

	logger.Info("live trading started",
		zap.String("exchange", cfg.Exchange),
		zap.Duration("interval", interval.Duration()))
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func buildStrategy(cfg config.Config, symbols []symbol.Symbol) (strategy.Func, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured")
	}
	sym := symbols[0]
	switch cfg.Strategy {
	case "dip-buyer":
		return strategy.DipBuyer(sym, cfg.OrderSize, cfg.ThresholdPercent), nil
	case "limit-ladder":
		return strategy.LimitLadder(sym, cfg.OrderSize, cfg.ThresholdPercent), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %q", cfg.Strategy)
	}
}
