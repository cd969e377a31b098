package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jabernat/EasyMoney/internal/algo"
	"github.com/jabernat/EasyMoney/internal/config"
	"github.com/jabernat/EasyMoney/internal/datasource"
	"github.com/jabernat/EasyMoney/internal/logview"
	"github.com/jabernat/EasyMoney/internal/sim"
	"github.com/jabernat/EasyMoney/internal/updater"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Model with the built-in algorithms.
	model := sim.NewModel()
	model.RegisterAlgorithm(algo.Momentum{})
	model.RegisterAlgorithm(algo.BuyAndHold{})

	// Observer first, so it sees the traders being added.
	view := logview.New(logger)
	view.WatchModel(model)

	// Price data.
	source := datasource.New()
	view.WatchDatasource(source)
	for _, path := range cfg.DataFiles {
		symbol, err := source.AddFile(path)
		if err != nil {
			logger.Error("failed to load price archive",
				slog.String("path", path),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Debug("loaded price archive",
			slog.String("path", path),
			slog.String("symbol", symbol))
	}
	if err := source.Confirm(); err != nil {
		logger.Error("failed to confirm datasource", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Traders.
	for _, tc := range cfg.Traders {
		if _, err := model.AddTrader(tc.Name, tc.InitialFunds, tc.TradingFee, tc.Algorithm, tc.Settings); err != nil {
			logger.Error("failed to add trader",
				slog.String("trader", tc.Name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Updater goroutine with cancellable context.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	upd := updater.New(source, model, cfg.TickInterval, logger)
	view.WatchUpdater(upd)
	upd.Start(ctx)
	if cfg.AutoPlay {
		upd.Play()
	}

	// Wait for SIGINT/SIGTERM.
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Report each trader's results before exiting.
	for _, tr := range model.Traders() {
		account := tr.Account()
		if account == nil {
			continue
		}
		stats, err := account.Statistics()
		if err != nil {
			logger.Warn("could not compute statistics",
				slog.String("trader", tr.Name()),
				slog.String("error", err.Error()))
			continue
		}
		logger.Info("trader results",
			slog.String("trader", tr.Name()),
			slog.Float64("balance", account.Balance()),
			slog.Float64("net_profit", stats.NetProfit),
			slog.Bool("frozen", account.IsFrozen()))
	}

	logger.Info("simulation stopped")
}
