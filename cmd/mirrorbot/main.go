package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/mirrorbot/config"
	"github.com/alejandrodnm/mirrorbot/internal/adapters/notify"
	"github.com/alejandrodnm/mirrorbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/mirrorbot/internal/adapters/storage"
	"github.com/alejandrodnm/mirrorbot/internal/application/bot"
	"github.com/alejandrodnm/mirrorbot/internal/domain"
	"github.com/alejandrodnm/mirrorbot/internal/engine"
	"github.com/alejandrodnm/mirrorbot/internal/ledger"
	"github.com/alejandrodnm/mirrorbot/internal/registry"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full dashboard (default: compact 1-line)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("mirrorbot starting",
		"config", *configPath,
		"wallets", len(cfg.Bot.Wallets),
		"interval", cfg.PollInterval(),
		"capital", cfg.Capital.StartingUSDC,
		"once", *once,
	)

	client := polymarket.NewClient(cfg.API.DataBase, cfg.API.CLOBBase, cfg.API.GammaBase)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	reg := registry.New(domain.NewTextClassifier(), registry.Config{})

	book := ledger.New(ledger.Config{
		StartingCapital:      cfg.Capital.StartingUSDC,
		PerMarketCap:         cfg.Capital.PerMarketCapUSDC,
		MaxConcurrentMarkets: cfg.Capital.MaxConcurrentMarkets,
		MaxDeployedFraction:  cfg.Capital.MaxDeployedFraction,
	})

	engCfg := engine.DefaultConfig()
	engCfg.PerAssetCap = cfg.Engine.PerAssetCapUSDC
	engCfg.Aggressiveness = cfg.Engine.Aggressiveness
	engCfg.ArbMaxNotional = cfg.Engine.ArbMaxNotional
	engCfg.ArbMinCapital = cfg.Engine.ArbMinCapital
	engCfg.ExpirationWindow = cfg.ExpirationWindow()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	eng := engine.New(engCfg, book, rng)

	b := bot.New(
		bot.Config{
			Wallets:      cfg.Bot.Wallets,
			PollInterval: cfg.PollInterval(),
			StatusEvery:  cfg.Bot.StatusEvery,
			DryRun:       *once,
		},
		reg, book, eng,
		client, client, client,
		store, store,
		notify.NewConsole(*table),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := b.Run(ctx); err != nil {
		slog.Error("bot exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("mirrorbot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
