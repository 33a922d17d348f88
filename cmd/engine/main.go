package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prognocap/alphaengine/config"
	"github.com/prognocap/alphaengine/internal/adapters/coinbase"
	"github.com/prognocap/alphaengine/internal/adapters/kalshi"
	"github.com/prognocap/alphaengine/internal/adapters/notify"
	"github.com/prognocap/alphaengine/internal/adapters/storage"
	"github.com/prognocap/alphaengine/internal/application/allocator"
	"github.com/prognocap/alphaengine/internal/application/engine"
	"github.com/prognocap/alphaengine/internal/application/signals"
	"github.com/prognocap/alphaengine/internal/domain"
	"github.com/prognocap/alphaengine/internal/ports"
	"github.com/prognocap/alphaengine/internal/risk"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one trading cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print position tables (default: compact 1-line)")
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
	log := slog.Default()

	slog.Info("alphaengine starting",
		"config", *configPath,
		"interval", cfg.CycleInterval(),
		"once", *once,
		"kalshi", cfg.Kalshi.Enabled,
		"coinbase", cfg.Coinbase.Enabled,
	)

	policies, err := risk.LoadTable(cfg.Risk.PoliciesPath)
	if err != nil {
		slog.Error("failed to load risk policies", "err", err, "path", cfg.Risk.PoliciesPath)
		os.Exit(1)
	}
	slog.Info("risk policies loaded", "categories", len(policies.Categories()))

	venues, err := buildVenues(cfg)
	if err != nil {
		slog.Error("failed to build venue clients", "err", err)
		os.Exit(1)
	}

	journal, err := storage.NewSQLiteJournal(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open journal", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer journal.Close()

	console := notify.NewConsole(*table)
	notifier := notify.Fanout{console, notify.NewWebhook(cfg.Notify.WebhookURL)}

	bankroll := engine.NewBankroll(cfg.Engine.InitialBankrollUSD)
	restoreOpenPositions(journal, bankroll)

	byName := make(map[domain.Venue]ports.VenueClient, len(venues))
	for _, v := range venues {
		byName[v.Name()] = v
	}

	model := signals.BaselineModel{Tilt: cfg.Engine.ModelTilt, Confidence: cfg.Engine.ModelConfidence}
	eng := engine.New(
		venues,
		signals.NewGenerator(model, log),
		signals.NewFilter(cfg.Engine.GlobalMinEdge, log),
		allocator.New(policies, allocator.Config{
			MaxExposureFraction: cfg.Engine.MaxExposureFraction,
			CycleBudgetFraction: cfg.Engine.CycleBudgetFraction,
		}, log),
		engine.NewExecutor(byName, bankroll, journal, notifier, log),
		bankroll,
		journal,
		notifier,
		log,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		res, err := eng.RunOnce(ctx)
		if err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		console.PrintCycle(res)
		return
	}

	runner := printingRunner{eng: eng, console: console}
	scheduler := engine.NewScheduler(runner, notifier, cfg.CycleInterval(), log)
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("alphaengine stopped cleanly")
}

// printingRunner echoes each cycle summary to the console after the
// engine runs it.
type printingRunner struct {
	eng     *engine.Engine
	console *notify.Console
}

func (r printingRunner) RunOnce(ctx context.Context) (*engine.CycleResult, error) {
	res, err := r.eng.RunOnce(ctx)
	if err == nil {
		r.console.PrintCycle(res)
	}
	return res, err
}

// buildVenues constructs a client per enabled venue.
func buildVenues(cfg *config.Config) ([]ports.VenueClient, error) {
	var venues []ports.VenueClient

	if cfg.Kalshi.Enabled {
		signer, err := buildKalshiSigner(cfg.Kalshi)
		if err != nil {
			return nil, err
		}
		venues = append(venues, kalshi.NewClient(cfg.Kalshi.BaseURL, signer))
	}

	if cfg.Coinbase.Enabled {
		client, err := coinbase.NewClient(cfg.Coinbase.BaseURL, cfg.Coinbase.APIKey, cfg.Coinbase.APISecret)
		if err != nil {
			return nil, err
		}
		venues = append(venues, client)
	}

	return venues, nil
}

func buildKalshiSigner(cfg config.KalshiConfig) (*kalshi.Signer, error) {
	if cfg.PrivateKeyPEM != "" {
		return kalshi.NewSignerFromPEM(cfg.APIKeyID, []byte(cfg.PrivateKeyPEM))
	}
	return kalshi.NewSignerFromFile(cfg.APIKeyID, cfg.PrivateKeyPath)
}

// restoreOpenPositions seeds the bankroll with positions still open in
// the journal so restarts never double-enter an instrument.
func restoreOpenPositions(journal *storage.SQLiteJournal, bankroll *engine.Bankroll) {
	open, err := journal.GetOpenPositions(context.Background())
	if err != nil {
		slog.Warn("could not restore open positions", "err", err)
		return
	}
	if len(open) > 0 {
		bankroll.Restore(open)
		slog.Info("restored open positions from journal", "count", len(open))
	}
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
