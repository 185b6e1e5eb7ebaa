package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"momentum-scanner/internal/alerting"
	"momentum-scanner/internal/config"
	"momentum-scanner/internal/fetcher"
	"momentum-scanner/internal/indicator"
	"momentum-scanner/internal/report"
	"momentum-scanner/internal/scan"
	"momentum-scanner/internal/status"
	"momentum-scanner/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// pipeline is everything one scan needs, built once per process.
type pipeline struct {
	state   *status.State
	reports *report.Store
	runner  *scan.Runner
}

func (a *App) newProvider() fetcher.SeriesProvider {
	cfg := a.Config.Yahoo
	return fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:   cfg.BaseURL,
		CookieURL: cfg.CookieURL,
		CrumbURL:  cfg.CrumbURL,
		Range:     a.Config.Scan.Range,
		Interval:  a.Config.Scan.Interval,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
	}, a.Logger)
}

func (a *App) newScorer() indicator.Scorer {
	return indicator.Momentum{
		ShortWindow: a.Config.Scan.ShortWindow,
		LongWindow:  a.Config.Scan.LongWindow,
		RSIPeriod:   a.Config.Scan.RSIPeriod,
	}
}

func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting
	if cfg.Enabled && cfg.Telegram.Enabled {
		return alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIBase, cfg.Telegram.Timeout, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// newPipeline wires the scan runner. store may be nil when history is disabled.
func (a *App) newPipeline(store *storage.Store) (*pipeline, error) {
	universe := a.Config.Scan.Universe
	if len(universe) == 0 {
		return nil, fmt.Errorf("scan universe is empty")
	}

	var recorder storage.RunRecorder
	if store != nil {
		recorder = store
	}

	state := status.New(len(universe))
	reports := report.NewStore(a.Config.Report.Dir, a.Config.Report.Prefix, a.Logger)
	runner := scan.NewRunner(scan.Options{
		Universe:     universe,
		MinHistory:   a.Config.Scan.MinHistory,
		FetchTimeout: a.Config.Scan.FetchTimeout,
		Chart:        a.Config.Report.Chart,
	}, a.newProvider(), a.newScorer(), reports, state, recorder, a.newNotifier(), a.Logger)

	return &pipeline{state: state, reports: reports, runner: runner}, nil
}

// ScanOptions configure the one-shot scan command.
type ScanOptions struct {
	JSON bool
}

// HistoryOptions configure the history command.
type HistoryOptions struct {
	Limit int
}
