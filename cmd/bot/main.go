package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/genai"

	"ETFSentinel/internal/advisor"
	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/config"
	"ETFSentinel/internal/engine"
	"ETFSentinel/internal/fund"
	"ETFSentinel/internal/notifier"
	"ETFSentinel/internal/recorder"
	"ETFSentinel/internal/scheduler"
	"ETFSentinel/pkg/logger"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Str("path", cfgPath).Msg("load config")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)
	log.Info().Str("config", cfgPath).Str("mode", cfg.RunMode).Msg("ETFSentinel starting")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	rules := cfg.Rules()
	loc := cfg.Location()

	// Init fetcher
	var fetcher collector.Fetcher
	if cfg.DataSource.BaseURL != "" {
		fetcher = collector.NewVsTraderFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	} else {
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Info().Str("source", fetcher.Name()).Msg("data source selected")
	col := collector.NewCollector(fetcher, cfg.DataSource.Concurrency, log)

	// Init fund manager
	fm, err := fund.NewManager(cfg.Fund.StateFile, rules, time.Now().In(loc), log)
	if err != nil {
		log.Fatal().Err(err).Msg("init fund manager")
	}

	// Init recorder. BACKTEST never touches the ledger of record.
	var rec recorder.Recorder
	if engine.RunMode(cfg.RunMode) == engine.ModeBacktest {
		rec = recorder.NewMemoryRecorder(nil)
	} else {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Fatal().Err(err).Msg("init sqlite recorder")
		}
		rec = sr
	}
	defer rec.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init advisor
	var adv engine.Advisor
	if cfg.Advisor.Enabled {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.Advisor.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("init gemini client")
		}
		adv = advisor.New(client, cfg.Advisor.Model, cfg.Advisor.Temperature, rules, log)
		log.Info().Str("model", cfg.Advisor.Model).Msg("advisor enabled")
	}

	var (
		notify engine.Notifier
		tn     *notifier.TelegramNotifier
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		notify = tn
	} else {
		log.Warn().Msg("telegram bot token not set, reports go to the log")
		notify = notifier.LogNotifier{Log: log}
	}

	eng := engine.New(engine.Deps{
		Fund:        fm,
		Collector:   col,
		Recorder:    rec,
		Notifier:    notify,
		Advisor:     adv,
		Instruments: cfg.Instruments,
		Mode:        engine.RunMode(cfg.RunMode),
		Location:    loc,
		Log:         log,
	})
	if err := eng.Hydrate(ctx); err != nil {
		log.Warn().Err(err).Msg("could not hydrate month spend, continuing with state file")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, eng, loc, log)
	if err := sched.RegisterAll(scheduler.Schedule{
		Accrual:    cfg.Schedule.AccrualCron,
		Scan:       cfg.Schedule.ScanCron,
		MonthReset: cfg.Schedule.MonthResetCron,
		MonthEnd:   cfg.Schedule.MonthEndCron,
		Heartbeat:  cfg.Schedule.HeartbeatCron,
	}); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	// Start Telegram polling
	if tn != nil {
		go tn.StartPolling(ctx, eng.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, executing scan now")
		go sched.RunScanNow()
	}

	log.Info().Time("next_scan", sched.Next("scan")).Msg("ETFSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info().Str("signal", sig.String()).Msg("shutdown signal received, stopping")
	cancel()
	log.Info().Msg("ETFSentinel stopped")
}
