// pricewatch tracks Amazon product prices across five European
// marketplaces via the Keepa price-history API and turns target-price
// crossings into alerts.
//
// Architecture:
//
//	main.go                       — entry point: loads config, starts the scheduler, waits for SIGINT/SIGTERM
//	internal/scheduler            — orchestrator: startup sequence, main loop, graceful shutdown
//	internal/ratelimit            — token bucket admission control for outbound Keepa calls
//	internal/keepa                — Keepa REST client + packed price-array extraction
//	internal/store                — persistence layer (users, watches, price history, alerts, deals)
//	internal/eventlog             — Kafka producer + the two consumer cohorts
//	internal/searchindex          — Elasticsearch price/deal document writer
//	internal/dealpipeline         — seed resolution, normalization, scoring, spam/keyboard filtering
//	internal/alerts               — dedup, rate-cap, channel-fallback dispatch engine
//
// Data flow: the scheduler drives the Keepa client under the rate limiter,
// writes results to persistence, fans them out over the event log, and
// indexes them for search. The event log consumers and the deal pipeline
// feed the same sinks independently; both paths create pending price alerts
// that the dispatcher drains on its own schedule.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/keeperwatch/pricewatch/internal/config"
	"github.com/keeperwatch/pricewatch/internal/scheduler"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("KEEPER_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	sched, err := scheduler.New(cfg, logger)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}

	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	logger.Info("pricewatch started",
		"check_interval", cfg.Scheduler.CheckInterval,
		"deal_scan_interval", cfg.Deals.ScanInterval,
		"deal_source_mode", cfg.Deals.SourceMode,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	sched.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
