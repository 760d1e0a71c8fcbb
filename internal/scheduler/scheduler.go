// Package scheduler is the central orchestrator (C8): it wires persistence,
// the event log, the search index, the deal pipeline, and the alert
// dispatcher together, then drives the periodic price-check and
// daily-report loop until shutdown.
//
// Lifecycle: New() -> Start() -> [runs until ctx cancelled] -> Stop()
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/keeperwatch/pricewatch/internal/alerts"
	"github.com/keeperwatch/pricewatch/internal/config"
	"github.com/keeperwatch/pricewatch/internal/dealpipeline"
	"github.com/keeperwatch/pricewatch/internal/eventlog"
	"github.com/keeperwatch/pricewatch/internal/keepa"
	"github.com/keeperwatch/pricewatch/internal/ratelimit"
	"github.com/keeperwatch/pricewatch/internal/searchindex"
	"github.com/keeperwatch/pricewatch/internal/store"
)

// Scheduler owns the lifecycle of every long-running subsystem.
type Scheduler struct {
	cfg    *config.Config
	logger *slog.Logger

	store     *store.Store
	client    *keepa.Client
	bucket    *ratelimit.Bucket
	producer  *eventlog.Producer
	priceCons *eventlog.PriceConsumer
	dealCons  *eventlog.DealConsumer
	search    *searchindex.Client
	pipeline  *dealpipeline.Pipeline
	dispatch  *alerts.Dispatcher

	cycle int // price-check cycles completed, for the daily-report cadence

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every subsystem but starts nothing. Errors here are fatal: a
// process that cannot reach persistence must not start.
func New(cfg *config.Config, logger *slog.Logger) (*Scheduler, error) {
	st, err := store.Open(store.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	bucket := ratelimit.New(cfg.RateLimit.TokensCapacity, cfg.RateLimit.TokensPerMinute)
	client := keepa.NewClient(cfg.API.BaseURL, cfg.API.APIKey, bucket, logger)
	producer := eventlog.NewProducer(cfg.EventLog.Brokers, logger)
	priceCons := eventlog.NewPriceConsumer(cfg.EventLog.Brokers, st, logger)
	dealCons := eventlog.NewDealConsumer(cfg.EventLog.Brokers, st, logger)

	search, err := searchindex.NewClient(cfg.Search.URL, logger)
	if err != nil {
		return nil, err
	}

	seeds := dealpipeline.NewSeedSource(cfg.Deals.TargetsConfigFile, cfg.Deals.SeedFile, cfg.Deals.SeedCodes)
	pipeline := dealpipeline.New(
		client, st, producer, search, seeds,
		cfg.Deals.SourceMode, cfg.Deals.BatchSize, cfg.Deals.ParallelQueries,
		cfg.Deals.ScanInterval, logger,
	)

	dispatch := alerts.New(st, cfg.Alerts.DedupWindow, cfg.Alerts.PerUserHourlyCap, logger)

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
		store:     st,
		client:    client,
		bucket:    bucket,
		producer:  producer,
		priceCons: priceCons,
		dealCons:  dealCons,
		search:    search,
		pipeline:  pipeline,
		dispatch:  dispatch,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start runs the startup sequence and launches every background goroutine.
func (s *Scheduler) Start() error {
	if n, err := s.store.BackfillPriceHistoryFromDeals(); err != nil {
		s.logger.Warn("price history backfill failed, continuing", "error", err)
	} else if n > 0 {
		s.logger.Info("backfilled price history from collected deals", "rows", n)
	}

	pingCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if err := s.producer.Ping(pingCtx); err != nil {
		return err
	}

	if err := s.search.EnsureIndexes(s.ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.priceCons.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error("price consumer stopped", "error", err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.dealCons.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error("deal consumer stopped", "error", err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.pipeline.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error("deal pipeline stopped", "error", err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.dispatch.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error("alert dispatcher stopped", "error", err)
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runLoop()
	}()

	s.logger.Info("scheduler started",
		"check_interval", s.cfg.Scheduler.CheckInterval,
		"daily_report_every_n_cycles", s.cfg.Scheduler.DailyReportEveryNCycles,
	)
	return nil
}

// runLoop is the main cooperative loop: a price check every CheckInterval,
// a daily deal-report pass plus search-index retention sweep every
// DailyReportEveryNCycles price checks.
func (s *Scheduler) runLoop() {
	ticker := time.NewTicker(s.cfg.Scheduler.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runPriceCheck(s.ctx)
			s.cycle++
			if s.cycle%s.cfg.Scheduler.DailyReportEveryNCycles == 0 {
				s.runDailyDealReports(s.ctx)
				s.runSearchRetention(s.ctx)
			}
		}
	}
}

// Stop cancels every subsystem and closes resources in the reverse order of
// Start, bounded by the configured shutdown deadline.
func (s *Scheduler) Stop() {
	s.logger.Info("shutting down...")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.Scheduler.ShutdownDeadline):
		s.logger.Warn("shutdown deadline exceeded, closing resources anyway")
	}

	if err := s.priceCons.Close(); err != nil {
		s.logger.Warn("failed to close price consumer", "error", err)
	}
	if err := s.dealCons.Close(); err != nil {
		s.logger.Warn("failed to close deal consumer", "error", err)
	}
	if err := s.producer.Close(); err != nil {
		s.logger.Warn("failed to close event log producer", "error", err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("failed to close persistence", "error", err)
	}

	s.logger.Info("shutdown complete")
}
