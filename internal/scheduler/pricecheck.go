package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/keeperwatch/pricewatch/internal/eventlog"
	"github.com/keeperwatch/pricewatch/internal/keepa"
	"github.com/keeperwatch/pricewatch/internal/searchindex"
	"github.com/keeperwatch/pricewatch/pkg/apperrors"
	"github.com/keeperwatch/pricewatch/pkg/types"
)

type priceCheckResult struct {
	watch   types.WatchedProduct
	price   float64
	success bool
}

// runPriceCheck fetches every ACTIVE watch's current price, bounded by the
// configured concurrency, and fans each success out to persistence, the
// event log, and the search index, creating an alert if the target crossed.
func (s *Scheduler) runPriceCheck(ctx context.Context) {
	watches, err := s.store.GetActiveWatches()
	if err != nil {
		s.logger.Warn("failed to load active watches", "error", err)
		return
	}
	if len(watches) == 0 {
		return
	}

	sem := semaphore.NewWeighted(int64(s.cfg.Scheduler.ParallelPriceFetch))
	results := make(chan priceCheckResult, len(watches))

	var wg sync.WaitGroup
	for _, w := range watches {
		w := w
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results <- s.fetchOne(ctx, w)
		}()
	}

	// Wait for every launched goroutine to finish, independent of ctx state,
	// before closing results — sem.Acquire as an end-of-batch barrier returns
	// early on cancellation while goroutines are still in flight.
	wg.Wait()
	close(results)

	for r := range results {
		if !r.success {
			continue
		}
		s.applyPriceResult(ctx, r)
	}
}

func (s *Scheduler) fetchOne(ctx context.Context, w types.WatchedProduct) priceCheckResult {
	product, err := s.client.QueryProduct(ctx, w.ProductCode, w.Domain)
	if err != nil {
		s.logger.Warn("price fetch failed, skipping", "watch", w.ID, "code", w.ProductCode, "error", err)
		return priceCheckResult{watch: w}
	}
	price, ok := keepa.CurrentPrice(product)
	if !ok {
		s.logger.Warn("no usable price in response, skipping", "watch", w.ID, "code", w.ProductCode)
		return priceCheckResult{watch: w}
	}
	return priceCheckResult{watch: w, price: price, success: true}
}

func (s *Scheduler) applyPriceResult(ctx context.Context, r priceCheckResult) {
	previous, _ := r.watch.CurrentPrice.Float64()
	target, _ := r.watch.TargetPrice.Float64()

	var updated types.WatchedProduct
	err := apperrors.RetryPersistence(ctx, func() error {
		var err error
		updated, err = s.store.UpdateWatchPrice(r.watch.ID, r.price, "")
		return err
	})
	if err != nil {
		s.logger.Warn("failed to update watch price", "watch", r.watch.ID, "error", err)
		return
	}

	evt := types.PriceUpdateEvent{
		ProductCode:   updated.ProductCode,
		ProductTitle:  updated.Title,
		CurrentPrice:  r.price,
		TargetPrice:   target,
		PreviousPrice: previous,
		PercentChange: percentChange(previous, r.price),
		Domain:        updated.Domain,
		Timestamp:     updated.LastCheckedAt,
		EventType:     "price_update",
	}
	if err := s.producer.Send(ctx, eventlog.TopicPriceUpdates, updated.ProductCode, evt); err != nil {
		s.logger.Warn("failed to publish price update", "watch", r.watch.ID, "error", err)
	}
	if err := s.search.IndexDocument(ctx, searchindex.PriceIndex, r.watch.ID.String(), evt); err != nil {
		s.logger.Warn("failed to index price update", "watch", r.watch.ID, "error", err)
	}

	if r.price > target*1.01 {
		return
	}
	var dup bool
	err = apperrors.RetryPersistence(ctx, func() error {
		var err error
		dup, err = s.store.HasPendingOrSentAlertWithinHour(r.watch.ID)
		return err
	})
	if err != nil {
		s.logger.Warn("alert dedup check failed", "watch", r.watch.ID, "error", err)
		return
	}
	if dup {
		return
	}
	err = apperrors.RetryPersistence(ctx, func() error {
		_, err := s.store.CreatePriceAlert(r.watch.ID, r.price, target, previous, r.price)
		return err
	})
	if err != nil {
		s.logger.Warn("failed to create price alert", "watch", r.watch.ID, "error", err)
	}
}

func percentChange(previous, current float64) float64 {
	if previous == 0 {
		return 0
	}
	return ((current - previous) / previous) * 100
}
