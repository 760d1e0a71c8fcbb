// Package dealpipeline is the long-running deal-ingestion task: it resolves
// a seed set of product codes, fetches them per-domain with bounded
// concurrency, normalizes/scores/filters the results, and fans each kept
// deal out to persistence, the event log, and the search index.
package dealpipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"github.com/keeperwatch/pricewatch/internal/eventlog"
	"github.com/keeperwatch/pricewatch/internal/keepa"
	"github.com/keeperwatch/pricewatch/internal/searchindex"
	"github.com/keeperwatch/pricewatch/internal/store"
	"github.com/keeperwatch/pricewatch/pkg/apperrors"
	"github.com/keeperwatch/pricewatch/pkg/types"
)

func decimalFrom(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func floatOf(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func newCollectedDealID() uuid.UUID {
	return uuid.New()
}

// Pipeline is the background deal collector launched by the scheduler at
// startup (§4.8 step 6).
type Pipeline struct {
	client   *keepa.Client
	store    *store.Store
	producer *eventlog.Producer
	search   *searchindex.Client
	seeds    *SeedSource

	sourceMode string // "product_only" or "deals"
	batchSize  int
	concurrent int64

	interval time.Duration
	logger   *slog.Logger
}

// New builds a Pipeline.
func New(
	client *keepa.Client,
	st *store.Store,
	producer *eventlog.Producer,
	search *searchindex.Client,
	seeds *SeedSource,
	sourceMode string,
	batchSize, concurrent int,
	interval time.Duration,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		client:     client,
		store:      st,
		producer:   producer,
		search:     search,
		seeds:      seeds,
		sourceMode: sourceMode,
		batchSize:  batchSize,
		concurrent: int64(concurrent),
		interval:   interval,
		logger:     logger.With("component", "dealpipeline"),
	}
}

// Run executes one iteration immediately, then repeats on a ticker until ctx
// is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.runIteration(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.runIteration(ctx)
		}
	}
}

func (p *Pipeline) runIteration(ctx context.Context) {
	codes, err := p.seeds.Resolve()
	if err != nil {
		p.logger.Warn("seed resolution failed, skipping iteration", "error", err)
		return
	}
	if len(codes) > p.batchSize {
		codes = codes[:p.batchSize]
	}

	byDomain := groupByDomain(codes)
	for domain, domainCodes := range byDomain {
		p.scanDomain(ctx, domain, domainCodes)
	}
}

// groupByDomain assigns every seed code to each in-scope marketplace; the
// upstream API is per-domain, so a code is queried once per domain the
// deployment cares about.
func groupByDomain(codes []string) map[types.Domain][]string {
	out := make(map[types.Domain][]string, len(types.InScopeDomains))
	for _, d := range types.InScopeDomains {
		out[d] = codes
	}
	return out
}

// sourcedProduct pairs a queried product with the tag recording which Keepa
// endpoint actually produced it (spec §4.7 / §8 scenario 4).
type sourcedProduct struct {
	product *types.Product
	source  string
}

func (p *Pipeline) scanDomain(ctx context.Context, domain types.Domain, codes []string) {
	sem := semaphore.NewWeighted(p.concurrent)
	results := make(chan sourcedProduct, len(codes))

	var wg sync.WaitGroup
	for _, code := range codes {
		code := code
		if err := sem.Acquire(ctx, 1); err != nil {
			p.logger.Warn("semaphore acquire cancelled", "error", err)
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			product, source, err := p.queryOne(ctx, domain, code)
			if err != nil {
				p.logger.Warn("product query failed, skipping", "code", code, "domain", domain, "error", err)
				results <- sourcedProduct{}
				return
			}
			results <- sourcedProduct{product: product, source: source}
		}()
	}

	// Wait for every launched goroutine to finish, independent of ctx state,
	// before closing results — sem.Acquire as an end-of-batch barrier returns
	// early on cancellation while goroutines are still in flight, preserving
	// per-item failure isolation: one item's error never aborts the batch.
	wg.Wait()
	close(results)

	for sp := range results {
		if sp.product == nil {
			continue
		}
		p.processProduct(ctx, domain, sp.product, sp.source)
	}
}

// queryOne resolves a product, preferring an exact match from the deal-search
// endpoint and falling back to a direct product query when that endpoint is
// denied or doesn't carry the code. The returned source tag records which
// path supplied the result: "deals" for an endpoint match, "product_heuristic"
// for the fallback (spec §4.7 / §8 scenario 4).
func (p *Pipeline) queryOne(ctx context.Context, domain types.Domain, code string) (*types.Product, string, error) {
	if p.sourceMode == "deals" {
		deals, err := p.client.SearchDeals(ctx, domain, "")
		var denied *apperrors.DealAccessDenied
		if err == nil {
			for _, d := range deals {
				if d.ASIN == code {
					return dealToProduct(d), "deals", nil
				}
			}
		} else if !errors.As(err, &denied) {
			return nil, "", err
		}
		// DealAccessDenied or no match: fall back to a product query below.
		product, err := p.client.QueryProduct(ctx, code, domain)
		if err != nil {
			return nil, "", err
		}
		return product, "product_heuristic", nil
	}
	product, err := p.client.QueryProduct(ctx, code, domain)
	if err != nil {
		return nil, "", err
	}
	return product, "", nil
}

func dealToProduct(d types.Deal) *types.Product {
	return &types.Product{
		ASIN:          d.ASIN,
		Title:         d.Title,
		Domain:        d.Domain,
		BuyBoxPrice:   int64(d.CurrentPrice * 100),
		Rating:        int64(d.Rating * 10),
		ReviewCount:   int64(d.ReviewCount),
		SalesRank:     int64(d.SalesRank),
		Category:      d.Category,
		URL:           d.URL,
		PrimeEligible: d.PrimeEligible,
	}
}

func (p *Pipeline) processProduct(ctx context.Context, domain types.Domain, product *types.Product, source string) {
	price, ok := keepa.CurrentPrice(product)
	raw := map[string]any{
		"productCode":   product.ASIN,
		"title":         product.Title,
		"currentPrice":  price,
		"rating":        keepa.NormalizeRating(product.Rating),
		"reviewCount":   product.ReviewCount,
		"salesRank":     product.SalesRank,
		"category":      product.Category,
		"url":           product.URL,
		"primeEligible": product.PrimeEligible,
	}
	if !ok {
		raw["currentPrice"] = 0.0
	}

	deal, err := Normalize(raw)
	if err != nil {
		p.logger.Warn("normalize failed, skipping", "code", product.ASIN, "error", err)
		return
	}
	score := Score(deal)

	if IsSpam(deal) || !IsKeyboardDeal(deal.Title) {
		return
	}

	layout := AnnotateLayout(deal.Title, domain)
	collected := types.CollectedDeal{
		ID:              newCollectedDealID(),
		ProductCode:     deal.ProductCode,
		Title:           deal.Title,
		CurrentPrice:    decimalFrom(deal.CurrentPrice),
		OriginalPrice:   decimalFrom(deal.OriginalPrice),
		DiscountPercent: decimalFrom(deal.DiscountPercent),
		Rating:          deal.Rating,
		ReviewCount:     deal.ReviewCount,
		SalesRank:       deal.SalesRank,
		Domain:          domain,
		Category:        deal.Category,
		DealScore:       score,
		URL:             keepa.ProductURL(domain, deal.ProductCode),
		PrimeEligible:   deal.PrimeEligible,
		Source:          source,
		CollectedAt:     time.Now(),
	}

	p.fanOut(ctx, collected, layout)
}

// fanOut writes a kept deal to persistence, the event log, and the search
// index. Order is deterministic but not transactional; each sink is guarded
// independently so one's failure cannot starve the others.
func (p *Pipeline) fanOut(ctx context.Context, deal types.CollectedDeal, layout Layout) {
	if err := apperrors.RetryPersistence(ctx, func() error {
		_, err := p.store.SaveCollectedDealsBatch([]types.CollectedDeal{deal})
		return err
	}); err != nil {
		p.logger.Warn("persistence write failed", "code", deal.ProductCode, "error", err)
	}

	evt := types.DealUpdateEvent{
		ProductCode:     deal.ProductCode,
		ProductTitle:    deal.Title,
		CurrentPrice:    floatOf(deal.CurrentPrice),
		OriginalPrice:   floatOf(deal.OriginalPrice),
		DiscountPercent: floatOf(deal.DiscountPercent),
		Domain:          deal.Domain,
		Layout:          string(layout),
		Timestamp:       deal.CollectedAt,
		EventType:       "deal_update",
	}
	if err := p.producer.Send(ctx, eventlog.TopicDealUpdates, deal.ProductCode, evt); err != nil {
		p.logger.Warn("event log publish failed", "code", deal.ProductCode, "error", err)
	}

	if err := p.search.IndexDocument(ctx, searchindex.DealIndex, deal.ID.String(), evt); err != nil {
		p.logger.Warn("search index write failed", "code", deal.ProductCode, "error", err)
	}

	var watches []types.WatchedProduct
	err := apperrors.RetryPersistence(ctx, func() error {
		var err error
		watches, err = p.store.ActiveWatchesByProductCode(deal.ProductCode)
		return err
	})
	if err != nil {
		p.logger.Warn("lookup of watching users failed", "code", deal.ProductCode, "error", err)
		return
	}
	for _, w := range watches {
		target := floatOf(w.TargetPrice)
		if floatOf(deal.CurrentPrice) > target*1.01 {
			continue
		}
		if err := apperrors.RetryPersistence(ctx, func() error {
			_, err := p.store.CreatePriceAlert(w.ID, floatOf(deal.CurrentPrice), target, floatOf(w.CurrentPrice), floatOf(deal.CurrentPrice))
			return err
		}); err != nil {
			p.logger.Warn("alert creation failed", "watch", w.ID, "error", err)
		}
	}
}
