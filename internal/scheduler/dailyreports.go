package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/keeperwatch/pricewatch/internal/dealpipeline"
	"github.com/keeperwatch/pricewatch/pkg/apperrors"
	"github.com/keeperwatch/pricewatch/pkg/types"
)

// searchRetentionWindow is the age at which price/deal documents are purged
// from the search index (§4.6's 90-day retention pass).
const searchRetentionWindow = 90 * 24 * time.Hour

// runSearchRetention deletes documents older than searchRetentionWindow from
// both search indexes. Best-effort, same as every other search-index write:
// a failure here is logged and the next cycle retries, it never blocks the
// report pass it runs alongside.
func (s *Scheduler) runSearchRetention(ctx context.Context) {
	cutoff := time.Now().Add(-searchRetentionWindow)
	if err := s.search.DeleteOlderThan(ctx, cutoff); err != nil {
		s.logger.Warn("search index retention pass failed", "error", err)
	}
}

// runDailyDealReports runs once every DailyReportEveryNCycles price-check
// cycles: it re-runs deal search per active DealFilter, applies the filter's
// thresholds, persists a DealReport, and hands the result to the dispatcher.
func (s *Scheduler) runDailyDealReports(ctx context.Context) {
	filters, err := s.store.ActiveDealFilters()
	if err != nil {
		s.logger.Warn("failed to load active deal filters", "error", err)
		return
	}

	for _, filter := range filters {
		matched := s.matchDeals(ctx, filter)
		if len(matched) == 0 {
			continue
		}

		var reportID uuid.UUID
		err := apperrors.RetryPersistence(ctx, func() error {
			var err error
			reportID, err = s.store.SaveDealReport(filter.ID, matched)
			return err
		})
		if err != nil {
			s.logger.Warn("failed to save deal report", "filter", filter.ID, "error", err)
			continue
		}

		var user types.User
		err = apperrors.RetryPersistence(ctx, func() error {
			var err error
			user, err = s.store.GetUser(filter.UserID)
			return err
		})
		if err != nil {
			s.logger.Warn("failed to load filter owner", "filter", filter.ID, "error", err)
			continue
		}
		if s.dispatch.SendDealReport(ctx, user, matched) {
			if err := apperrors.RetryPersistence(ctx, func() error {
				return s.store.MarkDealReportSent(reportID)
			}); err != nil {
				s.logger.Warn("failed to mark deal report sent", "report", reportID, "error", err)
			}
		}
	}
}

// matchDeals queries the deal-search endpoint across every category a filter
// names, over every in-scope marketplace, keeping only deals within the
// filter's price/discount/rating thresholds.
func (s *Scheduler) matchDeals(ctx context.Context, filter types.DealFilter) []types.CollectedDeal {
	minPrice, _ := filter.MinPrice.Float64()
	maxPrice, _ := filter.MaxPrice.Float64()
	minDiscount, _ := filter.MinDiscount.Float64()
	maxDiscount, _ := filter.MaxDiscount.Float64()

	var matched []types.CollectedDeal
	for _, domain := range types.InScopeDomains {
		for _, category := range filter.Categories {
			deals, err := s.client.SearchDeals(ctx, domain, category)
			if err != nil {
				s.logger.Warn("deal search failed for filter", "filter", filter.ID, "domain", domain, "category", category, "error", err)
				continue
			}
			for _, d := range deals {
				nd, err := dealpipeline.Normalize(map[string]any{
					"productCode":     d.ASIN,
					"title":           d.Title,
					"currentPrice":    d.CurrentPrice,
					"originalPrice":   d.OriginalPrice,
					"discountPercent": d.DiscountPercent,
					"rating":          d.Rating,
					"reviewCount":     d.ReviewCount,
					"salesRank":       d.SalesRank,
					"category":        d.Category,
					"url":             d.URL,
					"primeEligible":   d.PrimeEligible,
				})
				if err != nil || dealpipeline.IsSpam(nd) {
					continue
				}
				if maxPrice > 0 && nd.CurrentPrice > maxPrice {
					continue
				}
				if nd.CurrentPrice < minPrice {
					continue
				}
				if nd.DiscountPercent < minDiscount {
					continue
				}
				if maxDiscount > 0 && nd.DiscountPercent > maxDiscount {
					continue
				}
				if nd.Rating < filter.MinRating {
					continue
				}
				matched = append(matched, types.CollectedDeal{
					ID:              uuid.New(),
					ProductCode:     nd.ProductCode,
					Title:           nd.Title,
					CurrentPrice:    decimal.NewFromFloat(nd.CurrentPrice),
					OriginalPrice:   decimal.NewFromFloat(nd.OriginalPrice),
					DiscountPercent: decimal.NewFromFloat(nd.DiscountPercent),
					Rating:          nd.Rating,
					ReviewCount:     nd.ReviewCount,
					SalesRank:       nd.SalesRank,
					Domain:          domain,
					Category:        nd.Category,
					DealScore:       dealpipeline.Score(nd),
					URL:             nd.URL,
					PrimeEligible:   nd.PrimeEligible,
					Source:          "deals",
				})
			}
		}
	}
	return matched
}
